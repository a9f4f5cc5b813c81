package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"eco_api/internal/assistant"
	"eco_api/internal/config"
	httpd "eco_api/internal/delivery/http"
	"eco_api/internal/gateway"
	"eco_api/internal/logger"
	"eco_api/internal/metrics"
	"eco_api/internal/repository"
	"eco_api/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server, metrics endpoint and abandon sweeper",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.StateStoreURL)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	pets, err := repository.NewPetRepo(cfg.PetStoreDSN)
	if err != nil {
		return fmt.Errorf("open pet store: %w", err)
	}
	defer pets.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gw := gateway.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	payments := usecase.NewPaymentUsecase(gw, store, m, usecase.PaymentConfig{
		CallbackURL:   cfg.CallbackURL(),
		WebhookSecret: cfg.PaystackSecretKey,
		AbandonAfter:  cfg.AbandonAfter,
	})

	chat := assistant.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	if !chat.Configured() {
		logger.Warn("OPENAI_API_KEY not set, /api/ai will answer 503")
	}

	h := httpd.NewHandler(
		payments,
		usecase.NewPetUsecase(pets),
		usecase.NewAssistantUsecase(chat),
		usecase.NewHealthUsecase(store, pets),
		httpd.Options{
			FrontendURL:  cfg.FrontendURL,
			MaxBodyBytes: cfg.MaxBodyBytes,
			AdminToken:   cfg.AdminToken,
		},
	)

	api := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server listening", "addr", api.Addr, "env", cfg.AppEnv)
		return listen(api)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(api)
	})

	if cfg.MetricsPort != "" {
		ms := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server listening", "addr", ms.Addr)
			return listen(ms)
		})
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(ms)
		})
	}

	g.Go(func() error {
		return payments.RunSweeper(gctx, cfg.SweepInterval)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func listen(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	return nil
}

func shutdown(s *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}
