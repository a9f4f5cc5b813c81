package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// VerifyPath is where the payment provider redirects the payer after checkout.
const VerifyPath = "/api/payments/verify"

type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	PaystackSecretKey   string
	PaystackBaseURL     string
	CallbackBaseURL     string
	PaystackCallbackURL string
	GatewayTimeout      time.Duration

	StateStoreURL string
	PetStoreDSN   string

	FrontendURL  string
	MaxBodyBytes int64

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	MetricsPort string
	AdminToken  string

	AbandonAfter  time.Duration
	SweepInterval time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	return Config{
		AppPort:  getenv("PORT", "5000"),
		AppEnv:   getenv("APP_ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackBaseURL:     getenv("BACKEND_URL", "http://localhost:5000"),
		PaystackCallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
		GatewayTimeout:      time.Duration(getInt64("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,

		StateStoreURL: os.Getenv("STATE_STORE_URL"),
		PetStoreDSN:   getenv("PET_STORE_DSN", "./eco.db"),

		FrontendURL:  getenv("FRONTEND_URL", "http://localhost:3000"),
		MaxBodyBytes: getInt64("MAX_BODY_BYTES", 1<<20),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-3.5-turbo"),

		MetricsPort: os.Getenv("METRICS_PORT"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),

		AbandonAfter:  time.Duration(getInt64("ABANDON_AFTER_MINUTES", 24*60)) * time.Minute,
		SweepInterval: time.Duration(getInt64("SWEEP_INTERVAL_SECONDS", 300)) * time.Second,
	}
}

// Validate reports every missing required option at once.
func (c Config) Validate() error {
	var errs []error
	if c.PaystackSecretKey == "" {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required"))
	}
	if c.PaystackBaseURL == "" {
		errs = append(errs, errors.New("PAYSTACK_BASE_URL is required"))
	}
	if c.CallbackBaseURL == "" && c.PaystackCallbackURL == "" {
		errs = append(errs, errors.New("BACKEND_URL or PAYSTACK_CALLBACK_URL is required"))
	}
	if c.StateStoreURL == "" {
		errs = append(errs, errors.New("STATE_STORE_URL is required"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// CallbackURL is the URL the provider redirects the payer to after checkout.
func (c Config) CallbackURL() string {
	if c.PaystackCallbackURL != "" {
		return c.PaystackCallbackURL
	}
	return strings.TrimRight(c.CallbackBaseURL, "/") + VerifyPath
}
