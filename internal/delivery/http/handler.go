package httpd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"eco_api/internal/apperrors"
	"eco_api/internal/logger"
	"eco_api/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const serviceName = "eco-api"

type Options struct {
	FrontendURL  string
	MaxBodyBytes int64
	// AdminToken enables the transaction listing routes when set.
	AdminToken string
}

type Handler struct {
	payments  *usecase.PaymentUsecase
	pets      *usecase.PetUsecase
	assistant *usecase.AssistantUsecase
	health    *usecase.HealthUsecase
	validate  *validator.Validate
	opts      Options
}

func NewHandler(payments *usecase.PaymentUsecase, pets *usecase.PetUsecase, assistant *usecase.AssistantUsecase, health *usecase.HealthUsecase, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		payments:  payments,
		pets:      pets,
		assistant: assistant,
		health:    health,
		validate:  validator.New(),
		opts:      opts,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.opts.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", h.Healthz)
	r.Get("/api/healthz", h.Healthz)

	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/initialize", h.InitializePayment)
		r.Get("/verify", h.VerifyPayment)
		r.Post("/webhook", h.Webhook)

		if h.opts.AdminToken != "" {
			r.Group(func(r chi.Router) {
				r.Use(AdminOnly(h.opts.AdminToken))
				r.Get("/transactions", h.ListTransactions)
				r.Get("/transactions/{reference}", h.GetTransaction)
			})
		}
	})

	r.Get("/api/pets", h.ListPets)
	r.Get("/api/pets/{id}", h.GetPet)
	r.Post("/api/pets", h.CreatePet)
	r.Post("/api/ai", h.Ask)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"code", appErr.Code,
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResp{Error: string(appErr.Code), Message: appErr.Message})
}

// decodeJSON reads a size-limited JSON body into v and validates it.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Wrap(err, apperrors.CodeInvalidRequest, "request body too large")
		}
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidRequest("request body is required")
		}
		return apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid json")
	}
	if err := h.validate.Struct(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidRequest, err.Error())
	}
	return nil
}

// pagination reads limit and offset, clamping limit to (0, 200].
func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	st := h.health.Status(r.Context())
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResp{
		OK:         st.OK,
		Service:    serviceName,
		StateStore: st.StateStore,
		PetStore:   st.PetStore,
	})
}
