package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"eco_api/internal/apperrors"
	"eco_api/internal/domain"
	"eco_api/internal/gateway"
	"eco_api/internal/logger"
	"eco_api/internal/metrics"
	"eco_api/internal/repository"

	"github.com/google/uuid"
)

// Gateway is the subset of the payment provider client the lifecycle needs.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*gateway.VerifyResult, error)
}

type PaymentConfig struct {
	CallbackURL     string
	WebhookSecret   string
	DefaultCurrency string
	AbandonAfter    time.Duration
}

type PaymentUsecase struct {
	gw      Gateway
	store   repository.TransactionStore
	metrics *metrics.Metrics
	cfg     PaymentConfig
	now     func() time.Time
	newRef  func() string
}

func NewPaymentUsecase(gw Gateway, store repository.TransactionStore, m *metrics.Metrics, cfg PaymentConfig) *PaymentUsecase {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "NGN"
	}
	return &PaymentUsecase{
		gw:      gw,
		store:   store,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		newRef:  func() string { return "ECO-" + strings.ToUpper(uuid.NewString()) },
	}
}

type InitializeInput struct {
	Email       string
	AmountMinor int64
	Currency    string
	Metadata    map[string]any
}

type InitializeOutput struct {
	AuthorizationURL string
	Reference        string
}

func (u *PaymentUsecase) InitializePayment(ctx context.Context, in InitializeInput) (*InitializeOutput, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, apperrors.InvalidRequest("email is required")
	}
	if in.AmountMinor <= 0 {
		return nil, apperrors.InvalidRequest("amount must be a positive integer in minor units")
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = u.cfg.DefaultCurrency
	}

	start := time.Now()
	res, err := u.gw.InitializeTransaction(ctx, gateway.InitializeRequest{
		Email:       email,
		AmountMinor: in.AmountMinor,
		Currency:    currency,
		Reference:   u.newRef(),
		CallbackURL: u.cfg.CallbackURL,
		Metadata:    in.Metadata,
	})
	if err != nil {
		u.metrics.GatewayCall("initialize", gatewayOutcome(err), time.Since(start))
		return nil, u.gatewayError(ctx, "initialize", err)
	}
	u.metrics.GatewayCall("initialize", "ok", time.Since(start))

	tx := &domain.Transaction{
		Reference:        res.Reference,
		Email:            email,
		AmountMinor:      in.AmountMinor,
		Currency:         currency,
		Metadata:         in.Metadata,
		Status:           domain.StatusInitialized,
		CallbackURL:      u.cfg.CallbackURL,
		AuthorizationURL: res.AuthorizationURL,
		CreatedAt:        u.now().UTC(),
	}
	if err := u.store.Create(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, apperrors.Wrap(err, apperrors.CodeDuplicateReference, "reference already exists")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not record transaction")
	}
	u.metrics.Transition(string(domain.StatusPending), string(domain.StatusInitialized))

	logger.FromContext(ctx).Info("payment initialized",
		"reference", tx.Reference,
		"amount_minor", tx.AmountMinor,
		"currency", tx.Currency,
	)

	return &InitializeOutput{
		AuthorizationURL: res.AuthorizationURL,
		Reference:        tx.Reference,
	}, nil
}

type VerifyOutput struct {
	Reference   string
	Status      domain.TxStatus
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
}

func toVerifyOutput(t *domain.Transaction) *VerifyOutput {
	return &VerifyOutput{
		Reference:   t.Reference,
		Status:      t.Status,
		AmountMinor: t.AmountMinor,
		Currency:    t.Currency,
		PaidAt:      t.PaidAt,
	}
}

// ConfirmByVerify polls the provider for reference and records the outcome.
// A transaction that is already terminal is returned as stored; an abandoned
// one is still checked since the payer may have paid after the sweep.
func (u *PaymentUsecase) ConfirmByVerify(ctx context.Context, reference string) (*VerifyOutput, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperrors.InvalidRequest("reference is required")
	}

	tx, err := u.load(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return toVerifyOutput(tx), nil
	}

	start := time.Now()
	res, err := u.gw.VerifyTransaction(ctx, reference)
	if err != nil {
		u.metrics.GatewayCall("verify", gatewayOutcome(err), time.Since(start))
		return nil, u.gatewayError(ctx, "verify", err)
	}
	u.metrics.GatewayCall("verify", "ok", time.Since(start))

	to, ok := u.statusFromProvider(ctx, tx, res.Status, res.AmountMinor)
	if !ok {
		return toVerifyOutput(tx), nil
	}

	updated, err := u.transition(ctx, tx, to, repository.TransitionOptions{
		PaidAt:        paidAtFor(to, res.PaidAt),
		GatewayStatus: res.Status,
	})
	if err != nil {
		return nil, err
	}
	return toVerifyOutput(updated), nil
}

// statusFromProvider maps a provider transaction status onto the local state
// machine. ok is false for statuses that do not settle the payment yet.
func (u *PaymentUsecase) statusFromProvider(ctx context.Context, tx *domain.Transaction, providerStatus string, amountMinor int64) (domain.TxStatus, bool) {
	switch providerStatus {
	case "success":
		if amountMinor != 0 && amountMinor != tx.AmountMinor {
			logger.FromContext(ctx).Warn("provider amount does not match recorded amount",
				"reference", tx.Reference,
				"expected_minor", tx.AmountMinor,
				"reported_minor", amountMinor,
			)
			return domain.StatusFailed, true
		}
		return domain.StatusVerified, true
	case "failed", "reversed":
		return domain.StatusFailed, true
	default:
		return "", false
	}
}

func (u *PaymentUsecase) transition(ctx context.Context, tx *domain.Transaction, to domain.TxStatus, opts repository.TransitionOptions) (*domain.Transaction, error) {
	res, err := u.store.Transition(ctx, tx.Reference, to, opts)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "transaction not found")
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidTransition, "invalid status transition")
		default:
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not update transaction")
		}
	}

	if res.Changed {
		u.metrics.Transition(string(res.From), string(res.Tx.Status))
		log := logger.FromContext(ctx)
		if res.From == domain.StatusAbandoned {
			log.Warn("abandoned payment settled by provider",
				"reference", res.Tx.Reference,
				"to", res.Tx.Status,
			)
		} else {
			log.Info("payment status changed",
				"reference", res.Tx.Reference,
				"from", res.From,
				"to", res.Tx.Status,
			)
		}
	}
	return res.Tx, nil
}

func (u *PaymentUsecase) load(ctx context.Context, reference string) (*domain.Transaction, error) {
	tx, err := u.store.Get(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not load transaction")
	}
	return tx, nil
}

func (u *PaymentUsecase) GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperrors.InvalidRequest("reference is required")
	}
	return u.load(ctx, reference)
}

func (u *PaymentUsecase) ListTransactions(ctx context.Context, f repository.TxFilter, limit, offset int) ([]domain.Transaction, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.InvalidRequest("unknown status filter")
	}
	items, err := u.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not list transactions")
	}
	return items, nil
}

// gatewayError translates provider failures into the API taxonomy. Provider
// bodies are logged here and never returned to the caller.
func (u *PaymentUsecase) gatewayError(ctx context.Context, op string, err error) error {
	log := logger.FromContext(ctx)

	var rejected *gateway.RejectedError
	switch {
	case errors.As(err, &rejected):
		log.Warn("payment gateway rejected request",
			"operation", op,
			"status_code", rejected.StatusCode,
			"provider_message", rejected.Message,
			"provider_body", string(rejected.Body),
		)
		return apperrors.Wrap(err, apperrors.CodeGatewayRejected, "payment gateway rejected the request")
	case errors.Is(err, gateway.ErrNotConfigured):
		log.Error("payment gateway is not configured", "operation", op)
		return apperrors.Wrap(err, apperrors.CodeGatewayUnreachable, "payment gateway unavailable")
	default:
		log.Warn("payment gateway unreachable", "operation", op, "error", err)
		return apperrors.Wrap(err, apperrors.CodeGatewayUnreachable, "payment gateway unavailable")
	}
}

func gatewayOutcome(err error) string {
	var rejected *gateway.RejectedError
	if errors.As(err, &rejected) {
		return "rejected"
	}
	return "unreachable"
}

func paidAtFor(status domain.TxStatus, paidAt *time.Time) *time.Time {
	if status != domain.StatusVerified {
		return nil
	}
	return paidAt
}
