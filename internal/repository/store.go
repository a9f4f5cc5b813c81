package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eco_api/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrInvalidTransition  = errors.New("invalid status transition")

	errConcurrentUpdate = errors.New("concurrent update")
)

// maxTransitionAttempts bounds compare-and-swap retries under contention.
const maxTransitionAttempts = 10

// TransactionStore is the single source of truth for payment status.
// Implementations must apply Transition atomically per reference.
type TransactionStore interface {
	Create(ctx context.Context, t *domain.Transaction) error
	Get(ctx context.Context, reference string) (*domain.Transaction, error)
	// Transition moves the transaction forward. A terminal transaction absorbs
	// any transition as a no-op and reports Changed=false.
	Transition(ctx context.Context, reference string, to domain.TxStatus, opts TransitionOptions) (TransitionResult, error)
	List(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error)
	Ping(ctx context.Context) error
	Close() error
}

type TransitionOptions struct {
	PaidAt        *time.Time
	GatewayStatus string
}

// TransitionResult is the outcome of one Transition. From is the status the
// write replaced, read inside the same atomic step.
type TransitionResult struct {
	Tx      *domain.Transaction
	From    domain.TxStatus
	Changed bool
}

type TxFilter struct {
	Status        domain.TxStatus
	Email         string
	CreatedBefore time.Time
}

func (f TxFilter) match(t *domain.Transaction) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Email != "" && !strings.EqualFold(t.Email, f.Email) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !t.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// applyTransition mutates t in place following the forward-only rule.
func applyTransition(t *domain.Transaction, to domain.TxStatus, opts TransitionOptions, now time.Time) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if t.Status.Absorbs(to) {
		return false, nil
	}
	if !domain.CanTransition(t.Status, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	t.Status = to
	t.UpdatedAt = now
	if opts.PaidAt != nil {
		paid := opts.PaidAt.UTC()
		t.PaidAt = &paid
	}
	if opts.GatewayStatus != "" {
		t.GatewayStatus = opts.GatewayStatus
	}
	return true, nil
}

func validateNew(t *domain.Transaction) error {
	if t.Reference == "" {
		return errors.New("reference is required")
	}
	if t.AmountMinor <= 0 {
		return errors.New("amount must be > 0")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	return nil
}

// decodeMetadata keeps numbers as json.Number so metadata round-trips unmodified.
func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
