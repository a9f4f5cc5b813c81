package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"eco_api/internal/apperrors"
	"eco_api/internal/domain"
	"eco_api/internal/gateway"
	"eco_api/internal/logger"
	"eco_api/internal/repository"
)

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

type webhookEvent struct {
	Event     string `json:"event"`
	Reference string `json:"reference"`
	Data      struct {
		Reference string     `json:"reference"`
		Status    string     `json:"status"`
		Amount    int64      `json:"amount"`
		PaidAt    *time.Time `json:"paid_at"`
	} `json:"data"`
}

func (e webhookEvent) reference() string {
	if e.Data.Reference != "" {
		return e.Data.Reference
	}
	return e.Reference
}

type WebhookOutcome struct {
	Event     string
	Reference string
	Status    domain.TxStatus
	Applied   bool
	Orphan    bool
	Ignored   bool
}

// ConfirmByWebhook authenticates and applies one provider push. rawBody must
// be the exact bytes received; the signature is checked before any parsing.
// Delivery is at-least-once, so repeats of an applied event are no-ops.
func (u *PaymentUsecase) ConfirmByWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookOutcome, error) {
	log := logger.FromContext(ctx)

	if !gateway.VerifySignature(u.cfg.WebhookSecret, rawBody, signature) {
		u.metrics.Webhook("unauthenticated")
		log.Warn("webhook signature mismatch", "body_bytes", len(rawBody))
		return nil, apperrors.New(apperrors.CodeAuthenticationFailed, "invalid signature")
	}

	var evt webhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		u.metrics.Webhook("malformed")
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "malformed webhook body")
	}
	ref := strings.TrimSpace(evt.reference())
	if evt.Event == "" || ref == "" {
		u.metrics.Webhook("malformed")
		return nil, apperrors.InvalidRequest("webhook event and reference are required")
	}

	out := &WebhookOutcome{Event: evt.Event, Reference: ref}

	var to domain.TxStatus
	switch evt.Event {
	case EventChargeSuccess:
		to = domain.StatusVerified
	case EventChargeFailed:
		to = domain.StatusFailed
	default:
		u.metrics.Webhook("ignored")
		log.Info("webhook event ignored", "event", evt.Event, "reference", ref)
		out.Ignored = true
		return out, nil
	}

	tx, err := u.store.Get(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		u.metrics.Webhook("orphan")
		log.Warn("orphan webhook", "event", evt.Event, "reference", ref)
		out.Orphan = true
		return out, nil
	}
	if err != nil {
		u.metrics.Webhook("error")
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not load transaction")
	}

	if to == domain.StatusVerified && evt.Data.Amount != 0 && evt.Data.Amount != tx.AmountMinor {
		log.Warn("webhook amount does not match recorded amount",
			"reference", ref,
			"expected_minor", tx.AmountMinor,
			"reported_minor", evt.Data.Amount,
		)
		to = domain.StatusFailed
	}

	res, err := u.store.Transition(ctx, ref, to, repository.TransitionOptions{
		PaidAt:        paidAtFor(to, evt.Data.PaidAt),
		GatewayStatus: evt.Event,
	})
	if err != nil {
		u.metrics.Webhook("error")
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidTransition, "invalid status transition")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not update transaction")
	}

	out.Status = res.Tx.Status
	out.Applied = res.Changed
	switch {
	case res.Changed && res.From == domain.StatusAbandoned:
		u.metrics.Webhook("late_settlement")
		u.metrics.Transition(string(res.From), string(res.Tx.Status))
		log.Warn("abandoned payment settled by webhook",
			"reference", ref,
			"event", evt.Event,
			"to", res.Tx.Status,
		)
	case res.Changed:
		u.metrics.Webhook("applied")
		u.metrics.Transition(string(res.From), string(res.Tx.Status))
		log.Info("payment status changed by webhook",
			"reference", ref,
			"event", evt.Event,
			"from", res.From,
			"to", res.Tx.Status,
		)
	default:
		u.metrics.Webhook("duplicate")
		log.Info("webhook already applied", "reference", ref, "event", evt.Event, "status", res.Tx.Status)
	}
	return out, nil
}
