package httpd

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"eco_api/internal/apperrors"
	"eco_api/internal/domain"
	"eco_api/internal/gateway"
	"eco_api/internal/logger"
	"eco_api/internal/repository"
	"eco_api/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// POST /api/payments/initialize
func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req InitializeReq
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := parseMinorAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkMetadata(req.Metadata); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.payments.InitializePayment(r.Context(), usecase.InitializeInput{
		Email:       req.Email,
		AmountMinor: amount,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, InitializeResp{
		AuthorizationURL: out.AuthorizationURL,
		Reference:        out.Reference,
	})
}

// parseMinorAmount accepts only positive whole numbers of minor units.
func parseMinorAmount(n json.Number) (int64, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, apperrors.InvalidRequest("amount must be an integer in minor units")
	}
	if v <= 0 {
		return 0, apperrors.InvalidRequest("amount must be positive")
	}
	return v, nil
}

// checkMetadata allows flat string and number values only.
func checkMetadata(md map[string]any) error {
	for k, v := range md {
		switch v.(type) {
		case string, json.Number:
		default:
			return apperrors.InvalidRequest("metadata." + k + " must be a string or number")
		}
	}
	return nil
}

// GET /api/payments/verify?reference=
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		// the provider appends trxref as well when redirecting the payer
		ref = r.URL.Query().Get("trxref")
	}

	out, err := h.payments.ConfirmByVerify(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResp(out))
}

// POST /api/payments/webhook
//
// Responses are plain text. Anything authenticated is acknowledged with 200
// so the provider stops redelivering.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusRequestEntityTooLarge)
		return
	}

	out, err := h.payments.ConfirmByWebhook(r.Context(), body, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeAuthenticationFailed) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		logger.FromContext(r.Context()).Error("webhook not applied", "error", err)
	} else {
		logger.FromContext(r.Context()).Debug("webhook handled",
			"event", out.Event,
			"reference", out.Reference,
			"applied", out.Applied,
		)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

// GET /api/payments/transactions?status=&email=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TxFilter{
		Status: domain.TxStatus(strings.ToUpper(q.Get("status"))),
		Email:  q.Get("email"),
	}
	limit, offset := pagination(r)

	items, err := h.payments.ListTransactions(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]TxItem, 0, len(items))
	for _, t := range items {
		out = append(out, toTxItem(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/payments/transactions/{reference}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.payments.GetTransaction(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTxItem(*t))
}
