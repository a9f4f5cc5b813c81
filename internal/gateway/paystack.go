package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of a provider error response is retained.
	maxErrorBody = 4 << 10
)

var (
	// ErrNotConfigured is returned for every call when no secret key was supplied.
	ErrNotConfigured = errors.New("gateway: secret key not configured")
	ErrUnreachable   = errors.New("gateway: provider unreachable")
)

// RejectedError is a non-2xx (or status:false) answer from the provider.
type RejectedError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: provider rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: provider rejected request (%d)", e.StatusCode)
}

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Reference   string
	Status      string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
}

// PaystackClient talks to the Paystack transaction API.
type PaystackClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPaystackClient(baseURL, secret string, timeout time.Duration) *PaystackClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PaystackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := initializeBody{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, &RejectedError{StatusCode: http.StatusOK, Message: "missing authorization_url"}
	}

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        ref,
	}, nil
}

func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var data verifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}

	ref := data.Reference
	if ref == "" {
		ref = reference
	}
	return &VerifyResult{
		Reference:   ref,
		Status:      strings.ToLower(data.Status),
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		PaidAt:      data.PaidAt,
	}, nil
}

func (c *PaystackClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.secret == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{StatusCode: resp.StatusCode, Message: env.Message, Body: truncate(raw)}
	}
	if decodeErr != nil {
		return &RejectedError{StatusCode: resp.StatusCode, Message: "malformed response", Body: truncate(raw)}
	}
	if !env.Status {
		return &RejectedError{StatusCode: resp.StatusCode, Message: env.Message, Body: truncate(raw)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &RejectedError{StatusCode: resp.StatusCode, Message: "malformed data", Body: truncate(raw)}
		}
	}
	return nil
}

func truncate(b []byte) []byte {
	if len(b) > maxErrorBody {
		return b[:maxErrorBody]
	}
	return b
}
