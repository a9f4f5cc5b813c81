package domain

import "time"

type TxStatus string

const (
	StatusPending     TxStatus = "PENDING"
	StatusInitialized TxStatus = "INITIALIZED"
	StatusVerified    TxStatus = "VERIFIED"
	StatusFailed      TxStatus = "FAILED"
	StatusAbandoned   TxStatus = "ABANDONED"
)

// Abandoned ranks below the settled statuses: a payer can still complete
// checkout after the sweeper gave up, and the provider's answer wins.
var statusRank = map[TxStatus]int{
	StatusPending:     0,
	StatusInitialized: 1,
	StatusAbandoned:   2,
	StatusVerified:    3,
	StatusFailed:      3,
}

func (s TxStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transition can change the status.
func (s TxStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// Absorbs reports whether moving from s to to is a no-op rather than an error:
// terminal statuses absorb everything and Abandoned absorbs a repeated abandon.
func (s TxStatus) Absorbs(to TxStatus) bool {
	return s.IsTerminal() || (s == StatusAbandoned && to == StatusAbandoned)
}

// CanTransition reports whether a transaction in from may move to to.
// Terminal sources are handled by callers as no-ops and always return false here.
func CanTransition(from, to TxStatus) bool {
	if from.IsTerminal() || !from.Valid() || !to.Valid() {
		return false
	}
	return statusRank[to] > statusRank[from]
}

// Transaction is one payment attempt, keyed by its provider-shared reference.
type Transaction struct {
	Reference        string
	Email            string
	AmountMinor      int64
	Currency         string
	Metadata         map[string]any
	Status           TxStatus
	GatewayStatus    string
	CallbackURL      string
	AuthorizationURL string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}
