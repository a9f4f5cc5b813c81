package httpd

import (
	"encoding/json"
	"time"

	"eco_api/internal/domain"
	"eco_api/internal/usecase"
)

type InitializeReq struct {
	Email    string         `json:"email" validate:"required,email"`
	Amount   json.Number    `json:"amount" validate:"required"`
	Currency string         `json:"currency" validate:"omitempty,len=3,alpha"`
	Metadata map[string]any `json:"metadata"`
}

type InitializeResp struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

type VerifyResp struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

func toVerifyResp(o *usecase.VerifyOutput) VerifyResp {
	return VerifyResp{
		Reference: o.Reference,
		Status:    string(o.Status),
		Amount:    o.AmountMinor,
		Currency:  o.Currency,
		PaidAt:    o.PaidAt,
	}
}

// TxItem is the admin view of a transaction, including provider detail.
type TxItem struct {
	Reference        string         `json:"reference"`
	Email            string         `json:"email"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	GatewayStatus    string         `json:"gatewayStatus,omitempty"`
	AuthorizationURL string         `json:"authorizationUrl,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	PaidAt           *time.Time     `json:"paidAt,omitempty"`
}

func toTxItem(t domain.Transaction) TxItem {
	return TxItem{
		Reference:        t.Reference,
		Email:            t.Email,
		Amount:           t.AmountMinor,
		Currency:         t.Currency,
		Status:           string(t.Status),
		GatewayStatus:    t.GatewayStatus,
		AuthorizationURL: t.AuthorizationURL,
		Metadata:         t.Metadata,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		PaidAt:           t.PaidAt,
	}
}

type CreatePetReq struct {
	Name             string   `json:"name" validate:"required,max=100"`
	Species          string   `json:"species" validate:"required,max=50"`
	Breed            string   `json:"breed" validate:"max=100"`
	AgeYears         *float64 `json:"ageYears" validate:"omitempty,gte=0"`
	WeightKg         *float64 `json:"weightKg" validate:"omitempty,gt=0"`
	HealthConditions []string `json:"healthConditions" validate:"max=50,dive,max=200"`
	OwnerEmail       string   `json:"ownerEmail" validate:"required,email"`
}

type PetResp struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Species          string    `json:"species"`
	Breed            string    `json:"breed,omitempty"`
	AgeYears         *float64  `json:"ageYears,omitempty"`
	WeightKg         *float64  `json:"weightKg,omitempty"`
	HealthConditions []string  `json:"healthConditions"`
	OwnerEmail       string    `json:"ownerEmail"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toPetResp(p domain.Pet) PetResp {
	conditions := p.HealthConditions
	if conditions == nil {
		conditions = []string{}
	}
	return PetResp{
		ID:               p.ID,
		Name:             p.Name,
		Species:          p.Species,
		Breed:            p.Breed,
		AgeYears:         p.AgeYears,
		WeightKg:         p.WeightKg,
		HealthConditions: conditions,
		OwnerEmail:       p.OwnerEmail,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

type AskReq struct {
	Prompt string `json:"prompt" validate:"required"`
}

type AskResp struct {
	Reply string `json:"reply"`
}

type HealthResp struct {
	OK         bool   `json:"ok"`
	Service    string `json:"service"`
	StateStore string `json:"stateStore"`
	PetStore   string `json:"petStore"`
}

type ErrorResp struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
