package domain

import "time"

type Pet struct {
	ID               string
	Name             string
	Species          string
	Breed            string
	AgeYears         *float64
	WeightKg         *float64
	HealthConditions []string
	OwnerEmail       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
