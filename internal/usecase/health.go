package usecase

import (
	"context"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	OK         bool
	StateStore string
	PetStore   string
}

type HealthUsecase struct {
	state   Pinger
	pets    Pinger
	timeout time.Duration
}

func NewHealthUsecase(state, pets Pinger) *HealthUsecase {
	return &HealthUsecase{state: state, pets: pets, timeout: 2 * time.Second}
}

// Status queries each store driver; it never caches a previous answer.
func (u *HealthUsecase) Status(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	st := HealthStatus{
		StateStore: probe(ctx, u.state),
		PetStore:   probe(ctx, u.pets),
	}
	st.OK = st.StateStore != "down" && st.PetStore != "down"
	return st
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
