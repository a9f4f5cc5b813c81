package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"eco_api/internal/apperrors"
	"eco_api/internal/domain"
	"eco_api/internal/repository"

	"github.com/google/uuid"
)

type PetStore interface {
	Create(ctx context.Context, p *domain.Pet) error
	Get(ctx context.Context, id string) (*domain.Pet, error)
	List(ctx context.Context, ownerEmail string, limit, offset int) ([]domain.Pet, error)
}

type PetUsecase struct {
	store PetStore
	now   func() time.Time
}

func NewPetUsecase(store PetStore) *PetUsecase {
	return &PetUsecase{store: store, now: time.Now}
}

type CreatePetInput struct {
	Name             string
	Species          string
	Breed            string
	AgeYears         *float64
	WeightKg         *float64
	HealthConditions []string
	OwnerEmail       string
}

func (u *PetUsecase) Create(ctx context.Context, in CreatePetInput) (*domain.Pet, error) {
	name := strings.TrimSpace(in.Name)
	species := strings.TrimSpace(in.Species)
	owner := strings.TrimSpace(in.OwnerEmail)
	if name == "" || species == "" || owner == "" {
		return nil, apperrors.InvalidRequest("name, species and ownerEmail are required")
	}
	if in.AgeYears != nil && *in.AgeYears < 0 {
		return nil, apperrors.InvalidRequest("ageYears must not be negative")
	}
	if in.WeightKg != nil && *in.WeightKg <= 0 {
		return nil, apperrors.InvalidRequest("weightKg must be positive")
	}

	now := u.now().UTC()
	p := &domain.Pet{
		ID:               uuid.NewString(),
		Name:             name,
		Species:          species,
		Breed:            strings.TrimSpace(in.Breed),
		AgeYears:         in.AgeYears,
		WeightKg:         in.WeightKg,
		HealthConditions: in.HealthConditions,
		OwnerEmail:       owner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := u.store.Create(ctx, p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not save pet")
	}
	return p, nil
}

func (u *PetUsecase) List(ctx context.Context, ownerEmail string, limit, offset int) ([]domain.Pet, error) {
	pets, err := u.store.List(ctx, strings.TrimSpace(ownerEmail), limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not list pets")
	}
	return pets, nil
}

func (u *PetUsecase) Get(ctx context.Context, id string) (*domain.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.InvalidRequest("pet id is required")
	}
	p, err := u.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "pet not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "could not load pet")
	}
	return p, nil
}
