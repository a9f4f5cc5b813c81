package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eco_api/internal/domain"
)

type PetRepo struct {
	db *sql.DB
}

func NewPetRepo(dsn string) (*PetRepo, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}

	r := &PetRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PetRepo) Close() error {
	return r.db.Close()
}

func (r *PetRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PetRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS pet_profiles(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			species TEXT NOT NULL,
			breed TEXT NOT NULL DEFAULT '',
			age_years REAL,
			weight_kg REAL,
			health_conditions TEXT NOT NULL DEFAULT '[]',
			owner_email TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pet_owner_email ON pet_profiles(owner_email);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *PetRepo) Create(ctx context.Context, p *domain.Pet) error {
	conditions := p.HealthConditions
	if conditions == nil {
		conditions = []string{}
	}
	hc, err := json.Marshal(conditions)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO pet_profiles(
			id, name, species, breed, age_years, weight_kg,
			health_conditions, owner_email, created_at, updated_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q,
		p.ID,
		p.Name,
		p.Species,
		p.Breed,
		p.AgeYears,
		p.WeightKg,
		string(hc),
		p.OwnerEmail,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("pet %s: %w", p.ID, ErrDuplicateReference)
	}
	return err
}

const petColumns = `
	SELECT id, name, species, breed, age_years, weight_kg,
		health_conditions, owner_email, created_at, updated_at
	FROM pet_profiles
`

func (r *PetRepo) Get(ctx context.Context, id string) (*domain.Pet, error) {
	p, err := scanPet(r.db.QueryRowContext(ctx, petColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns pets newest first, optionally restricted to one owner.
func (r *PetRepo) List(ctx context.Context, ownerEmail string, limit, offset int) ([]domain.Pet, error) {
	q := petColumns + " WHERE 1 = 1"
	args := []any{}
	if ownerEmail != "" {
		q += " AND owner_email = ? COLLATE NOCASE"
		args = append(args, ownerEmail)
	}
	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pets := []domain.Pet{}
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		pets = append(pets, *p)
	}
	return pets, rows.Err()
}

func scanPet(s scanner) (*domain.Pet, error) {
	var p domain.Pet
	var hc, createdStr, updatedStr string
	var age, weight sql.NullFloat64

	if err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Species,
		&p.Breed,
		&age,
		&weight,
		&hc,
		&p.OwnerEmail,
		&createdStr,
		&updatedStr,
	); err != nil {
		return nil, err
	}

	if age.Valid {
		p.AgeYears = &age.Float64
	}
	if weight.Valid {
		p.WeightKg = &weight.Float64
	}
	if err := json.Unmarshal([]byte(hc), &p.HealthConditions); err != nil {
		return nil, fmt.Errorf("decode health_conditions: %w", err)
	}

	var err error
	if p.CreatedAt, err = time.Parse(timeLayout, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}
