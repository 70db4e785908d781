package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lifeline/internal/hospital"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

// PostgresStore persists hospitals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed hospital store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, h hospital.Hospital) error {
	query := `
		INSERT INTO hospitals (id, name, email, phone_number, address, city, state, country, license_number, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID.String(), h.Name, h.Email, h.PhoneNumber, h.Address,
		h.City, h.State, h.Country, h.LicenseNumber, h.IsActive, h.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create hospital: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, hospitalID id.HospitalID) (hospital.Hospital, error) {
	query := `
		SELECT id, name, email, phone_number, address, city, state, country, license_number, is_active, created_at
		FROM hospitals
		WHERE id = $1
	`
	var (
		h     hospital.Hospital
		idStr string
	)
	err := s.db.QueryRowContext(ctx, query, hospitalID.String()).Scan(
		&idStr, &h.Name, &h.Email, &h.PhoneNumber, &h.Address,
		&h.City, &h.State, &h.Country, &h.LicenseNumber, &h.IsActive, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hospital.Hospital{}, sentinel.ErrNotFound
		}
		return hospital.Hospital{}, fmt.Errorf("find hospital: %w", err)
	}
	parsed, err := id.ParseHospitalID(idStr)
	if err != nil {
		return hospital.Hospital{}, fmt.Errorf("parse hospital id: %w", err)
	}
	h.ID = parsed
	return h, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, hospitalID id.HospitalID, active bool, _ time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hospitals SET is_active = $2 WHERE id = $1`,
		hospitalID.String(), active,
	)
	if err != nil {
		return fmt.Errorf("set hospital active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set hospital active: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
