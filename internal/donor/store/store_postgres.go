package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"lifeline/internal/donor"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

// PostgresStore persists donors in PostgreSQL. This store is pure I/O;
// eligibility logic belongs in the donor package, tier logic in matching.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donor store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donorColumns = `
	id, user_id, full_name, date_of_birth, gender, blood_group, weight_kg, height_cm,
	phone_number, emergency_contact, address, city, state, country, pincode,
	has_chronic_disease, chronic_disease_details,
	last_donation_date, total_donations, is_available, is_verified,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, d donor.Donor) error {
	query := `
		INSERT INTO donors (` + donorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	var height sql.NullFloat64
	if d.HeightCm != nil {
		height = sql.NullFloat64{Float64: *d.HeightCm, Valid: true}
	}
	var lastDonation sql.NullTime
	if d.LastDonationDate != nil {
		lastDonation = sql.NullTime{Time: *d.LastDonationDate, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.UserID.String(), d.FullName, d.DateOfBirth, string(d.Gender),
		d.BloodGroup.String(), d.WeightKg, height,
		d.PhoneNumber, d.EmergencyContact, d.Address, d.City, d.State, d.Country, d.Pincode,
		d.HasChronicDisease, d.ChronicDiseaseDetails,
		lastDonation, d.TotalDonations, d.IsAvailable, d.IsVerified,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, donorID id.DonorID) (donor.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE id = $1`
	d, err := scanDonor(s.db.QueryRowContext(ctx, query, donorID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return donor.Donor{}, sentinel.ErrNotFound
		}
		return donor.Donor{}, fmt.Errorf("find donor: %w", err)
	}
	return d, nil
}

// Search filters the pool in SQL and orders by id so national-tier truncation
// stays reproducible across stores.
func (s *PostgresStore) Search(ctx context.Context, filter Filter) ([]donor.Donor, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.BloodGroup.IsNil() {
		conds = append(conds, "blood_group = "+arg(filter.BloodGroup.String()))
	}
	if filter.Verified != nil {
		conds = append(conds, "is_verified = "+arg(*filter.Verified))
	}
	if filter.Available != nil {
		conds = append(conds, "is_available = "+arg(*filter.Available))
	}
	if filter.City != "" {
		conds = append(conds, "LOWER(city) = LOWER("+arg(filter.City)+")")
	}
	if filter.State != "" {
		conds = append(conds, "LOWER(state) = LOWER("+arg(filter.State)+")")
	}
	if filter.ExcludeCity != "" {
		conds = append(conds, "LOWER(city) <> LOWER("+arg(filter.ExcludeCity)+")")
	}
	if filter.ExcludeState != "" {
		conds = append(conds, "LOWER(state) <> LOWER("+arg(filter.ExcludeState)+")")
	}

	query := `SELECT ` + donorColumns + ` FROM donors`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	defer rows.Close()

	var out []donor.Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, donorID id.DonorID, update donor.ProfileUpdate, updatedAt time.Time) (donor.Donor, error) {
	query := `
		UPDATE donors SET
			is_available = COALESCE($2, is_available),
			phone_number = COALESCE($3, phone_number),
			emergency_contact = COALESCE($4, emergency_contact),
			address = COALESCE($5, address),
			city = COALESCE($6, city),
			state = COALESCE($7, state),
			updated_at = $8
		WHERE id = $1
		RETURNING ` + donorColumns
	d, err := scanDonor(s.db.QueryRowContext(ctx, query,
		donorID.String(),
		nullBool(update.IsAvailable),
		nullString(update.PhoneNumber),
		nullString(update.EmergencyContact),
		nullString(update.Address),
		nullString(update.City),
		nullString(update.State),
		updatedAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return donor.Donor{}, sentinel.ErrNotFound
		}
		return donor.Donor{}, fmt.Errorf("update donor profile: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) SetVerified(ctx context.Context, donorID id.DonorID, verified bool, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE donors SET is_verified = $2, updated_at = $3 WHERE id = $1`,
		donorID.String(), verified, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("set donor verified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set donor verified: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// RecordDonation advances donation history in one atomic statement. The SQL
// increment is the concurrency guard: no read-modify-write.
func (s *PostgresStore) RecordDonation(ctx context.Context, donorID id.DonorID, on time.Time) error {
	query := `
		UPDATE donors
		SET last_donation_date = $2,
		    total_donations = total_donations + 1,
		    updated_at = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, donorID.String(), on)
	if err != nil {
		return fmt.Errorf("record donation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record donation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row rowScanner) (donor.Donor, error) {
	var (
		d            donor.Donor
		donorID      string
		userID       string
		gender       string
		bloodGroup   string
		height       sql.NullFloat64
		lastDonation sql.NullTime
	)
	err := row.Scan(
		&donorID, &userID, &d.FullName, &d.DateOfBirth, &gender, &bloodGroup,
		&d.WeightKg, &height,
		&d.PhoneNumber, &d.EmergencyContact, &d.Address, &d.City, &d.State, &d.Country, &d.Pincode,
		&d.HasChronicDisease, &d.ChronicDiseaseDetails,
		&lastDonation, &d.TotalDonations, &d.IsAvailable, &d.IsVerified,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return donor.Donor{}, err
	}

	parsedID, err := id.ParseDonorID(donorID)
	if err != nil {
		return donor.Donor{}, fmt.Errorf("parse donor id: %w", err)
	}
	parsedUserID, err := id.ParseUserID(userID)
	if err != nil {
		return donor.Donor{}, fmt.Errorf("parse user id: %w", err)
	}
	d.ID = parsedID
	d.UserID = parsedUserID
	d.Gender = donor.Gender(gender)
	d.BloodGroup = id.BloodGroup(bloodGroup)
	if height.Valid {
		d.HeightCm = &height.Float64
	}
	if lastDonation.Valid {
		t := lastDonation.Time
		d.LastDonationDate = &t
	}
	return d, nil
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}
