package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lifeline/internal/donor"
	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/platform/tx"
)

// PostgresRequests persists blood requests. Every state transition is a
// conditional UPDATE guarded by the current status, so the row itself is the
// serialization point under concurrent actors.
type PostgresRequests struct {
	db *sql.DB
}

func NewPostgresRequests(db *sql.DB) *PostgresRequests {
	return &PostgresRequests{db: db}
}

const requestColumns = `
	id, hospital_id, patient_name, patient_age, patient_gender, blood_group,
	units_required, hemoglobin_level, diagnosis, operation_id, urgency,
	status, approved_by, created_at, updated_at
`

func (s *PostgresRequests) Create(ctx context.Context, r request.BloodRequest) error {
	query := `
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var approvedBy sql.NullString
	if r.ApprovedBy != nil {
		approvedBy = sql.NullString{String: r.ApprovedBy.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.HospitalID.String(), r.PatientName, r.PatientAge,
		string(r.PatientGender), r.BloodGroup.String(), r.UnitsRequired,
		r.HemoglobinLevel, r.Diagnosis, r.OperationID, r.Urgency.String(),
		string(r.Status), approvedBy, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create blood request: %w", err)
	}
	return nil
}

func (s *PostgresRequests) FindByID(ctx context.Context, requestID id.RequestID) (request.BloodRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return request.BloodRequest{}, sentinel.ErrNotFound
		}
		return request.BloodRequest{}, fmt.Errorf("find blood request: %w", err)
	}
	return r, nil
}

func (s *PostgresRequests) List(ctx context.Context, filter RequestFilter) ([]request.BloodRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests`
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.HospitalID.IsNil() {
		conds = append(conds, "hospital_id = "+arg(filter.HospitalID.String()))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if !filter.BloodGroup.IsNil() {
		conds = append(conds, "blood_group = "+arg(filter.BloodGroup.String()))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blood requests: %w", err)
	}
	defer rows.Close()

	out := make([]request.BloodRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRequests) ApproveIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error {
	return s.leavePending(ctx, requestID, request.StatusApproved, approverID, now)
}

func (s *PostgresRequests) RejectIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error {
	return s.leavePending(ctx, requestID, request.StatusRejected, approverID, now)
}

func (s *PostgresRequests) leavePending(ctx context.Context, requestID id.RequestID, to request.RequestStatus, approverID id.UserID, now time.Time) error {
	query := `
		UPDATE blood_requests
		SET status = $1, approved_by = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query, string(to), approverID.String(), now, requestID.String())
	if err != nil {
		return fmt.Errorf("update blood request: %w", err)
	}
	return s.affectedOrState(ctx, res, requestID)
}

func (s *PostgresRequests) CompleteIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error {
	return s.leaveApproved(ctx, requestID, request.StatusCompleted, now)
}

func (s *PostgresRequests) CancelIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error {
	return s.leaveApproved(ctx, requestID, request.StatusCancelled, now)
}

func (s *PostgresRequests) leaveApproved(ctx context.Context, requestID id.RequestID, to request.RequestStatus, now time.Time) error {
	query := `
		UPDATE blood_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'approved'
	`
	res, err := s.db.ExecContext(ctx, query, string(to), now, requestID.String())
	if err != nil {
		return fmt.Errorf("update blood request: %w", err)
	}
	return s.affectedOrState(ctx, res, requestID)
}

// affectedOrState distinguishes "row missing" from "row in the wrong state"
// after a conditional update touched zero rows.
func (s *PostgresRequests) affectedOrState(ctx context.Context, res sql.Result, requestID id.RequestID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blood_requests WHERE id = $1)`, requestID.String(),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check blood request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func scanRequest(row rowScanner) (request.BloodRequest, error) {
	var (
		r          request.BloodRequest
		reqID      string
		hospitalID string
		gender     string
		bloodGroup string
		urgency    string
		status     string
		approvedBy sql.NullString
	)
	err := row.Scan(
		&reqID, &hospitalID, &r.PatientName, &r.PatientAge, &gender, &bloodGroup,
		&r.UnitsRequired, &r.HemoglobinLevel, &r.Diagnosis, &r.OperationID, &urgency,
		&status, &approvedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return request.BloodRequest{}, err
	}
	if r.ID, err = id.ParseRequestID(reqID); err != nil {
		return request.BloodRequest{}, fmt.Errorf("parse request id: %w", err)
	}
	if r.HospitalID, err = id.ParseHospitalID(hospitalID); err != nil {
		return request.BloodRequest{}, fmt.Errorf("parse hospital id: %w", err)
	}
	r.PatientGender = donor.Gender(gender)
	if r.BloodGroup, err = id.ParseBloodGroup(bloodGroup); err != nil {
		return request.BloodRequest{}, fmt.Errorf("parse blood group: %w", err)
	}
	if r.Urgency, err = id.ParseUrgency(urgency); err != nil {
		return request.BloodRequest{}, fmt.Errorf("parse urgency: %w", err)
	}
	r.Status = request.RequestStatus(status)
	if approvedBy.Valid {
		userID, err := id.ParseUserID(approvedBy.String)
		if err != nil {
			return request.BloodRequest{}, fmt.Errorf("parse approver id: %w", err)
		}
		r.ApprovedBy = &userID
	}
	return r, nil
}

// PostgresNotifications persists per-donor offers. The composite unique index
// on (request_id, donor_id) backs CreateBatch's all-or-nothing contract.
type PostgresNotifications struct {
	db *sql.DB
}

func NewPostgresNotifications(db *sql.DB) *PostgresNotifications {
	return &PostgresNotifications{db: db}
}

const notificationColumns = `id, request_id, donor_id, status, sent_at, responded_at`

func (s *PostgresNotifications) CreateBatch(ctx context.Context, ns []request.DonorNotification) error {
	if len(ns) == 0 {
		return nil
	}
	query := `
		INSERT INTO donor_notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	return tx.Run(ctx, s.db, func(t *sql.Tx) error {
		for _, n := range ns {
			var respondedAt sql.NullTime
			if n.RespondedAt != nil {
				respondedAt = sql.NullTime{Time: *n.RespondedAt, Valid: true}
			}
			if _, err := t.ExecContext(ctx, query,
				n.ID.String(), n.RequestID.String(), n.DonorID.String(),
				string(n.Status), n.SentAt, respondedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return sentinel.ErrConflict
				}
				return fmt.Errorf("insert notification: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresNotifications) FindByID(ctx context.Context, notificationID id.NotificationID) (request.DonorNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM donor_notifications WHERE id = $1`
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, notificationID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return request.DonorNotification{}, sentinel.ErrNotFound
		}
		return request.DonorNotification{}, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

func (s *PostgresNotifications) RecordResponse(ctx context.Context, notificationID id.NotificationID, status request.NotificationStatus, respondedAt time.Time) error {
	query := `
		UPDATE donor_notifications
		SET status = $1, responded_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query, string(status), respondedAt, notificationID.String())
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM donor_notifications WHERE id = $1)`, notificationID.String(),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check notification: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresNotifications) ExpireOthers(ctx context.Context, requestID id.RequestID, keep id.NotificationID, respondedAt time.Time) (int, error) {
	query := `
		UPDATE donor_notifications
		SET status = 'expired', responded_at = $1
		WHERE request_id = $2 AND id <> $3 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query, respondedAt, requestID.String(), keep.String())
	if err != nil {
		return 0, fmt.Errorf("expire notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresNotifications) ListPendingByDonor(ctx context.Context, donorID id.DonorID) ([]request.DonorNotification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM donor_notifications
		WHERE donor_id = $1 AND status = 'pending'
		ORDER BY sent_at DESC
	`
	return s.listNotifications(ctx, query, donorID.String())
}

func (s *PostgresNotifications) ListByRequest(ctx context.Context, requestID id.RequestID) ([]request.DonorNotification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM donor_notifications
		WHERE request_id = $1
		ORDER BY sent_at DESC
	`
	return s.listNotifications(ctx, query, requestID.String())
}

func (s *PostgresNotifications) listNotifications(ctx context.Context, query string, arg any) ([]request.DonorNotification, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]request.DonorNotification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (request.DonorNotification, error) {
	var (
		n           request.DonorNotification
		nID         string
		reqID       string
		donorID     string
		status      string
		respondedAt sql.NullTime
	)
	err := row.Scan(&nID, &reqID, &donorID, &status, &n.SentAt, &respondedAt)
	if err != nil {
		return request.DonorNotification{}, err
	}
	if n.ID, err = id.ParseNotificationID(nID); err != nil {
		return request.DonorNotification{}, fmt.Errorf("parse notification id: %w", err)
	}
	if n.RequestID, err = id.ParseRequestID(reqID); err != nil {
		return request.DonorNotification{}, fmt.Errorf("parse request id: %w", err)
	}
	if n.DonorID, err = id.ParseDonorID(donorID); err != nil {
		return request.DonorNotification{}, fmt.Errorf("parse donor id: %w", err)
	}
	n.Status = request.NotificationStatus(status)
	if respondedAt.Valid {
		t := respondedAt.Time
		n.RespondedAt = &t
	}
	return n, nil
}

// PostgresDonations appends donation records. The unique index on
// (request_id, donor_id) makes double completion impossible even if two
// coordinators race past the request CAS.
type PostgresDonations struct {
	db *sql.DB
}

func NewPostgresDonations(db *sql.DB) *PostgresDonations {
	return &PostgresDonations{db: db}
}

func (s *PostgresDonations) Create(ctx context.Context, d request.DonationRecord) error {
	query := `
		INSERT INTO donation_records (id, request_id, donor_id, donation_date, units_donated, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.RequestID.String(), d.DonorID.String(),
		d.DonationDate, d.UnitsDonated, d.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create donation record: %w", err)
	}
	return nil
}

func (s *PostgresDonations) ListByDonor(ctx context.Context, donorID id.DonorID) ([]request.DonationRecord, error) {
	query := `
		SELECT id, request_id, donor_id, donation_date, units_donated, notes
		FROM donation_records
		WHERE donor_id = $1
		ORDER BY donation_date DESC
	`
	rows, err := s.db.QueryContext(ctx, query, donorID.String())
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	out := make([]request.DonationRecord, 0)
	for rows.Next() {
		var (
			d       request.DonationRecord
			dID     string
			reqID   string
			donID   string
			scanErr error
		)
		if scanErr = rows.Scan(&dID, &reqID, &donID, &d.DonationDate, &d.UnitsDonated, &d.Notes); scanErr != nil {
			return nil, fmt.Errorf("scan donation: %w", scanErr)
		}
		if d.ID, scanErr = id.ParseDonationID(dID); scanErr != nil {
			return nil, fmt.Errorf("parse donation id: %w", scanErr)
		}
		if d.RequestID, scanErr = id.ParseRequestID(reqID); scanErr != nil {
			return nil, fmt.Errorf("parse request id: %w", scanErr)
		}
		if d.DonorID, scanErr = id.ParseDonorID(donID); scanErr != nil {
			return nil, fmt.Errorf("parse donor id: %w", scanErr)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}
