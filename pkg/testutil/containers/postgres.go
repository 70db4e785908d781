//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is applied once at container start. It mirrors what the stores
// expect: the composite unique indexes are load-bearing for the conflict
// semantics under test.
const schema = `
CREATE TABLE donors (
	id                      UUID PRIMARY KEY,
	user_id                 UUID NOT NULL UNIQUE,
	full_name               TEXT NOT NULL,
	date_of_birth           DATE NOT NULL,
	gender                  TEXT NOT NULL,
	blood_group             TEXT NOT NULL,
	weight_kg               DOUBLE PRECISION NOT NULL,
	height_cm               DOUBLE PRECISION,
	phone_number            TEXT NOT NULL DEFAULT '',
	emergency_contact       TEXT NOT NULL DEFAULT '',
	address                 TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	state                   TEXT NOT NULL DEFAULT '',
	country                 TEXT NOT NULL DEFAULT '',
	pincode                 TEXT NOT NULL DEFAULT '',
	has_chronic_disease     BOOLEAN NOT NULL DEFAULT FALSE,
	chronic_disease_details TEXT NOT NULL DEFAULT '',
	last_donation_date      TIMESTAMPTZ,
	total_donations         INTEGER NOT NULL DEFAULT 0,
	is_available            BOOLEAN NOT NULL DEFAULT TRUE,
	is_verified             BOOLEAN NOT NULL DEFAULT FALSE,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE hospitals (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL,
	phone_number   TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL UNIQUE,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE blood_requests (
	id               UUID PRIMARY KEY,
	hospital_id      UUID NOT NULL REFERENCES hospitals (id),
	patient_name     TEXT NOT NULL,
	patient_age      INTEGER NOT NULL,
	patient_gender   TEXT NOT NULL,
	blood_group      TEXT NOT NULL,
	units_required   INTEGER NOT NULL,
	hemoglobin_level DOUBLE PRECISION NOT NULL DEFAULT 0,
	diagnosis        TEXT NOT NULL DEFAULT '',
	operation_id     TEXT NOT NULL DEFAULT '',
	urgency          TEXT NOT NULL,
	status           TEXT NOT NULL,
	approved_by      UUID,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE donor_notifications (
	id           UUID PRIMARY KEY,
	request_id   UUID NOT NULL REFERENCES blood_requests (id),
	donor_id     UUID NOT NULL REFERENCES donors (id),
	status       TEXT NOT NULL,
	sent_at      TIMESTAMPTZ NOT NULL,
	responded_at TIMESTAMPTZ,
	UNIQUE (request_id, donor_id)
);

CREATE TABLE donation_records (
	id            UUID PRIMARY KEY,
	request_id    UUID NOT NULL REFERENCES blood_requests (id),
	donor_id      UUID NOT NULL REFERENCES donors (id),
	donation_date TIMESTAMPTZ NOT NULL,
	units_donated INTEGER NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	UNIQUE (request_id, donor_id)
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// application schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	URL       string
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lifeline_test"),
		tcpostgres.WithUsername("lifeline"),
		tcpostgres.WithPassword("lifeline"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, URL: url}
}

// TruncateTables empties the given tables, cascading to dependents. Use
// between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
