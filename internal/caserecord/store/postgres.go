package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"safeharbor/internal/caserecord"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// Postgres persists case records. Structured lists (goals, notes, history)
// and the outcome metrics live in JSONB columns; the record is replaced
// wholesale on update, matching the service's read-modify-write pattern.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema documents the expected table; migrations live with the deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS case_records (
	id             BIGSERIAL PRIMARY KEY,
	client_hash    BYTEA NOT NULL,
	worker         TEXT NOT NULL,
	status         TEXT NOT NULL,
	service_plan   BYTEA,
	goals          JSONB NOT NULL DEFAULT '[]',
	progress_notes JSONB NOT NULL DEFAULT '[]',
	history        JSONB NOT NULL DEFAULT '[]',
	outcomes       JSONB NOT NULL DEFAULT '{}',
	privacy_level  INT NOT NULL CHECK (privacy_level BETWEEN 1 AND 5),
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS case_records_client_idx ON case_records (client_hash);`

func (s *Postgres) Create(ctx context.Context, c *caserecord.CaseRecord) (domain.CaseID, error) {
	cols, err := encodeColumns(c)
	if err != nil {
		return 0, err
	}

	var id uint64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO case_records (
			client_hash, worker, status, service_plan, goals, progress_notes,
			history, outcomes, privacy_level, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.ClientHash[:], string(c.Worker), string(c.Status), c.ServicePlan,
		cols.goals, cols.notes, cols.history, cols.outcomes, c.PrivacyLevel,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert case record: %w", err)
	}
	c.ID = domain.CaseID(id)
	return c.ID, nil
}

func (s *Postgres) Find(ctx context.Context, id domain.CaseID) (*caserecord.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_hash, worker, status, service_plan, goals,
		       progress_notes, history, outcomes, privacy_level,
		       created_at, updated_at
		FROM case_records WHERE id = $1`,
		uint64(id),
	)
	return scanCase(row)
}

func (s *Postgres) Update(ctx context.Context, c *caserecord.CaseRecord) error {
	cols, err := encodeColumns(c)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE case_records SET
			status = $2, goals = $3, progress_notes = $4, history = $5,
			outcomes = $6, privacy_level = $7, updated_at = $8
		WHERE id = $1`,
		uint64(c.ID), string(c.Status), cols.goals, cols.notes, cols.history,
		cols.outcomes, c.PrivacyLevel, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByClient(ctx context.Context, hash domain.ClientHash) ([]*caserecord.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_hash, worker, status, service_plan, goals,
		       progress_notes, history, outcomes, privacy_level,
		       created_at, updated_at
		FROM case_records WHERE client_hash = $1
		ORDER BY id`,
		hash[:],
	)
	if err != nil {
		return nil, fmt.Errorf("list case records: %w", err)
	}
	defer rows.Close()

	var out []*caserecord.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type encodedColumns struct {
	goals    []byte
	notes    []byte
	history  []byte
	outcomes []byte
}

func encodeColumns(c *caserecord.CaseRecord) (encodedColumns, error) {
	var cols encodedColumns
	var err error
	if cols.goals, err = json.Marshal(c.Goals); err != nil {
		return cols, fmt.Errorf("marshal goals: %w", err)
	}
	if cols.notes, err = json.Marshal(c.ProgressNotes); err != nil {
		return cols, fmt.Errorf("marshal progress notes: %w", err)
	}
	if cols.history, err = json.Marshal(c.History); err != nil {
		return cols, fmt.Errorf("marshal history: %w", err)
	}
	if cols.outcomes, err = json.Marshal(c.Outcomes); err != nil {
		return cols, fmt.Errorf("marshal outcomes: %w", err)
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*caserecord.CaseRecord, error) {
	var (
		c          caserecord.CaseRecord
		clientHash []byte
		worker     string
		status     string
		goals      []byte
		notes      []byte
		history    []byte
		outcomes   []byte
	)
	err := row.Scan(&c.ID, &clientHash, &worker, &status, &c.ServicePlan,
		&goals, &notes, &history, &outcomes, &c.PrivacyLevel,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case record: %w", err)
	}

	copy(c.ClientHash[:], clientHash)
	c.Worker = domain.Actor(worker)
	c.Status = domain.Status(status)
	if err := json.Unmarshal(goals, &c.Goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	if err := json.Unmarshal(notes, &c.ProgressNotes); err != nil {
		return nil, fmt.Errorf("decode progress notes: %w", err)
	}
	if err := json.Unmarshal(history, &c.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(outcomes, &c.Outcomes); err != nil {
		return nil, fmt.Errorf("decode outcomes: %w", err)
	}
	return &c, nil
}
