package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"safeharbor/internal/request"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// Postgres persists service requests. Status changes are compare-and-set on
// the current status column so concurrent transitions serialize at the row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema documents the expected table; migrations live with the deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS service_requests (
	id           BIGSERIAL PRIMARY KEY,
	client_hash  BYTEA NOT NULL,
	provider_id  BIGINT NOT NULL REFERENCES providers(id),
	resource_id  BIGINT NOT NULL REFERENCES resources(id),
	type           TEXT NOT NULL,
	status         TEXT NOT NULL,
	priority       INT NOT NULL,
	special_reqs   JSONB NOT NULL DEFAULT '[]',
	requested_time TIMESTAMPTZ NOT NULL,
	case_worker    TEXT NOT NULL DEFAULT '',
	outcome        BYTEA,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS service_requests_client_idx ON service_requests (client_hash);`

func (s *Postgres) Create(ctx context.Context, r *request.ServiceRequest) (domain.RequestID, error) {
	specialReqs, err := json.Marshal(r.SpecialRequirements)
	if err != nil {
		return 0, fmt.Errorf("marshal special requirements: %w", err)
	}

	var id uint64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO service_requests (
			client_hash, provider_id, resource_id, type, status, priority,
			special_reqs, requested_time, case_worker, outcome,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		r.ClientHash[:], uint64(r.ProviderID), uint64(r.ResourceID),
		string(r.Type), string(r.Status), r.Priority, specialReqs,
		r.RequestedTime, string(r.CaseWorker), r.Outcome,
		r.CreatedAt, r.UpdatedAt, r.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}
	r.ID = domain.RequestID(id)
	return r.ID, nil
}

func (s *Postgres) Find(ctx context.Context, id domain.RequestID) (*request.ServiceRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_hash, provider_id, resource_id, type, status,
		       priority, special_reqs, requested_time, case_worker, outcome,
		       created_at, updated_at, expires_at
		FROM service_requests WHERE id = $1`,
		uint64(id),
	)
	return scanRequest(row)
}

// UpdateStatus is a compare-and-set on the status column. Zero rows affected
// on an existing request means the expected status no longer holds.
func (s *Postgres) UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.Status, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_requests SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		uint64(id), string(from), string(to), now,
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.Find(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) ListByClient(ctx context.Context, hash domain.ClientHash) ([]*request.ServiceRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_hash, provider_id, resource_id, type, status,
		       priority, special_reqs, requested_time, case_worker, outcome,
		       created_at, updated_at, expires_at
		FROM service_requests WHERE client_hash = $1
		ORDER BY id`,
		hash[:],
	)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*request.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*request.ServiceRequest, error) {
	var (
		r           request.ServiceRequest
		clientHash  []byte
		requestType string
		status      string
		specialReqs []byte
		caseWorker  string
	)
	err := row.Scan(&r.ID, &clientHash, &r.ProviderID, &r.ResourceID,
		&requestType, &status, &r.Priority, &specialReqs,
		&r.RequestedTime, &caseWorker, &r.Outcome,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	copy(r.ClientHash[:], clientHash)
	if err := json.Unmarshal(specialReqs, &r.SpecialRequirements); err != nil {
		return nil, fmt.Errorf("decode special requirements: %w", err)
	}
	r.Type = domain.ServiceType(requestType)
	r.Status = domain.Status(status)
	r.CaseWorker = domain.Actor(caseWorker)
	return &r, nil
}
