package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"safeharbor/internal/client"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// Postgres persists client records. The hash primary key carries the
// duplicate-registration check into the database's uniqueness guarantee.
// List-valued fields are stored as JSONB.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

// Schema documents the expected table; migrations live with the deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
	hash                BYTEA PRIMARY KEY,
	created_at          TIMESTAMPTZ NOT NULL,
	last_access         TIMESTAMPTZ NOT NULL,
	history_digest      BYTEA,
	risk_level          INT NOT NULL,
	priority_score      INT NOT NULL,
	preferred_services  JSONB NOT NULL DEFAULT '[]',
	accessibility_needs JSONB NOT NULL DEFAULT '[]',
	emergency_contact   BYTEA
);`

func (s *Postgres) Create(ctx context.Context, c *client.Client) error {
	services, err := json.Marshal(c.PreferredServices)
	if err != nil {
		return fmt.Errorf("marshal preferred services: %w", err)
	}
	needs, err := json.Marshal(c.AccessibilityNeeds)
	if err != nil {
		return fmt.Errorf("marshal accessibility needs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (
			hash, created_at, last_access, history_digest, risk_level,
			priority_score, preferred_services, accessibility_needs, emergency_contact
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.Hash[:], c.CreatedAt, c.LastAccess, c.HistoryDigest, int(c.RiskLevel),
		c.PriorityScore, services, needs, c.EmergencyContact,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *Postgres) FindByHash(ctx context.Context, hash domain.ClientHash) (*client.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, created_at, last_access, history_digest, risk_level,
		       priority_score, preferred_services, accessibility_needs, emergency_contact
		FROM clients WHERE hash = $1`,
		hash[:],
	)

	var (
		c        client.Client
		rawHash  []byte
		services []byte
		needs    []byte
	)
	err := row.Scan(&rawHash, &c.CreatedAt, &c.LastAccess, &c.HistoryDigest,
		&c.RiskLevel, &c.PriorityScore, &services, &needs, &c.EmergencyContact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select client: %w", err)
	}

	copy(c.Hash[:], rawHash)
	if err := json.Unmarshal(services, &c.PreferredServices); err != nil {
		return nil, fmt.Errorf("decode preferred services: %w", err)
	}
	if err := json.Unmarshal(needs, &c.AccessibilityNeeds); err != nil {
		return nil, fmt.Errorf("decode accessibility needs: %w", err)
	}
	return &c, nil
}

// LastAccess reads the stored retention anchor.
func (s *Postgres) LastAccess(ctx context.Context, hash domain.ClientHash) (time.Time, error) {
	var last time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_access FROM clients WHERE hash = $1`,
		hash[:],
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, sentinel.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select last access: %w", err)
	}
	return last, nil
}

func (s *Postgres) TouchLastAccess(ctx context.Context, hash domain.ClientHash, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET last_access = $2 WHERE hash = $1`,
		hash[:], now,
	)
	if err != nil {
		return fmt.Errorf("touch client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch client: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
