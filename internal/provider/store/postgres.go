package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"safeharbor/internal/provider"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// Postgres persists providers and resources. Slot mutation is a single
// conditional UPDATE so the check-then-decrement is atomic at the row level;
// no application lock is needed.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema documents the expected tables; migrations live with the deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS providers (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	contact     TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	services    JSONB NOT NULL DEFAULT '[]',
	cap_total   INT NOT NULL,
	cap_used    INT NOT NULL DEFAULT 0,
	cap_avail   INT NOT NULL,
	reputation  INT NOT NULL,
	status      TEXT NOT NULL,
	owner       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS resources (
	id              BIGSERIAL PRIMARY KEY,
	provider_id     BIGINT NOT NULL REFERENCES providers(id),
	type            TEXT NOT NULL,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	total_slots     INT NOT NULL,
	available_slots INT NOT NULL,
	reserved_slots  INT NOT NULL,
	waitlist_count  INT NOT NULL DEFAULT 0,
	sched_start     TIMESTAMPTZ NOT NULL,
	sched_end       TIMESTAMPTZ NOT NULL,
	location_digest BYTEA,
	requirements    JSONB NOT NULL DEFAULT '[]',
	cost            BIGINT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	CONSTRAINT slot_conservation CHECK (available_slots + reserved_slots = total_slots),
	CONSTRAINT slots_non_negative CHECK (available_slots >= 0 AND reserved_slots >= 0)
);`

func (s *Postgres) CreateProvider(ctx context.Context, p *provider.Provider) (domain.ProviderID, error) {
	services, err := json.Marshal(p.Services)
	if err != nil {
		return 0, fmt.Errorf("marshal services: %w", err)
	}

	var id uint64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO providers (
			name, contact, location, services, cap_total, cap_used, cap_avail,
			reputation, status, owner, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		p.Name, p.Contact, p.Location, services, p.Capacity.Total,
		p.Capacity.Utilization, p.Capacity.Available, p.Reputation,
		string(p.Status), string(p.Owner), p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert provider: %w", err)
	}
	p.ID = domain.ProviderID(id)
	return p.ID, nil
}

func (s *Postgres) FindProvider(ctx context.Context, id domain.ProviderID) (*provider.Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact, location, services, cap_total, cap_used,
		       cap_avail, reputation, status, owner, created_at, updated_at
		FROM providers WHERE id = $1`,
		uint64(id),
	)

	var (
		p        provider.Provider
		services []byte
		status   string
		owner    string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Contact, &p.Location, &services,
		&p.Capacity.Total, &p.Capacity.Utilization, &p.Capacity.Available,
		&p.Reputation, &status, &owner, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select provider: %w", err)
	}

	if err := json.Unmarshal(services, &p.Services); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	p.Status = domain.Status(status)
	p.Owner = domain.Actor(owner)
	return &p, nil
}

func (s *Postgres) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	services, err := json.Marshal(p.Services)
	if err != nil {
		return fmt.Errorf("marshal services: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE providers SET
			name = $2, contact = $3, location = $4, services = $5,
			cap_total = $6, cap_used = $7, cap_avail = $8, reputation = $9,
			status = $10, updated_at = $11
		WHERE id = $1`,
		uint64(p.ID), p.Name, p.Contact, p.Location, services,
		p.Capacity.Total, p.Capacity.Utilization, p.Capacity.Available,
		p.Reputation, string(p.Status), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) CreateResource(ctx context.Context, r *provider.Resource) (domain.ResourceID, error) {
	requirements, err := json.Marshal(r.Requirements)
	if err != nil {
		return 0, fmt.Errorf("marshal requirements: %w", err)
	}

	var id uint64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO resources (
			provider_id, type, name, description, total_slots, available_slots,
			reserved_slots, waitlist_count, sched_start, sched_end,
			location_digest, requirements, cost, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		uint64(r.ProviderID), string(r.Type), r.Name, r.Description,
		r.Availability.TotalSlots, r.Availability.AvailableSlots,
		r.Availability.ReservedSlots, r.Availability.WaitlistCount,
		r.Schedule.Start, r.Schedule.End, r.LocationDigest, requirements,
		r.Cost, string(r.Status), r.CreatedAt, r.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert resource: %w", err)
	}
	r.ID = domain.ResourceID(id)
	return r.ID, nil
}

func (s *Postgres) FindResource(ctx context.Context, id domain.ResourceID) (*provider.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_id, type, name, description, total_slots,
		       available_slots, reserved_slots, waitlist_count, sched_start,
		       sched_end, location_digest, requirements, cost, status,
		       created_at, updated_at
		FROM resources WHERE id = $1`,
		uint64(id),
	)

	var (
		r            provider.Resource
		resourceType string
		requirements []byte
		status       string
	)
	err := row.Scan(&r.ID, &r.ProviderID, &resourceType, &r.Name, &r.Description,
		&r.Availability.TotalSlots, &r.Availability.AvailableSlots,
		&r.Availability.ReservedSlots, &r.Availability.WaitlistCount,
		&r.Schedule.Start, &r.Schedule.End, &r.LocationDigest, &requirements,
		&r.Cost, &status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select resource: %w", err)
	}

	if err := json.Unmarshal(requirements, &r.Requirements); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	r.Type = domain.ServiceType(resourceType)
	r.Status = domain.Status(status)
	return &r, nil
}

func (s *Postgres) SetSlots(ctx context.Context, id domain.ResourceID, available int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resources SET
			available_slots = $2,
			reserved_slots = total_slots - $2
		WHERE id = $1 AND total_slots >= $2`,
		uint64(id), available,
	)
	if err != nil {
		return fmt.Errorf("set slots: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set slots: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindResource(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

// ReserveSlot decrements available atomically. The WHERE clause is the
// check-then-decrement: zero rows affected on an existing resource means the
// slots were exhausted.
func (s *Postgres) ReserveSlot(ctx context.Context, id domain.ResourceID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resources SET
			available_slots = available_slots - 1,
			reserved_slots = reserved_slots + 1
		WHERE id = $1 AND available_slots > 0`,
		uint64(id),
	)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindResource(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrSlotExhausted
	}
	return nil
}

func (s *Postgres) ReleaseSlot(ctx context.Context, id domain.ResourceID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resources SET
			available_slots = available_slots + 1,
			reserved_slots = reserved_slots - 1
		WHERE id = $1 AND reserved_slots > 0`,
		uint64(id),
	)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindResource(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
