package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects, pings, and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) TenantByNumber(ctx context.Context, number string) (Tenant, error) {
	const q = `SELECT id, name, phone_number, greeting, instructions, voice, COALESCE(stripe_customer_id, '')
	           FROM tenants WHERE phone_number = $1`
	var t Tenant
	err := p.pool.QueryRow(ctx, q, number).Scan(
		&t.ID, &t.Name, &t.PhoneNumber, &t.Greeting, &t.Instructions, &t.Voice, &t.StripeCustomerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("tenant by number: %w", err)
	}
	return t, nil
}

func (p *Postgres) DefaultTenant(ctx context.Context) (Tenant, error) {
	const q = `SELECT id, name, phone_number, greeting, instructions, voice, COALESCE(stripe_customer_id, '')
	           FROM tenants ORDER BY created_at ASC LIMIT 1`
	var t Tenant
	err := p.pool.QueryRow(ctx, q).Scan(
		&t.ID, &t.Name, &t.PhoneNumber, &t.Greeting, &t.Instructions, &t.Voice, &t.StripeCustomerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("default tenant: %w", err)
	}
	return t, nil
}

func (p *Postgres) StartCall(ctx context.Context, call Call) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	const q = `INSERT INTO calls (id, call_sid, tenant_id, from_number, to_number, started_at)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           ON CONFLICT (call_sid) DO NOTHING`
	if _, err := p.pool.Exec(ctx, q, call.ID, call.CallSID, call.TenantID, call.FromNumber, call.ToNumber, call.StartedAt); err != nil {
		return fmt.Errorf("start call: %w", err)
	}
	return nil
}

func (p *Postgres) FinishCall(ctx context.Context, fin FinishCall) error {
	const q = `UPDATE calls
	           SET ended_at = $2, duration_seconds = $3, transcript = $4, summary = $5
	           WHERE call_sid = $1`
	tag, err := p.pool.Exec(ctx, q, fin.CallSID, fin.EndedAt, fin.DurationSeconds, fin.Transcript, fin.Summary)
	if err != nil {
		return fmt.Errorf("finish call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetCallOutcome(ctx context.Context, callSID, outcome string) error {
	const q = `UPDATE calls SET outcome = $2 WHERE call_sid = $1`
	tag, err := p.pool.Exec(ctx, q, callSID, outcome)
	if err != nil {
		return fmt.Errorf("set call outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	const q = `INSERT INTO leads (id, tenant_id, call_sid, name, phone, email, issue, urgency, address, requested_date, requested_time)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := p.pool.Exec(ctx, q,
		lead.ID, lead.TenantID, lead.CallSID, lead.Name, lead.Phone, lead.Email,
		lead.Issue, lead.Urgency, lead.Address, lead.RequestedDate, lead.RequestedTime,
	); err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

func (p *Postgres) UpdateLeadBooking(ctx context.Context, callSID, date, timeOfDay string) error {
	const q = `UPDATE leads SET requested_date = $2, requested_time = $3
	           WHERE id = (SELECT id FROM leads WHERE call_sid = $1 ORDER BY created_at DESC LIMIT 1)`
	if _, err := p.pool.Exec(ctx, q, callSID, date, timeOfDay); err != nil {
		return fmt.Errorf("update lead booking: %w", err)
	}
	return nil
}
