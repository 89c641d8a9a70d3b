package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carbonroute/internal/model"
)

// Postgres backs the store with a Postgres database via the pgx driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the schema if it does not exist (dev helper).
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS suppliers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    transport_mode TEXT NOT NULL,
    distance_km DOUBLE PRECISION NOT NULL,
    weight_tons DOUBLE PRECISION NOT NULL,
    total_emissions DOUBLE PRECISION NOT NULL,
    emission_intensity DOUBLE PRECISION NOT NULL DEFAULT 0,
    annual_spend DOUBLE PRECISION NOT NULL,
    material TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS agent_actions (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    trigger TEXT NOT NULL,
    action TEXT NOT NULL,
    emission_impact DOUBLE PRECISION NOT NULL,
    cost_impact DOUBLE PRECISION NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    auto_executed BOOLEAN NOT NULL DEFAULT false,
    human_approval_required BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    log TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS agent_history (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL,
    type TEXT NOT NULL,
    trigger TEXT NOT NULL,
    action TEXT NOT NULL,
    emission_impact DOUBLE PRECISION NOT NULL,
    cost_impact DOUBLE PRECISION NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    auto_executed BOOLEAN NOT NULL DEFAULT false,
    human_approval_required BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    log TEXT NOT NULL DEFAULT ''
);`)
	return err
}

func (p *Postgres) UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	n := 0
	for _, s := range suppliers {
		_, err := tx.ExecContext(ctx, `
INSERT INTO suppliers (id, name, country, transport_mode, distance_km, weight_tons, total_emissions, emission_intensity, annual_spend, material)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
    name=EXCLUDED.name, country=EXCLUDED.country, transport_mode=EXCLUDED.transport_mode,
    distance_km=EXCLUDED.distance_km, weight_tons=EXCLUDED.weight_tons,
    total_emissions=EXCLUDED.total_emissions, emission_intensity=EXCLUDED.emission_intensity,
    annual_spend=EXCLUDED.annual_spend, material=EXCLUDED.material`,
			s.ID, s.Name, s.Country, string(s.TransportMode), s.DistanceKm, s.WeightTons,
			s.TotalEmissions, s.EmissionIntensity, s.AnnualSpend, s.Material)
		if err != nil {
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

const supplierCols = `id, name, country, transport_mode, distance_km, weight_tons, total_emissions, emission_intensity, annual_spend, material`

func scanSupplier(row interface{ Scan(...any) error }) (model.Supplier, error) {
	var s model.Supplier
	var mode string
	err := row.Scan(&s.ID, &s.Name, &s.Country, &mode, &s.DistanceKm, &s.WeightTons,
		&s.TotalEmissions, &s.EmissionIntensity, &s.AnnualSpend, &s.Material)
	s.TransportMode = model.TransportMode(mode)
	return s, err
}

func (p *Postgres) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+supplierCols+` FROM suppliers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSupplier(ctx context.Context, id string) (model.Supplier, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+supplierCols+` FROM suppliers WHERE id=$1`, id)
	s, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Supplier{}, ErrNotFound
	}
	return s, err
}

const actionCols = `id, type, trigger, action, emission_impact, cost_impact, confidence, status, auto_executed, human_approval_required, created_at, updated_at, log`

func (p *Postgres) InsertAction(ctx context.Context, a model.AgentAction) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO agent_actions (`+actionCols+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, string(a.Type), a.Trigger, a.Action, a.EmissionImpact, a.CostImpact, a.Confidence,
		string(a.Status), a.AutoExecuted, a.HumanApprovalRequired, a.CreatedAt, a.UpdatedAt, a.Log)
	return err
}

func (p *Postgres) UpdateAction(ctx context.Context, a model.AgentAction) error {
	res, err := p.db.ExecContext(ctx, `
UPDATE agent_actions SET status=$2, auto_executed=$3, updated_at=$4, log=$5 WHERE id=$1`,
		a.ID, string(a.Status), a.AutoExecuted, a.UpdatedAt, a.Log)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAction(row interface{ Scan(...any) error }) (model.AgentAction, error) {
	var a model.AgentAction
	var typ, status string
	err := row.Scan(&a.ID, &typ, &a.Trigger, &a.Action, &a.EmissionImpact, &a.CostImpact,
		&a.Confidence, &status, &a.AutoExecuted, &a.HumanApprovalRequired, &a.CreatedAt, &a.UpdatedAt, &a.Log)
	a.Type = model.ActionType(typ)
	a.Status = model.ActionStatus(status)
	return a, err
}

func (p *Postgres) GetAction(ctx context.Context, id string) (model.AgentAction, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+actionCols+` FROM agent_actions WHERE id=$1`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AgentAction{}, ErrNotFound
	}
	return a, err
}

func (p *Postgres) ListPendingActions(ctx context.Context) ([]model.AgentAction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+actionCols+` FROM agent_actions WHERE status IN ('pending','approved') ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AgentAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendHistory(ctx context.Context, a model.AgentAction) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_actions WHERE id=$1`, a.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO agent_history (`+actionCols+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, string(a.Type), a.Trigger, a.Action, a.EmissionImpact, a.CostImpact, a.Confidence,
		string(a.Status), a.AutoExecuted, a.HumanApprovalRequired, a.CreatedAt, a.UpdatedAt, a.Log); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListHistory(ctx context.Context, limit int) ([]model.AgentAction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+actionCols+` FROM agent_history ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AgentAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
