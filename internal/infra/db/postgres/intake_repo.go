package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/infra/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS intakes (
  id              TEXT PRIMARY KEY,
  created_at      TIMESTAMPTZ NOT NULL,
  updated_at      TIMESTAMPTZ NOT NULL,
  client_name     TEXT NOT NULL DEFAULT '',
  client_phone    TEXT NOT NULL DEFAULT '',
  client_email    TEXT NOT NULL DEFAULT '',
  vehicle_plate   TEXT NOT NULL DEFAULT '',
  vehicle_make    TEXT NOT NULL DEFAULT '',
  vehicle_model   TEXT NOT NULL DEFAULT '',
  vehicle_year    TEXT NOT NULL DEFAULT '',
  vehicle_vin     TEXT NOT NULL DEFAULT '',
  description     TEXT NOT NULL DEFAULT '',
  notion_status   TEXT NOT NULL DEFAULT 'idle',
  notion_page_url TEXT NOT NULL DEFAULT '',
  images_json     TEXT NOT NULL DEFAULT '[]',
  analysis_json   TEXT NOT NULL DEFAULT '',
  notion_json     TEXT NOT NULL DEFAULT '',
  email_json      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_intakes_created_at ON intakes (created_at);`

type IntakeRepository struct{ db *sql.DB }

func NewIntakeRepository(conn *sql.DB) *IntakeRepository { return &IntakeRepository{db: conn} }

func (r *IntakeRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save insert/update intake
func (r *IntakeRepository) Save(ctx context.Context, in *domain.Intake) error {
	rec, err := db.ToRecord(in)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO intakes (` + db.Columns + `)
VALUES ($1,$2,$3,$4,$5,$6,
        $7,$8,$9,$10,$11,$12,
        $13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
 updated_at = EXCLUDED.updated_at,
 client_name = EXCLUDED.client_name,
 client_phone = EXCLUDED.client_phone,
 client_email = EXCLUDED.client_email,
 vehicle_plate = EXCLUDED.vehicle_plate,
 vehicle_make = EXCLUDED.vehicle_make,
 vehicle_model = EXCLUDED.vehicle_model,
 vehicle_year = EXCLUDED.vehicle_year,
 vehicle_vin = EXCLUDED.vehicle_vin,
 description = EXCLUDED.description,
 notion_status = EXCLUDED.notion_status,
 notion_page_url = EXCLUDED.notion_page_url,
 images_json = EXCLUDED.images_json,
 analysis_json = EXCLUDED.analysis_json,
 notion_json = EXCLUDED.notion_json,
 email_json = EXCLUDED.email_json;`
	_, err = r.db.ExecContext(ctx, q, rec.Args(db.Time)...)
	return err
}

func scanIntake(row interface{ Scan(...any) error }) (*domain.Intake, error) {
	var rec db.Record
	var created, updated time.Time
	if err := row.Scan(rec.Dest(&created, &updated)...); err != nil {
		return nil, err
	}
	rec.CreatedAt, rec.UpdatedAt = created, updated
	return rec.Intake()
}

// Get by ID
func (r *IntakeRepository) Get(ctx context.Context, id domain.ID) (*domain.Intake, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+db.Columns+` FROM intakes WHERE id=$1 LIMIT 1;`, string(id))
	in, err := scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return in, err
}

func (r *IntakeRepository) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM intakes WHERE id=$1;`, string(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Paginate with offset + limit
func (r *IntakeRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Intake, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+db.Columns+` FROM intakes ORDER BY created_at DESC, id LIMIT $1 OFFSET $2;`,
		pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying intakes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Intake
	for rows.Next() {
		in, err := scanIntake(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intakes;`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("getting total count: %w", err)
	}
	return out, total, nil
}

func (r *IntakeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
