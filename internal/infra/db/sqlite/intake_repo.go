package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/infra/db"
)

// fixed width so text order equals time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS intakes (
  id              TEXT PRIMARY KEY,
  created_at      TEXT NOT NULL,
  updated_at      TEXT NOT NULL,
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
CREATE INDEX IF NOT EXISTS idx_intakes_created_at ON intakes (created_at);
`

type IntakeRepository struct {
	db *sql.DB
}

func NewIntakeRepository(conn *sql.DB) *IntakeRepository {
	return &IntakeRepository{db: conn}
}

// Migrate creates the schema.
func (r *IntakeRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func formatTime(t time.Time) any { return t.UTC().Format(timeLayout) }

// Save insert/update intake
func (r *IntakeRepository) Save(ctx context.Context, in *domain.Intake) error {
	rec, err := db.ToRecord(in)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO intakes (` + db.Columns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
 updated_at=excluded.updated_at,
 client_name=excluded.client_name, client_phone=excluded.client_phone, client_email=excluded.client_email,
 vehicle_plate=excluded.vehicle_plate, vehicle_make=excluded.vehicle_make, vehicle_model=excluded.vehicle_model,
 vehicle_year=excluded.vehicle_year, vehicle_vin=excluded.vehicle_vin, description=excluded.description,
 notion_status=excluded.notion_status, notion_page_url=excluded.notion_page_url,
 images_json=excluded.images_json, analysis_json=excluded.analysis_json,
 notion_json=excluded.notion_json, email_json=excluded.email_json;`
	_, err = r.db.ExecContext(ctx, q, rec.Args(formatTime)...)
	return err
}

func scanIntake(row interface{ Scan(...any) error }) (*domain.Intake, error) {
	var rec db.Record
	var created, updated string
	if err := row.Scan(rec.Dest(&created, &updated)...); err != nil {
		return nil, err
	}
	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec.Intake()
}

func (r *IntakeRepository) Get(ctx context.Context, id domain.ID) (*domain.Intake, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+db.Columns+` FROM intakes WHERE id=? LIMIT 1;`, string(id))
	in, err := scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return in, err
}

func (r *IntakeRepository) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM intakes WHERE id=?;`, string(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Paginate newest first, offset + limit
func (r *IntakeRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Intake, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+db.Columns+` FROM intakes ORDER BY created_at DESC, id LIMIT ? OFFSET ?;`,
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

// Ping for health checks.
func (r *IntakeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
