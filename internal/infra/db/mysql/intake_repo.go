package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/infra/db"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS intakes (
  id              VARCHAR(36)  NOT NULL PRIMARY KEY,
  created_at      DATETIME(6)  NOT NULL,
  updated_at      DATETIME(6)  NOT NULL,
  client_name     VARCHAR(255) NOT NULL DEFAULT '',
  client_phone    VARCHAR(255) NOT NULL DEFAULT '',
  client_email    VARCHAR(255) NOT NULL DEFAULT '',
  vehicle_plate   VARCHAR(255) NOT NULL DEFAULT '',
  vehicle_make    VARCHAR(255) NOT NULL DEFAULT '',
  vehicle_model   VARCHAR(255) NOT NULL DEFAULT '',
  vehicle_year    VARCHAR(255) NOT NULL DEFAULT '',
  vehicle_vin     VARCHAR(255) NOT NULL DEFAULT '',
  description     TEXT         NOT NULL,
  notion_status   VARCHAR(32)  NOT NULL DEFAULT 'idle',
  notion_page_url VARCHAR(512) NOT NULL DEFAULT '',
  images_json     MEDIUMTEXT   NOT NULL,
  analysis_json   MEDIUMTEXT   NOT NULL,
  notion_json     TEXT         NOT NULL,
  email_json      TEXT         NOT NULL,
  KEY idx_intakes_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	// tabel lama punya kolom lebih sempit
	`ALTER TABLE intakes
  MODIFY client_phone  VARCHAR(255) NOT NULL DEFAULT '',
  MODIFY vehicle_plate VARCHAR(255) NOT NULL DEFAULT '',
  MODIFY vehicle_make  VARCHAR(255) NOT NULL DEFAULT '',
  MODIFY vehicle_model VARCHAR(255) NOT NULL DEFAULT '',
  MODIFY vehicle_year  VARCHAR(255) NOT NULL DEFAULT '',
  MODIFY vehicle_vin   VARCHAR(255) NOT NULL DEFAULT ''`,
}

type IntakeRepository struct {
	db *sql.DB
}

func NewIntakeRepository(conn *sql.DB) *IntakeRepository {
	return &IntakeRepository{db: conn}
}

// Migrate creates the schema, one statement per Exec.
func (r *IntakeRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save insert/update intake
func (r *IntakeRepository) Save(ctx context.Context, in *domain.Intake) error {
	rec, err := db.ToRecord(in)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO intakes (` + db.Columns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 updated_at=VALUES(updated_at),
 client_name=VALUES(client_name), client_phone=VALUES(client_phone), client_email=VALUES(client_email),
 vehicle_plate=VALUES(vehicle_plate), vehicle_make=VALUES(vehicle_make), vehicle_model=VALUES(vehicle_model),
 vehicle_year=VALUES(vehicle_year), vehicle_vin=VALUES(vehicle_vin), description=VALUES(description),
 notion_status=VALUES(notion_status), notion_page_url=VALUES(notion_page_url),
 images_json=VALUES(images_json), analysis_json=VALUES(analysis_json),
 notion_json=VALUES(notion_json), email_json=VALUES(email_json);`
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

// Paginate with offset + limit (classic pagination)
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

func (r *IntakeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
