package bill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB implements the DB interface on a pgx connection pool
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to dsn and creates the tables when needed
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db := &PostgresDB{pool: pool}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (p *PostgresDB) ensureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS bills (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	date TEXT NOT NULL,
	amount INTEGER NOT NULL,
	vat INTEGER NOT NULL,
	pct INTEGER NOT NULL,
	commentary TEXT NOT NULL DEFAULT '',
	file_url TEXT NOT NULL,
	file_name TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bills_email ON bills(email);
CREATE TABLE IF NOT EXISTS attachments (
	key TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const billColumns = `id, email, type, name, date, amount, vat, pct, commentary, file_url, file_name, status, created_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.Email, &b.Type, &b.Name, &b.Date, &b.Amount, &b.VAT, &b.Pct,
		&b.Commentary, &b.FileURL, &b.FileName, &b.Status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveBill inserts or replaces a bill
func (p *PostgresDB) SaveBill(ctx context.Context, bill *Bill) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			email=EXCLUDED.email, type=EXCLUDED.type, name=EXCLUDED.name, date=EXCLUDED.date,
			amount=EXCLUDED.amount, vat=EXCLUDED.vat, pct=EXCLUDED.pct, commentary=EXCLUDED.commentary,
			file_url=EXCLUDED.file_url, file_name=EXCLUDED.file_name, status=EXCLUDED.status
	`, bill.ID, bill.Email, bill.Type, bill.Name, bill.Date, bill.Amount, bill.VAT, bill.Pct,
		bill.Commentary, bill.FileURL, bill.FileName, bill.Status, bill.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID
func (p *PostgresDB) GetBill(ctx context.Context, id string) (*Bill, error) {
	bill, err := scanBill(p.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bill %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select bill: %w", err)
	}
	return bill, nil
}

// ListBills returns all bills in insertion order
func (p *PostgresDB) ListBills(ctx context.Context) ([]*Bill, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+billColumns+` FROM bills ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select bills: %w", err)
	}
	defer rows.Close()

	bills := make([]*Bill, 0)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

// SaveAttachment records metadata for a stored receipt file
func (p *PostgresDB) SaveAttachment(ctx context.Context, meta *AttachmentMeta) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO attachments (key, email, file_name, content_type, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key) DO UPDATE SET
			email=EXCLUDED.email, file_name=EXCLUDED.file_name, content_type=EXCLUDED.content_type
	`, meta.Key, meta.Email, meta.FileName, meta.ContentType, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// GetAttachment retrieves attachment metadata by key
func (p *PostgresDB) GetAttachment(ctx context.Context, key string) (*AttachmentMeta, error) {
	var meta AttachmentMeta
	err := p.pool.QueryRow(ctx, `
		SELECT key, email, file_name, content_type, created_at FROM attachments WHERE key=$1
	`, key).Scan(&meta.Key, &meta.Email, &meta.FileName, &meta.ContentType, &meta.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("attachment %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("select attachment: %w", err)
	}
	return &meta, nil
}

// Close releases the pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}
