package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ---------------------------------------------------------------------------
// PostgreSQL sink
// ---------------------------------------------------------------------------

// execer is the subset of pgxpool.Pool the sink needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink persists ledger records to PostgreSQL.
type PostgresSink struct {
	db      execer
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink connects to PostgreSQL and prepares the schema.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect postgres: %w", err)
	}

	sink := &PostgresSink{db: pool, pool: pool, timeout: 5 * time.Second}
	if err := sink.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ledger_records (
			id UUID PRIMARY KEY,
			seq BIGINT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			kind TEXT NOT NULL,
			wallet TEXT NOT NULL,
			token TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			status TEXT NOT NULL,
			tx_hash TEXT,
			error TEXT,
			resolved_at TIMESTAMPTZ
		)
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return nil
}

// Append inserts a new pending record.
func (s *PostgresSink) Append(rec Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	query := `
		INSERT INTO ledger_records (id, seq, ts, kind, wallet, token, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.Seq,
		rec.Timestamp,
		string(rec.Kind),
		string(rec.Wallet),
		rec.Token,
		rec.Amount,
		string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert record: %w", err)
	}
	return nil
}

// Resolve writes the terminal status of a record.
func (s *PostgresSink) Resolve(rec Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	query := `
		UPDATE ledger_records
		SET status = $2, amount = $3, tx_hash = $4, error = $5, resolved_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := s.db.Exec(ctx, query,
		rec.ID,
		string(rec.Status),
		rec.Amount,
		string(rec.TxHash),
		rec.Error,
		rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: resolve record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: resolve record %s: no pending row", rec.ID)
	}
	return nil
}
