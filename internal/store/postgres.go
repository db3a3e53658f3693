package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okassov/paygate/internal/domain"
)

// PostgresLedger stores settlement records in Postgres. The reference
// column is the primary key; the conditional insert rides on that
// constraint, never on a read-then-write pair.
type PostgresLedger struct {
	Db *pgxpool.Pool
}

// NewPostgresLedger connects a pool and verifies the database is reachable.
func NewPostgresLedger(connString string) (*PostgresLedger, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresLedger{Db: pool}, nil
}

func (s *PostgresLedger) Close() {
	s.Db.Close()
}

func (s *PostgresLedger) RecordIfAbsent(ctx context.Context, rec domain.SettlementRecord) (bool, error) {
	tag, err := s.Db.Exec(ctx,
		`INSERT INTO settlements (reference, payer_id, recorded_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (reference) DO NOTHING`,
		rec.Reference, rec.PayerID, rec.RecordedAt)
	if err != nil {
		return false, fmt.Errorf("settlement insert failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresLedger) Exists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.Db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM settlements WHERE reference = $1)",
		reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("settlement lookup failed: %w", err)
	}
	return exists, nil
}

func (s *PostgresLedger) MarkInviteDelivered(ctx context.Context, reference string, at time.Time) error {
	_, err := s.Db.Exec(ctx,
		"UPDATE settlements SET invite_delivered_at = $2 WHERE reference = $1 AND invite_delivered_at IS NULL",
		reference, at)
	if err != nil {
		return fmt.Errorf("delivery stamp failed: %w", err)
	}
	return nil
}

func (s *PostgresLedger) Orphans(ctx context.Context) ([]domain.SettlementRecord, error) {
	return s.query(ctx,
		`SELECT reference, payer_id, recorded_at, invite_delivered_at
		 FROM settlements WHERE invite_delivered_at IS NULL
		 ORDER BY recorded_at`)
}

func (s *PostgresLedger) List(ctx context.Context) ([]domain.SettlementRecord, error) {
	return s.query(ctx,
		`SELECT reference, payer_id, recorded_at, invite_delivered_at
		 FROM settlements ORDER BY recorded_at DESC`)
}

func (s *PostgresLedger) query(ctx context.Context, sql string) ([]domain.SettlementRecord, error) {
	rows, err := s.Db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("settlement query failed: %w", err)
	}
	defer rows.Close()

	var records []domain.SettlementRecord
	for rows.Next() {
		var rec domain.SettlementRecord
		if err := rows.Scan(&rec.Reference, &rec.PayerID, &rec.RecordedAt, &rec.InviteDeliveredAt); err != nil {
			return nil, fmt.Errorf("settlement scan failed: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
