// Package store persists settlement records. The ledger is append-only:
// a reference, once recorded, stays recorded forever.
package store

import (
	"context"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

// Ledger is the idempotent record of consumed transaction references.
type Ledger interface {
	// RecordIfAbsent atomically inserts the record unless the reference
	// was seen before. Exactly one of any set of concurrent callers with
	// the same reference observes inserted=true.
	RecordIfAbsent(ctx context.Context, rec domain.SettlementRecord) (inserted bool, err error)

	// Exists is a fast duplicate pre-check. It is best-effort only; the
	// authoritative guard is RecordIfAbsent.
	Exists(ctx context.Context, reference string) (bool, error)

	// MarkInviteDelivered stamps the record after successful delivery.
	MarkInviteDelivered(ctx context.Context, reference string, at time.Time) error

	// Orphans lists settled records whose invitation was never delivered.
	// These need manual recovery and must never be retried automatically.
	Orphans(ctx context.Context) ([]domain.SettlementRecord, error)

	// List returns all settlement records, newest first.
	List(ctx context.Context) ([]domain.SettlementRecord, error)
}
