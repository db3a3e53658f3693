package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

// MemoryLedger is an in-process Ledger for tests and local development.
// The mutex gives RecordIfAbsent the same per-key atomicity the unique
// constraint gives the Postgres implementation.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]domain.SettlementRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]domain.SettlementRecord)}
}

func (m *MemoryLedger) RecordIfAbsent(ctx context.Context, rec domain.SettlementRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Reference]; ok {
		return false, nil
	}
	m.records[rec.Reference] = rec
	return true, nil
}

func (m *MemoryLedger) Exists(ctx context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[reference]
	return ok, nil
}

func (m *MemoryLedger) MarkInviteDelivered(ctx context.Context, reference string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[reference]
	if !ok || rec.InviteDeliveredAt != nil {
		return nil
	}
	stamped := at
	rec.InviteDeliveredAt = &stamped
	m.records[reference] = rec
	return nil
}

func (m *MemoryLedger) Orphans(ctx context.Context) ([]domain.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SettlementRecord
	for _, rec := range m.records {
		if rec.InviteDeliveredAt == nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (m *MemoryLedger) List(ctx context.Context) ([]domain.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SettlementRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}
