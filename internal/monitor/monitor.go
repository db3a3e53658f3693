// Package monitor polls the ledger for new incoming transfers. It is a
// coarse substitute for event-driven notification: a cancellable
// periodic task with a strictly increasing low-watermark so no transfer
// is handed to the callback twice.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

const DefaultInterval = 10 * time.Second

// Source lists transfers to an address observed after a timestamp.
type Source interface {
	RecentTransfers(ctx context.Context, address string, minTimestamp int64) ([]domain.LedgerTransaction, error)
}

// Watcher polls one deposit address.
type Watcher struct {
	source     Source
	address    string
	interval   time.Duration
	onTransfer func(domain.LedgerTransaction)
	watermark  int64
}

// NewWatcher builds a Watcher. sinceMilli seeds the low-watermark; zero
// means "now", so only transfers after startup are reported.
func NewWatcher(source Source, address string, interval time.Duration, sinceMilli int64, onTransfer func(domain.LedgerTransaction)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if sinceMilli <= 0 {
		sinceMilli = time.Now().UnixMilli()
	}
	return &Watcher{
		source:     source,
		address:    address,
		interval:   interval,
		onTransfer: onTransfer,
		watermark:  sinceMilli,
	}
}

// Run polls until the context is cancelled. Poll errors are logged and
// the loop keeps going; the watermark only advances on success.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				log.Printf("transfer watch %s: %v", w.address, err)
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	transfers, err := w.source.RecentTransfers(ctx, w.address, w.watermark)
	if err != nil {
		return err
	}

	next := w.watermark
	for _, tx := range transfers {
		// The source may return entries at or below the watermark; the
		// strict comparison keeps delivery at most once.
		if tx.ObservedAtMilli <= w.watermark {
			continue
		}
		if w.onTransfer != nil {
			w.onTransfer(tx)
		}
		if tx.ObservedAtMilli > next {
			next = tx.ObservedAtMilli
		}
	}
	w.watermark = next
	return nil
}
