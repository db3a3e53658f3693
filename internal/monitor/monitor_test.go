package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

type fakeSource struct {
	mu        sync.Mutex
	batches   [][]domain.LedgerTransaction
	errBefore int // return an error for the first errBefore calls
	calls     int
	seenMin   []int64
}

func (f *fakeSource) RecentTransfers(ctx context.Context, address string, minTimestamp int64) ([]domain.LedgerTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seenMin = append(f.seenMin, minTimestamp)
	if f.calls <= f.errBefore {
		return nil, errors.New("oracle hiccup")
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func tx(ref string, at int64) domain.LedgerTransaction {
	return domain.LedgerTransaction{Reference: ref, ObservedAtMilli: at}
}

func TestPollAdvancesWatermarkAndSkipsOldTransfers(t *testing.T) {
	source := &fakeSource{batches: [][]domain.LedgerTransaction{
		{tx("b", 2000), tx("a", 1500), tx("old", 1000)},
		{tx("b", 2000), tx("c", 2500)}, // b repeats at the watermark
	}}

	var seen []string
	w := NewWatcher(source, "TAddr", time.Second, 1000, func(transfer domain.LedgerTransaction) {
		seen = append(seen, transfer.Reference)
	})

	if err := w.poll(context.Background()); err != nil {
		t.Fatalf("poll 1: %v", err)
	}
	if err := w.poll(context.Background()); err != nil {
		t.Fatalf("poll 2: %v", err)
	}

	want := []string{"b", "a", "c"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
	if w.watermark != 2500 {
		t.Errorf("watermark = %d, want 2500", w.watermark)
	}
}

func TestPollErrorDoesNotAdvanceWatermark(t *testing.T) {
	source := &fakeSource{errBefore: 1}
	w := NewWatcher(source, "TAddr", time.Second, 5000, nil)

	if err := w.poll(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}
	if w.watermark != 5000 {
		t.Errorf("watermark = %d, want unchanged 5000", w.watermark)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &fakeSource{}
	w := NewWatcher(source, "TAddr", 5*time.Millisecond, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if source.calls == 0 {
		t.Error("watcher never polled")
	}
}
