package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okassov/paygate/internal/domain"
	"github.com/okassov/paygate/internal/store"
)

const (
	expectedMinor = int64(25_000_000)
	maxAgeHours   = 5.0
)

type stubVerifier struct {
	result domain.VerificationResult
	err    error
	calls  int64
}

func (s *stubVerifier) Verify(ctx context.Context, claim domain.ClaimedTransaction, expected int64, maxAge float64) (domain.VerificationResult, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.result, s.err
}

type stubIssuer struct {
	mu          sync.Mutex
	created     int
	notified    int
	createErr   error
	notifyErr   error
	lastPayerID string
}

func (s *stubIssuer) CreateInviteLink(ctx context.Context, ttl time.Duration) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created++
	return &domain.Invitation{Link: "https://t.me/+invite", ExpiresAt: time.Now().Add(ttl), SingleUse: true}, nil
}

func (s *stubIssuer) Notify(ctx context.Context, payerID, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notified++
	s.lastPayerID = payerID
	return nil
}

func accepted() domain.VerificationResult {
	return domain.VerificationResult{Accepted: true, Tx: &domain.LedgerTransaction{Reference: "tx-ref"}}
}

func testClaim() domain.ClaimedTransaction {
	return domain.ClaimedTransaction{LedgerAddress: "TRecv", Reference: "tx-ref", PayerID: "6463737305"}
}

func newCoordinator(ledger store.Ledger, v Verifier, i Issuer) *Coordinator {
	return NewCoordinator(ledger, v, i, expectedMinor, maxAgeHours, 30*time.Minute)
}

func TestSubmitSettlesOnce(t *testing.T) {
	ledger := store.NewMemoryLedger()
	verifier := &stubVerifier{result: accepted()}
	issuer := &stubIssuer{}
	coord := newCoordinator(ledger, verifier, issuer)
	ctx := context.Background()

	outcome, err := coord.Submit(ctx, testClaim())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Status != domain.StatusSettled {
		t.Fatalf("status = %v, want settled", outcome.Status)
	}
	if outcome.Invitation == nil || outcome.Invitation.Link == "" {
		t.Fatal("settled outcome must carry the invitation")
	}
	if issuer.created != 1 || issuer.notified != 1 {
		t.Errorf("issuer calls = (%d created, %d notified), want (1, 1)", issuer.created, issuer.notified)
	}
	if issuer.lastPayerID != "6463737305" {
		t.Errorf("notified payer = %q", issuer.lastPayerID)
	}

	// The delivered settlement must not appear as an orphan.
	orphans, _ := ledger.Orphans(ctx)
	if len(orphans) != 0 {
		t.Errorf("orphans = %d, want 0", len(orphans))
	}

	// Resubmitting the same reference is terminal: no re-verification
	// would matter, and no second invitation is issued.
	outcome, err = coord.Submit(ctx, testClaim())
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if outcome.Status != domain.StatusRejected || outcome.Reason != domain.ReasonAlreadyUsed {
		t.Fatalf("second submit = %+v, want rejected/already_used", outcome)
	}
	if issuer.created != 1 {
		t.Errorf("invitations created = %d, want still 1", issuer.created)
	}
}

func TestSubmitRejectionPassesReasonThrough(t *testing.T) {
	for _, reason := range []domain.RejectReason{
		domain.ReasonNotFound,
		domain.ReasonWrongRecipient,
		domain.ReasonUnderpaid,
		domain.ReasonStale,
	} {
		ledger := store.NewMemoryLedger()
		issuer := &stubIssuer{}
		coord := newCoordinator(ledger, &stubVerifier{result: domain.VerificationResult{Reason: reason}}, issuer)

		outcome, err := coord.Submit(context.Background(), testClaim())
		if err != nil {
			t.Fatalf("Submit(%s): %v", reason, err)
		}
		if outcome.Status != domain.StatusRejected || outcome.Reason != reason {
			t.Errorf("outcome = %+v, want rejected/%s", outcome, reason)
		}
		if exists, _ := ledger.Exists(context.Background(), "tx-ref"); exists {
			t.Errorf("%s: rejected claim must not be recorded", reason)
		}
		if issuer.created != 0 {
			t.Errorf("%s: no invitation on rejection", reason)
		}
	}
}

func TestSubmitOracleFaultIsAnError(t *testing.T) {
	ledger := store.NewMemoryLedger()
	coord := newCoordinator(ledger, &stubVerifier{err: domain.ErrOracleUnavailable}, &stubIssuer{})

	_, err := coord.Submit(context.Background(), testClaim())
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
	if exists, _ := ledger.Exists(context.Background(), "tx-ref"); exists {
		t.Error("nothing may be recorded when the oracle is down")
	}
}

func TestSubmitDeliveryFailureKeepsRecord(t *testing.T) {
	ledger := store.NewMemoryLedger()
	issuer := &stubIssuer{createErr: domain.ErrDeliveryFailed}
	coord := newCoordinator(ledger, &stubVerifier{result: accepted()}, issuer)
	ctx := context.Background()

	outcome, err := coord.Submit(ctx, testClaim())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Status != domain.StatusDeliveryFailed {
		t.Fatalf("status = %v, want delivery_failed", outcome.Status)
	}

	// The record stands and surfaces in the orphan report.
	orphans, _ := ledger.Orphans(ctx)
	if len(orphans) != 1 || orphans[0].Reference != "tx-ref" {
		t.Fatalf("orphans = %+v, want the undelivered settlement", orphans)
	}

	// A resubmission must not re-verify or trigger a second issuance.
	issuer.createErr = nil
	outcome, err = coord.Submit(ctx, testClaim())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if outcome.Status != domain.StatusRejected || outcome.Reason != domain.ReasonAlreadyUsed {
		t.Fatalf("resubmit = %+v, want rejected/already_used", outcome)
	}
	if issuer.created != 0 {
		t.Errorf("invitations created = %d, want 0", issuer.created)
	}
}

func TestSubmitNotifyFailureIsRecoverable(t *testing.T) {
	ledger := store.NewMemoryLedger()
	issuer := &stubIssuer{notifyErr: domain.ErrDeliveryFailed}
	coord := newCoordinator(ledger, &stubVerifier{result: accepted()}, issuer)

	outcome, err := coord.Submit(context.Background(), testClaim())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Status != domain.StatusDeliveryFailed {
		t.Fatalf("status = %v, want delivery_failed", outcome.Status)
	}
	if outcome.Invitation == nil {
		t.Error("created-but-undelivered invite should be surfaced for support")
	}
	orphans, _ := ledger.Orphans(context.Background())
	if len(orphans) != 1 {
		t.Errorf("orphans = %d, want 1", len(orphans))
	}
}

// Concurrent submissions of the same reference: exactly one settles and
// exactly one invitation is issued, no matter how the pre-check races.
func TestSubmitConcurrentSameReference(t *testing.T) {
	ledger := store.NewMemoryLedger()
	issuer := &stubIssuer{}
	coord := newCoordinator(ledger, &stubVerifier{result: accepted()}, issuer)

	const workers = 32
	var settledCount int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			outcome, err := coord.Submit(context.Background(), testClaim())
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			if outcome.Status == domain.StatusSettled {
				atomic.AddInt64(&settledCount, 1)
			} else if outcome.Reason != domain.ReasonAlreadyUsed {
				t.Errorf("loser outcome = %+v, want already_used", outcome)
			}
		}()
	}
	wg.Wait()

	if settledCount != 1 {
		t.Fatalf("settled = %d, want exactly 1", settledCount)
	}
	if issuer.created != 1 {
		t.Fatalf("invitations created = %d, want exactly 1", issuer.created)
	}
}
