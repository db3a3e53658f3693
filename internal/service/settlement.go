package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/okassov/paygate/internal/domain"
	"github.com/okassov/paygate/internal/store"
)

// Verifier checks a claim against the ledger oracle.
type Verifier interface {
	Verify(ctx context.Context, claim domain.ClaimedTransaction, expectedMinor int64, maxAgeHours float64) (domain.VerificationResult, error)
}

// Issuer creates and delivers single-use invitations.
type Issuer interface {
	CreateInviteLink(ctx context.Context, ttl time.Duration) (*domain.Invitation, error)
	Notify(ctx context.Context, payerID, link string) error
}

// Coordinator drives one settlement attempt through verification, the
// at-most-once settlement record, and invitation delivery. It is the
// only component with a multi-step, partial-failure-sensitive protocol.
type Coordinator struct {
	ledger        store.Ledger
	verifier      Verifier
	issuer        Issuer
	expectedMinor int64
	maxAgeHours   float64
	inviteTTL     time.Duration
	now           func() time.Time
}

func NewCoordinator(ledger store.Ledger, verifier Verifier, issuer Issuer, expectedMinor int64, maxAgeHours float64, inviteTTL time.Duration) *Coordinator {
	return &Coordinator{
		ledger:        ledger,
		verifier:      verifier,
		issuer:        issuer,
		expectedMinor: expectedMinor,
		maxAgeHours:   maxAgeHours,
		inviteTTL:     inviteTTL,
		now:           time.Now,
	}
}

// Submit runs one settlement attempt. Rule failures and duplicates come
// back as a rejected outcome with a specific reason; infrastructure
// faults (oracle down, database down) come back as an error the caller
// may retry. Once a reference is recorded it is never verified or
// settled again, and no step is retried automatically.
func (c *Coordinator) Submit(ctx context.Context, claim domain.ClaimedTransaction) (*domain.SettlementOutcome, error) {
	// 1. Fast duplicate pre-check. Best-effort early exit only; the
	// atomic insert below is the authoritative guard.
	used, err := c.ledger.Exists(ctx, claim.Reference)
	if err != nil {
		return nil, fmt.Errorf("duplicate pre-check failed: %w", err)
	}
	if used {
		return rejected(domain.ReasonAlreadyUsed), nil
	}

	// 2. Verification against the ledger oracle.
	result, err := c.verifier.Verify(ctx, claim, c.expectedMinor, c.maxAgeHours)
	if err != nil {
		return nil, err
	}
	if !result.Accepted {
		return rejected(result.Reason), nil
	}

	// 3. Atomic conditional insert. Losing the race means another
	// attempt settled this reference first: no invitation from us.
	inserted, err := c.ledger.RecordIfAbsent(ctx, domain.SettlementRecord{
		Reference:  claim.Reference,
		PayerID:    claim.PayerID,
		RecordedAt: c.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("settlement record failed: %w", err)
	}
	if !inserted {
		return rejected(domain.ReasonAlreadyUsed), nil
	}

	// 4. Invitation. The payment is verified and recorded at this point,
	// so a delivery failure is recoverable, not a rejection. The record
	// stands and the row stays unstamped for manual recovery.
	invite, err := c.issuer.CreateInviteLink(ctx, c.inviteTTL)
	if err != nil {
		log.Printf("settlement %s recorded but invite creation failed: %v", claim.Reference, err)
		return &domain.SettlementOutcome{Status: domain.StatusDeliveryFailed}, nil
	}
	if err := c.issuer.Notify(ctx, claim.PayerID, invite.Link); err != nil {
		log.Printf("settlement %s recorded but invite delivery failed: %v", claim.Reference, err)
		return &domain.SettlementOutcome{Status: domain.StatusDeliveryFailed, Invitation: invite}, nil
	}

	if err := c.ledger.MarkInviteDelivered(ctx, claim.Reference, c.now().UTC()); err != nil {
		// The payer has the invite; the missing stamp only means the row
		// shows up in the orphan report until an operator clears it.
		log.Printf("settlement %s delivered but stamp failed: %v", claim.Reference, err)
	}

	return &domain.SettlementOutcome{Status: domain.StatusSettled, Invitation: invite}, nil
}

func rejected(reason domain.RejectReason) *domain.SettlementOutcome {
	return &domain.SettlementOutcome{Status: domain.StatusRejected, Reason: reason}
}
