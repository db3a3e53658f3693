// Package verify applies the settlement acceptance rules to a claimed
// ledger transaction.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

// Oracle is the read-only ledger lookup the verifier consults.
type Oracle interface {
	Lookup(ctx context.Context, address, reference string) (*domain.LedgerTransaction, error)
}

// Verifier checks a claim against the ledger. Rule failures come back as
// a rejected VerificationResult; infrastructure faults as an error, so
// callers can tell "your payment is wrong" from "try again later".
type Verifier struct {
	oracle Oracle
	now    func() time.Time
}

// NewVerifier builds a Verifier. now is injectable for tests and
// defaults to time.Now.
func NewVerifier(oracle Oracle, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{oracle: oracle, now: now}
}

// Verify runs the ordered rule checks. The first failing check decides
// the rejection reason. The ledger snapshot is fetched fresh on every
// call; nothing is cached between attempts.
func (v *Verifier) Verify(ctx context.Context, claim domain.ClaimedTransaction, expectedMinor int64, maxAgeHours float64) (domain.VerificationResult, error) {
	tx, err := v.oracle.Lookup(ctx, claim.LedgerAddress, claim.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrTxNotFound) {
			return rejected(domain.ReasonNotFound), nil
		}
		return domain.VerificationResult{}, fmt.Errorf("oracle lookup: %w", err)
	}

	// The oracle may return a nearest match; never trust it blindly.
	if tx.Reference != claim.Reference {
		return rejected(domain.ReasonNotFound), nil
	}

	if tx.Recipient != claim.LedgerAddress {
		return domain.VerificationResult{Reason: domain.ReasonWrongRecipient, Tx: tx}, nil
	}

	if tx.AmountMinor < expectedMinor {
		return domain.VerificationResult{Reason: domain.ReasonUnderpaid, Tx: tx}, nil
	}

	// Absolute difference so clock skew that dates the transfer in the
	// future is rejected the same as a stale one.
	observed := time.UnixMilli(tx.ObservedAtMilli)
	ageHours := v.now().Sub(observed).Abs().Hours()
	if ageHours > maxAgeHours {
		return domain.VerificationResult{Reason: domain.ReasonStale, Tx: tx}, nil
	}

	return domain.VerificationResult{Accepted: true, Tx: tx}, nil
}

func rejected(reason domain.RejectReason) domain.VerificationResult {
	return domain.VerificationResult{Reason: reason}
}
