package domain

import "errors"

// RejectReason classifies why a settlement attempt was turned down.
// Every reason maps to a user-actionable message; they are never
// collapsed into a generic failure.
type RejectReason string

const (
	// ReasonNotFound: the claimed reference does not exist on the ledger.
	ReasonNotFound RejectReason = "not_found"
	// ReasonWrongRecipient: the transfer did not pay the chosen address.
	ReasonWrongRecipient RejectReason = "wrong_recipient"
	// ReasonUnderpaid: the transferred amount is below the subscription fee.
	ReasonUnderpaid RejectReason = "underpaid"
	// ReasonStale: the transfer is older than the acceptance horizon, or
	// implausibly dated in the future.
	ReasonStale RejectReason = "stale"
	// ReasonAlreadyUsed: the reference was settled before. Terminal for
	// that reference.
	ReasonAlreadyUsed RejectReason = "already_used"
	// ReasonWindowClosed: the payment window is not currently open.
	ReasonWindowClosed RejectReason = "window_closed"
)

// Infrastructure faults, reported distinctly from rule rejections so the
// caller knows a retry is safe.
var (
	ErrTxNotFound        = errors.New("transaction not found on ledger")
	ErrOracleUnavailable = errors.New("ledger oracle unavailable")
	ErrDeliveryFailed    = errors.New("invitation delivery failed")
)
