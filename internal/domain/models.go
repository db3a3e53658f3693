package domain

import "time"

// USDTDecimals is the number of decimal places in TRC20-USDT minor units.
const USDTDecimals = 6

// ClaimedTransaction is the payload a payer submits to claim a transfer.
type ClaimedTransaction struct {
	LedgerAddress string `json:"ledger_address"`
	Reference     string `json:"reference"`
	PayerID       string `json:"payer_id"`
}

// LedgerTransaction is a read-only snapshot of a transfer as reported by
// the ledger oracle. It is fetched fresh on every verification attempt.
type LedgerTransaction struct {
	Reference       string `json:"reference"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	AmountMinor     int64  `json:"amount_minor"`
	ObservedAtMilli int64  `json:"observed_at_ms"`
}

// SettlementRecord is the durable proof that a reference was consumed.
// Created exactly once per verified transaction, never mutated apart
// from the invite delivery stamp, never deleted.
type SettlementRecord struct {
	Reference         string     `json:"reference"`
	PayerID           string     `json:"payer_id"`
	RecordedAt        time.Time  `json:"recorded_at"`
	InviteDeliveredAt *time.Time `json:"invite_delivered_at,omitempty"`
}

// Invitation is a single-use, expiring invite link created on settlement.
type Invitation struct {
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
	SingleUse bool      `json:"single_use"`
}

// PaymentAddress is one of the configured deposit addresses a payer may
// choose when submitting a claim.
type PaymentAddress struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Address string `json:"address" yaml:"address"`
}

// VerificationResult reports the outcome of the rule checks on a claim.
type VerificationResult struct {
	Accepted bool               `json:"accepted"`
	Reason   RejectReason       `json:"reason,omitempty"`
	Tx       *LedgerTransaction `json:"tx,omitempty"`
}

// SettlementStatus is the terminal state of a settlement attempt.
type SettlementStatus string

const (
	StatusSettled  SettlementStatus = "settled"
	StatusRejected SettlementStatus = "rejected"
	// StatusDeliveryFailed means the payment was verified and recorded but
	// the invitation could not be delivered. The record stands; recovery
	// is manual, never an automatic re-issue.
	StatusDeliveryFailed SettlementStatus = "delivery_failed"
)

// SettlementOutcome is what the coordinator returns for one attempt.
type SettlementOutcome struct {
	Status     SettlementStatus `json:"status"`
	Reason     RejectReason     `json:"reason,omitempty"`
	Invitation *Invitation      `json:"invitation,omitempty"`
}
