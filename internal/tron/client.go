// Package tron reads TRC20 transfers through the TronGrid HTTP API. It is
// the service's only view of the ledger and treats it as a trusted
// read-only oracle.
package tron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

const (
	DefaultBaseURL = "https://api.trongrid.io"

	apiKeyHeader = "TRON-PRO-API-KEY"
	pageLimit    = 50
)

// Client is a TronGrid API client scoped to TRC20 transfer lookups.
type Client struct {
	baseURL  string
	apiKey   string
	contract string
	http     *http.Client
}

// NewClient builds a Client. baseURL falls back to the public TronGrid
// endpoint; contract restricts scans to one token (USDT in production).
func NewClient(baseURL, apiKey, contract string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		contract: contract,
		http:     httpClient,
	}
}

// trc20Transfer mirrors one entry of TronGrid's transfer list. Fields we
// depend on are decoded explicitly; anything else is dropped.
type trc20Transfer struct {
	TransactionID  string `json:"transaction_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	BlockTimestamp int64  `json:"block_timestamp"`
}

type transferListEnvelope struct {
	Data    []trc20Transfer `json:"data"`
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
}

// Lookup finds the transfer with the given reference in the address's
// recent TRC20 history. Returns domain.ErrTxNotFound when the reference
// is absent and domain.ErrOracleUnavailable on transport or API faults.
func (c *Client) Lookup(ctx context.Context, address, reference string) (*domain.LedgerTransaction, error) {
	transfers, err := c.listTransfers(ctx, address, url.Values{
		"limit": []string{strconv.Itoa(pageLimit)},
	})
	if err != nil {
		return nil, err
	}

	for _, tx := range transfers {
		if tx.TransactionID != reference {
			continue
		}
		ledgerTx, err := toLedgerTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
		}
		return ledgerTx, nil
	}
	return nil, domain.ErrTxNotFound
}

// RecentTransfers lists confirmed transfers to the address observed after
// minTimestamp (epoch millis), newest first. Used by the polling watcher.
func (c *Client) RecentTransfers(ctx context.Context, address string, minTimestamp int64) ([]domain.LedgerTransaction, error) {
	params := url.Values{
		"only_confirmed": []string{"true"},
		"min_timestamp":  []string{strconv.FormatInt(minTimestamp, 10)},
		"limit":          []string{strconv.Itoa(pageLimit)},
		"order_by":       []string{"block_timestamp,desc"},
	}
	if c.contract != "" {
		params.Set("contract_address", c.contract)
	}

	transfers, err := c.listTransfers(ctx, address, params)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LedgerTransaction, 0, len(transfers))
	for _, tx := range transfers {
		ledgerTx, err := toLedgerTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
		}
		out = append(out, *ledgerTx)
	}
	return out, nil
}

func (c *Client) listTransfers(ctx context.Context, address string, params url.Values) ([]trc20Transfer, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20", c.baseURL, url.PathEscape(address))
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrOracleUnavailable, resp.StatusCode)
	}

	var envelope transferListEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrOracleUnavailable, err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, fmt.Errorf("%w: api error: %s", domain.ErrOracleUnavailable, envelope.Error)
	}
	// Reject shape surprises at the boundary rather than at use sites.
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: response missing data array", domain.ErrOracleUnavailable)
	}
	return envelope.Data, nil
}

func toLedgerTransaction(tx trc20Transfer) (*domain.LedgerTransaction, error) {
	if tx.TransactionID == "" {
		return nil, fmt.Errorf("transfer missing transaction_id")
	}
	amount, err := strconv.ParseInt(tx.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transfer %s has bad value %q", tx.TransactionID, tx.Value)
	}
	return &domain.LedgerTransaction{
		Reference:       tx.TransactionID,
		Sender:          tx.From,
		Recipient:       tx.To,
		AmountMinor:     amount,
		ObservedAtMilli: tx.BlockTimestamp,
	}, nil
}

// FormatAmount renders minor units as a display amount with trailing
// zeros trimmed, e.g. 25_500_000 with 6 decimals -> "25.5".
func FormatAmount(minor int64, decimals int) string {
	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	whole := minor / scale
	frac := minor % scale
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%d.%0*d", whole, decimals, frac)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
