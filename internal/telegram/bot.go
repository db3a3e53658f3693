// Package telegram issues single-use, expiring channel invite links and
// delivers them to payers through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okassov/paygate/internal/domain"
)

const (
	DefaultBaseURL   = "https://api.telegram.org"
	DefaultInviteTTL = 30 * time.Minute
)

// Bot calls the Telegram Bot API for one channel.
type Bot struct {
	token     string
	channelID string
	baseURL   string
	http      *http.Client
	now       func() time.Time
}

// NewBot builds a Bot. channelID is the -100-prefixed channel identifier.
func NewBot(token, channelID, baseURL string, httpClient *http.Client) *Bot {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Bot{
		token:     token,
		channelID: channelID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		now:       time.Now,
	}
}

// apiResponse is the Bot API envelope. ok=false carries a description;
// the result shape depends on the method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type inviteLinkResult struct {
	InviteLink  string `json:"invite_link"`
	ExpireDate  int64  `json:"expire_date"`
	MemberLimit int    `json:"member_limit"`
	IsRevoked   bool   `json:"is_revoked"`
}

// CreateInviteLink creates a one-member invite link that expires after
// ttl. A zero ttl falls back to DefaultInviteTTL.
func (b *Bot) CreateInviteLink(ctx context.Context, ttl time.Duration) (*domain.Invitation, error) {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	expireAt := b.now().Add(ttl)

	payload := map[string]any{
		"chat_id":      b.channelID,
		"expire_date":  expireAt.Unix(),
		"member_limit": 1,
	}

	var result inviteLinkResult
	if err := b.call(ctx, "createChatInviteLink", payload, &result); err != nil {
		return nil, err
	}
	if result.InviteLink == "" {
		return nil, fmt.Errorf("%w: createChatInviteLink returned no link", domain.ErrDeliveryFailed)
	}

	expires := expireAt
	if result.ExpireDate > 0 {
		expires = time.Unix(result.ExpireDate, 0)
	}
	return &domain.Invitation{Link: result.InviteLink, ExpiresAt: expires, SingleUse: true}, nil
}

// Notify sends the invite link to the payer's chat.
func (b *Bot) Notify(ctx context.Context, payerID, link string) error {
	minutes := int(DefaultInviteTTL.Minutes())
	payload := map[string]any{
		"chat_id": payerID,
		"text": fmt.Sprintf(
			"Hello! Here is your invite link: %s \n\nNote: this link will expire in %d minutes and can be used only once.",
			link, minutes),
	}
	return b.call(ctx, "sendMessage", payload, nil)
}

func (b *Bot) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrDeliveryFailed, method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailed, method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrDeliveryFailed, method, err)
	}
	if !envelope.OK {
		desc := envelope.Description
		if desc == "" {
			desc = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: %s", domain.ErrDeliveryFailed, method, desc)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: decode %s result: %v", domain.ErrDeliveryFailed, method, err)
		}
	}
	return nil
}
