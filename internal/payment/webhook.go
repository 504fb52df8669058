package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/apperr"
)

// Notification is the signed body the gateway posts when a charge changes state.
type Notification struct {
	ExternalRef string          `json:"externalId"`
	Status      string          `json:"status"`
	Paid        bool            `json:"paid"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
}

var ErrBadSignature = errors.New("invalid webhook signature")

// Webhook verifies and produces HS256 compact JWS notifications.
type Webhook struct {
	key []byte
}

func NewWebhook(secret string) (*Webhook, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("webhook secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Webhook{key: []byte(secret)}, nil
}

func (w *Webhook) Verify(token []byte) (*Notification, error) {
	obj, err := jose.ParseSigned(string(token), []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	payload, err := obj.Verify(w.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, apperr.Validation("malformed webhook payload: %v", err)
	}
	if n.ExternalRef == "" {
		return nil, apperr.Validation("webhook payload has no externalId")
	}
	return &n, nil
}

// Sign serializes n as a compact JWS, the format the gateway delivers.
func (w *Webhook) Sign(n Notification) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: w.key}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign webhook: %w", err)
	}
	return obj.CompactSerialize()
}
