// Package payment talks to the PIX payment gateway.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/logger"
)

type QRRequest struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"externalId"`
	Description string          `json:"description"`
}

type QRCode struct {
	Success       bool            `json:"success"`
	Payload       string          `json:"qrcode"`
	Image         string          `json:"qrcodeImage"`
	TransactionID string          `json:"transactionId"`
	GatewayID     string          `json:"asaasQrCodeId"`
	Amount        decimal.Decimal `json:"valor"`
	ExpiresAt     *time.Time      `json:"expirationDate,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type Verification struct {
	Paid   bool             `json:"paid"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	PaidAt *time.Time       `json:"paidAt,omitempty"`
	Status string           `json:"status"`
	Error  string           `json:"error,omitempty"`
}

type Client struct {
	client *resty.Client
	log    *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	log.WithField("base_url", baseURL).Info("payment gateway client initialized")
	return &Client{client: c, log: log}
}

// GenerateQR asks the gateway for a PIX charge. Any transport failure, non-2xx
// answer or unsuccessful body is reported as UpstreamUnavailable.
func (c *Client) GenerateQR(ctx context.Context, req QRRequest) (*QRCode, error) {
	var out QRCode
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/api/payment/generate-qr")
	if err != nil {
		c.log.WithField("ref", req.ExternalRef).Errorf("generate-qr request failed: %v", err)
		return nil, apperr.Upstream(err, "payment gateway unavailable")
	}
	if resp.IsError() || !out.Success {
		cause := fmt.Errorf("generate-qr answered %d: %s", resp.StatusCode(), out.Error)
		c.log.WithFields(logrus.Fields{
			"ref":    req.ExternalRef,
			"status": resp.StatusCode(),
		}).Error(cause.Error())
		return nil, apperr.Upstream(cause, "payment gateway rejected the charge")
	}
	c.log.WithFields(logrus.Fields{
		"ref":            req.ExternalRef,
		"transaction_id": out.TransactionID,
	}).Info("payment QR code generated")
	return &out, nil
}

func (c *Client) Verify(ctx context.Context, externalRef string) (*Verification, error) {
	var out Verification
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("ref", externalRef).
		SetResult(&out).
		Get("/api/payment/verify/{ref}")
	if err != nil {
		return nil, apperr.Upstream(err, "payment gateway unavailable")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &Verification{Paid: false, Status: "NOT_FOUND"}, nil
	}
	if resp.IsError() {
		return nil, apperr.Upstream(fmt.Errorf("verify answered %d", resp.StatusCode()), "payment gateway unavailable")
	}
	c.log.WithFields(logrus.Fields{
		"ref":    externalRef,
		"paid":   out.Paid,
		"status": out.Status,
	}).Debug("payment status verified")
	return &out, nil
}
