package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/payment"
)

func statusOf(err error) int {
	if errors.Is(err, payment.ErrBadSignature) {
		return http.StatusUnauthorized
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindInvalidState, apperr.KindRolloverPending:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status of its kind. Shortfall and remaining
// rollover are included so the client can show how much is missing.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := gin.H{"error": err.Error(), "kind": apperr.KindOf(err)}
	switch apperr.KindOf(err) {
	case apperr.KindInsufficientFunds, apperr.KindRolloverPending:
		body["amount"] = apperr.AmountOf(err).StringFixed(2)
	}
	if status == http.StatusInternalServerError {
		h.Log.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperr.KindValidation})
}
