package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wallet_ledger/internal/settlement"
)

// Provider endpoints answer 200 for every outcome; the payload carries the status.

func (h *Handler) providerBalance(c *gin.Context) {
	var req settlement.BalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, invalidProviderRequest(""))
		return
	}
	c.JSON(http.StatusOK, h.Provider.HandleBalance(c.Request.Context(), req))
}

func (h *Handler) providerCallback(c *gin.Context) {
	var req settlement.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, invalidProviderRequest(req.TransactionID))
		return
	}
	c.JSON(http.StatusOK, h.Provider.HandleCallback(c.Request.Context(), req))
}

func invalidProviderRequest(ref string) settlement.Response {
	return settlement.Response{
		Status:        settlement.StatusFailure,
		Msg:           settlement.MsgError,
		TransactionID: ref,
		Message:       "Invalid parameters",
	}
}

func (h *Handler) paymentWebhook(c *gin.Context) {
	if h.Webhook == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhook is not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.Webhook.Verify(body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !n.Paid {
		c.JSON(http.StatusOK, gin.H{"received": true, "confirmed": false})
		return
	}
	d, err := h.Deposits.ConfirmByRef(c.Request.Context(), n.ExternalRef)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "confirmed": true, "deposit_id": d.DepositID})
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
