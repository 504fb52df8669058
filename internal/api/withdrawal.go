package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_ledger/internal/withdrawal"
)

func (h *Handler) requestWithdrawal(c *gin.Context) {
	var req withdrawal.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = userID(c)
	wd, err := h.Withdrawals.Request(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wd)
}

func (h *Handler) listMyWithdrawals(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Withdrawals.ListForUser(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) cancelWithdrawal(c *gin.Context) {
	wd, err := h.Withdrawals.Cancel(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wd)
}

func (h *Handler) listWithdrawals(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Withdrawals.ListAll(c.Request.Context(), withdrawal.Status(c.Query("status")), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) withdrawalStats(c *gin.Context) {
	stats, err := h.Withdrawals.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type approveWithdrawalRequest struct {
	Proof string `json:"proof"`
}

func (h *Handler) approveWithdrawal(c *gin.Context) {
	var req approveWithdrawalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	wd, err := h.Withdrawals.Approve(c.Request.Context(), c.Param("id"), req.Proof)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wd)
}

func (h *Handler) rejectWithdrawal(c *gin.Context) {
	wd, err := h.Withdrawals.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wd)
}
