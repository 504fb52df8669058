package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/deposit"
)

type createDepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	AcceptBonus bool            `json:"accept_bonus"`
}

func (h *Handler) createDeposit(c *gin.Context) {
	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.Deposits.Create(c.Request.Context(), deposit.CreateRequest{
		UserID:      userID(c),
		Amount:      req.Amount,
		AcceptBonus: req.AcceptBonus,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listMyDeposits(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Deposits.ListForUser(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) verifyDeposit(c *gin.Context) {
	v, err := h.Deposits.Verify(c.Request.Context(), userID(c), c.Param("ref"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) listDeposits(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Deposits.ListAll(c.Request.Context(), deposit.Status(c.Query("status")), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) approveDeposit(c *gin.Context) {
	d, err := h.Deposits.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) rejectDeposit(c *gin.Context) {
	d, err := h.Deposits.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
