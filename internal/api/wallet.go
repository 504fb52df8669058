package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/wallet"
)

func (h *Handler) getWallet(c *gin.Context) {
	view, err := h.Wallets.GetWallet(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) listChanges(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Wallets.Changes(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getRollover(c *gin.Context) {
	ctx := c.Request.Context()
	progress, err := h.Rollover.Progress(ctx, userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	page, limit := pageParams(c)
	history, err := h.Rollover.History(ctx, userID(c), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress, "history": history})
}

func (h *Handler) toggleHideBalance(c *gin.Context) {
	view, err := h.Wallets.ToggleHideBalance(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hide_balance": view.HideBalance})
}

// streamWallet pushes this user's wallet events as server-sent events.
func (h *Handler) streamWallet(c *gin.Context) {
	ch, unsubscribe := h.Stream.Subscribe(userID(c))
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			return true
		}
	})
}

type createWalletRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Currency string `json:"currency"`
}

func (h *Handler) createWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Currency == "" {
		req.Currency = "BRL"
	}
	w, err := h.Wallets.CreateWallet(c.Request.Context(), req.UserID, req.Currency)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet.NewView(w))
}

type adjustRequest struct {
	Pool   wallet.Pool     `json:"pool"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"required"`
}

// adjustWallet applies a signed manual correction to main or bonus.
func (h *Handler) adjustWallet(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := h.Wallets.Adjust(c.Request.Context(), c.Param("user"), req.Pool, req.Amount, "admin adjustment: "+req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet.NewView(w))
}
