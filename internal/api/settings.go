package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet_ledger/internal/settings"
)

func (h *Handler) getSettings(c *gin.Context) {
	st, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// updateSettings applies a partial update. Changing the rollover multiplier
// rescales outstanding requirements and the summary is returned alongside.
func (h *Handler) updateSettings(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Settings.Update(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
