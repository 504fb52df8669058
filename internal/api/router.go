// Package api exposes the wallet engine over HTTP. Authentication happens
// upstream; the gateway forwards the caller's identity in X-User-ID.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wallet_ledger/internal/deposit"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/payment"
	"wallet_ledger/internal/rollover"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/settlement"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/withdrawal"
)

const UserHeader = "X-User-ID"

type WalletService interface {
	CreateWallet(ctx context.Context, userID string, currency string) (*wallet.Wallet, error)
	GetWallet(ctx context.Context, userID string) (*wallet.View, error)
	Changes(ctx context.Context, userID string, page, limit int) (*wallet.ChangePage, error)
	ToggleHideBalance(ctx context.Context, userID string) (*wallet.View, error)
	Adjust(ctx context.Context, userID string, pool wallet.Pool, delta decimal.Decimal, reason string) (*wallet.Wallet, error)
}

type RolloverService interface {
	Progress(ctx context.Context, userID string) (*rollover.Progress, error)
	History(ctx context.Context, userID string, page, limit int) (*rollover.EventPage, error)
}

type ProviderService interface {
	HandleBalance(ctx context.Context, req settlement.BalanceRequest) settlement.Response
	HandleCallback(ctx context.Context, req settlement.CallbackRequest) settlement.Response
}

type DepositService interface {
	Create(ctx context.Context, req deposit.CreateRequest) (*deposit.Created, error)
	Verify(ctx context.Context, userID, ref string) (*deposit.Verification, error)
	ConfirmByRef(ctx context.Context, ref string) (*deposit.Deposit, error)
	Confirm(ctx context.Context, id string) (*deposit.Deposit, error)
	Reject(ctx context.Context, id string) (*deposit.Deposit, error)
	ListForUser(ctx context.Context, userID string, page, limit int) (*deposit.Page, error)
	ListAll(ctx context.Context, status deposit.Status, page, limit int) (*deposit.Page, error)
}

type WithdrawalService interface {
	Request(ctx context.Context, req withdrawal.Request) (*withdrawal.Withdrawal, error)
	Approve(ctx context.Context, id, proof string) (*withdrawal.Withdrawal, error)
	Reject(ctx context.Context, id string) (*withdrawal.Withdrawal, error)
	Cancel(ctx context.Context, userID, id string) (*withdrawal.Withdrawal, error)
	ListForUser(ctx context.Context, userID string, page, limit int) (*withdrawal.Page, error)
	ListAll(ctx context.Context, status withdrawal.Status, page, limit int) (*withdrawal.Page, error)
	Stats(ctx context.Context) (*withdrawal.Stats, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Setting, error)
	Update(ctx context.Context, patch settings.Patch) (*settings.UpdateResult, error)
}

type WebhookVerifier interface {
	Verify(token []byte) (*payment.Notification, error)
}

type Subscriber interface {
	Subscribe(userID string) (<-chan events.Event, func())
}

type Deps struct {
	Wallets     WalletService
	Rollover    RolloverService
	Provider    ProviderService
	Deposits    DepositService
	Withdrawals WithdrawalService
	Settings    SettingsService
	Webhook     WebhookVerifier
	Stream      Subscriber
	Log         *logger.Logger
}

type Handler struct {
	Deps
}

func NewRouter(d Deps) *gin.Engine {
	h := &Handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	provider := r.Group("/api/pgsoft")
	provider.POST("/user_balance", h.providerBalance)
	provider.POST("/game_callback", h.providerCallback)

	r.POST("/webhooks/payment", h.paymentWebhook)

	user := r.Group("/", requireUser())
	user.GET("/wallet", h.getWallet)
	user.GET("/wallet/changes", h.listChanges)
	user.GET("/wallet/rollover", h.getRollover)
	user.GET("/wallet/stream", h.streamWallet)
	user.POST("/wallet/hide-balance", h.toggleHideBalance)
	user.POST("/deposits", h.createDeposit)
	user.GET("/deposits", h.listMyDeposits)
	user.GET("/deposits/:ref/verify", h.verifyDeposit)
	user.POST("/withdrawals", h.requestWithdrawal)
	user.GET("/withdrawals", h.listMyWithdrawals)
	user.POST("/withdrawals/:id/cancel", h.cancelWithdrawal)

	admin := r.Group("/admin")
	admin.GET("/settings", h.getSettings)
	admin.PUT("/settings", h.updateSettings)
	admin.GET("/deposits", h.listDeposits)
	admin.POST("/deposits/:id/approve", h.approveDeposit)
	admin.POST("/deposits/:id/reject", h.rejectDeposit)
	admin.GET("/withdrawals", h.listWithdrawals)
	admin.GET("/withdrawals/stats", h.withdrawalStats)
	admin.POST("/withdrawals/:id/approve", h.approveWithdrawal)
	admin.POST("/withdrawals/:id/reject", h.rejectWithdrawal)
	admin.POST("/wallets", h.createWallet)
	admin.POST("/wallets/:user/adjust", h.adjustWallet)

	return r
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(UserHeader) == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": UserHeader + " header is required"})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetHeader(UserHeader)
}
