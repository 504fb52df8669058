package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/deposit"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/payment"
	"wallet_ledger/internal/settlement"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/wallet/wallettest"
	"wallet_ledger/internal/withdrawal"
)

const secret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	balanceReq settlement.BalanceRequest
}

func (f *fakeProvider) HandleBalance(_ context.Context, req settlement.BalanceRequest) settlement.Response {
	f.balanceReq = req
	b := 12.5
	return settlement.Response{Status: settlement.StatusSuccess, Msg: settlement.MsgSuccess, UserBalance: &b}
}

func (f *fakeProvider) HandleCallback(_ context.Context, req settlement.CallbackRequest) settlement.Response {
	return settlement.Response{Status: settlement.StatusSuccess, Msg: settlement.MsgSuccess, TransactionID: req.TransactionID}
}

type fakeDeposits struct {
	DepositService
	createErr error
	confirmed []string
}

func (f *fakeDeposits) Create(context.Context, deposit.CreateRequest) (*deposit.Created, error) {
	return nil, f.createErr
}

func (f *fakeDeposits) ConfirmByRef(_ context.Context, ref string) (*deposit.Deposit, error) {
	f.confirmed = append(f.confirmed, ref)
	return &deposit.Deposit{DepositID: "dep-1", ExternalRef: ref, Status: deposit.StatusConfirmed}, nil
}

type fakeWithdrawals struct {
	WithdrawalService
	err error
	got withdrawal.Request
}

func (f *fakeWithdrawals) Request(_ context.Context, req withdrawal.Request) (*withdrawal.Withdrawal, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &withdrawal.Withdrawal{WithdrawalID: "wd-1", UserID: req.UserID, Amount: req.Amount, Status: withdrawal.StatusPending}, nil
}

func (f *fakeWithdrawals) Stats(context.Context) (*withdrawal.Stats, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	router      *gin.Engine
	wallets     *wallettest.Memory
	provider    *fakeProvider
	deposits    *fakeDeposits
	withdrawals *fakeWithdrawals
	webhook     *payment.Webhook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := wallettest.NewMemory(clock.Fixed{At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	mem.Put(wallet.Wallet{UserID: "u1", Currency: "BRL", Main: decimal.NewFromInt(100), Withdrawable: decimal.NewFromInt(40)})
	hook, err := payment.NewWebhook(secret)
	require.NoError(t, err)

	f := &fixture{
		wallets:     mem,
		provider:    &fakeProvider{},
		deposits:    &fakeDeposits{},
		withdrawals: &fakeWithdrawals{},
		webhook:     hook,
	}
	f.router = NewRouter(Deps{
		Wallets:     wallet.NewService(mem),
		Provider:    f.provider,
		Deposits:    f.deposits,
		Withdrawals: f.withdrawals,
		Webhook:     hook,
		Log:         logger.Discard(),
	})
	return f
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProviderMalformedBodyStillAnswersPayload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/pgsoft/game_callback", "", `{"bet_amount": "abc"`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, settlement.StatusFailure, body["status"])
	assert.Equal(t, "Invalid parameters", body["message"])
}

func TestProviderBalance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/pgsoft/user_balance", "", `{"user_code":"u1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", f.provider.balanceReq.UserCode)
	assert.EqualValues(t, 12.5, decode(t, rec)["user_balance"])
}

func TestUserRoutesRequireIdentity(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/wallet", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetWallet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/wallet", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "100", body["balance"])
	assert.Equal(t, "140", body["total_balance"])

	rec = f.do(http.MethodGet, "/wallet", "nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawalErrorsCarryAmount(t *testing.T) {
	f := newFixture(t)

	f.withdrawals.err = apperr.RolloverPending(decimal.NewFromInt(42))
	rec := f.do(http.MethodPost, "/withdrawals", "u1", `{"amount":"50","pix_key":"k","pix_type":"email"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "42.00", body["amount"])
	assert.Equal(t, string(apperr.KindRolloverPending), body["kind"])
	assert.Equal(t, "u1", f.withdrawals.got.UserID)
	assert.True(t, f.withdrawals.got.Amount.Equal(decimal.NewFromInt(50)))

	f.withdrawals.err = apperr.InsufficientFunds(decimal.RequireFromString("10.5"), "not enough")
	rec = f.do(http.MethodPost, "/withdrawals", "u1", `{"amount":"50","pix_key":"k","pix_type":"email"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "10.50", decode(t, rec)["amount"])
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/admin/withdrawals/stats", "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])
}

func TestDepositGatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.deposits.createErr = apperr.Upstream(errors.New("timeout"), "payment gateway unavailable")

	rec := f.do(http.MethodPost, "/deposits", "u1", `{"amount":"50"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/webhooks/payment", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.deposits.confirmed)

	token, err := f.webhook.Sign(payment.Notification{ExternalRef: "DEP_u1_1_abcd", Status: "PENDING"})
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/webhooks/payment", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.deposits.confirmed, "unpaid notification confirms nothing")

	token, err = f.webhook.Sign(payment.Notification{ExternalRef: "DEP_u1_1_abcd", Status: "RECEIVED", Paid: true})
	require.NoError(t, err)
	rec = f.do(http.MethodPost, "/webhooks/payment", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"DEP_u1_1_abcd"}, f.deposits.confirmed)
}

func TestAdminAdjust(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"bonus","amount":"15","reason":"goodwill"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Bonus.Equal(decimal.NewFromInt(15)))

	rec = f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"bonus","amount":"-20","reason":"fix"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "5.00", decode(t, rec)["amount"])

	rec = f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"balance","amount":"1","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"main","amount":"0","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAdjustCannotTouchDerivedPools(t *testing.T) {
	f := newFixture(t)
	before, _ := f.wallets.Snapshot("u1")

	for _, pool := range []string{"withdrawable", "bonus_rollover", "deposit_rollover"} {
		t.Run(pool, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"`+pool+`","amount":"30","reason":"x"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	after, _ := f.wallets.Snapshot("u1")
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, after.Withdrawable.Equal(decimal.NewFromInt(40)))
}

func TestAdminDebitOfMainLowersWithdrawable(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/wallets/u1/adjust", "", `{"pool":"main","amount":"-80","reason":"chargeback"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(decimal.NewFromInt(20)))
	assert.True(t, w.Withdrawable.Equal(decimal.NewFromInt(20)))
}

func TestAdminUnlockRouteIsGone(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/wallets/u1/unlock", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Withdrawable.Equal(decimal.NewFromInt(40)))
}

func TestCreateWalletConflict(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/wallets", "", `{"user_id":"u2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "BRL", decode(t, rec)["currency"])

	rec = f.do(http.MethodPost, "/admin/wallets", "", `{"user_id":"u2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
