package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"wallet_ledger/internal/apperr"
)

// HandleBalance answers the provider's balance query. It never returns an
// error: every failure is encoded in the payload.
func (p *Processor) HandleBalance(ctx context.Context, req BalanceRequest) Response {
	if req.UserCode == "" {
		return failure("", "user_code is required")
	}

	balance, err := p.Balance(ctx, req.UserCode)
	switch {
	case err == nil:
		return Response{Status: StatusSuccess, Msg: MsgSuccess, UserBalance: wireAmount(balance)}
	case errors.Is(err, apperr.ErrInsufficientFunds):
		p.log.WithField("user_id", req.UserCode).Warn("balance query with no playable funds")
		return Response{Status: StatusFailure, Msg: MsgInsufficientFunds, UserBalance: wireAmount(balance)}
	case errors.Is(err, apperr.ErrNotFound):
		return failure("", "User not found")
	default:
		p.log.WithField("user_id", req.UserCode).Errorf("balance query failed: %v", err)
		return failure("", err.Error())
	}
}

// HandleCallback answers the provider's settlement callback. Like
// HandleBalance it always produces a well-formed payload.
func (p *Processor) HandleCallback(ctx context.Context, req CallbackRequest) Response {
	if req.UserCode == "" || req.TransactionID == "" {
		return failure(req.TransactionID, "Invalid parameters")
	}

	res, err := p.Settle(ctx, Request{
		UserID:        req.UserCode,
		SettlementRef: req.TransactionID,
		GameRef:       req.GameCode,
		Bet:           req.BetAmount,
		Win:           req.WinAmount,
	})
	if err != nil {
		fields := logrus.Fields{"user_id": req.UserCode, "ref": req.TransactionID}
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return failure(req.TransactionID, "User not found")
		case errors.Is(err, apperr.ErrInsufficientFunds):
			p.log.WithFields(fields).Warnf("settlement rejected: %v", err)
			return failure(req.TransactionID, "Insufficient balance, missing "+apperr.AmountOf(err).StringFixed(2))
		case errors.Is(err, apperr.ErrValidation):
			return failure(req.TransactionID, err.Error())
		default:
			p.log.WithFields(fields).Errorf("settlement failed: %v", err)
			return failure(req.TransactionID, err.Error())
		}
	}

	return Response{
		Status:        StatusSuccess,
		Msg:           MsgSuccess,
		UserBalance:   wireAmount(res.Balance),
		TransactionID: res.SettlementRef,
	}
}

func failure(ref, message string) Response {
	return Response{Status: StatusFailure, Msg: MsgError, TransactionID: ref, Message: message}
}

func wireAmount(d decimal.Decimal) *float64 {
	f := d.Round(2).InexactFloat64()
	return &f
}
