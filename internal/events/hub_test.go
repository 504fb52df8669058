package events

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversOnlyToUser(t *testing.T) {
	h := NewHub()
	mine, cancelMine := h.Subscribe("u1")
	defer cancelMine()
	other, cancelOther := h.Subscribe("u2")
	defer cancelOther()

	require.NoError(t, h.Publish(context.Background(), Event{Type: DepositConfirmed, UserID: "u1", Amount: decimal.NewFromInt(50)}))

	select {
	case e := <-mine:
		assert.Equal(t, DepositConfirmed, e.Type)
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(50)))
	default:
		t.Fatal("expected an event for u1")
	}
	assert.Empty(t, other)
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	defer cancel()

	for i := 0; i < 25; i++ {
		require.NoError(t, h.Publish(context.Background(), Event{Type: SettlementProcessed, UserID: "u1"}))
	}
	assert.Len(t, ch, cap(ch))
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	require.NoError(t, h.Publish(context.Background(), Event{UserID: "u1"}))
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMultiPublishesToAllAndReturnsFirstError(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	defer cancel()
	boom := errors.New("broker down")

	err := Multi{failing{boom}, h, Nop{}}.Publish(context.Background(), Event{Type: RolloverCompleted, UserID: "u1"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1)
}
