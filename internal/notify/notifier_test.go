package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

type captureSender struct {
	name string
	got  []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, []string{EventSettlement}, slog.Default())

	require.NoError(t, n.Notify(context.Background(), EventOrderFilled, Message{Title: "entry"}))
	assert.Empty(t, s.got)

	require.NoError(t, n.Notify(context.Background(), EventSettlement, Message{Title: "settled"}))
	require.Len(t, s.got, 1)
	assert.Equal(t, "settled", s.got[0].Title)
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	require.NoError(t, n.Notify(context.Background(), EventError, Message{Title: "oops"}))
	assert.Len(t, s.got, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("http 500")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.Default())

	err := n.NotifyAll(context.Background(), Message{Title: "alert"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.got, 1)
}

func TestTradeEnteredMessage(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	err := n.TradeEntered(context.Background(), domain.TradeDecision{
		Ticker:     "KXHIGHNY-26JAN28-T26",
		Side:       domain.SideYes,
		Count:      4,
		PriceCents: 32,
		Edge:       12.5,
		EV:         0.041,
		Prob:       0.45,
		CILow:      0.38,
		CIHigh:     0.55,
		Mode:       domain.ModeConservative,
		Style:      domain.OrderMaker,
	})
	require.NoError(t, err)
	require.Len(t, s.got, 1)

	msg := s.got[0]
	assert.Equal(t, "Entered KXHIGHNY-26JAN28-T26", msg.Title)
	assert.Equal(t, SeverityTrade, msg.Severity)
	require.NotEmpty(t, msg.Fields)
	assert.Equal(t, "YES 4 @ 32¢ (conservative, maker)", msg.Fields[0].Value)
	assert.Equal(t, "$1.28", msg.Fields[1].Value)
}

func TestPositionClosedSeverity(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	require.NoError(t, n.PositionClosed(context.Background(), domain.ExitDecision{
		Ticker: "KXHIGHNY-26JAN28-T26", Side: domain.SideYes, Count: 4,
		PriceCents: 25, Reason: domain.ExitStopLoss, ProfitPct: -37.5,
	}))
	require.Len(t, s.got, 1)
	assert.Equal(t, SeverityWarn, s.got[0].Severity)
}

func TestSettlementMessage(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	require.NoError(t, n.SettlementRecorded(context.Background(), domain.Settlement{
		Ticker: "KXHIGHNY-26JAN28-T26", Won: true, PnLDollars: 2.72,
		SettledAt: time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC),
	}))
	require.Len(t, s.got, 1)
	assert.Equal(t, "Settled KXHIGHNY-26JAN28-T26: WON", s.got[0].Title)
	assert.Equal(t, "$+2.72", s.got[0].Fields[0].Value)
}

func TestRenderTelegramEscapesMarkup(t *testing.T) {
	out := renderTelegram(Message{
		Title:    "Engine error",
		Body:     "fetch <book>: timeout & retry",
		Severity: SeverityWarn,
	})
	assert.Contains(t, out, "<b>Engine error</b>")
	assert.Contains(t, out, "fetch &lt;book&gt;: timeout &amp; retry")
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, 0x2ECC71, severityColor(SeverityTrade))
	assert.Equal(t, 0xE74C3C, severityColor(SeverityWarn))
	assert.Equal(t, 0x3498DB, severityColor(SeverityInfo))
}
