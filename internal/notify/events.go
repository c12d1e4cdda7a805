package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Event type names used with Notifier.Notify. These match the values
// accepted in the notify.events config list.
const (
	EventOrderFilled    = "order_filled"
	EventPositionClosed = "position_closed"
	EventSettlement     = "settlement"
	EventError          = "error"
)

// TradeEntered announces a submitted entry with the numbers behind it.
func (n *Notifier) TradeEntered(ctx context.Context, d domain.TradeDecision) error {
	return n.Notify(ctx, EventOrderFilled, Message{
		Title:    fmt.Sprintf("Entered %s", d.Ticker),
		Severity: SeverityTrade,
		Fields: []Field{
			{"Order", fmt.Sprintf("%s %d @ %d¢ (%s, %s)",
				strings.ToUpper(string(d.Side)), d.Count, d.PriceCents, d.Mode, d.Style)},
			{"Cost", fmt.Sprintf("$%.2f", d.Dollars())},
			{"Edge", fmt.Sprintf("%.1f¢", d.Edge)},
			{"EV", fmt.Sprintf("$%.3f/contract", d.EV)},
			{"Model", fmt.Sprintf("p=%.2f, CI [%.2f, %.2f]", d.Prob, d.CILow, d.CIHigh)},
		},
	})
}

// PositionClosed announces an exit.
func (n *Notifier) PositionClosed(ctx context.Context, e domain.ExitDecision) error {
	sev := SeverityTrade
	if e.ProfitPct < 0 {
		sev = SeverityWarn
	}
	return n.Notify(ctx, EventPositionClosed, Message{
		Title:    fmt.Sprintf("Closed %s", e.Ticker),
		Severity: sev,
		Fields: []Field{
			{"Order", fmt.Sprintf("sell %d %s @ %d¢",
				e.Count, strings.ToUpper(string(e.Side)), e.PriceCents)},
			{"Reason", string(e.Reason)},
			{"Unrealized", fmt.Sprintf("%+.0f%%", e.ProfitPct)},
		},
	})
}

// SettlementRecorded announces a market settlement.
func (n *Notifier) SettlementRecorded(ctx context.Context, s domain.Settlement) error {
	outcome := "LOST"
	sev := SeverityWarn
	if s.Won {
		outcome = "WON"
		sev = SeverityTrade
	}
	return n.Notify(ctx, EventSettlement, Message{
		Title:    fmt.Sprintf("Settled %s: %s", s.Ticker, outcome),
		Severity: sev,
		Fields: []Field{
			{"PnL", fmt.Sprintf("$%+.2f", s.PnLDollars)},
			{"Settled", s.SettledAt.Format("2006-01-02 15:04 MST")},
		},
	})
}

// EngineError surfaces an operational failure to the operator channels.
func (n *Notifier) EngineError(ctx context.Context, where string, err error) error {
	return n.Notify(ctx, EventError, Message{
		Title:    "Engine error",
		Body:     fmt.Sprintf("%s: %v", where, err),
		Severity: SeverityWarn,
	})
}
