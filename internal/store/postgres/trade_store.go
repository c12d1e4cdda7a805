package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, ticker, base_market, side, action, count,
	price_cents, edge, ev, prob, ci_low, ci_high, mode, style, created_at`

// Record persists one executed decision with the exchange order ID.
func (s *TradeStore) Record(ctx context.Context, d domain.TradeDecision, orderID string) error {
	const query = `
		INSERT INTO trades (
			id, order_id, ticker, base_market, side, action, count,
			price_cents, edge, ev, prob, ci_low, ci_high, mode, style, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15, $16
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		d.ID, orderID, d.Ticker, d.BaseMarket, string(d.Side), string(d.Action), d.Count,
		d.PriceCents, d.Edge, d.EV, d.Prob, d.CILow, d.CIHigh, string(d.Mode), string(d.Style), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", d.Ticker, err)
	}
	return nil
}

// ListSince returns decisions recorded at or after the given time, oldest
// first.
func (s *TradeStore) ListSince(ctx context.Context, since time.Time) ([]domain.TradeDecision, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades
		WHERE created_at >= $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades since %s: %w", since, err)
	}
	defer rows.Close()

	return scanTradeRows(rows)
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeDecision, error) {
	var out []domain.TradeDecision
	for rows.Next() {
		var d domain.TradeDecision
		var side, action, mode, style string
		if err := rows.Scan(
			&d.ID, &d.Ticker, &d.BaseMarket, &side, &action, &d.Count,
			&d.PriceCents, &d.Edge, &d.EV, &d.Prob, &d.CILow, &d.CIHigh,
			&mode, &style, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		d.Side = domain.Side(side)
		d.Action = domain.Action(action)
		d.Mode = domain.StrategyMode(mode)
		d.Style = domain.OrderStyle(style)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
