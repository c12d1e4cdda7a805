package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Record persists one settlement. Repeat deliveries of the same settlement
// are ignored.
func (s *SettlementStore) Record(ctx context.Context, st domain.Settlement) error {
	const query = `
		INSERT INTO settlements (ticker, won, pnl_dollars, settled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker, settled_at) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, st.Ticker, st.Won, st.PnLDollars, st.SettledAt); err != nil {
		return fmt.Errorf("postgres: record settlement %s: %w", st.Ticker, err)
	}
	return nil
}

// ListByDay returns settlements that landed on the given UTC day.
func (s *SettlementStore) ListByDay(ctx context.Context, day time.Time) ([]domain.Settlement, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx, `
		SELECT ticker, won, pnl_dollars, settled_at FROM settlements
		WHERE settled_at >= $1 AND settled_at < $2
		ORDER BY settled_at ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements for %s: %w", start.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var st domain.Settlement
		if err := rows.Scan(&st.Ticker, &st.Won, &st.PnLDollars, &st.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DayPnL sums realized profit for the UTC day; the engine's daily loss limit
// reads this.
func (s *SettlementStore) DayPnL(ctx context.Context, day time.Time) (float64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var pnl *float64
	err := s.pool.QueryRow(ctx, `
		SELECT SUM(pnl_dollars) FROM settlements
		WHERE settled_at >= $1 AND settled_at < $2`, start, end).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("postgres: day pnl: %w", err)
	}
	if pnl == nil {
		return 0, nil
	}
	return *pnl, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
