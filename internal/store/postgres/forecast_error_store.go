package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// ForecastErrorStore implements domain.ForecastErrorStore using PostgreSQL.
// It accumulates |forecast − settled| per city and calendar month; the
// probability model blends the rolling mean into its sigma.
type ForecastErrorStore struct {
	pool *pgxpool.Pool
}

// NewForecastErrorStore creates a new ForecastErrorStore.
func NewForecastErrorStore(pool *pgxpool.Pool) *ForecastErrorStore {
	return &ForecastErrorStore{pool: pool}
}

// Record appends one absolute forecast error observation.
func (s *ForecastErrorStore) Record(ctx context.Context, city string, month time.Month, errorF float64) error {
	const query = `INSERT INTO forecast_errors (city, month, error_f) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, city, int(month), errorF); err != nil {
		return fmt.Errorf("postgres: record forecast error %s/%d: %w", city, month, err)
	}
	return nil
}

// Average returns the mean absolute error and sample count for a city/month.
func (s *ForecastErrorStore) Average(ctx context.Context, city string, month time.Month) (float64, int, error) {
	var avg *float64
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT AVG(error_f), COUNT(*) FROM forecast_errors
		WHERE city = $1 AND month = $2`, city, int(month)).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: forecast error average %s/%d: %w", city, month, err)
	}
	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}

// Compile-time interface check.
var _ domain.ForecastErrorStore = (*ForecastErrorStore)(nil)
