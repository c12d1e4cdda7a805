package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Source is one forecast provider. Fetch returns the provider's point
// estimates for the city's daily extreme on the target date; multi-model
// providers return one sample per model.
type Source interface {
	Name() string
	Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error)
}

const userAgent = "weatherbot/1.0 (ops@skyline-trading.example)"

// getJSON issues a GET and decodes the JSON response into dst.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("http %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// dateParam formats a target date for provider query strings.
func dateParam(date time.Time) string {
	return date.Format("2006-01-02")
}
