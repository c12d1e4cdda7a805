package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const tomorrowIOBaseURL = "https://api.tomorrow.io/v4/weather/forecast"

// TomorrowIO is the Tomorrow.io forecast source.
type TomorrowIO struct {
	client *http.Client
	apiKey string
}

// NewTomorrowIO creates the Tomorrow.io source.
func NewTomorrowIO(apiKey string, timeout time.Duration) *TomorrowIO {
	return &TomorrowIO{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

func (t *TomorrowIO) Name() string { return "tomorrowio" }

// Fetch returns Tomorrow.io's daily extreme for the target date. The API
// reports daily values keyed by local time.
func (t *TomorrowIO) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.4f,%.4f", city.Lat, city.Lon))
	params.Set("timesteps", "1d")
	params.Set("units", "imperial")
	params.Set("apikey", t.apiKey)

	var resp struct {
		Timelines struct {
			Daily []struct {
				Time   string `json:"time"`
				Values struct {
					TemperatureMax float64 `json:"temperatureMax"`
					TemperatureMin float64 `json:"temperatureMin"`
				} `json:"values"`
			} `json:"daily"`
		} `json:"timelines"`
	}
	if err := getJSON(ctx, t.client, tomorrowIOBaseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("tomorrowio: %s: %w", city.Code, err)
	}

	loc := city.Location()
	target := dateParam(date)
	for _, d := range resp.Timelines.Daily {
		ts, err := time.Parse(time.RFC3339, d.Time)
		if err != nil {
			continue
		}
		if ts.In(loc).Format("2006-01-02") != target {
			continue
		}
		temp := d.Values.TemperatureMax
		if kind == domain.MarketTypeLow {
			temp = d.Values.TemperatureMin
		}
		return []domain.ForecastSample{{
			Source:     t.Name(),
			TempF:      temp,
			ObservedAt: time.Now(),
		}}, nil
	}

	return nil, fmt.Errorf("tomorrowio: no value for %s on %s: %w", city.Code, target, domain.ErrNoForecasts)
}
