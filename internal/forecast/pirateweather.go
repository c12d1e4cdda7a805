package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const pirateWeatherBaseURL = "https://api.pirateweather.net/forecast"

// PirateWeather is the Pirate Weather forecast source (Dark Sky compatible).
type PirateWeather struct {
	client *http.Client
	apiKey string
}

// NewPirateWeather creates the Pirate Weather source.
func NewPirateWeather(apiKey string, timeout time.Duration) *PirateWeather {
	return &PirateWeather{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

func (p *PirateWeather) Name() string { return "pirate_weather" }

// Fetch returns the daily extreme for the target date from the 7-day daily
// block.
func (p *PirateWeather) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	u := fmt.Sprintf("%s/%s/%.4f,%.4f?units=us&exclude=minutely,hourly,alerts",
		pirateWeatherBaseURL, url.PathEscape(p.apiKey), city.Lat, city.Lon)

	var resp struct {
		Daily struct {
			Data []struct {
				Time            int64   `json:"time"` // unix, local midnight
				TemperatureHigh float64 `json:"temperatureHigh"`
				TemperatureLow  float64 `json:"temperatureLow"`
			} `json:"data"`
		} `json:"daily"`
	}
	if err := getJSON(ctx, p.client, u, &resp); err != nil {
		return nil, fmt.Errorf("pirate_weather: %s: %w", city.Code, err)
	}

	loc := city.Location()
	target := dateParam(date)
	for _, d := range resp.Daily.Data {
		if time.Unix(d.Time, 0).In(loc).Format("2006-01-02") != target {
			continue
		}
		temp := d.TemperatureHigh
		if kind == domain.MarketTypeLow {
			temp = d.TemperatureLow
		}
		return []domain.ForecastSample{{
			Source:     p.Name(),
			TempF:      temp,
			ObservedAt: time.Now(),
		}}, nil
	}

	return nil, fmt.Errorf("pirate_weather: no value for %s on %s: %w", city.Code, target, domain.ErrNoForecasts)
}
