package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const nwsBaseURL = "https://api.weather.gov"

// NWS is the National Weather Service source. It carries extra weight in the
// ensemble because settlement follows the NWS climate report, and it also
// serves the observed running extreme used for late-day suppression.
type NWS struct {
	client *http.Client

	// forecastURLs caches the gridpoint forecast URL per city; the
	// points lookup is stable for a coordinate.
	mu           sync.Mutex
	forecastURLs map[string]string
}

// NewNWS creates the NWS source.
func NewNWS(timeout time.Duration) *NWS {
	return &NWS{
		client:       &http.Client{Timeout: timeout},
		forecastURLs: make(map[string]string),
	}
}

func (n *NWS) Name() string { return "nws" }

type nwsPointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type nwsForecastResponse struct {
	Properties struct {
		Periods []struct {
			StartTime   string `json:"startTime"`
			IsDaytime   bool   `json:"isDaytime"`
			Temperature float64 `json:"temperature"`
			TemperatureUnit string `json:"temperatureUnit"`
		} `json:"periods"`
	} `json:"properties"`
}

// Fetch returns the NWS forecast for the city's daily extreme. Highs come
// from the daytime period of the target date, lows from the overnight period
// leading into it.
func (n *NWS) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	fURL, err := n.forecastURL(ctx, city)
	if err != nil {
		return nil, err
	}

	var resp nwsForecastResponse
	if err := getJSON(ctx, n.client, fURL, &resp); err != nil {
		return nil, fmt.Errorf("nws: forecast %s: %w", city.Code, err)
	}

	loc := city.Location()
	target := date.Format("2006-01-02")

	for _, p := range resp.Properties.Periods {
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			continue
		}
		local := start.In(loc)
		if local.Format("2006-01-02") != target {
			continue
		}
		if (kind == domain.MarketTypeHigh) != p.IsDaytime {
			continue
		}
		temp := p.Temperature
		if strings.EqualFold(p.TemperatureUnit, "C") {
			temp = temp*9/5 + 32
		}
		return []domain.ForecastSample{{
			Source:     n.Name(),
			TempF:      temp,
			ObservedAt: time.Now(),
		}}, nil
	}

	return nil, fmt.Errorf("nws: no %s period for %s on %s: %w", kind, city.Code, target, domain.ErrNoForecasts)
}

func (n *NWS) forecastURL(ctx context.Context, city City) (string, error) {
	n.mu.Lock()
	if u, ok := n.forecastURLs[city.Code]; ok {
		n.mu.Unlock()
		return u, nil
	}
	n.mu.Unlock()

	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", nwsBaseURL, city.Lat, city.Lon)
	var pts nwsPointsResponse
	if err := getJSON(ctx, n.client, pointsURL, &pts); err != nil {
		return "", fmt.Errorf("nws: points %s: %w", city.Code, err)
	}
	if pts.Properties.Forecast == "" {
		return "", fmt.Errorf("nws: points %s: empty forecast url", city.Code)
	}

	n.mu.Lock()
	n.forecastURLs[city.Code] = pts.Properties.Forecast
	n.mu.Unlock()
	return pts.Properties.Forecast, nil
}

type nwsObservationsResponse struct {
	Features []struct {
		Properties struct {
			Timestamp   string `json:"timestamp"`
			Temperature struct {
				Value *float64 `json:"value"` // celsius
			} `json:"temperature"`
		} `json:"properties"`
	} `json:"features"`
}

// ObservedExtreme returns the running observed high (or low) at the city's
// settlement station since local midnight of the given date.
func (n *NWS) ObservedExtreme(ctx context.Context, city City, date time.Time, kind domain.MarketType) (domain.Observation, error) {
	loc := city.Location()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	obsURL := fmt.Sprintf("%s/stations/%s/observations?start=%s",
		nwsBaseURL, url.PathEscape(city.Station),
		url.QueryEscape(dayStart.Format(time.RFC3339)))

	var resp nwsObservationsResponse
	if err := getJSON(ctx, n.client, obsURL, &resp); err != nil {
		return domain.Observation{}, fmt.Errorf("nws: observations %s: %w", city.Station, err)
	}

	var best domain.Observation
	found := false
	for _, f := range resp.Features {
		if f.Properties.Temperature.Value == nil {
			continue
		}
		tempF := *f.Properties.Temperature.Value*9/5 + 32
		ts, err := time.Parse(time.RFC3339, f.Properties.Timestamp)
		if err != nil {
			continue
		}
		if !found ||
			(kind == domain.MarketTypeHigh && tempF > best.TempF) ||
			(kind == domain.MarketTypeLow && tempF < best.TempF) {
			best = domain.Observation{TempF: tempF, ObservedAt: ts}
			found = true
		}
	}

	if !found {
		return domain.Observation{}, fmt.Errorf("nws: no observations for %s: %w", city.Station, domain.ErrNotFound)
	}
	return best, nil
}
