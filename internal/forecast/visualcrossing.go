package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const visualCrossingBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// VisualCrossing is the Visual Crossing timeline forecast source.
type VisualCrossing struct {
	client *http.Client
	apiKey string
}

// NewVisualCrossing creates the Visual Crossing source.
func NewVisualCrossing(apiKey string, timeout time.Duration) *VisualCrossing {
	return &VisualCrossing{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

func (v *VisualCrossing) Name() string { return "visual_crossing" }

// Fetch queries the timeline endpoint for exactly the target date.
func (v *VisualCrossing) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	params := url.Values{}
	params.Set("unitGroup", "us")
	params.Set("include", "days")
	params.Set("elements", "datetime,tempmax,tempmin")
	params.Set("key", v.apiKey)

	u := fmt.Sprintf("%s/%.4f,%.4f/%s?%s",
		visualCrossingBaseURL, city.Lat, city.Lon, dateParam(date), params.Encode())

	var resp struct {
		Days []struct {
			Datetime string  `json:"datetime"`
			TempMax  float64 `json:"tempmax"`
			TempMin  float64 `json:"tempmin"`
		} `json:"days"`
	}
	if err := getJSON(ctx, v.client, u, &resp); err != nil {
		return nil, fmt.Errorf("visual_crossing: %s: %w", city.Code, err)
	}

	if len(resp.Days) == 0 {
		return nil, fmt.Errorf("visual_crossing: no value for %s on %s: %w",
			city.Code, dateParam(date), domain.ErrNoForecasts)
	}

	temp := resp.Days[0].TempMax
	if kind == domain.MarketTypeLow {
		temp = resp.Days[0].TempMin
	}
	return []domain.ForecastSample{{
		Source:     v.Name(),
		TempF:      temp,
		ObservedAt: time.Now(),
	}}, nil
}
