package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

const openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// openMeteoModels maps the provider's model parameter to the sample source
// name used for weighting.
var openMeteoModels = []struct {
	param string
	name  string
}{
	{"best_match", "open_meteo_best"},
	{"gfs_seamless", "open_meteo_gfs"},
	{"ecmwf_ifs025", "open_meteo_ecmwf"},
	{"icon_seamless", "open_meteo_icon"},
}

// OpenMeteo queries several numerical models in a single request, yielding
// one ensemble sample per model.
type OpenMeteo struct {
	client *http.Client
}

// NewOpenMeteo creates the Open-Meteo source.
func NewOpenMeteo(timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{client: &http.Client{Timeout: timeout}}
}

func (o *OpenMeteo) Name() string { return "open_meteo" }

// Fetch returns one sample per model that produced a value for the target
// date.
func (o *OpenMeteo) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	variable := "temperature_2m_max"
	if kind == domain.MarketTypeLow {
		variable = "temperature_2m_min"
	}

	models := ""
	for i, m := range openMeteoModels {
		if i > 0 {
			models += ","
		}
		models += m.param
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", city.Lat))
	params.Set("longitude", fmt.Sprintf("%.4f", city.Lon))
	params.Set("daily", variable)
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", city.Timezone)
	params.Set("models", models)
	params.Set("start_date", dateParam(date))
	params.Set("end_date", dateParam(date))

	var resp struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := getJSON(ctx, o.client, openMeteoBaseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("open_meteo: %s: %w", city.Code, err)
	}

	now := time.Now()
	var samples []domain.ForecastSample
	for _, m := range openMeteoModels {
		// With multiple models the arrays carry a model suffix; a single
		// model responds with the bare variable name.
		key := variable + "_" + m.param
		raw, ok := resp.Daily[key]
		if !ok {
			raw, ok = resp.Daily[variable]
			if !ok || len(samples) > 0 {
				continue
			}
		}
		var vals []*float64
		if err := json.Unmarshal(raw, &vals); err != nil || len(vals) == 0 || vals[0] == nil {
			continue
		}
		samples = append(samples, domain.ForecastSample{
			Source:     m.name,
			TempF:      *vals[0],
			ObservedAt: now,
		})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("open_meteo: no model values for %s on %s: %w",
			city.Code, dateParam(date), domain.ErrNoForecasts)
	}
	return samples, nil
}
