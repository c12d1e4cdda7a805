// Package forecast fetches temperature forecasts from multiple providers and
// aggregates them into per-market ensembles.
package forecast

import (
	"fmt"
	"time"
)

// City holds the geographic metadata needed to query forecast providers and
// to reason about local time. Station is the NWS observation station whose
// climate report settles the market.
type City struct {
	Code     string
	Name     string
	Lat      float64
	Lon      float64
	Timezone string
	Station  string
}

// Location resolves the city's time zone, falling back to UTC.
func (c City) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// cities maps the ticker city code to its metadata. Coordinates are the
// settlement stations, not city centers; settlement follows the station's
// climate report.
var cities = map[string]City{
	"NY":   {Code: "NY", Name: "New York", Lat: 40.7794, Lon: -73.9692, Timezone: "America/New_York", Station: "KNYC"},
	"CHI":  {Code: "CHI", Name: "Chicago", Lat: 41.9602, Lon: -87.9316, Timezone: "America/Chicago", Station: "KMDW"},
	"MIA":  {Code: "MIA", Name: "Miami", Lat: 25.7905, Lon: -80.3164, Timezone: "America/New_York", Station: "KMIA"},
	"AUS":  {Code: "AUS", Name: "Austin", Lat: 30.1833, Lon: -97.6799, Timezone: "America/Chicago", Station: "KAUS"},
	"LAX":  {Code: "LAX", Name: "Los Angeles", Lat: 33.9382, Lon: -118.3866, Timezone: "America/Los_Angeles", Station: "KLAX"},
	"DEN":  {Code: "DEN", Name: "Denver", Lat: 39.8466, Lon: -104.6562, Timezone: "America/Denver", Station: "KDEN"},
	"PHIL": {Code: "PHIL", Name: "Philadelphia", Lat: 39.8683, Lon: -75.2311, Timezone: "America/New_York", Station: "KPHL"},
	"DAL":  {Code: "DAL", Name: "Dallas", Lat: 32.8978, Lon: -97.0189, Timezone: "America/Chicago", Station: "KDFW"},
	"BOS":  {Code: "BOS", Name: "Boston", Lat: 42.3606, Lon: -71.0097, Timezone: "America/New_York", Station: "KBOS"},
	"ATL":  {Code: "ATL", Name: "Atlanta", Lat: 33.6301, Lon: -84.4418, Timezone: "America/New_York", Station: "KATL"},
	"HOU":  {Code: "HOU", Name: "Houston", Lat: 29.9844, Lon: -95.3414, Timezone: "America/Chicago", Station: "KIAH"},
	"SEA":  {Code: "SEA", Name: "Seattle", Lat: 47.4444, Lon: -122.3139, Timezone: "America/Los_Angeles", Station: "KSEA"},
	"PHX":  {Code: "PHX", Name: "Phoenix", Lat: 33.4278, Lon: -112.0037, Timezone: "America/Phoenix", Station: "KPHX"},
	"MIN":  {Code: "MIN", Name: "Minneapolis", Lat: 44.8831, Lon: -93.2289, Timezone: "America/Chicago", Station: "KMSP"},
	"DC":   {Code: "DC", Name: "Washington DC", Lat: 38.8512, Lon: -77.0402, Timezone: "America/New_York", Station: "KDCA"},
	"OKC":  {Code: "OKC", Name: "Oklahoma City", Lat: 35.3886, Lon: -97.6003, Timezone: "America/Chicago", Station: "KOKC"},
	"SFO":  {Code: "SFO", Name: "San Francisco", Lat: 37.6197, Lon: -122.3647, Timezone: "America/Los_Angeles", Station: "KSFO"},
}

// LookupCity resolves a ticker city code.
func LookupCity(code string) (City, error) {
	c, ok := cities[code]
	if !ok {
		return City{}, fmt.Errorf("forecast: unknown city code %q", code)
	}
	return c, nil
}

// Cities returns every known city code.
func Cities() []string {
	out := make([]string, 0, len(cities))
	for code := range cities {
		out = append(out, code)
	}
	return out
}
