package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MarketStatus represents the lifecycle state of an exchange market.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// MarketType distinguishes daily-high from daily-low temperature markets.
type MarketType string

const (
	MarketTypeHigh MarketType = "high"
	MarketTypeLow  MarketType = "low"
)

// Market is the metadata for a single temperature contract.
type Market struct {
	Ticker       string
	SeriesTicker string
	Title        string
	Subtitle     string
	Status       MarketStatus
	Volume       int64
	OpenInterest int64
	YesBid       int64
	YesAsk       int64
	NoBid        int64
	NoAsk        int64
	StrikeType   string // "greater", "less", "between"
	FloorStrike  float64
	CapStrike    float64
	CloseTime    time.Time
}

// Tradeable reports whether the market accepts new orders.
func (m Market) Tradeable() bool {
	return m.Status == MarketStatusOpen || m.Status == MarketStatusActive
}

// ConditionKind is the shape of a market's settlement condition.
type ConditionKind int

const (
	ConditionAbove ConditionKind = iota
	ConditionBelow
	ConditionBetween
)

// MarketCondition is the temperature condition under which YES pays out:
// either a single threshold with a direction, or a half-open range
// [Low, High). Immutable per market.
type MarketCondition struct {
	Kind      ConditionKind
	Threshold float64
	Low       float64
	High      float64
}

// IsRange reports whether the condition is a closed temperature range.
func (c MarketCondition) IsRange() bool { return c.Kind == ConditionBetween }

// Complement returns the condition under which NO pays out.
func (c MarketCondition) Complement() MarketCondition {
	switch c.Kind {
	case ConditionAbove:
		return MarketCondition{Kind: ConditionBelow, Threshold: c.Threshold}
	case ConditionBelow:
		return MarketCondition{Kind: ConditionAbove, Threshold: c.Threshold}
	default:
		// The complement of a range is not expressible as a single
		// condition; callers use 1-p instead. Return the range itself.
		return c
	}
}

// ReferenceThreshold is the single temperature used for bootstrap confidence
// intervals: the threshold itself, or the range midpoint for range markets.
func (c MarketCondition) ReferenceThreshold() float64 {
	if c.Kind == ConditionBetween {
		return (c.Low + c.High) / 2
	}
	return c.Threshold
}

func (c MarketCondition) String() string {
	switch c.Kind {
	case ConditionAbove:
		return fmt.Sprintf(">%.1f°F", c.Threshold)
	case ConditionBelow:
		return fmt.Sprintf("<%.1f°F", c.Threshold)
	default:
		return fmt.Sprintf("[%.1f,%.1f)°F", c.Low, c.High)
	}
}

// Condition derives the settlement condition from the market's strike fields,
// falling back to the title when the strike type is absent.
func (m Market) Condition() (MarketCondition, error) {
	switch m.StrikeType {
	case "greater", "greater_or_equal":
		return MarketCondition{Kind: ConditionAbove, Threshold: m.FloorStrike}, nil
	case "less", "less_or_equal":
		return MarketCondition{Kind: ConditionBelow, Threshold: m.CapStrike}, nil
	case "between":
		return MarketCondition{Kind: ConditionBetween, Low: m.FloorStrike, High: m.CapStrike}, nil
	}

	// Older markets encode the strike only in the ticker suffix
	// (T64 = threshold, B51.5 = 2° bracket centered on the value).
	ref, err := ParseTicker(m.Ticker)
	if err != nil {
		return MarketCondition{}, fmt.Errorf("domain: condition for %s: %w", m.Ticker, err)
	}
	switch ref.StrikeKind {
	case "T":
		title := strings.ToLower(m.Title)
		if strings.Contains(title, "below") || strings.Contains(title, "<") {
			return MarketCondition{Kind: ConditionBelow, Threshold: ref.Strike}, nil
		}
		return MarketCondition{Kind: ConditionAbove, Threshold: ref.Strike}, nil
	case "B":
		return MarketCondition{Kind: ConditionBetween, Low: ref.Strike - 1, High: ref.Strike + 1}, nil
	}
	return MarketCondition{}, ErrMarketNotParsed
}

// TickerRef is the decomposition of a weather market ticker, e.g.
// KXHIGHNY-26JAN28-T26 -> series KXHIGHNY, city NY, date 2026-01-28,
// strike kind T, strike 26.
type TickerRef struct {
	Series     string
	City       string
	Type       MarketType
	Date       time.Time
	StrikeKind string // "T" single threshold, "B" bracket; empty for event tickers
	Strike     float64
}

// BaseMarket returns the series+date grouping that exposure limits apply to.
// All threshold variants of one city+date share a base market.
func (r TickerRef) BaseMarket() string {
	return r.Series + "-" + strings.ToUpper(r.Date.Format("06Jan02"))
}

// seriesPrefixes are checked longest-first: KXHIGHT must win over KXHIGH for
// tickers like KXHIGHTDAL.
var seriesPrefixes = []struct {
	prefix string
	typ    MarketType
}{
	{"KXHIGHT", MarketTypeHigh},
	{"KXLOWT", MarketTypeLow},
	{"KXHIGH", MarketTypeHigh},
	{"KXLOW", MarketTypeLow},
}

// CityFromSeries extracts the city code from a series ticker
// (KXHIGHNY -> NY, KXHIGHTDAL -> DAL). Unknown series return themselves.
func CityFromSeries(series string) string {
	for _, p := range seriesPrefixes {
		if strings.HasPrefix(series, p.prefix) && len(series) > len(p.prefix) {
			return series[len(p.prefix):]
		}
	}
	return series
}

// TypeFromSeries reports whether the series is a daily-high or daily-low
// market. The second return is false for non-weather series.
func TypeFromSeries(series string) (MarketType, bool) {
	for _, p := range seriesPrefixes {
		if strings.HasPrefix(series, p.prefix) {
			return p.typ, true
		}
	}
	return "", false
}

// ParseTicker decomposes a full market ticker
// (KXHIGHNY-26JAN28-T26, KXHIGHMIA-26FEB01-B51.5) or a base market ticker
// (KXHIGHNY-26JAN28). It returns ErrMarketNotParsed for anything else.
func ParseTicker(ticker string) (TickerRef, error) {
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 {
		return TickerRef{}, ErrMarketNotParsed
	}

	series := parts[0]
	typ, ok := TypeFromSeries(series)
	if !ok {
		return TickerRef{}, ErrMarketNotParsed
	}

	date, err := parseTickerDate(parts[1])
	if err != nil {
		return TickerRef{}, err
	}

	ref := TickerRef{
		Series: series,
		City:   CityFromSeries(series),
		Type:   typ,
		Date:   date,
	}

	if len(parts) >= 3 && len(parts[2]) >= 2 {
		kind := parts[2][:1]
		if kind == "T" || kind == "B" {
			strike, err := strconv.ParseFloat(parts[2][1:], 64)
			if err != nil {
				return TickerRef{}, ErrMarketNotParsed
			}
			ref.StrikeKind = kind
			ref.Strike = strike
		}
	}
	return ref, nil
}

var tickerMonths = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// parseTickerDate parses the YYMMMDD date segment (26JAN28 = 2026-01-28).
func parseTickerDate(s string) (time.Time, error) {
	if len(s) != 7 {
		return time.Time{}, ErrMarketNotParsed
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, ErrMarketNotParsed
	}
	month, ok := tickerMonths[strings.ToUpper(s[2:5])]
	if !ok {
		return time.Time{}, ErrMarketNotParsed
	}
	day, err := strconv.Atoi(s[5:])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, ErrMarketNotParsed
	}
	return time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// BaseMarketOf returns the base market for any ticker, or the ticker itself
// when it cannot be decomposed.
func BaseMarketOf(ticker string) string {
	parts := strings.Split(ticker, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return ticker
}
