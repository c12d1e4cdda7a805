// Package config defines the top-level configuration for the weather trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WEATHERBOT_* environment
// variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Forecast ForecastConfig `toml:"forecast"`
	Strategy StrategyConfig `toml:"strategy"`
	Sizing   SizingConfig   `toml:"sizing"`
	Risk     RiskConfig     `toml:"risk"`
	Router   RouterConfig   `toml:"router"`
	Exposure ExposureConfig `toml:"exposure"`
	Exit     ExitConfig     `toml:"exit"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// duration wraps time.Duration so TOML values like "30s" or "3h" parse.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// KalshiConfig holds exchange API credentials and endpoints.
type KalshiConfig struct {
	ApiKeyID          string  `toml:"api_key_id"`
	RsaPrivateKeyPath string  `toml:"rsa_private_key_path"`
	BaseURL           string  `toml:"base_url"`
	WsURL             string  `toml:"ws_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BookCacheTTL      duration `toml:"book_cache_ttl"`
	OrdersCacheTTL    duration `toml:"orders_cache_ttl"`
}

// PostgresConfig holds database connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis; caches and locks fall back to in-process implementations.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for outcome
// archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	KeyPrefix      string `toml:"key_prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ForecastConfig controls the forecast sources and the aggregator.
type ForecastConfig struct {
	EnableNWS           bool     `toml:"enable_nws"`
	EnableOpenMeteo     bool     `toml:"enable_open_meteo"`
	EnableTomorrowIO    bool     `toml:"enable_tomorrowio"`
	EnablePirateWeather bool     `toml:"enable_pirate_weather"`
	EnableVisualCrossing bool    `toml:"enable_visual_crossing"`
	TomorrowIOKey       string   `toml:"tomorrowio_api_key"`
	PirateWeatherKey    string   `toml:"pirate_weather_api_key"`
	VisualCrossingKey   string   `toml:"visual_crossing_api_key"`
	SourceTimeout       duration `toml:"source_timeout"`
	EnsembleCacheTTL    duration `toml:"ensemble_cache_ttl"`
	// AgeHalfLifeHours is the forecast-age weight half-life.
	AgeHalfLifeHours float64 `toml:"age_half_life_hours"`
	// NWSWeight boosts NWS since the exchange settles on the NWS CLI report.
	NWSWeight     float64            `toml:"nws_weight"`
	SourceWeights map[string]float64 `toml:"source_weights"`
}

// StrategyConfig holds the entry thresholds for both operating modes.
type StrategyConfig struct {
	// Conservative mode.
	MinEdge               float64 `toml:"min_edge"`
	MinEV                 float64 `toml:"min_ev"`
	RequireHighConfidence bool    `toml:"require_high_confidence"`
	// Scaled edge: expensive contracts need more margin of safety.
	ScaledEdgeEnabled        bool    `toml:"scaled_edge_enabled"`
	ScaledEdgePriceThreshold int64   `toml:"scaled_edge_price_threshold"`
	ScaledEdgeMultiplier     float64 `toml:"scaled_edge_multiplier"`

	// Longshot mode: cheap near-certainties.
	LongshotEnabled  bool    `toml:"longshot_enabled"`
	LongshotMaxPrice int64   `toml:"longshot_max_price"`
	LongshotMinEdge  float64 `toml:"longshot_min_edge"`
	LongshotMinProb  float64 `toml:"longshot_min_prob"`

	// Forecast quality gates.
	MinForecastSources int     `toml:"min_forecast_sources"`
	MinForecastSpread  float64 `toml:"min_forecast_spread"`
	// MinDegreesFromThreshold skips coin-flip markets where the mean
	// forecast lands within this many °F of the strike. 0 disables.
	MinDegreesFromThreshold  float64 `toml:"min_degrees_from_threshold"`
	RequireForecastDirection bool    `toml:"require_forecast_direction"`

	// Range market controls (historically poor performers).
	RangeEnabled          bool    `toml:"range_enabled"`
	RangeMaxPrice         int64   `toml:"range_max_price"`
	RangeEdgeMultiplier   float64 `toml:"range_edge_multiplier"`
	RangeMaxProbability   float64 `toml:"range_max_probability"`
	RangeStdFloor         float64 `toml:"range_std_floor"`
	RangeBoundaryDistance float64 `toml:"range_boundary_distance"`

	// Probability model knobs. The 70/30 sample/historical std blend and
	// the horizon inflation constants are policy choices, preserved from
	// the live-tuned values.
	SampleStdWeight   float64 `toml:"sample_std_weight"`
	StdFloor          float64 `toml:"std_floor"`
	StdPerDay         float64 `toml:"std_per_day"`
	StdPerHour        float64 `toml:"std_per_hour"`
	BootstrapSamples  int     `toml:"bootstrap_samples"`
	FeeRate           float64 `toml:"fee_rate"`
}

// SizingConfig holds the position sizing chain parameters.
type SizingConfig struct {
	BaseSize             int64   `toml:"base_size"`
	MinOrderContracts    int64   `toml:"min_order_contracts"`
	KellyFractionConservative float64 `toml:"kelly_fraction_conservative"`
	KellyFractionLongshot     float64 `toml:"kelly_fraction_longshot"`
	KellyCap             float64 `toml:"kelly_cap"`
	ConservativeMaxMultiple int64 `toml:"conservative_max_multiple"`
	LongshotMaxMultiple     int64 `toml:"longshot_max_multiple"`

	EVProportionalEnabled  bool    `toml:"ev_proportional_enabled"`
	EVBaselineConservative float64 `toml:"ev_baseline_conservative"`
	EVBaselineLongshot     float64 `toml:"ev_baseline_longshot"`

	TimeDecayEnabled bool    `toml:"time_decay_enabled"`
	TimeDecayMin     float64 `toml:"time_decay_min"`
	HighExtremeHour  int     `toml:"high_extreme_hour"`
	LowExtremeHour   int     `toml:"low_extreme_hour"`

	LiquidityCapEnabled   bool    `toml:"liquidity_cap_enabled"`
	LiquidityCapFraction  float64 `toml:"liquidity_cap_fraction"`
	LiquidityPriceTolerance int64 `toml:"liquidity_price_tolerance"`

	FeeAwareEnabled       bool    `toml:"fee_aware_enabled"`
	FeeAwareSweetLow      int64   `toml:"fee_aware_sweet_low"`
	FeeAwareSweetHigh     int64   `toml:"fee_aware_sweet_high"`
	FeeAwareSweetMultiplier    float64 `toml:"fee_aware_sweet_multiplier"`
	FeeAwareCheapMultiplier    float64 `toml:"fee_aware_cheap_multiplier"`
	FeeAwareExpensiveMultiplier float64 `toml:"fee_aware_expensive_multiplier"`
}

// RiskConfig holds correlation-aware risk parameters.
type RiskConfig struct {
	CorrelationEnabled   bool    `toml:"correlation_enabled"`
	CorrelationThreshold float64 `toml:"correlation_threshold"`
	// MaxReduction is the largest fractional size cut applied for
	// correlated exposure (0.5 = down to half size).
	MaxReduction float64 `toml:"max_reduction"`
	// FullReductionContracts is the correlated-contract count at which
	// MaxReduction applies in full.
	FullReductionContracts int64 `toml:"full_reduction_contracts"`
}

// RouterConfig holds maker/taker routing parameters, in cents.
type RouterConfig struct {
	MaxSpreadToMake   int64   `toml:"max_spread_to_make"`
	RequoteThreshold  int64   `toml:"requote_threshold"`
	AggressiveEdge    float64 `toml:"aggressive_edge"`
	TakerFairValueGap int64   `toml:"taker_fair_value_gap"`
	SplitAbove        int64   `toml:"split_above"`
	Urgency           string  `toml:"urgency"`
}

// ExposureConfig holds hard per-base-market limits. These are the limits the
// controller enforces before every order.
type ExposureConfig struct {
	MaxContractsPerMarket int64   `toml:"max_contracts_per_market"`
	MaxDollarsPerMarket   float64 `toml:"max_dollars_per_market"`
	MaxBuyPriceCents      int64   `toml:"max_buy_price_cents"`
	MaxNoBuyPriceCents    int64   `toml:"max_no_buy_price_cents"`
	MaxDailyLossDollars   float64 `toml:"max_daily_loss_dollars"`
	LockTTL               duration `toml:"lock_ttl"`
}

// ExitConfig holds take-profit and edge-exit parameters.
type ExitConfig struct {
	Enabled          bool     `toml:"enabled"`
	TakeProfitPct    float64  `toml:"take_profit_pct"`
	MinProfitCents   int64    `toml:"min_profit_cents"`
	MinEntryCents    int64    `toml:"min_entry_cents"`
	SevereLossPct    float64  `toml:"severe_loss_pct"`
	MinDwell         duration `toml:"min_dwell"`
	StaleOrderMinAge duration `toml:"stale_order_min_age"`
}

// ScannerConfig holds the market scan loop parameters.
type ScannerConfig struct {
	Series         []string `toml:"series"`
	DisabledCities []string `toml:"disabled_cities"`
	Interval       duration `toml:"interval"`
	MinVolume      int64    `toml:"min_volume"`
	MaxDateDays    int      `toml:"max_date_days"`
	Concurrency    int      `toml:"concurrency"`
	PaperTrading   bool     `toml:"paper_trading"`
}

// NotifyConfig holds notification channel credentials and event filters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns the built-in configuration. Numeric policy values mirror
// the live-tuned production settings.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:           "https://api.elections.kalshi.com/trade-api/v2",
			WsURL:             "wss://api.elections.kalshi.com/trade-api/ws/v2",
			RequestsPerSecond: 8,
			BookCacheTTL:      duration{3 * time.Second},
			OrdersCacheTTL:    duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "weatherbot",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "weatherbot-archives",
			ForcePathStyle: true,
		},
		Forecast: ForecastConfig{
			EnableNWS:            true,
			EnableOpenMeteo:      true,
			EnableTomorrowIO:     true,
			EnablePirateWeather:  true,
			EnableVisualCrossing: true,
			SourceTimeout:        duration{10 * time.Second},
			EnsembleCacheTTL:     duration{1 * time.Hour},
			AgeHalfLifeHours:     6,
			NWSWeight:            1.5,
			SourceWeights: map[string]float64{
				"nws":             1.0,
				"open_meteo_best": 0.9,
				"open_meteo_gfs":  0.85,
				"open_meteo_ecmwf": 0.9,
				"open_meteo_icon": 0.8,
				"tomorrowio":      0.85,
				"pirate_weather":  0.8,
				"visual_crossing": 0.8,
			},
		},
		Strategy: StrategyConfig{
			MinEdge:                  8.0,
			MinEV:                    0.02,
			RequireHighConfidence:    false,
			ScaledEdgeEnabled:        true,
			ScaledEdgePriceThreshold: 35,
			ScaledEdgeMultiplier:     1.2,
			LongshotEnabled:          false,
			LongshotMaxPrice:         10,
			LongshotMinEdge:          30.0,
			LongshotMinProb:          0.50,
			MinForecastSources:       2,
			MinForecastSpread:        0.5,
			MinDegreesFromThreshold:  1.0,
			RequireForecastDirection: true,
			RangeEnabled:             false,
			RangeMaxPrice:            25,
			RangeEdgeMultiplier:      2.0,
			RangeMaxProbability:      0.40,
			RangeStdFloor:            3.0,
			RangeBoundaryDistance:    3.0,
			SampleStdWeight:          0.7,
			StdFloor:                 1.0,
			StdPerDay:                0.5,
			StdPerHour:               0.1,
			BootstrapSamples:         1000,
			FeeRate:                  0.05,
		},
		Sizing: SizingConfig{
			BaseSize:                  10,
			MinOrderContracts:         1,
			KellyFractionConservative: 0.25,
			KellyFractionLongshot:     0.5,
			KellyCap:                  0.25,
			ConservativeMaxMultiple:   2,
			LongshotMaxMultiple:       5,
			EVProportionalEnabled:     true,
			EVBaselineConservative:    0.02,
			EVBaselineLongshot:        0.05,
			TimeDecayEnabled:          true,
			TimeDecayMin:              0.5,
			HighExtremeHour:           18,
			LowExtremeHour:            6,
			LiquidityCapEnabled:       true,
			LiquidityCapFraction:      0.5,
			LiquidityPriceTolerance:   2,
			FeeAwareEnabled:           true,
			FeeAwareSweetLow:          15,
			FeeAwareSweetHigh:         40,
			FeeAwareSweetMultiplier:   1.5,
			FeeAwareCheapMultiplier:   0.5,
			FeeAwareExpensiveMultiplier: 0.75,
		},
		Risk: RiskConfig{
			CorrelationEnabled:     true,
			CorrelationThreshold:   0.5,
			MaxReduction:           0.5,
			FullReductionContracts: 10,
		},
		Router: RouterConfig{
			MaxSpreadToMake:   15,
			RequoteThreshold:  2,
			AggressiveEdge:    25.0,
			TakerFairValueGap: 3,
			SplitAbove:        3,
			Urgency:           "normal",
		},
		Exposure: ExposureConfig{
			MaxContractsPerMarket: 10,
			MaxDollarsPerMarket:   5.0,
			MaxBuyPriceCents:      55,
			MaxNoBuyPriceCents:    30,
			MaxDailyLossDollars:   10.0,
			LockTTL:               duration{15 * time.Second},
		},
		Exit: ExitConfig{
			Enabled:          true,
			TakeProfitPct:    30.0,
			MinProfitCents:   5,
			MinEntryCents:    15,
			SevereLossPct:    30.0,
			MinDwell:         duration{5 * time.Minute},
			StaleOrderMinAge: duration{5 * time.Minute},
		},
		Scanner: ScannerConfig{
			Series: []string{
				"KXHIGHNY", "KXLOWNY",
				"KXHIGHCHI", "KXLOWCHI",
				"KXHIGHMIA", "KXLOWMIA",
				"KXHIGHAUS", "KXLOWAUS",
				"KXHIGHLAX", "KXLOWLAX",
				"KXHIGHDEN", "KXLOWDEN",
				"KXHIGHPHIL", "KXLOWTPHIL",
				"KXHIGHTDAL", "KXHIGHTBOS", "KXHIGHTATL",
				"KXHIGHTHOU", "KXHIGHTSEA", "KXHIGHTPHX",
				"KXHIGHTMIN", "KXHIGHTDC", "KXHIGHTOKC", "KXHIGHTSFO",
			},
			Interval:    duration{60 * time.Second},
			MinVolume:   15,
			MaxDateDays: 1,
			Concurrency: 4,
		},
		Notify: NotifyConfig{
			Events: []string{"order_filled", "position_closed", "settlement", "error"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9100,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"paper":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsAuth := strings.ToLower(c.Mode) == "trade"
	if needsAuth {
		if c.Kalshi.ApiKeyID == "" {
			errs = append(errs, "kalshi: api_key_id is required for trade mode")
		}
		if c.Kalshi.RsaPrivateKeyPath == "" {
			errs = append(errs, "kalshi: rsa_private_key_path is required for trade mode")
		}
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.RequestsPerSecond <= 0 {
		errs = append(errs, "kalshi: requests_per_second must be positive")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port %d out of range", c.Postgres.Port))
		}
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	if c.Strategy.MinEdge < 0 {
		errs = append(errs, "strategy: min_edge must not be negative")
	}
	if c.Strategy.SampleStdWeight < 0 || c.Strategy.SampleStdWeight > 1 {
		errs = append(errs, "strategy: sample_std_weight must be in [0, 1]")
	}
	if c.Strategy.FeeRate < 0 || c.Strategy.FeeRate >= 1 {
		errs = append(errs, "strategy: fee_rate must be in [0, 1)")
	}
	if c.Strategy.BootstrapSamples < 100 {
		errs = append(errs, "strategy: bootstrap_samples must be at least 100")
	}

	if c.Sizing.KellyCap <= 0 || c.Sizing.KellyCap > 1 {
		errs = append(errs, "sizing: kelly_cap must be in (0, 1]")
	}
	if c.Sizing.MinOrderContracts < 1 {
		errs = append(errs, "sizing: min_order_contracts must be at least 1")
	}
	if c.Sizing.TimeDecayMin <= 0 || c.Sizing.TimeDecayMin > 1 {
		errs = append(errs, "sizing: time_decay_min must be in (0, 1]")
	}

	if c.Risk.CorrelationThreshold < 0 || c.Risk.CorrelationThreshold > 1 {
		errs = append(errs, "risk: correlation_threshold must be in [0, 1]")
	}
	if c.Risk.MaxReduction < 0 || c.Risk.MaxReduction > 1 {
		errs = append(errs, "risk: max_reduction must be in [0, 1]")
	}

	switch c.Router.Urgency {
	case "low", "normal", "high":
	default:
		errs = append(errs, fmt.Sprintf("router: urgency %q invalid (valid: low, normal, high)", c.Router.Urgency))
	}

	if c.Exposure.MaxContractsPerMarket <= 0 {
		errs = append(errs, "exposure: max_contracts_per_market must be positive")
	}
	if c.Exposure.MaxDollarsPerMarket <= 0 {
		errs = append(errs, "exposure: max_dollars_per_market must be positive")
	}
	if c.Exposure.MaxBuyPriceCents <= 0 || c.Exposure.MaxBuyPriceCents >= 100 {
		errs = append(errs, "exposure: max_buy_price_cents must be in (0, 100)")
	}

	if len(c.Scanner.Series) == 0 {
		errs = append(errs, "scanner: at least one series must be configured")
	}
	if c.Scanner.Concurrency < 1 {
		errs = append(errs, "scanner: concurrency must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DisabledCity reports whether the city code is hard-disabled.
func (c *Config) DisabledCity(city string) bool {
	for _, d := range c.Scanner.DisabledCities {
		if strings.EqualFold(d, city) {
			return true
		}
	}
	return false
}
