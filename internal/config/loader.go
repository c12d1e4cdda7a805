package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the configuration from the given TOML path, applies environment
// overrides and validates the result. A missing file is not an error; the
// defaults plus environment are used instead.
func Load(path string) (Config, error) {
	// Best-effort .env load for local development; ignore absence.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from WEATHERBOT_* environment variables.
// Secrets are expected to arrive this way rather than in the TOML file.
func applyEnv(c *Config) {
	setStr("WEATHERBOT_MODE", &c.Mode)
	setStr("WEATHERBOT_LOG_LEVEL", &c.LogLevel)

	setStr("WEATHERBOT_KALSHI_API_KEY_ID", &c.Kalshi.ApiKeyID)
	setStr("WEATHERBOT_KALSHI_PRIVATE_KEY_PATH", &c.Kalshi.RsaPrivateKeyPath)
	setStr("WEATHERBOT_KALSHI_BASE_URL", &c.Kalshi.BaseURL)
	setStr("WEATHERBOT_KALSHI_WS_URL", &c.Kalshi.WsURL)
	setFloat("WEATHERBOT_KALSHI_RPS", &c.Kalshi.RequestsPerSecond)

	setStr("WEATHERBOT_POSTGRES_DSN", &c.Postgres.DSN)
	setStr("WEATHERBOT_POSTGRES_HOST", &c.Postgres.Host)
	setInt("WEATHERBOT_POSTGRES_PORT", &c.Postgres.Port)
	setStr("WEATHERBOT_POSTGRES_DATABASE", &c.Postgres.Database)
	setStr("WEATHERBOT_POSTGRES_USER", &c.Postgres.User)
	setStr("WEATHERBOT_POSTGRES_PASSWORD", &c.Postgres.Password)

	setStr("WEATHERBOT_REDIS_ADDR", &c.Redis.Addr)
	setStr("WEATHERBOT_REDIS_PASSWORD", &c.Redis.Password)
	setInt("WEATHERBOT_REDIS_DB", &c.Redis.DB)
	setBool("WEATHERBOT_REDIS_TLS", &c.Redis.TLSEnabled)

	setBool("WEATHERBOT_S3_ENABLED", &c.S3.Enabled)
	setStr("WEATHERBOT_S3_ENDPOINT", &c.S3.Endpoint)
	setStr("WEATHERBOT_S3_REGION", &c.S3.Region)
	setStr("WEATHERBOT_S3_BUCKET", &c.S3.Bucket)
	setStr("WEATHERBOT_S3_ACCESS_KEY", &c.S3.AccessKey)
	setStr("WEATHERBOT_S3_SECRET_KEY", &c.S3.SecretKey)
	setStr("WEATHERBOT_S3_KEY_PREFIX", &c.S3.KeyPrefix)

	setStr("WEATHERBOT_TOMORROWIO_API_KEY", &c.Forecast.TomorrowIOKey)
	setStr("WEATHERBOT_PIRATE_WEATHER_API_KEY", &c.Forecast.PirateWeatherKey)
	setStr("WEATHERBOT_VISUAL_CROSSING_API_KEY", &c.Forecast.VisualCrossingKey)

	setFloat("WEATHERBOT_MIN_EDGE", &c.Strategy.MinEdge)
	setFloat("WEATHERBOT_MIN_EV", &c.Strategy.MinEV)
	setBool("WEATHERBOT_LONGSHOT_ENABLED", &c.Strategy.LongshotEnabled)

	setI64("WEATHERBOT_MAX_CONTRACTS_PER_MARKET", &c.Exposure.MaxContractsPerMarket)
	setFloat("WEATHERBOT_MAX_DOLLARS_PER_MARKET", &c.Exposure.MaxDollarsPerMarket)

	setStr("WEATHERBOT_TELEGRAM_TOKEN", &c.Notify.TelegramToken)
	setStr("WEATHERBOT_TELEGRAM_CHAT_ID", &c.Notify.TelegramChatID)
	setStr("WEATHERBOT_DISCORD_WEBHOOK_URL", &c.Notify.DiscordWebhookURL)

	setBool("WEATHERBOT_METRICS_ENABLED", &c.Metrics.Enabled)
	setInt("WEATHERBOT_METRICS_PORT", &c.Metrics.Port)

	setBool("WEATHERBOT_PAPER_TRADING", &c.Scanner.PaperTrading)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setI64(key string, dst *int64) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}

// Redacted returns a copy of the config with secrets masked, suitable for
// startup logging.
func (c Config) Redacted() Config {
	out := c
	out.Kalshi.ApiKeyID = mask(c.Kalshi.ApiKeyID)
	out.Postgres.Password = mask(c.Postgres.Password)
	out.Postgres.DSN = maskDSN(c.Postgres.DSN)
	out.Redis.Password = mask(c.Redis.Password)
	out.S3.AccessKey = mask(c.S3.AccessKey)
	out.S3.SecretKey = mask(c.S3.SecretKey)
	out.Forecast.TomorrowIOKey = mask(c.Forecast.TomorrowIOKey)
	out.Forecast.PirateWeatherKey = mask(c.Forecast.PirateWeatherKey)
	out.Forecast.VisualCrossingKey = mask(c.Forecast.VisualCrossingKey)
	out.Notify.TelegramToken = mask(c.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = mask(c.Notify.DiscordWebhookURL)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return "****"
}
