// Package config loads service settings from the environment.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port   string
	DBPath string

	PriceInterval      time.Duration
	PriceRadius        float64
	PriceSourceURL     string
	PriceSourceTimeout time.Duration
	PriceSeed          int64

	CheckoutBaseURL  string
	CheckoutAppKey   string
	CheckoutAppToken string
	CheckoutTimeout  time.Duration
	SyncToleranceBps int64

	RabbitURL      string
	RabbitExchange string

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

// Load reads an optional .env file, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Str("component", "config").Err(err).Msg("could not read .env")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "pricer.db"),

		PriceInterval:      getDuration("PRICE_INTERVAL", 10*time.Second),
		PriceRadius:        getFloat("PRICE_RADIUS", 0.05),
		PriceSourceURL:     getEnv("PRICE_SOURCE_URL", ""),
		PriceSourceTimeout: getDuration("PRICE_SOURCE_TIMEOUT", 3*time.Second),
		PriceSeed:          getInt("PRICE_SEED", 0),

		CheckoutBaseURL:  getEnv("CHECKOUT_BASE_URL", "http://localhost:3000"),
		CheckoutAppKey:   getEnv("CHECKOUT_APP_KEY", ""),
		CheckoutAppToken: getEnv("CHECKOUT_APP_TOKEN", ""),
		CheckoutTimeout:  getDuration("CHECKOUT_TIMEOUT", 5*time.Second),
		SyncToleranceBps: getInt("SYNC_TOLERANCE_BPS", 0),

		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "pricing_events"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("component", "config").Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func getFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		log.Warn().Str("component", "config").Str("key", k).Str("value", v).Msg("invalid number, using default")
		return def
	}
	return f
}

func getInt(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		log.Warn().Str("component", "config").Str("key", k).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
