package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	HTTPAddr      string
	DatabaseURL   string
	JWTSecret     string
	GatewaySecret string
	TelegramToken string
	AdminTGIDs    map[int64]struct{}
	Regions       []string
	CryptoPay     CryptoPayConfig
	CrystalPay    CrystalPayConfig
	Rates         RatesConfig
	Worker        WorkerConfig
	Logging       LoggingConfig
}

type CryptoPayConfig struct {
	BaseURL string
	Token   string
	Asset   string
}

type CrystalPayConfig struct {
	BaseURL string
	Login   string
	Secret  string
}

// RatesConfig holds the fixed conversion rates in whole units per
// reference dollar.
type RatesConfig struct {
	RubPerUSD   int64
	StarsPerUSD int64
}

type WorkerConfig struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getenv("APP_ENV", "dev"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		GatewaySecret: os.Getenv("GATEWAY_SECRET"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminTGIDs:    parseIDSet(os.Getenv("ADMIN_TELEGRAM_IDS")),
		Regions:       parseList(getenv("VPN_REGIONS", "de,ch,nl,fi")),
		CryptoPay: CryptoPayConfig{
			BaseURL: os.Getenv("CRYPTOPAY_BASE_URL"),
			Token:   os.Getenv("CRYPTOPAY_TOKEN"),
			Asset:   getenv("CRYPTOPAY_ASSET", "USDT"),
		},
		CrystalPay: CrystalPayConfig{
			BaseURL: os.Getenv("CRYSTALPAY_BASE_URL"),
			Login:   os.Getenv("CRYSTALPAY_LOGIN"),
			Secret:  os.Getenv("CRYSTALPAY_SECRET"),
		},
		Rates: RatesConfig{
			RubPerUSD:   getenvInt64("RUB_PER_USD", 100),
			StarsPerUSD: getenvInt64("STARS_PER_USD", 70),
		},
		Worker: WorkerConfig{
			Interval:  getenvDuration("WORKER_INTERVAL", 30*time.Second),
			Grace:     getenvDuration("WORKER_GRACE", time.Minute),
			BatchSize: int(getenvInt64("WORKER_BATCH_SIZE", 100)),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GatewaySecret == "" {
		return nil, fmt.Errorf("GATEWAY_SECRET is required")
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Rates.RubPerUSD <= 0 || cfg.Rates.StarsPerUSD <= 0 {
		return nil, fmt.Errorf("conversion rates must be positive")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}

func parseIDSet(val string) map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func parseList(val string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
