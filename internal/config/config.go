// Package config reads service settings from the environment. A .env file in
// the working directory, when present, is loaded first and never overrides
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	NotifyDirect = "direct"
	NotifyQueue  = "queue"
)

type Config struct {
	Port          string
	MetricsPort   string
	PostgresURL   string
	OTLPEndpoint  string
	SessionSecret string
	SessionMaxAge int
	CookieSecure  bool
	CORSOrigins   []string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	NotifyMode string
	BotAPIURL  string
	BotToken   string
	BotChatIDs []string

	AttachmentsDir string
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	DigestHour   int
	DigestMinute int
	Timezone     *time.Location

	CacheSize int
	CacheTTL  time.Duration
}

// Load reads the environment. It fails on malformed values only; each binary
// checks the settings it requires.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		MetricsPort:   getEnv("METRICS_PORT", "9464"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		CORSOrigins:   getEnvList("CORS_ORIGINS"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "notification.requested"),
		KafkaGroup:   getEnv("KAFKA_GROUP", "notifier"),

		NotifyMode: getEnv("NOTIFY_MODE", NotifyDirect),
		BotAPIURL:  getEnv("BOT_API_URL", "https://api.telegram.org"),
		BotToken:   os.Getenv("BOT_TOKEN"),
		BotChatIDs: getEnvList("BOT_CHAT_IDS"),

		AttachmentsDir: getEnv("ATTACHMENTS_DIR", "data/receipts"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Prefix:       getEnv("S3_PREFIX", "receipts/"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:    os.Getenv("S3_SECRET_ACCESS_KEY"),
	}

	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.SessionMaxAge, err = getEnvInt("SESSION_MAX_AGE", 30*24*3600)
	collect(err)
	cfg.CookieSecure, err = getEnvBool("COOKIE_SECURE", false)
	collect(err)
	cfg.DigestHour, err = getEnvInt("DIGEST_HOUR", 9)
	collect(err)
	cfg.DigestMinute, err = getEnvInt("DIGEST_MINUTE", 0)
	collect(err)
	cfg.CacheSize, err = getEnvInt("CACHE_SIZE", 512)
	collect(err)
	cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", time.Minute)
	collect(err)

	cfg.Timezone, err = time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		collect(fmt.Errorf("TIMEZONE: %w", err))
	}

	switch cfg.NotifyMode {
	case NotifyDirect, NotifyQueue:
	default:
		collect(fmt.Errorf("NOTIFY_MODE: unknown mode %q", cfg.NotifyMode))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
