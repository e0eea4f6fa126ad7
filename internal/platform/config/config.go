package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment. Defaults
// match the reference deployment so a bare process comes up against mainnet.
type Config struct {
	Addr        string
	Environment string

	AllowedOrigins []string

	// Vision model endpoint used for document verification.
	VisionAPIURL  string
	VisionAPIKey  string
	VisionModel   string
	VisionTimeout time.Duration

	// Chain settings for the registration contract.
	ChainLCDURL          string
	ChainID              string
	RegistrationContract string
	RegistrationCodeHash string
	WalletKeyFile        string

	// Analytics persistence and snapshot cadence.
	AnalyticsFile    string
	SnapshotInterval time.Duration

	// Optional backends. Empty means disabled.
	RedisURL     string
	PostgresURL  string
	KafkaBrokers []string
	KafkaTopic   string

	// AdminJWTSecret guards admin routes. Empty disables them.
	AdminJWTSecret string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	env := getenv("ERTHID_ENV", "production")

	origins := splitList(os.Getenv("ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = []string{"https://erth.network"}
		if env == "development" {
			origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
		}
	}

	return Config{
		Addr:        getenv("ERTHID_ADDR", ":5000"),
		Environment: env,

		AllowedOrigins: origins,

		VisionAPIURL:  getenv("SECRET_AI_API_URL", "https://secretai1.scrtlabs.com/v1/chat"),
		VisionAPIKey:  getenv("SECRET_AI_API_KEY", "N/A"),
		VisionModel:   getenv("SECRET_AI_MODEL", "llama3.2-vision"),
		VisionTimeout: getduration("SECRET_AI_TIMEOUT", 5*time.Second),

		ChainLCDURL:          getenv("SECRET_NETWORK_LCD", "https://lcd.erth.network"),
		ChainID:              getenv("SECRET_NETWORK_CHAIN_ID", "secret-4"),
		RegistrationContract: getenv("REGISTRATION_CONTRACT", "secret12q72eas34u8fyg68k6wnerk2nd6l5gaqppld6p"),
		RegistrationCodeHash: getenv("REGISTRATION_HASH", "04bd5177bad4c7846e97a9e3d345cf9e3e7fca5969f90ac20f3a5afc5b471cd5"),
		WalletKeyFile:        getenv("WALLET_KEY_FILE", "WALLET_KEY.txt"),

		AnalyticsFile:    getenv("ANALYTICS_FILE", "data/analytics.json"),
		SnapshotInterval: getduration("SNAPSHOT_INTERVAL", time.Hour),

		RedisURL:     os.Getenv("REDIS_URL"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "erthid.registration.events"),

		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Plain integers are treated as seconds for parity with older deployments.
	if d, err := time.ParseDuration(v + "s"); err == nil {
		return d
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
