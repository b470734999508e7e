// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; only secrets must be
// provided in production.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Addr          string
	PublicBaseURL string

	// DatabaseURL selects the backing store: empty means the in-memory
	// store, anything else is a postgres DSN.
	DatabaseURL string
	TxTimeout   time.Duration

	RedisURL string
	CardTTL  time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	// AdminHandles bootstrap the admin role: logins with these handles get
	// an admin claim in their token.
	AdminHandles []string

	InviteTTL       time.Duration
	FingerprintSalt string
	NotifierBuffer  int
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Config {
	return Config{
		Addr:          envDefault("MEDIGRAPH_ADDR", ":8080"),
		PublicBaseURL: envDefault("PUBLIC_BASE_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		TxTimeout:   envDuration("TX_TIMEOUT", 5*time.Second),

		RedisURL: os.Getenv("REDIS_URL"),
		CardTTL:  envDuration("CARD_CACHE_TTL", 5*time.Minute),

		KafkaBrokers: envList("KAFKA_BROKERS"),
		KafkaTopic:   envDefault("KAFKA_TOPIC", "medigraph.notifications"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envInt("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envDefault("SMTP_FROM", "no-reply@medigraph.local"),

		// Development default; must be overridden in production.
		JWTSigningKey: envDefault("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envDefault("JWT_ISSUER", "medigraph"),
		TokenTTL:      envDuration("TOKEN_TTL", 24*time.Hour),

		AdminHandles: envList("ADMIN_HANDLES"),

		InviteTTL:       envDuration("INVITE_TTL", 30*24*time.Hour),
		FingerprintSalt: envDefault("FINGERPRINT_SALT", "dev-fingerprint-salt"),
		NotifierBuffer:  envInt("NOTIFIER_BUFFER", 256),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
