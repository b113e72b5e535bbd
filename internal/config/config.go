package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	ServerAddress  string
	DatabaseURL    string
	MigrationsPath string
	StoreDriver    string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string

	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string
	UploadDir       string

	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	QuoteRecipient string

	PlayerShape string
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// SMTPConfigured reports whether quote emails can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && c.QuoteRecipient != ""
}

// Load reads configuration from environment variables, after loading a
// .env file when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[config] could not read .env")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	smtpPort, err := strconv.Atoi(get("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}

	cfg := &Config{
		Environment:    get("APP_ENV", "development"),
		ServerAddress:  get("SERVER_ADDRESS", ":8080"),
		DatabaseURL:    get("DATABASE_URL", ""),
		MigrationsPath: get("MIGRATIONS_PATH", "./migrations"),
		StoreDriver:    strings.ToLower(get("STORE_DRIVER", DriverPostgres)),

		RedisAddress:  get("REDIS_ADDRESS", ""),
		RedisUsername: get("REDIS_USERNAME", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),

		MQTTBrokerURL: get("MQTT_BROKER_URL", ""),
		MQTTClientID:  get("MQTT_CLIENT_ID", "marquee-server"),

		UseSpaces:       get("USE_SPACES", "false") == "true",
		SpacesEndpoint:  get("SPACES_ENDPOINT", ""),
		SpacesRegion:    get("SPACES_REGION", ""),
		SpacesBucket:    get("SPACES_BUCKET", ""),
		SpacesCDNURL:    get("SPACES_CDN_URL", ""),
		SpacesAccessKey: get("SPACES_ACCESS_KEY", ""),
		SpacesSecretKey: get("SPACES_SECRET_KEY", ""),
		UploadDir:       get("UPLOAD_DIR", "./uploads"),

		SMTPHost:       get("SMTP_HOST", ""),
		SMTPPort:       smtpPort,
		SMTPUsername:   get("SMTP_USERNAME", ""),
		SMTPPassword:   get("SMTP_PASSWORD", ""),
		SMTPFrom:       get("SMTP_FROM", ""),
		QuoteRecipient: get("QUOTE_RECIPIENT", ""),

		PlayerShape: strings.ToLower(get("PLAYER_SHAPE", "strict")),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}

	switch cfg.PlayerShape {
	case "nested", "flat", "strict":
	default:
		return nil, fmt.Errorf("PLAYER_SHAPE must be nested, flat or strict, got %q", cfg.PlayerShape)
	}

	if cfg.UseSpaces && (cfg.SpacesBucket == "" || cfg.SpacesEndpoint == "") {
		return nil, fmt.Errorf("SPACES_ENDPOINT and SPACES_BUCKET are required when USE_SPACES=true")
	}

	return cfg, nil
}
