package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type CloudinaryOptions struct {
	CloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `env:"CLOUDINARY_API_KEY"`
	APISecret string `env:"CLOUDINARY_API_SECRET"`
	Folder    string `env:"CLOUDINARY_FOLDER" envDefault:"eventflow/documents"`
}

func (c CloudinaryOptions) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	SupabaseURL        string `env:"SUPABASE_URL,required"`
	SupabaseAnonKey    string `env:"SUPABASE_URL_ANON_KEY,required"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`

	MongoDBURI      string `env:"MONGODB_URI,required"`
	MongoDBPassword string `env:"MONGODB_PASSWORD"`
	MongoDBDatabase string `env:"MONGODB_DATABASE" envDefault:"eventflow"`

	RedisURL          string `env:"REDIS_URL"`
	NotificationQueue string `env:"NOTIFICATION_QUEUE" envDefault:"eventflow:notifications"`

	Cloudinary CloudinaryOptions

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	CampusTimezone     string        `env:"CAMPUS_TIMEZONE" envDefault:"UTC"`
	SystemActorID      uuid.UUID     `env:"SYSTEM_ACTOR_ID" envDefault:"00000000-0000-0000-0000-000000000000"`
	CompletionSchedule string        `env:"COMPLETION_SCHEDULE" envDefault:"@every 5m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	location *time.Location
}

// LoadEnv loads whichever of the given dotenv files exist. Variables already
// present in the environment win.
func LoadEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func LoadConfig() (*Config, error) {
	if err := LoadEnv(".env.local", ".env"); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return Parse(env.Options{})
}

// Parse reads the configuration using opts, which tests use to supply an
// environment map.
func Parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.CampusTimezone)
	if err != nil {
		return fmt.Errorf("CAMPUS_TIMEZONE: %w", err)
	}
	c.location = loc

	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, production or test, got %q", c.Environment)
	}
	if c.IsProduction() && c.SupabaseServiceKey == "" {
		return errors.New("SUPABASE_SERVICE_ROLE_KEY is required in production")
	}
	return nil
}

// MongoURI substitutes the password placeholder used by Atlas connection strings.
func (c *Config) MongoURI() string {
	return strings.Replace(c.MongoDBURI, "<password>", c.MongoDBPassword, 1)
}

func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
