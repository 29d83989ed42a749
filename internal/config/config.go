// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	SiteURL        string `mapstructure:"SITE_URL"`

	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBReadHost                    string `mapstructure:"DB_READ_HOST"`
	DBReadPort                    string `mapstructure:"DB_READ_PORT"`
	DBReadUser                    string `mapstructure:"DB_READ_USER"`
	DBReadPassword                string `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// Session tokens are issued by the hosted auth provider and signed with its shared secret.
	AuthJWTSecret               string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWTIssuer               string `mapstructure:"AUTH_JWT_ISSUER"`
	AuthJWTAudience             string `mapstructure:"AUTH_JWT_AUDIENCE"`
	ProfileLookupTimeoutSeconds int    `mapstructure:"PROFILE_LOOKUP_TIMEOUT_SECONDS"`

	EmailProvider          string `mapstructure:"EMAIL_PROVIDER"`
	BrevoAPIKey            string `mapstructure:"BREVO_API_KEY"`
	BrevoBaseURL           string `mapstructure:"BREVO_BASE_URL"`
	EmailSender            string `mapstructure:"EMAIL_SENDER"`
	EmailSenderName        string `mapstructure:"EMAIL_SENDER_NAME"`
	SMTPHost               string `mapstructure:"SMTP_HOST"`
	SMTPPort               int    `mapstructure:"SMTP_PORT"`
	SMTPUser               string `mapstructure:"SMTP_USER"`
	SMTPPassword           string `mapstructure:"SMTP_PASSWORD"`
	AdminNotificationEmail string `mapstructure:"ADMIN_NOTIFICATION_EMAIL"`

	CronSecret       string  `mapstructure:"CRON_SECRET"`
	ReminderSchedule string  `mapstructure:"REMINDER_SCHEDULE"`
	ReminderSendRate float64 `mapstructure:"REMINDER_SEND_RATE"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	DevBootstrapAdmin bool   `mapstructure:"DEV_BOOTSTRAP_ADMIN"`
	DevAdminEmail     string `mapstructure:"DEV_ADMIN_EMAIL"`
}

// Email provider names accepted by EMAIL_PROVIDER.
const (
	EmailProviderBrevo = "brevo"
	EmailProviderSMTP  = "smtp"
	EmailProviderLog   = "log"
)

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "referral_realtime_events=on")
	viper.SetDefault("SITE_URL", "http://localhost:5173")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "guildhall")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("AUTH_JWT_SECRET", "your-auth-provider-jwt-secret-change-me")
	viper.SetDefault("AUTH_JWT_ISSUER", "")
	viper.SetDefault("AUTH_JWT_AUDIENCE", "authenticated")
	viper.SetDefault("PROFILE_LOOKUP_TIMEOUT_SECONDS", 10)

	viper.SetDefault("EMAIL_PROVIDER", EmailProviderLog)
	viper.SetDefault("BREVO_API_KEY", "")
	viper.SetDefault("BREVO_BASE_URL", "https://api.brevo.com/v3")
	viper.SetDefault("EMAIL_SENDER", "no-reply@guildhall.local")
	viper.SetDefault("EMAIL_SENDER_NAME", "Guildhall")
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("SMTP_USER", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("ADMIN_NOTIFICATION_EMAIL", "")

	viper.SetDefault("CRON_SECRET", "")
	viper.SetDefault("REMINDER_SCHEDULE", "")
	viper.SetDefault("REMINDER_SEND_RATE", 5.0)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	viper.SetDefault("DEV_BOOTSTRAP_ADMIN", false)
	viper.SetDefault("DEV_ADMIN_EMAIL", "admin@guildhall.local")
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.EmailProvider = strings.ToLower(strings.TrimSpace(c.EmailProvider))
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	c.BrevoBaseURL = strings.TrimRight(strings.TrimSpace(c.BrevoBaseURL), "/")
}

// IsProduction reports whether the config targets a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ProfileLookupTimeout caps the identity-bootstrap profile read.
func (c *Config) ProfileLookupTimeout() time.Duration {
	if c.ProfileLookupTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ProfileLookupTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}

	switch c.EmailProvider {
	case EmailProviderBrevo:
		if c.BrevoAPIKey == "" {
			return errors.New("BREVO_API_KEY is required when EMAIL_PROVIDER=brevo")
		}
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case EmailProviderLog, "":
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
	}
	if c.EmailSender == "" {
		return errors.New("EMAIL_SENDER is required")
	}

	if c.IsProduction() {
		if len(c.AuthJWTSecret) < 32 {
			return errors.New("AUTH_JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.EmailProvider == EmailProviderLog || c.EmailProvider == "" {
			return errors.New("EMAIL_PROVIDER=log is not allowed in production")
		}
		if c.CronSecret == "" {
			log.Println("WARNING: CRON_SECRET is empty in production. The reminder endpoint is unauthenticated.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.AuthJWTSecret) < 32 {
		log.Println("WARNING: AUTH_JWT_SECRET is shorter than 32 characters. Use the provider's real secret in production.")
	}

	return nil
}
