// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	TokenTTLHours  int    `mapstructure:"TOKEN_TTL_HOURS"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBPath                   string `mapstructure:"DB_PATH"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBReadHost               string `mapstructure:"DB_READ_HOST"`
	DBReadPort               string `mapstructure:"DB_READ_PORT"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	MediaDir          string  `mapstructure:"MEDIA_DIR"`
	MediaURLPrefix    string  `mapstructure:"MEDIA_URL_PREFIX"`
	MediaMaxUploadMB  int     `mapstructure:"MEDIA_MAX_UPLOAD_MB"`
	AvatarMaxSide     int     `mapstructure:"AVATAR_MAX_SIDE"`
	PageSize          int     `mapstructure:"PAGE_SIZE"`
	CommentOrder      string  `mapstructure:"COMMENT_ORDER"`
	SearchMinRank     float64 `mapstructure:"SEARCH_MIN_RANK"`
	SearchLanguage    string  `mapstructure:"SEARCH_LANGUAGE"`
	SearchTitleWeight float64 `mapstructure:"SEARCH_TITLE_WEIGHT"`
	SearchBodyWeight  float64 `mapstructure:"SEARCH_BODY_WEIGHT"`

	VerificationTTLHours  int    `mapstructure:"VERIFICATION_TTL_HOURS"`
	PasswordResetTTLHours int    `mapstructure:"PASSWORD_RESET_TTL_HOURS"`
	SMTPHost              string `mapstructure:"SMTP_HOST"`
	SMTPPort              int    `mapstructure:"SMTP_PORT"`
	SMTPUsername          string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword          string `mapstructure:"SMTP_PASSWORD"`
	EmailFrom             string `mapstructure:"EMAIL_FROM"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// searchLanguages are the text search configurations the ranker may be pointed at.
var searchLanguages = map[string]bool{
	"simple": true, "english": true, "russian": true, "german": true,
	"french": true, "spanish": true, "italian": true, "portuguese": true,
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
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
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("TOKEN_TTL_HOURS", 72)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PATH", "realblog.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "realblog")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("MEDIA_DIR", "./media")
	viper.SetDefault("MEDIA_URL_PREFIX", "/media")
	viper.SetDefault("MEDIA_MAX_UPLOAD_MB", 10)
	viper.SetDefault("AVATAR_MAX_SIDE", 300)
	viper.SetDefault("PAGE_SIZE", 10)
	viper.SetDefault("COMMENT_ORDER", "newest")
	viper.SetDefault("SEARCH_MIN_RANK", 0.1)
	viper.SetDefault("SEARCH_LANGUAGE", "english")
	viper.SetDefault("SEARCH_TITLE_WEIGHT", 1.0)
	viper.SetDefault("SEARCH_BODY_WEIGHT", 0.4)

	viper.SetDefault("VERIFICATION_TTL_HOURS", 24)
	viper.SetDefault("PASSWORD_RESET_TTL_HOURS", 2)
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("EMAIL_FROM", "no-reply@realblog.local")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.CommentOrder = strings.ToLower(strings.TrimSpace(c.CommentOrder))
	c.SearchLanguage = strings.ToLower(strings.TrimSpace(c.SearchLanguage))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.CommentOrder {
	case "newest", "oldest":
	default:
		return fmt.Errorf("COMMENT_ORDER must be newest or oldest, got %q", c.CommentOrder)
	}
	if !searchLanguages[c.SearchLanguage] {
		return fmt.Errorf("unsupported SEARCH_LANGUAGE %q", c.SearchLanguage)
	}
	if c.SearchMinRank < 0 || c.SearchMinRank >= 1 {
		return errors.New("SEARCH_MIN_RANK must be in [0, 1)")
	}
	// ts_rank rejects weights outside [0, 1].
	if c.SearchTitleWeight > 1 || c.SearchBodyWeight <= 0 {
		return errors.New("SEARCH_TITLE_WEIGHT and SEARCH_BODY_WEIGHT must be in (0, 1]")
	}
	if c.SearchTitleWeight <= c.SearchBodyWeight {
		return errors.New("SEARCH_TITLE_WEIGHT must be greater than SEARCH_BODY_WEIGHT")
	}
	if c.AvatarMaxSide <= 0 {
		return errors.New("AVATAR_MAX_SIDE must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("PAGE_SIZE must be positive")
	}
	if c.MediaMaxUploadMB <= 0 {
		return errors.New("MEDIA_MAX_UPLOAD_MB must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER=sqlite is not allowed in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
