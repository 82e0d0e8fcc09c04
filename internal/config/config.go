package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendTables   = "tables"

	AnalysisModeGemini = "gemini"
	AnalysisModeProxy  = "proxy"
	AnalysisModeStatic = "static"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreBackend   string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	TablesConnStr  string        `mapstructure:"TABLES_CONNECTION_STRING"`
	RecordsTable   string        `mapstructure:"RECORDS_TABLE"`
	UsersTable     string        `mapstructure:"USERS_TABLE"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	DirectoryCache time.Duration `mapstructure:"DIRECTORY_CACHE_TTL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	MaxUploadSize  string   `mapstructure:"MAX_UPLOAD_SIZE"`

	AnalysisMode       string        `mapstructure:"ANALYSIS_MODE"`
	GeminiAPIKey       string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel        string        `mapstructure:"GEMINI_MODEL"`
	AnalysisProxyURL   string        `mapstructure:"ANALYSIS_PROXY_URL"`
	AnalysisProxyKey   string        `mapstructure:"ANALYSIS_PROXY_KEY"`
	AnalysisProxyModel string        `mapstructure:"ANALYSIS_PROXY_MODEL"`
	AnalysisTimeout    time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"TABLES_CONNECTION_STRING", "RECORDS_TABLE", "USERS_TABLE",
	"REDIS_URL", "DIRECTORY_CACHE_TTL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MAX_UPLOAD_SIZE",
	"ANALYSIS_MODE", "GEMINI_API_KEY", "GEMINI_MODEL",
	"ANALYSIS_PROXY_URL", "ANALYSIS_PROXY_KEY", "ANALYSIS_PROXY_MODEL", "ANALYSIS_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreBackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("RECORDS_TABLE", "records")
	v.SetDefault("USERS_TABLE", "users")
	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")
	v.SetDefault("AUTH_ISSUER", "privy.io")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("MAX_UPLOAD_SIZE", "10M")
	v.SetDefault("ANALYSIS_MODE", AnalysisModeGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	v.SetDefault("ANALYSIS_PROXY_MODEL", "google/gemini-1.5-pro")
	v.SetDefault("ANALYSIS_TIMEOUT", "2m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the selected backends have what they need and that
// identity tokens are verified against real key material outside development.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", StoreBackendPostgres)
		}
	case StoreBackendTables:
		if c.TablesConnStr == "" {
			return fmt.Errorf("TABLES_CONNECTION_STRING is required when STORE_BACKEND is %q", StoreBackendTables)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendTables, c.StoreBackend)
	}

	if err := c.ValidateAnalysis(); err != nil {
		return err
	}

	if !c.IsDev() {
		if c.AuthSigningKey != "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is only accepted when ENV=development (current ENV=%q)", c.Env)
		}
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL must be set outside development (current ENV=%q)", c.Env)
		}
	}

	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive, got %s", c.AnalysisTimeout)
	}
	return nil
}

// ValidateAnalysis checks only the analysis settings. The analyze command
// uses it on its own since it needs no store or identity provider.
func (c *Config) ValidateAnalysis() error {
	switch c.AnalysisMode {
	case AnalysisModeGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when ANALYSIS_MODE is %q", AnalysisModeGemini)
		}
	case AnalysisModeProxy:
		if c.AnalysisProxyURL == "" {
			return fmt.Errorf("ANALYSIS_PROXY_URL is required when ANALYSIS_MODE is %q", AnalysisModeProxy)
		}
	case AnalysisModeStatic:
		if !c.IsDev() {
			return fmt.Errorf("ANALYSIS_MODE %q is only accepted when ENV=development", AnalysisModeStatic)
		}
	default:
		return fmt.Errorf("ANALYSIS_MODE must be %q, %q or %q, got %q", AnalysisModeGemini, AnalysisModeProxy, AnalysisModeStatic, c.AnalysisMode)
	}
	return nil
}
