package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	HIS       HISConfig
	Claims    ClaimsConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RateLimitRPS   int
	RateLimitBurst int
}

type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error
	Level string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// StatementTimeout bounds every statement, including waits on the
	// deductible advisory lock. Zero leaves the server default.
	StatementTimeout time.Duration
	// LockTimeout bounds waits for row and advisory locks
	LockTimeout time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Enabled bool
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	Username string
	Password string
	// StreamPrefix is prepended to every claim event stream
	StreamPrefix string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// HISConfig points at the hospital information system that owns hospital
// grading. Only read access is needed.
type HISConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Database      string
	User          string
	Password      string
	Encrypt       bool
	HospitalTable string
}

// ClaimsConfig holds claim processing switches
type ClaimsConfig struct {
	// EnforceRequiredFields turns on the submission field-presence check.
	// Off by default until the owning team confirms where it is enforced.
	EnforceRequiredFields bool
}

// Load reads configuration from the environment and an optional .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defaults := map[string]any{
		"SERVER_PORT":                    8080,
		"ENV":                            "development",
		"RATE_LIMIT_RPS":                 50,
		"RATE_LIMIT_BURST":               100,
		"LOG_LEVEL":                      "info",
		"DB_HOST":                        "localhost",
		"DB_PORT":                        5432,
		"DB_USER":                        "claims",
		"DB_PASSWORD":                    "claims",
		"DB_NAME":                        "claims",
		"DB_SSLMODE":                     "disable",
		"DB_MAX_CONNS":                   25,
		"DB_MIN_CONNS":                   5,
		"DB_STATEMENT_TIMEOUT":           "30s",
		"DB_LOCK_TIMEOUT":                "10s",
		"KURRENTDB_ENABLED":              true,
		"KURRENTDB_HOST":                 "localhost",
		"KURRENTDB_PORT":                 2113,
		"KURRENTDB_INSECURE":             true,
		"KURRENTDB_USERNAME":             "",
		"KURRENTDB_PASSWORD":             "",
		"KURRENTDB_STREAM_PREFIX":        "claims",
		"JWT_SECRET":                     "dev-secret-change-in-prod",
		"JWT_ISSUER":                     "",
		"HIS_ENABLED":                    false,
		"HIS_HOST":                       "localhost",
		"HIS_PORT":                       1433,
		"HIS_DATABASE":                   "his",
		"HIS_USER":                       "",
		"HIS_PASSWORD":                   "",
		"HIS_ENCRYPT":                    false,
		"HIS_HOSPITAL_TABLE":             "dbo.Hospitals",
		"CLAIMS_ENFORCE_REQUIRED_FIELDS": false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("ENV"),
			RateLimitRPS:   v.GetInt("RATE_LIMIT_RPS"),
			RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			MinConns: v.GetInt32("DB_MIN_CONNS"),

			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
			LockTimeout:      v.GetDuration("DB_LOCK_TIMEOUT"),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:      v.GetBool("KURRENTDB_ENABLED"),
			Host:         v.GetString("KURRENTDB_HOST"),
			Port:         v.GetInt("KURRENTDB_PORT"),
			Insecure:     v.GetBool("KURRENTDB_INSECURE"),
			Username:     v.GetString("KURRENTDB_USERNAME"),
			Password:     v.GetString("KURRENTDB_PASSWORD"),
			StreamPrefix: v.GetString("KURRENTDB_STREAM_PREFIX"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		HIS: HISConfig{
			Enabled:       v.GetBool("HIS_ENABLED"),
			Host:          v.GetString("HIS_HOST"),
			Port:          v.GetInt("HIS_PORT"),
			Database:      v.GetString("HIS_DATABASE"),
			User:          v.GetString("HIS_USER"),
			Password:      v.GetString("HIS_PASSWORD"),
			Encrypt:       v.GetBool("HIS_ENCRYPT"),
			HospitalTable: v.GetString("HIS_HOSPITAL_TABLE"),
		},
		Claims: ClaimsConfig{
			EnforceRequiredFields: v.GetBool("CLAIMS_ENFORCE_REQUIRED_FIELDS"),
		},
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate rejects configurations that are unsafe outside development.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.IsProduction() && c.Auth.JWTSecret == "dev-secret-change-in-prod" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.StatementTimeout < 0 || c.Database.LockTimeout < 0 {
		return fmt.Errorf("DB_STATEMENT_TIMEOUT and DB_LOCK_TIMEOUT must not be negative")
	}
	if c.HIS.Enabled && c.HIS.User == "" {
		return fmt.Errorf("HIS_USER is required when HIS_ENABLED is true")
	}
	return nil
}
