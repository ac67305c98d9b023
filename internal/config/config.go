package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OAuthProvider holds the credentials for one external identity provider.
// A provider with any empty field is treated as not configured.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (p OAuthProvider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	LogLevel   string

	// Token signing
	JWTSecret        string
	JWTAlgorithm     string
	AccessTokenTTL   time.Duration
	CallbackTokenTTL time.Duration

	// OAuth providers
	Google            OAuthProvider
	Facebook          OAuthProvider
	ClientCallbackURL string

	// Upstream completion provider
	LLMAPIKey  string
	LLMAPIBase string
	LLMModel   string
	LLMTimeout time.Duration

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getminutes(key string, def int) (time.Duration, error) {
	raw := getenv(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return time.Duration(n) * time.Minute, nil
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// New builds the process configuration once from the environment. A .env
// file in the working directory is loaded first when present; real
// environment variables win over file entries.
func New() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Port:       getenv("PORT", "8080"),
		DBAdapter:  getenv("DB_ADAPTER", "sqlite"),
		SQLiteFile: getenv("SQLITE_FILE", "./data/nextarget.db"),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		JWTSecret:    getenv("JWT_SECRET", "change-me"),
		JWTAlgorithm: getenv("JWT_ALGORITHM", "HS256"),

		Google: OAuthProvider{
			ClientID:     getenv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getenv("GOOGLE_REDIRECT_URI", ""),
		},
		Facebook: OAuthProvider{
			ClientID:     getenv("FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getenv("FACEBOOK_CLIENT_SECRET", ""),
			RedirectURI:  getenv("FACEBOOK_REDIRECT_URI", ""),
		},
		ClientCallbackURL: getenv("CLIENT_CALLBACK_URL", "nextarget://callback"),

		LLMAPIKey:  getenv("LLM_API_KEY", ""),
		LLMAPIBase: getenv("LLM_API_BASE", "https://api.mistral.ai/v1"),
		LLMModel:   getenv("LLM_MODEL", "mistral-small-latest"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresUser:     getenv("POSTGRES_USER", ""),
		PostgresPassword: getenv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getenv("POSTGRES_DB", ""),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
	}

	var err error
	if c.AccessTokenTTL, err = getminutes("ACCESS_TOKEN_TTL_MINUTES", 60); err != nil {
		return nil, err
	}
	if c.CallbackTokenTTL, err = getminutes("CALLBACK_TOKEN_TTL_MINUTES", 10); err != nil {
		return nil, err
	}

	timeoutRaw := getenv("LLM_TIMEOUT_SECONDS", "30")
	timeoutSec, err := strconv.Atoi(timeoutRaw)
	if err != nil || timeoutSec <= 0 {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS: %s", timeoutRaw)
	}
	c.LLMTimeout = time.Duration(timeoutSec) * time.Second

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}

	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if c.JWTSecret == "" || c.JWTSecret == "change-me" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
