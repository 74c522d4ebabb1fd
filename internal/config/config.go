package config

import (
	"bufio"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// Auth backends.
const (
	BackendGoTrue = "gotrue"
	BackendMemory = "memory"
)

// Remember-me stores.
const (
	StoreKeyring = "keyring"
	StoreRedis   = "redis"
	StoreMemory  = "memory"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort string
	Debug    bool

	AuthBackend     string
	AuthURL         string
	AuthAnonKey     string
	AuthJWTSecret   string
	AuthTokenExpiry time.Duration
	AuthTimeout     time.Duration

	DatabaseURL string
	DBMaxConns  int

	RememberStore  string
	KeyringService string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string

	AppOrigin       string
	AllowedOrigins  []string
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

// Load reads configuration from environment variables providing sane defaults.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	httpPort := getEnv("HTTP_PORT", "")
	if httpPort == "" {
		httpPort = getEnv("PORT", "8080")
	}

	cfg := Config{
		HTTPPort:        httpPort,
		Debug:           getBoolEnv("SESSION_DEBUG", false),
		AuthBackend:     strings.ToLower(getEnv("AUTH_BACKEND", BackendGoTrue)),
		AuthURL:         getEnv("AUTH_URL", ""),
		AuthAnonKey:     getEnv("AUTH_ANON_KEY", ""),
		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		AuthTokenExpiry: getDurationEnv("AUTH_TOKEN_EXPIRY", time.Hour),
		AuthTimeout:     getDurationEnv("AUTH_TIMEOUT", 10*time.Second),
		DatabaseURL:     resolveDatabaseURL(),
		DBMaxConns:      getIntEnv("DB_MAX_CONNS", 4),
		RememberStore:   strings.ToLower(getEnv("REMEMBER_STORE", StoreKeyring)),
		KeyringService:  getEnv("KEYRING_SERVICE", "com.nailbliss.app"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		RedisPrefix:     getEnv("REDIS_PREFIX", "nailbliss"),
		AppOrigin:       getEnv("APP_ORIGIN", "http://localhost:"+strings.TrimPrefix(httpPort, ":")),
		AllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeoutSec:  getIntEnv("HTTP_READ_TIMEOUT", 15),
		WriteTimeoutSec: getIntEnv("HTTP_WRITE_TIMEOUT", 15),
		IdleTimeoutSec:  getIntEnv("HTTP_IDLE_TIMEOUT", 60),
	}

	// The in-process backend signs its own tokens; an ephemeral secret is
	// enough when none is configured.
	if cfg.AuthBackend == BackendMemory && cfg.AuthJWTSecret == "" {
		cfg.AuthJWTSecret = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combination of settings.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.HTTPPort, validation.Required),
		validation.Field(&c.AuthBackend, validation.Required, validation.In(BackendGoTrue, BackendMemory)),
		validation.Field(&c.RememberStore, validation.Required, validation.In(StoreKeyring, StoreRedis, StoreMemory)),
		validation.Field(&c.AppOrigin, validation.Required, is.URL),
	)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.AuthBackend == BackendGoTrue {
		err := validation.ValidateStruct(&c,
			validation.Field(&c.AuthURL, validation.Required.Error("AUTH_URL is required for the gotrue backend"), is.URL),
			validation.Field(&c.AuthAnonKey, validation.Required.Error("AUTH_ANON_KEY is required for the gotrue backend")),
		)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
		}
	}
	if c.RememberStore == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REMEMBER_STORE=redis")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return []string{"*"}
	}
	return parts
}

// resolveDatabaseURL finds the profile database from a URL variable, a URL
// file, or discrete PG* variables, in that order. Empty means unconfigured.
func resolveDatabaseURL() string {
	for _, key := range []string{"DATABASE_URL", "POSTGRES_URL", "PGURL"} {
		if coerced := coerceDatabaseURL(os.Getenv(key)); coerced != "" {
			return coerced
		}
	}
	for _, key := range []string{"DATABASE_URL_FILE", "PGURL_FILE"} {
		if coerced := coerceDatabaseURL(readEnvFile(key)); coerced != "" {
			return coerced
		}
	}

	host := firstEnv("PGHOST", "POSTGRES_HOST", "DATABASE_HOST")
	user := firstEnv("PGUSER", "POSTGRES_USER", "DATABASE_USER")
	if host == "" || user == "" {
		return ""
	}
	password := firstEnv("PGPASSWORD", "POSTGRES_PASSWORD", "DATABASE_PASSWORD")
	database := firstNonEmpty(firstEnv("PGDATABASE", "POSTGRES_DB", "DATABASE_NAME"), user)
	port := firstNonEmpty(firstEnv("PGPORT", "POSTGRES_PORT", "DATABASE_PORT"), "5432")
	sslMode := firstNonEmpty(firstEnv("PGSSLMODE", "POSTGRES_SSL_MODE"), "require")

	dsn := &neturl.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   neturl.User(user),
	}
	if password != "" {
		dsn.User = neturl.UserPassword(user, password)
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()
	return dsn.String()
}

func coerceDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "postgres://"):
		return raw
	case strings.HasPrefix(raw, "postgresql://"):
		return "postgres://" + strings.TrimPrefix(raw, "postgresql://")
	}
	return ""
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readEnvFile(key string) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// loadDotEnv sets variables from path without overriding the environment.
func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		key, value, skip, err := parseDotEnvLine(scanner.Text())
		if err != nil {
			return fmt.Errorf(".env line %d: %w", lineNum, err)
		}
		if skip {
			continue
		}
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf(".env line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}

func parseDotEnvLine(line string) (key, value string, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", true, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false, fmt.Errorf("missing '='")
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return "", "", false, fmt.Errorf("empty key")
	}
	if len(value) >= 2 {
		if first, last := value[0], value[len(value)-1]; first == last && (first == '"' || first == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, false, nil
}
