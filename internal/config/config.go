package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	BaseURL           string
	StorageDriver     string
	DatabaseURL       string
	RedisURL          string
	EncryptionKey     string
	CookieSecure      bool
	TOTPIssuer        string
	Login2FADefault   bool
	PasswordHasher    string
	PwnedPasswordsURL string
	PwnedFailOpen     bool
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
	AuditMaxLen       int64
	Email             EmailConfig
	TrustedProxies    []string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	clean := func(val string) string {
		return strings.Trim(val, "\"' \t\r\n")
	}

	cfg := Config{
		Port:              getenvDefault("PORT", "8080"),
		BaseURL:           getenvDefault("APP_BASE_URL", "http://localhost:5173"),
		StorageDriver:     strings.ToLower(getenvDefault("STORAGE_DRIVER", StoragePostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getenvDefault("REDIS_URL", "redis://localhost:6379"),
		EncryptionKey:     clean(os.Getenv("ENCRYPTION_KEY")),
		CookieSecure:      parseBoolDefault(os.Getenv("COOKIE_SECURE"), true),
		TOTPIssuer:        getenvDefault("TOTP_ISSUER", "FocusFlow"),
		Login2FADefault:   parseBoolDefault(os.Getenv("LOGIN_2FA_DEFAULT"), true),
		PasswordHasher:    getenvDefault("PASSWORD_HASHER", "argon2"),
		PwnedPasswordsURL: getenvDefault("PWNED_API_URL", "https://api.pwnedpasswords.com"),
		PwnedFailOpen:     parseBool(os.Getenv("PWNED_FAIL_OPEN")),
		LogFile:           os.Getenv("LOG_FILE"),
		LogMaxSizeMB:      parseInt(os.Getenv("LOG_MAX_SIZE_MB"), 10),
		LogMaxBackups:     parseInt(os.Getenv("LOG_MAX_BACKUPS"), 5),
		AuditMaxLen:       int64(parseInt(os.Getenv("AUDIT_MAX_LEN"), 200)),
		TrustedProxies:    parseList(os.Getenv("TRUSTED_PROXIES")),
	}

	cfg.Email = EmailConfig{
		Host:     clean(os.Getenv("EMAIL_SERVER_HOST")),
		Port:     parseInt(clean(os.Getenv("EMAIL_SERVER_PORT")), 587),
		Username: clean(os.Getenv("EMAIL_SERVER_USER")),
		Password: clean(os.Getenv("EMAIL_SERVER_PASSWORD")),
		From:     clean(os.Getenv("EMAIL_FROM")),
		Secure:   parseBool(os.Getenv("EMAIL_SERVER_SECURE")),
	}

	if cfg.EncryptionKey == "" {
		return Config{}, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseBool(val string) bool {
	return parseBoolDefault(val, false)
}

func parseBoolDefault(val string, def bool) bool {
	val = strings.ToLower(strings.Trim(val, "\"' "))
	switch val {
	case "":
		return def
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parseInt(val string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	return n
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
