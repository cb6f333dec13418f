package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	ErrInvalidMaxTransactions = errors.New("maxTransactions must be greater than zero")
	ErrInvalidMaxBodyBytes    = errors.New("maxBodyBytes must not be negative")
)

type Config struct {
	// Inspector behavior
	ShowNotifications    bool     `yaml:"showNotifications"`
	RedactHeaders        []string `yaml:"redactHeaders"`
	MaxTransactions      int      `yaml:"maxTransactions"`
	EnableFloatingButton bool     `yaml:"enableFloatingButton"`
	NotificationTitle    string   `yaml:"notificationTitle"`

	// Capture
	MaxBodyBytes int      `yaml:"maxBodyBytes"`
	InsecureTLS  bool     `yaml:"insecureTLS"`
	AllowHosts   []string `yaml:"allowHosts"`  // strict matching: destination host suffixes
	AllowHeader  string   `yaml:"allowHeader"` // strict matching: "Name" or "Name=value"

	// Collaborators
	NotifyEndpoint string `yaml:"notifyEndpoint"`

	// Inspection API
	Addr            string `yaml:"addr"`
	CORSAllowOrigin string `yaml:"corsAllowOrigin"`

	// Logging
	LogLevel     string `yaml:"logLevel"`
	LogFile      string `yaml:"logFile"`
	LogMaxSizeMB int    `yaml:"logMaxSizeMB"`
}

func Default() Config {
	return Config{
		ShowNotifications:    true,
		RedactHeaders:        []string{"Authorization", "Cookie", "Set-Cookie"},
		MaxTransactions:      1000,
		EnableFloatingButton: true,
		NotificationTitle:    "HTTP Inspector",
		MaxBodyBytes:         1 << 20,
		Addr:                 ":9092",
		CORSAllowOrigin:      "*",
		LogLevel:             "info",
		LogMaxSizeMB:         50,
	}
}

// Validate rejects settings that would silently disable capture.
func (c Config) Validate() error {
	if c.MaxTransactions <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxTransactions, c.MaxTransactions)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxBodyBytes, c.MaxBodyBytes)
	}
	return nil
}

// FromEnv starts from Default and applies INSPECTOR_* variables. A .env file in
// the working directory is loaded first when present.
func FromEnv() Config {
	_ = godotenv.Load()
	return applyEnv(Default())
}

func applyEnv(cfg Config) Config {
	cfg.ShowNotifications = getEnvBool("INSPECTOR_SHOW_NOTIFICATIONS", cfg.ShowNotifications)
	if v := strings.TrimSpace(os.Getenv("INSPECTOR_REDACT_HEADERS")); v != "" {
		cfg.RedactHeaders = splitCSV(v)
	}
	cfg.MaxTransactions = getEnvInt("INSPECTOR_MAX_TRANSACTIONS", cfg.MaxTransactions)
	cfg.EnableFloatingButton = getEnvBool("INSPECTOR_FLOATING_BUTTON", cfg.EnableFloatingButton)
	cfg.NotificationTitle = getEnv("INSPECTOR_NOTIFICATION_TITLE", cfg.NotificationTitle)
	cfg.MaxBodyBytes = getEnvInt("INSPECTOR_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.InsecureTLS = getEnvBool("INSPECTOR_INSECURE_TLS", cfg.InsecureTLS)
	if v := strings.TrimSpace(os.Getenv("INSPECTOR_ALLOW_HOSTS")); v != "" {
		cfg.AllowHosts = splitCSV(v)
	}
	cfg.AllowHeader = getEnv("INSPECTOR_ALLOW_HEADER", cfg.AllowHeader)
	cfg.NotifyEndpoint = getEnv("INSPECTOR_NOTIFY_ENDPOINT", cfg.NotifyEndpoint)
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.CORSAllowOrigin = getEnv("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.LogMaxSizeMB)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

// splitCSV splits comma-separated tokens trimming whitespace and skipping empties.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
