package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	billing "billing-relay/internal/billing/domain"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr          string         `yaml:"http_addr" validate:"required"`
	DatabaseURL       string         `yaml:"-"`
	RedisURL          string         `yaml:"-"`
	JWTSecret         string         `yaml:"-"`
	WebhookURL        string         `yaml:"webhook_url" validate:"omitempty,url"`
	SummaryAttachment bool           `yaml:"summary_attachment"`
	Accounts          []Account      `yaml:"accounts" validate:"dive"`
	Stripe            StripeConfig   `yaml:"stripe"`
	Mail              MailConfig     `yaml:"mail"`
	Download          DownloadConfig `yaml:"download"`
	Schedule          ScheduleConfig `yaml:"schedule"`
}

// Account maps one billing account to its credential and destination.
type Account struct {
	Key           string `yaml:"key" validate:"required"`
	CredentialEnv string `yaml:"credential_env"`
	Destination   string `yaml:"destination" validate:"omitempty,email"`
	Credential    string `yaml:"-"`
}

// StripeConfig defines the record source endpoint.
type StripeConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size" validate:"min=1,max=100"`
}

// MailConfig defines SMTP settings. The password is only read from the environment.
type MailConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	Username      string `yaml:"username"`
	Password      string `yaml:"-"`
	From          string `yaml:"from" validate:"omitempty,email"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Insecure      bool   `yaml:"insecure"`
}

// DownloadConfig bounds document downloads.
type DownloadConfig struct {
	Attempts int           `yaml:"attempts" validate:"min=1"`
	Rate     float64       `yaml:"rate" validate:"gt=0"`
	Burst    int           `yaml:"burst" validate:"min=1"`
	Workers  int           `yaml:"workers" validate:"min=1"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ScheduleConfig defines the cron-like trigger.
type ScheduleConfig struct {
	DailyAt      string `yaml:"daily_at" validate:"omitempty,datetime=15:04"`
	DayOfMonth   int    `yaml:"day_of_month" validate:"min=0,max=28"`
	WindowPolicy string `yaml:"window_policy" validate:"omitempty,oneof=previous_month trailing_30_days"`
	Timezone     string `yaml:"timezone"`
}

// Load reads the yaml file named by BILLING_CONFIG, overlays environment
// variables and validates the result.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: ":8080",
		Stripe: StripeConfig{
			PageSize: 10,
			Timeout:  30 * time.Second,
		},
		Mail: MailConfig{
			Port:          587,
			SubjectPrefix: "Invoices",
		},
		Download: DownloadConfig{
			Attempts: 5,
			Rate:     80,
			Burst:    1,
			Workers:  4,
			Timeout:  30 * time.Second,
		},
		Schedule: ScheduleConfig{
			DayOfMonth:   1,
			WindowPolicy: "previous_month",
			Timezone:     "UTC",
		},
	}

	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.resolveCredentials()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getenvDefault("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", ""))
	c.RedisURL = getenvDefault("REDIS_URL", "")
	c.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", ""))
	c.WebhookURL = getenvDefault("RUN_WEBHOOK_URL", c.WebhookURL)
	c.SummaryAttachment = getenvBoolDefault("SUMMARY_ATTACHMENT", c.SummaryAttachment)

	c.Stripe.BaseURL = getenvDefault("STRIPE_BASE_URL", c.Stripe.BaseURL)

	c.Mail.Host = getenvDefault("MAIL_HOST", c.Mail.Host)
	c.Mail.Port = getenvIntDefault("MAIL_PORT", c.Mail.Port)
	c.Mail.Username = getenvDefault("MAIL_USERNAME", c.Mail.Username)
	c.Mail.Password = getenvDefault("MAIL_PASSWORD", "")
	c.Mail.From = getenvDefault("MAIL_FROM", c.Mail.From)

	c.Download.Attempts = getenvIntDefault("DOWNLOAD_ATTEMPTS", c.Download.Attempts)
	c.Download.Rate = getenvFloatDefault("DOWNLOAD_RATE", c.Download.Rate)
	c.Download.Burst = getenvIntDefault("DOWNLOAD_BURST", c.Download.Burst)
	c.Download.Workers = getenvIntDefault("DOWNLOAD_WORKERS", c.Download.Workers)
	c.Download.Timeout = getenvDuration("DOWNLOAD_TIMEOUT", c.Download.Timeout)

	c.Schedule.DailyAt = getenvDefault("SCHEDULE_DAILY_AT", c.Schedule.DailyAt)
	c.Schedule.DayOfMonth = getenvIntDefault("SCHEDULE_DAY_OF_MONTH", c.Schedule.DayOfMonth)
	c.Schedule.WindowPolicy = getenvDefault("SCHEDULE_WINDOW_POLICY", c.Schedule.WindowPolicy)
	c.Schedule.Timezone = getenvDefault("SCHEDULE_TIMEZONE", c.Schedule.Timezone)

	if len(c.Accounts) == 0 {
		c.Accounts = parseAccounts(os.Getenv("BILLING_ACCOUNTS"))
	}
}

// resolveCredentials reads each account's credential from its env var,
// defaulting to STRIPE_KEY_<KEY>.
func (c *Config) resolveCredentials() {
	for i := range c.Accounts {
		acct := &c.Accounts[i]
		if acct.CredentialEnv == "" {
			acct.CredentialEnv = "STRIPE_KEY_" + envSuffix(acct.Key)
		}
		acct.Credential = os.Getenv(acct.CredentialEnv)
	}
}

// Validate checks field constraints and account key uniqueness.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, acct := range c.Accounts {
		if _, ok := seen[acct.Key]; ok {
			return fmt.Errorf("config: duplicate account key %q", acct.Key)
		}
		seen[acct.Key] = struct{}{}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Sources returns the configured accounts as pipeline sources.
func (c Config) Sources() ([]billing.Source, error) {
	sources := make([]billing.Source, 0, len(c.Accounts))
	for _, acct := range c.Accounts {
		src, err := billing.NewSource(acct.Key, acct.Credential, acct.Destination)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("config: no accounts configured")
	}
	return sources, nil
}

// Location returns the schedule time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseAccounts parses "KEY=dest@example.com,KEY2=other@example.com".
func parseAccounts(value string) []Account {
	var accounts []Account
	for _, part := range splitCSV(value) {
		key, dest, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		accounts = append(accounts, Account{Key: key, Destination: strings.TrimSpace(dest)})
	}
	return accounts
}

func envSuffix(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
