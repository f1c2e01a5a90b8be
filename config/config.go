/*
Package config loads the payroll server configuration.

SOURCES (later wins):
  1. Default(): 10-day quota, 08:00 and 16:00 UTC windows, SQLite
  2. YAML file given by --config (optional)
  3. PAYROLL_* environment variables
  4. Command-line flags, applied by cmd/server

EXAMPLE FILE:
  http:
    addr: ":8080"
    allowed_origins: ["http://localhost:5173"]
  auth:
    jwt_secret: "change-me"
  store:
    driver: sqlite            # memory | sqlite | postgres
    dsn: ./data/payroll.db
  ledger:
    admin: "0xAdmin"
    max_change_working_days: 10
    utc_offset_seconds: 0
    check_in:  {hour: 8,  tolerance_seconds: 900}
    check_out: {hour: 16, tolerance_seconds: 900}
    initial_fund: "0"
  log:
    level: info               # debug | info | warn | error
    format: text              # text | json
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-ledger/payroll"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Log     LogConfig     `yaml:"log"`
	Payslip PayslipConfig `yaml:"payslip"`
	Audit   AuditConfig   `yaml:"audit"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AuthConfig struct {
	// JWTSecret signs and verifies HS256 bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LedgerConfig struct {
	Admin                string       `yaml:"admin"`
	MaxChangeWorkingDays int          `yaml:"max_change_working_days"`
	UTCOffsetSeconds     int          `yaml:"utc_offset_seconds"`
	CheckIn              WindowConfig `yaml:"check_in"`
	CheckOut             WindowConfig `yaml:"check_out"`
	InitialFund          string       `yaml:"initial_fund"`
}

type WindowConfig struct {
	Hour             int `yaml:"hour"`
	Minute           int `yaml:"minute"`
	Second           int `yaml:"second"`
	ToleranceSeconds int `yaml:"tolerance_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PayslipConfig struct {
	Company  string `yaml:"company"`
	Currency string `yaml:"currency"`
}

type AuditConfig struct {
	// Interval between journal verifications. "0" disables the auditor.
	Interval string `yaml:"interval"`
}

// Default returns a 10-day manager quota and 08:00 and 16:00 UTC windows
// of ±15 minutes. Admin and JWT secret have no default.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "payroll.db",
		},
		Ledger: LedgerConfig{
			MaxChangeWorkingDays: 10,
			CheckIn:              WindowConfig{Hour: 8, ToleranceSeconds: 900},
			CheckOut:             WindowConfig{Hour: 16, ToleranceSeconds: 900},
			InitialFund:          "0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Payslip: PayslipConfig{
			Company:  "Payroll Ledger",
			Currency: "units",
		},
		Audit: AuditConfig{
			Interval: "1h",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment. It does not validate: flags may still change
// it, so callers run Validate last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("PAYROLL_HTTP_ADDR", c.HTTP.Addr)
	if origins := getEnv("PAYROLL_ALLOWED_ORIGINS", ""); origins != "" {
		c.HTTP.AllowedOrigins = strings.Split(origins, ",")
	}
	c.Auth.JWTSecret = getEnv("PAYROLL_JWT_SECRET", c.Auth.JWTSecret)
	c.Store.Driver = getEnv("PAYROLL_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("PAYROLL_STORE_DSN", c.Store.DSN)
	c.Ledger.Admin = getEnv("PAYROLL_ADMIN", c.Ledger.Admin)
	c.Ledger.MaxChangeWorkingDays = getEnvInt("PAYROLL_MAX_CHANGE_WORKING_DAYS", c.Ledger.MaxChangeWorkingDays)
	c.Ledger.UTCOffsetSeconds = getEnvInt("PAYROLL_UTC_OFFSET_SECONDS", c.Ledger.UTCOffsetSeconds)
	c.Ledger.InitialFund = getEnv("PAYROLL_INITIAL_FUND", c.Ledger.InitialFund)
	c.Log.Level = getEnv("PAYROLL_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("PAYROLL_LOG_FORMAT", c.Log.Format)
	c.Payslip.Company = getEnv("PAYROLL_PAYSLIP_COMPANY", c.Payslip.Company)
	c.Payslip.Currency = getEnv("PAYROLL_PAYSLIP_CURRENCY", c.Payslip.Currency)
	c.Audit.Interval = getEnv("PAYROLL_AUDIT_INTERVAL", c.Audit.Interval)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

// =============================================================================
// VALIDATION
// =============================================================================

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, sqlite, postgres; got %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if strings.TrimSpace(c.Ledger.Admin) == "" {
		return fmt.Errorf("ledger.admin is required")
	}
	if c.Ledger.MaxChangeWorkingDays < 0 {
		return fmt.Errorf("ledger.max_change_working_days must not be negative")
	}
	if off := c.Ledger.UTCOffsetSeconds; off < -14*3600 || off > 14*3600 {
		return fmt.Errorf("ledger.utc_offset_seconds must be within ±14h, got %d", off)
	}
	if !c.Ledger.CheckIn.window().Valid() {
		return fmt.Errorf("ledger.check_in is not a valid time window")
	}
	if !c.Ledger.CheckOut.window().Valid() {
		return fmt.Errorf("ledger.check_out is not a valid time window")
	}
	if _, err := c.InitialFund(); err != nil {
		return err
	}
	if _, err := c.AuditInterval(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

func (w WindowConfig) window() payroll.TimeWindow {
	return payroll.TimeWindow{
		Hour:      w.Hour,
		Minute:    w.Minute,
		Second:    w.Second,
		Tolerance: time.Duration(w.ToleranceSeconds) * time.Second,
	}
}

// Location is the ledger's fixed reference zone.
func (c *Config) Location() *time.Location {
	if c.Ledger.UTCOffsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.Ledger.UTCOffsetSeconds/3600), c.Ledger.UTCOffsetSeconds)
}

// PayrollConfig is the ledger configuration without Fund and Clock.
func (c *Config) PayrollConfig() payroll.Config {
	return payroll.Config{
		Admin:                payroll.Identity(c.Ledger.Admin),
		MaxChangeWorkingDays: c.Ledger.MaxChangeWorkingDays,
		CheckIn:              c.Ledger.CheckIn.window(),
		CheckOut:             c.Ledger.CheckOut.window(),
		Location:             c.Location(),
	}
}

func (c *Config) InitialFund() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Ledger.InitialFund)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.initial_fund: %w", err)
	}
	if d.IsNegative() || !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("ledger.initial_fund must be a non-negative integer, got %s", d)
	}
	return d, nil
}

// AuditInterval returns 0 when the auditor is disabled.
func (c *Config) AuditInterval() (time.Duration, error) {
	if c.Audit.Interval == "" || c.Audit.Interval == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Audit.Interval)
	if err != nil {
		return 0, fmt.Errorf("audit.interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("audit.interval must not be negative")
	}
	return d, nil
}

// NewLogger builds the process logger described by c.Log.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
