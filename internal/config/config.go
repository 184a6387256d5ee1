package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store driver names.
const (
	DriverMongoDB = "mongodb"
	DriverMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Auth      AuthConfig
	Reporting ReportingConfig
	Webhook   WebhookConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
	NodeID int64
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// AuthConfig carries the local credential check. The original application
// shipped a single hardcoded operator account; the values are configurable
// here but the model stays a simulated login, not real authorization.
type AuthConfig struct {
	Username    string
	Password    string
	UserID      string
	DisplayName string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
}

// WebhookConfig points at the operator notification channel. Optional.
type WebhookConfig struct {
	URL string
}

// SheetsConfig configures the spreadsheet mirror for daily summaries.
// Optional; both fields must be set to enable it.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	nodeID, err := strconv.ParseInt(getenvWithDefault("SNOWFLAKE_NODE_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("SNOWFLAKE_NODE_ID must be an integer: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Store: StoreConfig{
			Driver: getenvWithDefault("STORE_DRIVER", DriverMongoDB),
			NodeID: nodeID,
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "banjarejo_greensmart"),
		},
		Auth: AuthConfig{
			Username:    getenvWithDefault("ADMIN_USERNAME", "admin"),
			Password:    getenvWithDefault("ADMIN_PASSWORD", "admin123"),
			UserID:      getenvWithDefault("ADMIN_USER_ID", "admin"),
			DisplayName: getenvWithDefault("ADMIN_DISPLAY_NAME", "Admin Banjarejo"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
		},
		Webhook: WebhookConfig{
			URL: os.Getenv("OPERATOR_WEBHOOK_URL"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_SUMMARY_ID"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", DriverMongoDB, DriverMemory)
	}

	switch {
	case c.Auth.Username == "":
		return errors.New("ADMIN_USERNAME must be provided")
	case c.Auth.Password == "":
		return errors.New("ADMIN_PASSWORD must be provided")
	case c.Auth.UserID == "":
		return errors.New("ADMIN_USER_ID must be provided")
	case c.Auth.DisplayName == "":
		return errors.New("ADMIN_DISPLAY_NAME must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided when GOOGLE_SHEET_SUMMARY_ID is set")
	}

	return nil
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsPath != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
