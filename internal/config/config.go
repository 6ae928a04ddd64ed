package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration values.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Log       LogConfig
	Inventory InventoryConfig
	OCR       OCRConfig
	Storage   StorageConfig
	Export    ExportConfig
	Seed      SeedConfig
	CORS      CORSConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	Driver string // sqlite, pgx or memory
	DSN    string
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type InventoryConfig struct {
	LotPolicy       string // aggregate or fifo
	DefaultMinStock int64
	ExpiryAlertDays int
	DefaultGSTRate  string
}

type OCRConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type StorageConfig struct {
	Backend      string // local or s3
	LocalDir     string
	Bucket       string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type ExportConfig struct {
	Locale         string
	CurrencySymbol string
}

type SeedConfig struct {
	CatalogPath string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration with this priority:
// environment variables prefixed MEDSTORE_ (e.g. MEDSTORE_DATABASE_DSN),
// then config.toml in the working directory, then built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MEDSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Auth: AuthConfig{
			Secret:   v.GetString("auth.secret"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Inventory: InventoryConfig{
			LotPolicy:       strings.ToLower(v.GetString("inventory.lot_policy")),
			DefaultMinStock: v.GetInt64("inventory.default_min_stock"),
			ExpiryAlertDays: v.GetInt("inventory.expiry_alert_days"),
			DefaultGSTRate:  v.GetString("inventory.default_gst_rate"),
		},
		OCR: OCRConfig{
			Endpoint: v.GetString("ocr.endpoint"),
			APIKey:   v.GetString("ocr.api_key"),
			Timeout:  v.GetDuration("ocr.timeout"),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(v.GetString("storage.backend")),
			LocalDir:     v.GetString("storage.local_dir"),
			Bucket:       v.GetString("storage.bucket"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Export: ExportConfig{
			Locale:         v.GetString("export.locale"),
			CurrencySymbol: v.GetString("export.currency_symbol"),
		},
		Seed: SeedConfig{
			CatalogPath: v.GetString("seed.catalog_path"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "medstore")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "medstore.db")
	v.SetDefault("auth.secret", "dev_secret")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("inventory.lot_policy", "aggregate")
	v.SetDefault("inventory.default_min_stock", 10)
	v.SetDefault("inventory.expiry_alert_days", 30)
	v.SetDefault("inventory.default_gst_rate", "18")
	v.SetDefault("ocr.endpoint", "")
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "prescriptions")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "ap-south-1")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("export.locale", "en-IN")
	v.SetDefault("export.currency_symbol", "₹")
	v.SetDefault("seed.catalog_path", "assets/medicine.csv")
	v.SetDefault("cors.allowed_origins", "*")
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.App.Port); err != nil {
		return fmt.Errorf("invalid app port %q", c.App.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "pgx", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver != "memory" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Inventory.LotPolicy {
	case "aggregate", "fifo":
	default:
		return fmt.Errorf("inventory lot_policy must be aggregate or fifo, got %q", c.Inventory.LotPolicy)
	}
	if rate, err := decimal.NewFromString(c.Inventory.DefaultGSTRate); err != nil || rate.IsNegative() {
		return fmt.Errorf("inventory default_gst_rate must be a non-negative number, got %q", c.Inventory.DefaultGSTRate)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage backend must be local or s3, got %q", c.Storage.Backend)
	}
	if c.App.Env == "production" && c.Auth.Secret == "dev_secret" {
		return fmt.Errorf("auth secret must be set in production")
	}
	return nil
}

// GSTRate returns the validated default GST rate.
func (c *InventoryConfig) GSTRate() decimal.Decimal {
	return decimal.RequireFromString(c.DefaultGSTRate)
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
