package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the explicit run configuration passed into the pipeline at start.
// Every recognized option lives here; nothing is hard-coded in the pipeline.
type Config struct {
	// WarningWindowDays is the number of days before expiration during which
	// notices are sent.
	WarningWindowDays int `mapstructure:"warning_window_days" validate:"gte=1"`

	Organization OrganizationConfig `mapstructure:"organization"`
	Mail         MailConfig         `mapstructure:"mail"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Events       EventsConfig       `mapstructure:"events"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// OrganizationConfig carries the display fields rendered into notices.
type OrganizationConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	HelpDeskURL string `mapstructure:"helpdesk_url"`
	HelpDesk    string `mapstructure:"helpdesk"`
}

// MailConfig configures the SMTP transport and the fixed addresses of a run.
type MailConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"gte=1"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	From         string `mapstructure:"from" validate:"required,email"`
	AdminAddress string `mapstructure:"admin_address" validate:"required,email"`

	// PreviewDeliver controls whether preview mode actually sends the
	// rendered notice (to AdminAddress) or only logs it.
	PreviewDeliver bool `mapstructure:"preview_deliver"`

	// RatePerSecond throttles outbound sends so a large run does not trip
	// server limits. Zero disables the throttle.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// DirectoryConfig selects and configures the account directory backend.
type DirectoryConfig struct {
	// Backend is "ldap" for a live directory or "postgres" for a SQL-backed
	// directory used in dev and test deployments.
	Backend    string     `mapstructure:"backend" validate:"oneof=ldap postgres"`
	SearchRoot string     `mapstructure:"search_root" validate:"required"`
	LDAP       LDAPConfig `mapstructure:"ldap"`
}

// LDAPConfig configures the LDAP directory connection.
type LDAPConfig struct {
	URL          string        `mapstructure:"url"`
	BindDN       string        `mapstructure:"bind_dn"`
	BindPassword string        `mapstructure:"bind_password"`
	StartTLS     bool          `mapstructure:"start_tls"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// AuditConfig controls where audit events go beyond the structured log.
type AuditConfig struct {
	// Store persists audit events to the database in addition to the log.
	Store bool `mapstructure:"store"`
}

// EventsConfig controls the optional Redis fan-out of scan events.
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RedisURL     string        `mapstructure:"redis_url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Secrets are credential overrides layered from the environment so they never
// have to live in the config file.
type Secrets struct {
	MailPassword     string `envconfig:"MAIL_PASSWORD"`
	LDAPBindPassword string `envconfig:"LDAP_BIND_PASSWORD"`
	DBPassword       string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

// LoadConfig reads the YAML config, layers credential overrides from the
// environment, applies defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/expirywatch")
	}
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("expirywatch", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("warning_window_days", 14)
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.rate_per_second", 5)
	v.SetDefault("mail.burst", 1)
	v.SetDefault("directory.backend", "ldap")
	v.SetDefault("directory.ldap.timeout", 30*time.Second)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("events.max_retries", 3)
	v.SetDefault("events.retry_backoff", time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
}

func (c *Config) applySecrets(s Secrets) {
	if s.MailPassword != "" {
		c.Mail.Password = s.MailPassword
	}
	if s.LDAPBindPassword != "" {
		c.Directory.LDAP.BindPassword = s.LDAPBindPassword
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.RedisURL != "" {
		c.Events.RedisURL = s.RedisURL
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Events.Enabled && c.Events.RedisURL == "" {
		return fmt.Errorf("invalid config: events enabled without a redis_url")
	}
	return nil
}
