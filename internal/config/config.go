// Package config loads supportkit settings from defaults, the environment and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by supportkit
const EnvPrefix = "SUPPORTKIT"

// Config holds the configuration of the reporting client and the ticket proxy
type Config struct {
	Client ClientConfig `mapstructure:"client" yaml:"client"`
	Proxy  ProxyConfig  `mapstructure:"proxy" yaml:"proxy"`
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
}

// ClientConfig configures diagnostic capture and ticket submission
type ClientConfig struct {
	// ProxyBaseURL is the proxy origin; empty means the local proxy
	ProxyBaseURL string        `mapstructure:"proxy_base_url" yaml:"proxy_base_url"`
	AppName      string        `mapstructure:"app_name" yaml:"app_name"`
	AppVersion   string        `mapstructure:"app_version" yaml:"app_version"`
	ManifestPath string        `mapstructure:"manifest_path" yaml:"manifest_path"`
	SessionDB    string        `mapstructure:"session_db" yaml:"session_db"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageURL      string        `mapstructure:"page_url" yaml:"page_url"`
	Referrer     string        `mapstructure:"referrer" yaml:"referrer"`
	ScreenWidth  int           `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight int           `mapstructure:"screen_height" yaml:"screen_height"`
}

// ProxyConfig configures the ticket proxy server
type ProxyConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	Environment  string        `mapstructure:"environment" yaml:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	RateLimit    float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	LedgerPath   string        `mapstructure:"ledger_path" yaml:"ledger_path"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	Zoho         ZohoConfig    `mapstructure:"zoho" yaml:"zoho"`
}

// ZohoConfig holds the help desk credentials. Secrets are only read from the environment.
type ZohoConfig struct {
	DeskURL      string        `mapstructure:"desk_url" yaml:"desk_url"`
	OrgID        string        `mapstructure:"org_id" yaml:"org_id"`
	DepartmentID string        `mapstructure:"department_id" yaml:"department_id"`
	ContactID    string        `mapstructure:"contact_id" yaml:"contact_id"`
	AccessToken  string        `mapstructure:"access_token" yaml:"-"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggerConfig configures both the client syslog logger and the proxy logger
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// IsProduction reports whether the proxy runs in production mode
func (p ProxyConfig) IsProduction() bool {
	return strings.EqualFold(p.Environment, "production")
}

// ProxyBaseURL returns the configured proxy origin, or the local proxy when none is set
func (c *Config) ProxyBaseURL() string {
	if c.Client.ProxyBaseURL != "" {
		return strings.TrimRight(c.Client.ProxyBaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Proxy.Port)
}

// SetDefaults initializes default values for every setting
func SetDefaults(v *viper.Viper) {
	v.SetDefault("client.proxy_base_url", "")
	v.SetDefault("client.app_name", "supportkit")
	v.SetDefault("client.app_version", "")
	v.SetDefault("client.manifest_path", "")
	v.SetDefault("client.session_db", "")
	v.SetDefault("client.timeout", "2m")
	v.SetDefault("client.page_url", "")
	v.SetDefault("client.referrer", "")
	v.SetDefault("client.screen_width", 0)
	v.SetDefault("client.screen_height", 0)

	v.SetDefault("proxy.port", 3001)
	v.SetDefault("proxy.environment", "development")
	v.SetDefault("proxy.max_upload_mb", 50)
	v.SetDefault("proxy.rate_limit", 2.0)
	v.SetDefault("proxy.rate_burst", 10)
	v.SetDefault("proxy.ledger_path", "")
	v.SetDefault("proxy.read_timeout", "30s")
	v.SetDefault("proxy.write_timeout", "2m")
	v.SetDefault("proxy.zoho.desk_url", "https://desk.zoho.com")
	v.SetDefault("proxy.zoho.org_id", "")
	v.SetDefault("proxy.zoho.department_id", "")
	v.SetDefault("proxy.zoho.contact_id", "")
	v.SetDefault("proxy.zoho.access_token", "")
	v.SetDefault("proxy.zoho.timeout", "30s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "supportkit")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// bindEnv maps SUPPORTKIT_<SECTION>_<KEY> onto every key and keeps the vendor's own
// variable names working for the proxy.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	aliases := map[string][]string{
		"proxy.port":               {"SUPPORTKIT_PROXY_PORT", "PORT"},
		"proxy.environment":        {"SUPPORTKIT_PROXY_ENVIRONMENT", "SUPPORTKIT_ENV"},
		"proxy.zoho.org_id":        {"SUPPORTKIT_PROXY_ZOHO_ORG_ID", "ZOHO_ORG_ID"},
		"proxy.zoho.department_id": {"SUPPORTKIT_PROXY_ZOHO_DEPARTMENT_ID", "ZOHO_DEPARTMENT_ID"},
		"proxy.zoho.contact_id":    {"SUPPORTKIT_PROXY_ZOHO_CONTACT_ID", "ZOHO_CONTACT_ID"},
		"proxy.zoho.access_token":  {"SUPPORTKIT_PROXY_ZOHO_ACCESS_TOKEN", "ZOHO_ACCESS_TOKEN"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"proxy-url":   "client.proxy_base_url",
	"app-name":    "client.app_name",
	"app-version": "client.app_version",
	"manifest":    "client.manifest_path",
	"session-db":  "client.session_db",
	"timeout":     "client.timeout",
	"page-url":    "client.page_url",
	"port":        "proxy.port",
	"env":         "proxy.environment",
	"ledger":      "proxy.ledger_path",
	"log-level":   "logger.level",
	"log-format":  "logger.format",
	"log-file":    "logger.log_file",
}

// RegisterFlags declares the supportkit flags on fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("proxy-url", "", "base URL of the ticket proxy (default: local proxy)")
	fs.String("app-name", "supportkit", "application name reported in the environment snapshot")
	fs.String("app-version", "", "application version label")
	fs.String("manifest", "", "Info.plist to read the application version from")
	fs.String("session-db", "", "SQLite file that keeps the session id between runs")
	fs.Duration("timeout", 2*time.Minute, "ticket submission timeout")
	fs.String("page-url", "", "current location reported in the environment snapshot")
	fs.Int("port", 3001, "proxy listen port")
	fs.String("env", "development", "proxy environment (production hides internal errors)")
	fs.String("ledger", "", "SQLite file recording created tickets")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "console", "log format (console or json)")
	fs.String("log-file", "", "rotating log file")
}

// Load loads the configuration from defaults and environment variables
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}
	return fromViper(v)
}

// LoadFromFlags parses args and loads the configuration. Flags set explicitly take
// precedence over the environment.
func LoadFromFlags(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("supportkit", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return FromFlagSet(fs)
}

// FromFlagSet loads the configuration from an already parsed flag set
func FromFlagSet(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values
func (c *Config) Validate() error {
	if c.Proxy.Port <= 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port must be between 1 and 65535")
	}
	if c.Proxy.MaxUploadMB <= 0 {
		return fmt.Errorf("proxy.max_upload_mb must be positive")
	}
	if c.Proxy.RateLimit < 0 || c.Proxy.RateBurst < 0 {
		return fmt.Errorf("proxy.rate_limit and proxy.rate_burst must not be negative")
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be a positive duration")
	}
	return nil
}
