// Package config loads service configuration from config.toml, a .env file and
// NFSE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	money "github.com/rezonia/nfse-emitter/internal/decimal"
	ipmxml "github.com/rezonia/nfse-emitter/internal/ipm/xml"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/taxrate"
)

// EnvPrefix prefixes every environment override, e.g. NFSE_TAX_CBS
const EnvPrefix = "NFSE"

// Gateway modes
const (
	ModeFile = "file"
	ModeAPI  = "api"
)

// Config holds all service configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Tax      taxrate.Rates
	IPM      IPMConfig
	XML      XMLConfig
}

// AppConfig holds application identity
type AppConfig struct {
	Name string
	Env  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DatabaseConfig holds connection settings
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
	SlowThreshold   time.Duration
	Seed            bool
}

// IPMConfig holds gateway client settings
type IPMConfig struct {
	Mode      string // file, api
	OutputDir string
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	TestMode  bool
	Signature SignatureConfig
}

// SignatureConfig points to the PFX used to sign outgoing documents.
// An empty CertPath disables signing. CAFile holds the PEM roots trusted when
// verifying signed documents.
type SignatureConfig struct {
	CertPath     string
	CertPassword string
	CAFile       string
}

// XMLConfig holds document assembly settings
type XMLConfig struct {
	ItemRateSource  ipmxml.ItemRateSource
	Timezone        string
	Location        *time.Location
	FallbackTomCode string
}

// Options selects where configuration is read from
type Options struct {
	// ConfigFile is an explicit config file; empty searches for config.toml
	ConfigFile string
	// EnvFile is loaded into the environment first; empty tries .env
	EnvFile string
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with NFSE_ prefix (including those from the env file)
// 2. config.toml
// 3. Built-in defaults
//
// Tax rates and xml.item_rate_source have no defaults and must be provided.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nfse-emitter")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Server: ServerConfig{
			Address:      v.GetString("server.address"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			Debug:        v.GetBool("server.debug"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			Seed:            v.GetBool("database.seed"),
		},
		IPM: IPMConfig{
			Mode:      strings.ToLower(v.GetString("ipm.mode")),
			OutputDir: v.GetString("ipm.output_dir"),
			BaseURL:   v.GetString("ipm.base_url"),
			Username:  v.GetString("ipm.username"),
			Password:  v.GetString("ipm.password"),
			Timeout:   v.GetDuration("ipm.timeout"),
			TestMode:  v.GetBool("ipm.test_mode"),
			Signature: SignatureConfig{
				CertPath:     v.GetString("ipm.signature.cert_path"),
				CertPassword: v.GetString("ipm.signature.cert_password"),
				CAFile:       v.GetString("ipm.signature.ca_file"),
			},
		},
		XML: XMLConfig{
			Timezone:        v.GetString("xml.timezone"),
			FallbackTomCode: v.GetString("xml.fallback_tom_code"),
		},
	}

	rates, err := loadRates(v)
	if err != nil {
		return nil, err
	}
	cfg.Tax = rates

	if err := cfg.loadXML(v); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return model.NewConfigError("env_file", "cannot load "+path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nfse-emitter")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=nfse port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.seed", true)

	v.SetDefault("ipm.mode", ModeFile)
	v.SetDefault("ipm.output_dir", "./nfse-output")
	v.SetDefault("ipm.timeout", 30*time.Second)
	v.SetDefault("ipm.test_mode", false)

	v.SetDefault("xml.timezone", "America/Sao_Paulo")
	v.SetDefault("xml.fallback_tom_code", "8083")
}

var rateKeys = []string{
	"tax.ibs_state",
	"tax.ibs_state_reduction",
	"tax.ibs_municipal",
	"tax.ibs_municipal_reduction",
	"tax.cbs",
	"tax.cbs_reduction",
	"tax.pis",
	"tax.cofins",
}

func loadRates(v *viper.Viper) (taxrate.Rates, error) {
	parsed := make(map[string]*decimal.Decimal, len(rateKeys))
	for _, key := range rateKeys {
		if !v.IsSet(key) {
			continue
		}
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			continue
		}
		d, err := money.FromString(raw)
		if err != nil {
			return taxrate.Rates{}, model.NewConfigError(key, "must be a decimal proportion", err)
		}
		parsed[key] = &d
	}

	return taxrate.New(taxrate.Values{
		IBSState:              parsed["tax.ibs_state"],
		IBSStateReduction:     parsed["tax.ibs_state_reduction"],
		IBSMunicipal:          parsed["tax.ibs_municipal"],
		IBSMunicipalReduction: parsed["tax.ibs_municipal_reduction"],
		CBS:                   parsed["tax.cbs"],
		CBSReduction:          parsed["tax.cbs_reduction"],
		PIS:                   parsed["tax.pis"],
		COFINS:                parsed["tax.cofins"],
	})
}

func (c *Config) loadXML(v *viper.Viper) error {
	raw := v.GetString("xml.item_rate_source")
	if strings.TrimSpace(raw) == "" {
		return model.NewConfigError("xml.item_rate_source", "is required (issuer or state_ibs)", nil)
	}
	source, err := ipmxml.ParseItemRateSource(raw)
	if err != nil {
		return model.NewConfigError("xml.item_rate_source", "invalid value", err)
	}
	c.XML.ItemRateSource = source

	loc, err := time.LoadLocation(c.XML.Timezone)
	if err != nil {
		return model.NewConfigError("xml.timezone", "unknown timezone", err)
	}
	c.XML.Location = loc
	return nil
}

func (c *Config) validate() error {
	switch c.IPM.Mode {
	case ModeFile:
		if c.IPM.OutputDir == "" {
			return model.NewConfigError("ipm.output_dir", "is required in file mode", nil)
		}
	case ModeAPI:
		if c.IPM.BaseURL == "" {
			return model.NewConfigError("ipm.base_url", "is required in api mode", nil)
		}
		if c.IPM.Username == "" || c.IPM.Password == "" {
			return model.NewConfigError("ipm.username", "credentials are required in api mode", nil)
		}
	default:
		return model.NewConfigError("ipm.mode", fmt.Sprintf("unsupported mode %q (want file or api)", c.IPM.Mode), nil)
	}

	if n := len(c.XML.FallbackTomCode); n == 0 || n > 4 {
		return model.NewConfigError("xml.fallback_tom_code", "must have 1 to 4 digits", nil)
	}
	if c.IPM.Timeout <= 0 {
		return model.NewConfigError("ipm.timeout", "must be positive", nil)
	}
	return nil
}

// IsProduction reports whether the app runs in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
