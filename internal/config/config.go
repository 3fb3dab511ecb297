// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// DefaultClaimURL is the first page of the "10-Minuten-Garantie" refund form.
const DefaultClaimURL = "https://www.rmv.de/elma/public/complaints/ten-min-step1.action"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Ticket() schemas.TicketProfile
	Personal() PersonalConfig
	General() GeneralConfig
	Journal() JournalConfig
	Routes() map[string]RouteConfig
	Route(name string) (RouteConfig, error)

	// Browser Setters
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration. Fields are exported for
// viper's decoder; callers go through the Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig           `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig          `mapstructure:"browser" yaml:"browser"`
	TicketCfg   schemas.TicketProfile  `mapstructure:"ticket" yaml:"ticket"`
	PersonalCfg PersonalConfig         `mapstructure:"personal" yaml:"personal"`
	GeneralCfg  GeneralConfig          `mapstructure:"general" yaml:"general"`
	JournalCfg  JournalConfig          `mapstructure:"journal" yaml:"journal"`
	RoutesCfg   map[string]RouteConfig `mapstructure:"routes" yaml:"routes"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Ticket() schemas.TicketProfile  { return c.TicketCfg }
func (c *Config) Personal() PersonalConfig       { return c.PersonalCfg }
func (c *Config) General() GeneralConfig         { return c.GeneralCfg }
func (c *Config) Journal() JournalConfig         { return c.JournalCfg }
func (c *Config) Routes() map[string]RouteConfig { return c.RoutesCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driving the claim form.
type BrowserConfig struct {
	URL          string   `mapstructure:"url" yaml:"url"`
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	UserDataDir  string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args         []string `mapstructure:"args" yaml:"args"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`

	// ShortTimeout bounds ordinary in-form waits.
	ShortTimeout time.Duration `mapstructure:"short_timeout" yaml:"short_timeout"`
	// LongTimeout bounds the wait for the confirmation page after the final submit.
	LongTimeout         time.Duration `mapstructure:"long_timeout" yaml:"long_timeout"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	CookieBannerTimeout time.Duration `mapstructure:"cookie_banner_timeout" yaml:"cookie_banner_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// PersonalConfig is the raw personal section; Profile validates it.
type PersonalConfig struct {
	Salutation string `mapstructure:"salutation" yaml:"salutation"`
	FirstName  string `mapstructure:"first_name" yaml:"first_name"`
	LastName   string `mapstructure:"last_name" yaml:"last_name"`
	Email      string `mapstructure:"email" yaml:"email"`
	Phone      string `mapstructure:"phone" yaml:"phone"`
	Street     string `mapstructure:"street" yaml:"street"`
	Zip        string `mapstructure:"zip" yaml:"zip"`
	City       string `mapstructure:"city" yaml:"city"`
}

// Profile converts the section into a validated schemas.PersonalProfile.
func (p PersonalConfig) Profile() (schemas.PersonalProfile, error) {
	return schemas.NewPersonalProfile(schemas.PersonalProfile{
		Salutation: schemas.Salutation(p.Salutation),
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Phone:      p.Phone,
		Street:     p.Street,
		Zip:        p.Zip,
		City:       p.City,
	})
}

// GeneralConfig holds settings that are not tied to one form page.
type GeneralConfig struct {
	// GuidelinesAgreed is nil when unset, in which case the user is asked.
	GuidelinesAgreed *bool `mapstructure:"guidelines_agreed" yaml:"guidelines_agreed"`
}

// JournalConfig configures the append-only claim journal.
type JournalConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Format     string `mapstructure:"format" yaml:"format"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// RouteConfig is a named pair of stations.
type RouteConfig struct {
	Start string `mapstructure:"start" yaml:"start"`
	End   string `mapstructure:"end" yaml:"end"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rmv-refund")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.url", DefaultClaimURL)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1024)
	v.SetDefault("browser.short_timeout", "15s")
	v.SetDefault("browser.long_timeout", "60s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.cookie_banner_timeout", "3s")
	v.SetDefault("browser.poll_interval", "250ms")

	// -- Journal --
	v.SetDefault("journal.path", "rmv.log")
	v.SetDefault("journal.format", JournalFormatText)
	v.SetDefault("journal.max_size", 10)
	// Zero keeps every rotated journal file.
	v.SetDefault("journal.max_backups", 0)
}

// EnvPrefix is the prefix for environment overrides, e.g. RMV_BROWSER_HEADLESS.
const EnvPrefix = "RMV"

// unsetKeys have no default. AutomaticEnv only consults the environment for
// keys viper already knows, so these are bound one by one.
var unsetKeys = []string{
	"browser.user_data_dir",
	"browser.exec_path",
	"ticket.ticket_type",
	"ticket.expiry_date",
	"ticket.customer_group",
	"ticket.ticket_detail",
	"ticket.price_category",
	"personal.salutation",
	"personal.first_name",
	"personal.last_name",
	"personal.email",
	"personal.phone",
	"personal.street",
	"personal.zip",
	"personal.city",
	"general.guidelines_agreed",
}

// BindEnv makes every known key overridable from the environment.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range unsetKeys {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key)
	}
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// Any failure is reported as a configuration error.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "",
			fmt.Errorf("error unmarshaling config: %w", err))
	}

	legacy, err := legacyRoutes(v)
	if err != nil {
		return nil, schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "", err)
	}
	if len(legacy) > 0 && cfg.RoutesCfg == nil {
		cfg.RoutesCfg = make(map[string]RouteConfig, len(legacy))
	}
	for name, r := range legacy {
		cfg.RoutesCfg[name] = r
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, schemas.NewClaimError(schemas.KindConfiguration, "load configuration", "",
			fmt.Errorf("invalid configuration: %w", err))
	}
	return &cfg, nil
}

// expandPaths resolves "~" in path-valued settings.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.JournalCfg.Path, &c.LoggerCfg.LogFile, &c.BrowserCfg.UserDataDir, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not resolve path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := c.PersonalCfg.Profile(); err != nil {
		return fmt.Errorf("personal.salutation: %w", err)
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.JournalCfg.Validate(); err != nil {
		return fmt.Errorf("journal configuration invalid: %w", err)
	}
	if len(c.RoutesCfg) == 0 {
		return fmt.Errorf("at least one route must be configured under 'routes'")
	}
	for name, r := range c.RoutesCfg {
		if r.Start == "" || r.End == "" {
			return fmt.Errorf("route '%s' needs both a start and an end station", name)
		}
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := url.ParseRequestURI(b.URL); err != nil {
		return fmt.Errorf("url '%s' is not valid: %w", b.URL, err)
	}
	if b.ShortTimeout <= 0 || b.LongTimeout <= 0 || b.NavigationTimeout <= 0 {
		return fmt.Errorf("short_timeout, long_timeout and navigation_timeout must be positive durations")
	}
	if b.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if b.CookieBannerTimeout < 0 {
		return fmt.Errorf("cookie_banner_timeout must not be negative")
	}
	return nil
}

// Journal formats.
const (
	JournalFormatText = "text"
	JournalFormatJSON = "json"
)

// Validate checks the journal settings.
func (j *JournalConfig) Validate() error {
	if j.Path == "" {
		return fmt.Errorf("path is required")
	}
	if j.MaxSize < 0 || j.MaxBackups < 0 {
		return fmt.Errorf("max_size and max_backups must not be negative")
	}
	switch j.Format {
	case JournalFormatText, JournalFormatJSON:
	default:
		return fmt.Errorf("format must be '%s' or '%s', got '%s'", JournalFormatText, JournalFormatJSON, j.Format)
	}
	return nil
}
