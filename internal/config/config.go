// Package config loads apiaudit settings from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/phobologic/apiaudit/internal/model"
)

// FileName is the config file looked up in the working directory.
const FileName = "apiaudit.yaml"

// EnvPrefix prefixes environment overrides, e.g. APIAUDIT_REPORT_FORMAT.
const EnvPrefix = "APIAUDIT"

// DefaultMaxFileSize skips files above 1 MB.
const DefaultMaxFileSize = 1_000_000

// ErrNoEntries is returned by Validate when nothing is configured to scan.
var ErrNoEntries = errors.New("no entries configured")

// Plugins lists the extension names that may appear in Config.Plugins.
var Plugins = []string{"vue", "report", "sqlite", "policy", "metrics"}

// Config holds all application configuration.
type Config struct {
	Entries     []model.Entry `mapstructure:"entries" yaml:"entries" validate:"dive"`
	Plugins     []string      `mapstructure:"plugins" yaml:"plugins" validate:"dive,plugin"`
	MaxFileSize int64         `mapstructure:"max_file_size" yaml:"max_file_size" validate:"gte=0"`
	SkipTests   bool          `mapstructure:"skip_tests" yaml:"skip_tests"`
	Report      ReportConfig  `mapstructure:"report" yaml:"report"`
	SQLite      SQLiteConfig  `mapstructure:"sqlite" yaml:"sqlite"`
	Policy      PolicyConfig  `mapstructure:"policy" yaml:"policy"`
	Metrics     MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

type ReportConfig struct {
	Format  string `mapstructure:"format" yaml:"format" validate:"oneof=toon json yaml"`
	Output  string `mapstructure:"output" yaml:"output"`
	MaxLibs int    `mapstructure:"max_libs" yaml:"max_libs" validate:"gte=0"`
	Lib     string `mapstructure:"lib" yaml:"lib"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PolicyConfig struct {
	Deny             []string `mapstructure:"deny" yaml:"deny" validate:"dive,required"`
	MinModules       int      `mapstructure:"min_modules" yaml:"min_modules" validate:"gte=0"`
	FailOnHookErrors bool     `mapstructure:"fail_on_hook_errors" yaml:"fail_on_hook_errors"`
}

type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text, json, or auto (text on a terminal, json otherwise).
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=auto text json"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Plugins:     []string{"vue", "report"},
		MaxFileSize: DefaultMaxFileSize,
		Report:      ReportConfig{Format: "toon"},
		SQLite:      SQLiteConfig{Path: "apiaudit.db"},
		Policy:      PolicyConfig{Deny: []string{}},
		Metrics:     MetricsConfig{File: "apiaudit.prom"},
		Log:         LogConfig{Level: "info", Format: "auto"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("plugins", d.Plugins)
	v.SetDefault("max_file_size", d.MaxFileSize)
	v.SetDefault("skip_tests", d.SkipTests)
	v.SetDefault("report.format", d.Report.Format)
	v.SetDefault("report.output", d.Report.Output)
	v.SetDefault("report.max_libs", d.Report.MaxLibs)
	v.SetDefault("report.lib", d.Report.Lib)
	v.SetDefault("sqlite.path", d.SQLite.Path)
	v.SetDefault("policy.deny", d.Policy.Deny)
	v.SetDefault("policy.min_modules", d.Policy.MinModules)
	v.SetDefault("policy.fail_on_hook_errors", d.Policy.FailOnHookErrors)
	v.SetDefault("metrics.file", d.Metrics.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration from path and the environment. With an empty
// path, ./apiaudit.yaml is used if it exists and defaults apply otherwise.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration after command-line overrides are applied.
func (c *Config) Validate() error {
	if len(c.Entries) == 0 {
		return ErrNoEntries
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return describe(fieldErrs[0])
		}
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report keys as they are spelled in the config file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("plugin", func(fl validator.FieldLevel) bool {
		return slices.Contains(Plugins, fl.Field().String())
	})
	return v
}

// describe turns a validation failure into a message naming the config key.
func describe(fe validator.FieldError) error {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: missing value", key)
	case "min":
		return fmt.Errorf("%s: needs at least %s item(s)", key, fe.Param())
	case "gte":
		return fmt.Errorf("%s: %v is negative", key, fe.Value())
	case "oneof":
		return fmt.Errorf("%s: unknown value %q (want one of %s)", key, fe.Value(), fe.Param())
	case "plugin":
		return fmt.Errorf("%s: unknown plugin %q", key, fe.Value())
	}
	return fmt.Errorf("%s: failed %s check", key, fe.Tag())
}

// LogLevel parses Log.Level. An empty level means info.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Enabled reports whether the named plugin is switched on.
func (c *Config) Enabled(name string) bool {
	return slices.Contains(c.Plugins, name)
}
