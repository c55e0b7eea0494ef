package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap/zapcore"

	"github.com/garyjia/statecraft/pkg/machine"
	"github.com/garyjia/statecraft/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. STATECRAFT_GENERATE_OUTPUT_DIR
const EnvPrefix = "STATECRAFT"

// Config holds all application configuration
type Config struct {
	Generate GenerateConfig `mapstructure:"generate"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// GenerateConfig holds code generation configuration
type GenerateConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	// Package overrides the package clause; empty means one package per machine
	Package        string   `mapstructure:"package"`
	FileSuffix     string   `mapstructure:"file_suffix"`
	PerPackageDirs bool     `mapstructure:"per_package_dirs"`
	Naming         string   `mapstructure:"naming"`
	Dynamic        bool     `mapstructure:"dynamic"`
	Imports        []string `mapstructure:"imports"`
}

// CacheConfig holds the generation cache configuration
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// WatchInterval enables reloading changed definitions; zero disables it
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LoadOptions tell Load where to look
type LoadOptions struct {
	// ConfigPath is an explicit config file; when empty statecraft.yaml is
	// looked up in the working directory and its absence is not an error
	ConfigPath string
	// EnvFile is loaded into the process environment before binding
	EnvFile string
	// Flags are bound to their config keys when present in the set
	Flags *pflag.FlagSet
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"output":           "generate.output_dir",
	"package":          "generate.package",
	"suffix":           "generate.file_suffix",
	"per-package-dirs": "generate.per_package_dirs",
	"naming":           "generate.naming",
	"dynamic":          "generate.dynamic",
	"import":           "generate.imports",
	"cache":            "cache.enabled",
	"cache-path":       "cache.path",
	"host":             "server.host",
	"port":             "server.port",
	"watch":            "server.watch_interval",
	"log-level":        "logger.level",
	"log-format":       "logger.format",
	"log-output":       "logger.output_path",
}

// Load loads configuration from defaults, file, .env, environment and flags,
// in increasing order of precedence
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := gotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("statecraft")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Generate defaults
	v.SetDefault("generate.output_dir", "generated")
	v.SetDefault("generate.package", "")
	v.SetDefault("generate.file_suffix", "_machine.go")
	v.SetDefault("generate.per_package_dirs", true)
	v.SetDefault("generate.naming", string(machine.NamingNone))
	v.SetDefault("generate.dynamic", false)
	v.SetDefault("generate.imports", []string{})

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", ".statecraft/cache.db")
	v.SetDefault("cache.max_open_conns", 1)
	v.SetDefault("cache.max_idle_conns", 1)
	v.SetDefault("cache.conn_max_lifetime", 5*time.Minute)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.watch_interval", time.Duration(0))

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// bindFlags binds the known flags present in fs
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate generate config
	if c.Generate.OutputDir == "" {
		return fmt.Errorf("generate.output_dir is required")
	}
	if !strings.HasSuffix(c.Generate.FileSuffix, ".go") {
		return fmt.Errorf("generate.file_suffix must end in .go, got %q", c.Generate.FileSuffix)
	}
	if c.Generate.Package != "" && !utils.IsIdentifier(c.Generate.Package) {
		return fmt.Errorf("generate.package %q is not a valid Go identifier", c.Generate.Package)
	}
	if _, err := machine.ParseNamingConvention(c.Generate.Naming); err != nil {
		return fmt.Errorf("generate.naming: %w", err)
	}

	// Validate cache config
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when the cache is enabled")
	}

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.WatchInterval < 0 {
		return fmt.Errorf("server.watch_interval must not be negative")
	}

	// Validate logger config
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logger.Level)); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
