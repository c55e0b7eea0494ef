package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "generated", cfg.Generate.OutputDir)
	assert.Equal(t, "_machine.go", cfg.Generate.FileSuffix)
	assert.True(t, cfg.Generate.PerPackageDirs)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ".statecraft/cache.db", cfg.Cache.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Empty(t, cfg.ValidateOptions())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "statecraft.yaml", `
generate:
  output_dir: from-file
  naming: snake_case
  imports:
    - example.com/payloads
server:
  port: 7000
logger:
  format: json
`)
	t.Setenv("STATECRAFT_SERVER_PORT", "9090")
	t.Setenv("STATECRAFT_CACHE_ENABLED", "false")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("output", "generated", "")
	fs.Int("port", 8080, "")
	fs.Bool("dynamic", false, "")
	require.NoError(t, fs.Parse([]string{"--output", "from-flag", "--dynamic"}))

	cfg, err := Load(LoadOptions{ConfigPath: path, Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Generate.OutputDir, "changed flag wins over file")
	assert.True(t, cfg.Generate.Dynamic)
	assert.Equal(t, 9090, cfg.Server.Port, "env wins over file and unchanged flag")
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, []string{"example.com/payloads"}, cfg.Generate.Imports)
	assert.Len(t, cfg.ValidateOptions(), 1)
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "STATECRAFT_GENERATE_PACKAGE"
	require.Empty(t, os.Getenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	envFile := writeFile(t, ".env", key+"=rockets\n")
	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "rockets", cfg.Generate.Package)

	t.Run("missing env file is ignored", func(t *testing.T) {
		_, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), ".env")})
		assert.NoError(t, err)
	})
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeFile(t, "statecraft.yaml", "server:\n  port: 70000\n")
		_, err := Load(LoadOptions{ConfigPath: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func validConfig() Config {
	return Config{
		Generate: GenerateConfig{OutputDir: "out", FileSuffix: "_machine.go"},
		Cache:    CacheConfig{Enabled: true, Path: "cache.db"},
		Server:   ServerConfig{Host: "localhost", Port: 8080},
		Logger:   LoggerConfig{Level: "info", Format: "console"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty output dir", mutate: func(c *Config) { c.Generate.OutputDir = "" }, wantErr: "generate.output_dir"},
		{name: "suffix without .go", mutate: func(c *Config) { c.Generate.FileSuffix = "_machine.txt" }, wantErr: "generate.file_suffix"},
		{name: "package keyword", mutate: func(c *Config) { c.Generate.Package = "func" }, wantErr: "generate.package"},
		{name: "unknown naming", mutate: func(c *Config) { c.Generate.Naming = "kebab" }, wantErr: "generate.naming"},
		{name: "cache without path", mutate: func(c *Config) { c.Cache.Path = "" }, wantErr: "cache.path"},
		{name: "disabled cache without path", mutate: func(c *Config) { c.Cache.Enabled = false; c.Cache.Path = "" }},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "bad level", mutate: func(c *Config) { c.Logger.Level = "loud" }, wantErr: "logger.level"},
		{name: "bad format", mutate: func(c *Config) { c.Logger.Format = "xml" }, wantErr: "logger.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Adapters(t *testing.T) {
	cfg := validConfig()
	cfg.Generate.Imports = []string{"example.com/types"}
	cfg.Generate.PerPackageDirs = true
	cfg.Cache.MaxOpenConns = 1

	assert.Equal(t, "cache.db", cfg.ToDatabaseConfig().Path)
	assert.Equal(t, 1, cfg.ToDatabaseConfig().MaxOpenConns)
	assert.Equal(t, "console", cfg.ToLoggerConfig().Format)

	opts := cfg.ToCodegenOptions()
	assert.Equal(t, "_machine.go", opts.FileSuffix)
	opts.Imports[0] = "changed"
	assert.Equal(t, "example.com/types", cfg.Generate.Imports[0])

	gen := cfg.ToGenerationConfig()
	assert.Equal(t, "out", gen.OutputDir)
	assert.True(t, gen.PerPackageDirs)
}
