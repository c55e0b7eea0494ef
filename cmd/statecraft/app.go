package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/application/port"
	"github.com/garyjia/statecraft/internal/config"
	"github.com/garyjia/statecraft/internal/loader"
	"github.com/garyjia/statecraft/internal/repository"
	"github.com/garyjia/statecraft/pkg/database"
	"github.com/garyjia/statecraft/pkg/machine"
	"github.com/garyjia/statecraft/pkg/utils"
)

var (
	// errUsage means the flags were wrong; pflag has already printed why
	errUsage = errors.New("usage")
	// errHelp means --help was requested
	errHelp = errors.New("help")
)

// app carries what every command needs
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	loader *loader.Loader
}

// newFlagSet returns a flag set with the flags shared by all commands
func newFlagSet(name, args string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: statecraft %s [flags] %s\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}
	fs.String("config", "", "config file (default ./statecraft.yaml when present)")
	fs.String("env-file", ".env", "dotenv file loaded into the environment")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("log-output", "stderr", "log destination: stderr, stdout or a file path")
	fs.BoolP("verbose", "v", false, "shorthand for --log-level=debug")
	return fs
}

// addNamingFlag adds the flag selecting the event naming convention
func addNamingFlag(fs *pflag.FlagSet) {
	fs.String("naming", "", "enforce an event naming convention: snake_case or none")
}

// addCacheFlags adds the generation cache flags
func addCacheFlags(fs *pflag.FlagSet) {
	fs.Bool("cache", true, "record generated artifacts and skip unchanged definitions")
	fs.String("cache-path", ".statecraft/cache.db", "SQLite file of the generation cache")
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return errUsage
	}
	return nil
}

// requirePaths returns the positional definition paths
func requirePaths(fs *pflag.FlagSet, stderr io.Writer) ([]string, error) {
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "no definition path given")
		fs.Usage()
		return nil, errUsage
	}
	return fs.Args(), nil
}

// newApp loads the configuration with fs bound and builds the logger
func newApp(fs *pflag.FlagSet) (*app, error) {
	configPath, _ := fs.GetString("config")
	envFile, _ := fs.GetString("env-file")

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: configPath,
		EnvFile:    envFile,
		Flags:      fs,
	})
	if err != nil {
		return nil, err
	}
	if verbose, _ := fs.GetBool("verbose"); verbose {
		cfg.Logger.Level = "debug"
	}

	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		loader: loader.NewLoader(logger, cfg.ValidateOptions()...),
	}, nil
}

// loadDefinitions parses every path and validates the machines together so
// duplicate names across files are caught
func (a *app) loadDefinitions(paths []string) ([]*machine.Definition, error) {
	var models []*machine.Model
	for _, path := range paths {
		loaded, err := a.loader.LoadPath(path)
		if err != nil {
			return nil, err
		}
		models = append(models, loaded...)
	}
	return a.loader.Define(models)
}

// cache is the opened generation cache
type cache struct {
	db   *database.DB
	repo port.GenerationRepository
}

// openCache opens and migrates the cache database. It returns nil when the
// cache is disabled.
func (a *app) openCache(ctx context.Context) (*cache, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}

	db, err := database.New(a.cfg.ToDatabaseConfig(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := database.NewMigrator(db, a.logger).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate cache: %w", err)
	}

	return &cache{
		db:   db,
		repo: repository.NewGenerationRepository(db, a.logger),
	}, nil
}

func (c *cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

func (a *app) close() {
	_ = a.logger.Sync()
}
