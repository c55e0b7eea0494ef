package config

import (
	"github.com/garyjia/statecraft/internal/application/service"
	"github.com/garyjia/statecraft/internal/codegen"
	"github.com/garyjia/statecraft/pkg/database"
	"github.com/garyjia/statecraft/pkg/machine"
	"github.com/garyjia/statecraft/pkg/utils"
)

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}

// ToDatabaseConfig converts the cache section for database.New
func (c *Config) ToDatabaseConfig() database.Config {
	return database.Config{
		Path:            c.Cache.Path,
		MaxOpenConns:    c.Cache.MaxOpenConns,
		MaxIdleConns:    c.Cache.MaxIdleConns,
		ConnMaxLifetime: c.Cache.ConnMaxLifetime,
	}
}

// ToCodegenOptions converts the generate section for codegen.NewGenerator
func (c *Config) ToCodegenOptions() codegen.Options {
	return codegen.Options{
		Package:    c.Generate.Package,
		Dynamic:    c.Generate.Dynamic,
		Imports:    append([]string(nil), c.Generate.Imports...),
		FileSuffix: c.Generate.FileSuffix,
	}
}

// ToGenerationConfig converts the generate section for the generation service
func (c *Config) ToGenerationConfig() service.GenerationConfig {
	return service.GenerationConfig{
		OutputDir:      c.Generate.OutputDir,
		PerPackageDirs: c.Generate.PerPackageDirs,
		FileSuffix:     c.Generate.FileSuffix,
	}
}

// ValidateOptions returns the definition checks selected by the config.
// Validate has already rejected unknown conventions.
func (c *Config) ValidateOptions() []machine.ValidateOption {
	naming, err := machine.ParseNamingConvention(c.Generate.Naming)
	if err != nil || naming == machine.NamingNone {
		return nil
	}
	return []machine.ValidateOption{machine.WithNamingConvention(naming)}
}
