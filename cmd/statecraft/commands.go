package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/application/dispatcher"
	"github.com/garyjia/statecraft/internal/application/service"
	"github.com/garyjia/statecraft/internal/codegen"
	"github.com/garyjia/statecraft/internal/domain/event"
	"github.com/garyjia/statecraft/internal/export"
	httpapi "github.com/garyjia/statecraft/internal/interfaces/http"
	"github.com/garyjia/statecraft/internal/storage"
	"github.com/garyjia/statecraft/internal/worker"
	"github.com/garyjia/statecraft/pkg/machine"
)

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("generate", "<definition path>...", stderr)
	fs.StringP("output", "o", "generated", "output directory")
	fs.String("package", "", "package clause for every generated file (default: one package per machine)")
	fs.String("suffix", "_machine.go", "generated file name suffix")
	fs.Bool("per-package-dirs", true, "write each package into its own directory")
	fs.Bool("dynamic", false, "emit the dynamic dispatch wrapper for every machine")
	fs.StringSlice("import", nil, "extra import path for payload and storage types (repeatable)")
	fs.Bool("force", false, "regenerate even when the cache says the output is current")
	fs.Bool("prune", false, "remove generated files of machines that no longer exist")
	addNamingFlag(fs)
	addCacheFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths, err := requirePaths(fs, stderr)
	if err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	defs, err := a.loadDefinitions(paths)
	if err != nil {
		return err
	}

	c, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(a.logger))
	defer d.Close()
	d.SubscribeNamed(event.TypeArtifactWritten, "progress", func(ctx context.Context, evt *event.Event) error {
		_, err := fmt.Fprintf(stdout, "wrote      %s\n", evt.GetPayloadString("path"))
		return err
	})
	d.SubscribeNamed(event.TypeArtifactSkipped, "progress", func(ctx context.Context, evt *event.Event) error {
		_, err := fmt.Fprintf(stdout, "%-10s %s\n", evt.GetPayloadString("reason"), evt.GetPayloadString("path"))
		return err
	})
	d.SubscribeAll("trace", func(ctx context.Context, evt *event.Event) error {
		a.logger.Debug("Run event",
			zap.String("type", evt.Type.String()),
			zap.String("run_id", evt.RunID),
			zap.String("machine", evt.Machine),
			zap.Any("payload", evt.Payload))
		return nil
	})

	outputDir := a.cfg.Generate.OutputDir
	deps := service.GenerationDeps{
		Generator:  codegen.NewGenerator(a.cfg.ToCodegenOptions(), a.logger),
		Storage:    storage.NewLocalFileStorage(outputDir, a.logger),
		Folders:    storage.NewFolderManager(outputDir, a.logger),
		Dispatcher: d,
		Logger:     a.logger,
	}
	if c != nil {
		deps.Repo = c.repo
		deps.TxManager = c.db
	}

	force, _ := fs.GetBool("force")
	prune, _ := fs.GetBool("prune")
	svc := service.NewGenerationService(a.cfg.ToGenerationConfig(), deps)
	report, err := svc.Generate(ctx, service.GenerateRequest{
		Source:      strings.Join(paths, ","),
		Definitions: defs,
		Force:       force,
		Prune:       prune,
	})
	if report != nil {
		for _, path := range report.Removed {
			fmt.Fprintf(stdout, "removed    %s\n", path)
		}
		fmt.Fprintf(stdout, "%d machine(s): %d written, %d unchanged, %d removed\n",
			len(defs), len(report.Written), len(report.Skipped), len(report.Removed))
	}
	return err
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("validate", "<definition path>...", stderr)
	addNamingFlag(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths, err := requirePaths(fs, stderr)
	if err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	opts := a.cfg.ValidateOptions()
	problems := 0
	var models []*machine.Model
	for _, path := range paths {
		loaded, err := a.loader.LoadPath(path)
		if err != nil {
			fmt.Fprintf(stdout, "FAIL %s\n  %v\n", path, err)
			problems++
			continue
		}
		models = append(models, loaded...)
	}

	for _, m := range models {
		name := m.Name
		if name == "" {
			name = "<unnamed>"
		}
		if err := machine.ValidateAll(m, opts...); err != nil {
			errs := multierr.Errors(err)
			problems += len(errs)
			fmt.Fprintf(stdout, "FAIL %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(stdout, "  %v\n", e)
			}
			continue
		}
		def, err := machine.Define(m, opts...)
		if err != nil {
			problems++
			fmt.Fprintf(stdout, "FAIL %s\n  %v\n", name, err)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s (%d states, %d superstates, %d events, %d edges)\n",
			name, len(def.States()), len(def.Superstates()), len(def.Events()), def.Graph().Len())
	}

	if problems == 0 {
		// names must also be unique across files
		if _, err := a.loader.Define(models); err != nil {
			for _, e := range multierr.Errors(err) {
				fmt.Fprintf(stdout, "FAIL %v\n", e)
			}
			problems += len(multierr.Errors(err))
		}
	}
	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	return nil
}

// addExportFlags adds the flags shared by graph and export
func addExportFlags(fs *pflag.FlagSet, defaultFormat export.Format) {
	fs.String("format", string(defaultFormat), "mermaid, dot, json or xlsx")
	fs.Bool("flatten", false, "draw resolved leaf-to-leaf edges instead of authored transitions")
	fs.String("machine", "", "only this machine")
}

func runGraph(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("graph", "<definition path>...", stderr)
	addExportFlags(fs, export.FormatMermaid)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths, err := requirePaths(fs, stderr)
	if err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	exporter, err := newExporter(fs, a)
	if err != nil {
		return err
	}
	defs, err := a.loadDefinitions(paths)
	if err != nil {
		return err
	}

	name, _ := fs.GetString("machine")
	def, err := pickMachine(defs, name)
	if err != nil {
		return err
	}
	return exporter.Export(stdout, def)
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", "<definition path>...", stderr)
	addExportFlags(fs, export.FormatXLSX)
	fs.String("dir", "docs/machines", "directory the files are written to")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths, err := requirePaths(fs, stderr)
	if err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	exporter, err := newExporter(fs, a)
	if err != nil {
		return err
	}
	defs, err := a.loadDefinitions(paths)
	if err != nil {
		return err
	}
	if name, _ := fs.GetString("machine"); name != "" {
		def, err := pickMachine(defs, name)
		if err != nil {
			return err
		}
		defs = []*machine.Definition{def}
	}

	dir, _ := fs.GetString("dir")
	store := storage.NewLocalFileStorage(dir, a.logger)
	kind := storage.ArtifactDiagram
	if exporter.Format() == export.FormatXLSX {
		kind = storage.ArtifactWorkbook
	}

	var errs error
	for _, def := range defs {
		var buf bytes.Buffer
		if err := exporter.Export(&buf, def); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		path := filepath.Join(dir, def.Name()+exporter.Format().Extension())
		written, err := store.SaveArtifact(path, buf.Bytes(), kind)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		status := "unchanged"
		if written {
			status = "wrote"
		}
		fmt.Fprintf(stdout, "%-10s %s\n", status, path)
	}
	return errs
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("serve", "<definition path>...", stderr)
	fs.String("host", "127.0.0.1", "listen host")
	fs.Int("port", 8080, "listen port")
	fs.Duration("watch", 0, "reload definitions when they change, polling at this interval")
	addNamingFlag(fs)
	addCacheFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths, err := requirePaths(fs, stderr)
	if err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	catalog := service.NewCatalogService(func(context.Context) ([]*machine.Definition, error) {
		return a.loadDefinitions(paths)
	}, a.logger)
	if _, err := catalog.Reload(ctx); err != nil {
		return err
	}

	c, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var history service.GenerationService
	if c != nil {
		history = service.NewGenerationService(a.cfg.ToGenerationConfig(), service.GenerationDeps{
			Repo:   c.repo,
			Logger: a.logger,
		})
	}

	httpapi.Version = version
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            a.cfg.Server.Addr(),
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	}, catalog, history, a.logger)

	workers := worker.NewManager(a.logger)
	if interval := a.cfg.Server.WatchInterval; interval > 0 {
		workers.Register(worker.NewDefinitionWatcher(paths, interval, func(ctx context.Context) error {
			_, err := catalog.Reload(ctx)
			return err
		}, a.logger))
	}
	if err := workers.StartAll(ctx); err != nil {
		return err
	}
	defer workers.StopAll()

	fmt.Fprintf(stdout, "serving %d machine(s) on http://%s\n", len(catalog.List()), server.Address())
	return server.Start(ctx)
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", "", stderr)
	fs.Int("limit", 20, "number of runs to show")
	addCacheFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(fs)
	if err != nil {
		return err
	}
	defer a.close()

	c, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if c == nil {
		return errors.New("the generation cache is disabled")
	}
	defer c.Close()

	limit, _ := fs.GetInt("limit")
	runs, err := c.repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tMACHINES\tWRITTEN\tSKIPPED\tSOURCE")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			shortID(run.ID), run.Status, run.StartedAt.Local().Format(time.DateTime),
			run.Machines, run.Written, run.Skipped, run.Source)
	}
	return tw.Flush()
}

func newExporter(fs *pflag.FlagSet, a *app) (export.Exporter, error) {
	formatName, _ := fs.GetString("format")
	flatten, _ := fs.GetBool("flatten")
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	return export.New(format, export.Options{Flatten: flatten}, a.logger)
}

// pickMachine selects the named machine, or the only one when name is empty
func pickMachine(defs []*machine.Definition, name string) (*machine.Definition, error) {
	if name == "" {
		if len(defs) == 1 {
			return defs[0], nil
		}
		names := make([]string, 0, len(defs))
		for _, def := range defs {
			names = append(names, def.Name())
		}
		return nil, fmt.Errorf("%d machines loaded (%s); choose one with --machine", len(defs), strings.Join(names, ", "))
	}
	for _, def := range defs {
		if def.Name() == name {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", service.ErrMachineNotFound, name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
