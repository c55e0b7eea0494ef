package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/application/dispatcher"
	"github.com/garyjia/statecraft/internal/application/port"
	"github.com/garyjia/statecraft/internal/domain/entity"
	"github.com/garyjia/statecraft/internal/domain/event"
	"github.com/garyjia/statecraft/internal/storage"
	"github.com/garyjia/statecraft/pkg/machine"
)

// hashVersion changes whenever generated output changes for an unchanged definition
const hashVersion = "statecraft-codegen/1"

// GenerateRequest describes one generation run
type GenerateRequest struct {
	// Source is recorded with the run, usually the definition path
	Source      string
	Definitions []*machine.Definition
	// Force regenerates even when the cache says the output is current
	Force bool
	// Prune removes generated files of machines that are no longer defined
	Prune bool
}

// GenerateReport summarizes a run
type GenerateReport struct {
	RunID   string   `json:"run_id"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
	Removed []string `json:"removed,omitempty"`
}

// GenerationService generates typed machine packages
type GenerationService interface {
	// Generate renders and writes every definition. A failing machine does
	// not stop the others; all failures are returned together.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateReport, error)

	// History lists recent runs; empty when the cache is disabled
	History(ctx context.Context, limit int) ([]*entity.GenerationRun, error)
}

// GenerationConfig controls where artifacts are written
type GenerationConfig struct {
	OutputDir      string
	PerPackageDirs bool
	FileSuffix     string
}

// GenerationDeps are the collaborators of the generation service.
// Repo, TxManager and Dispatcher are optional.
type GenerationDeps struct {
	Generator  port.CodeGenerator
	Storage    port.ArtifactStorage
	Folders    port.FolderManager
	Repo       port.GenerationRepository
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

type generationServiceImpl struct {
	cfg  GenerationConfig
	deps GenerationDeps
	now  func() time.Time
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(cfg GenerationConfig, deps GenerationDeps) GenerationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &generationServiceImpl{cfg: cfg, deps: deps, now: time.Now}
}

type plannedArtifact struct {
	def  *machine.Definition
	pkg  string
	path string
	hash string
}

// Generate implements GenerationService
func (s *generationServiceImpl) Generate(ctx context.Context, req GenerateRequest) (*GenerateReport, error) {
	run := &entity.GenerationRun{
		ID:        uuid.NewString(),
		Source:    req.Source,
		Status:    entity.RunStatusRunning,
		Machines:  len(req.Definitions),
		StartedAt: s.now(),
	}
	logger := s.deps.Logger.With(zap.String("run_id", run.ID))

	if s.deps.Repo != nil {
		if err := s.deps.Repo.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}
	s.emit(ctx, event.TypeRunStarted, run.ID, "", map[string]interface{}{
		"source":   req.Source,
		"machines": len(req.Definitions),
	})

	report := &GenerateReport{RunID: run.ID}
	var (
		errs     error
		recorded []*entity.GeneratedArtifact
		keep     = make(map[string][]string)
	)

	for _, def := range req.Definitions {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		plan, err := s.plan(def)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		keep[plan.pkg] = append(keep[plan.pkg], filepath.Base(plan.path))

		if !req.Force && s.isCurrent(ctx, plan) {
			report.Skipped = append(report.Skipped, plan.path)
			s.emit(ctx, event.TypeArtifactSkipped, run.ID, def.Name(), map[string]interface{}{
				"path":   plan.path,
				"reason": "cached",
			})
			continue
		}

		src, err := s.deps.Generator.Generate(def)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		written, err := s.deps.Storage.SaveArtifact(plan.path, src, storage.ArtifactGoSource)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", def.Name(), err))
			continue
		}

		recorded = append(recorded, &entity.GeneratedArtifact{
			Machine:        def.Name(),
			OutputPath:     plan.path,
			DefinitionHash: plan.hash,
			RunID:          run.ID,
			SizeBytes:      int64(len(src)),
			GeneratedAt:    s.now(),
		})

		if !written {
			report.Skipped = append(report.Skipped, plan.path)
			s.emit(ctx, event.TypeArtifactSkipped, run.ID, def.Name(), map[string]interface{}{
				"path":   plan.path,
				"reason": "unchanged",
			})
			continue
		}
		report.Written = append(report.Written, plan.path)
		s.emit(ctx, event.TypeArtifactWritten, run.ID, def.Name(), map[string]interface{}{
			"path": plan.path,
			"size": len(src),
		})
		logger.Info("Generated machine",
			zap.String("machine", def.Name()),
			zap.String("path", plan.path))
	}

	if req.Prune && s.cfg.PerPackageDirs && errs == nil {
		removed, err := s.prune(keep)
		report.Removed = removed
		errs = multierr.Append(errs, err)
	}

	run.Written = len(report.Written)
	run.Skipped = len(report.Skipped)
	run.Status = entity.RunStatusCompleted
	if errs != nil {
		run.Status = entity.RunStatusFailed
		run.ErrorMessage = errs.Error()
	}
	finished := s.now()
	run.FinishedAt = &finished

	if err := s.record(ctx, run, recorded); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.emit(ctx, event.TypeRunFinished, run.ID, "", map[string]interface{}{
		"status":  run.Status,
		"written": run.Written,
		"skipped": run.Skipped,
	})
	logger.Debug("Generation run finished",
		zap.String("status", run.Status),
		zap.Int("written", run.Written),
		zap.Int("skipped", run.Skipped))

	return report, errs
}

// History implements GenerationService
func (s *generationServiceImpl) History(ctx context.Context, limit int) ([]*entity.GenerationRun, error) {
	if s.deps.Repo == nil {
		return nil, nil
	}
	return s.deps.Repo.ListRuns(ctx, limit)
}

func (s *generationServiceImpl) plan(def *machine.Definition) (*plannedArtifact, error) {
	pkg := s.deps.Generator.PackageName(def)
	dir := s.cfg.OutputDir
	if s.cfg.PerPackageDirs {
		folder, err := s.deps.Folders.CreatePackageFolder(pkg)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", def.Name(), err)
		}
		dir = folder
	}
	path := filepath.Join(dir, s.deps.Generator.FileName(def))
	if err := s.deps.Storage.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", def.Name(), err)
	}

	hash, err := DefinitionHash(def, pkg, s.deps.Generator.Fingerprint())
	if err != nil {
		return nil, err
	}
	return &plannedArtifact{def: def, pkg: pkg, path: path, hash: hash}, nil
}

// isCurrent reports whether the cache holds the same hash and the file still exists
func (s *generationServiceImpl) isCurrent(ctx context.Context, plan *plannedArtifact) bool {
	if s.deps.Repo == nil {
		return false
	}
	cached, err := s.deps.Repo.GetArtifact(ctx, plan.def.Name(), plan.path)
	if err != nil || cached == nil || cached.DefinitionHash != plan.hash {
		return false
	}
	_, err = os.Stat(plan.path)
	return err == nil
}

func (s *generationServiceImpl) prune(keep map[string][]string) ([]string, error) {
	pkgs := make([]string, 0, len(keep))
	for pkg := range keep {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var (
		removed []string
		errs    error
	)
	for _, pkg := range pkgs {
		names, err := s.deps.Folders.RemoveStale(pkg, s.cfg.FileSuffix, keep[pkg])
		for _, name := range names {
			removed = append(removed, filepath.Join(s.deps.Folders.PackageFolderPath(pkg), name))
		}
		errs = multierr.Append(errs, err)
	}
	return removed, errs
}

// record stores the artifacts and the final run state in one transaction
func (s *generationServiceImpl) record(ctx context.Context, run *entity.GenerationRun, artifacts []*entity.GeneratedArtifact) error {
	if s.deps.Repo == nil {
		return nil
	}
	write := func(ctx context.Context) error {
		for _, a := range artifacts {
			if err := s.deps.Repo.UpsertArtifact(ctx, a); err != nil {
				return err
			}
		}
		return s.deps.Repo.FinishRun(ctx, run)
	}
	if s.deps.TxManager == nil {
		return write(ctx)
	}
	return s.deps.TxManager.WithTransaction(ctx, write)
}

func (s *generationServiceImpl) emit(ctx context.Context, t event.Type, runID, machineName string, payload map[string]interface{}) {
	if s.deps.Dispatcher == nil {
		return
	}
	if err := s.deps.Dispatcher.Dispatch(ctx, event.NewEvent(t, runID, machineName, payload)); err != nil {
		s.deps.Logger.Warn("Event handler failed",
			zap.String("event_type", t.String()),
			zap.Error(err))
	}
}

// DefinitionHash fingerprints everything that influences the generated file:
// the definition, the package clause and the generator options
func DefinitionHash(def *machine.Definition, pkg, generator string) (string, error) {
	data, err := json.Marshal(struct {
		Version   string         `json:"version"`
		Package   string         `json:"package"`
		Generator string         `json:"generator"`
		Model     *machine.Model `json:"model"`
	}{hashVersion, pkg, generator, def.Model()})
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", def.Name(), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
