package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/application/port"
	"github.com/garyjia/statecraft/internal/domain/entity"
	"github.com/garyjia/statecraft/pkg/database"
)

// ErrRunNotFound is returned when a generation run does not exist
var ErrRunNotFound = errors.New("generation run not found")

// GenerationRepository implements port.GenerationRepository on SQLite
type GenerationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewGenerationRepository creates a new generation repository
func NewGenerationRepository(db *database.DB, logger *zap.Logger) *GenerationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRun inserts a new run
func (r *GenerationRepository) CreateRun(ctx context.Context, run *entity.GenerationRun) error {
	query := `
		INSERT INTO generation_runs (
			id, source, status, machines, written, skipped, error_message, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		run.ID,
		run.Source,
		run.Status,
		run.Machines,
		run.Written,
		run.Skipped,
		nullString(run.ErrorMessage),
		run.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create generation run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run
func (r *GenerationRepository) FinishRun(ctx context.Context, run *entity.GenerationRun) error {
	query := `
		UPDATE generation_runs
		SET status = ?, machines = ?, written = ?, skipped = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		run.Status,
		run.Machines,
		run.Written,
		run.Skipped,
		nullString(run.ErrorMessage),
		run.FinishedAt,
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to finish generation run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *GenerationRepository) GetRun(ctx context.Context, id string) (*entity.GenerationRun, error) {
	query := `
		SELECT id, source, status, machines, written, skipped, error_message, started_at, finished_at
		FROM generation_runs
		WHERE id = ?
	`
	run, err := scanRun(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (r *GenerationRepository) ListRuns(ctx context.Context, limit int) ([]*entity.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, source, status, machines, written, skipped, error_message, started_at, finished_at
		FROM generation_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list generation runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetArtifact returns the cached record for machine and path, or nil
func (r *GenerationRepository) GetArtifact(ctx context.Context, machine, outputPath string) (*entity.GeneratedArtifact, error) {
	query := `
		SELECT machine, output_path, definition_hash, run_id, size_bytes, generated_at
		FROM generated_artifacts
		WHERE machine = ? AND output_path = ?
	`
	var a entity.GeneratedArtifact
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, machine, outputPath).Scan(
		&a.Machine,
		&a.OutputPath,
		&a.DefinitionHash,
		&a.RunID,
		&a.SizeBytes,
		&a.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get artifact",
			zap.String("machine", machine),
			zap.String("output_path", outputPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &a, nil
}

// UpsertArtifact records the hash an artifact was generated from
func (r *GenerationRepository) UpsertArtifact(ctx context.Context, a *entity.GeneratedArtifact) error {
	query := `
		INSERT INTO generated_artifacts (
			machine, output_path, definition_hash, run_id, size_bytes, generated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(machine, output_path) DO UPDATE SET
			definition_hash = excluded.definition_hash,
			run_id = excluded.run_id,
			size_bytes = excluded.size_bytes,
			generated_at = excluded.generated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.Machine,
		a.OutputPath,
		a.DefinitionHash,
		a.RunID,
		a.SizeBytes,
		a.GeneratedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert artifact", zap.String("machine", a.Machine), zap.Error(err))
		return fmt.Errorf("failed to upsert artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the artifacts last written by a run
func (r *GenerationRepository) ListArtifacts(ctx context.Context, runID string) ([]*entity.GeneratedArtifact, error) {
	query := `
		SELECT machine, output_path, definition_hash, run_id, size_bytes, generated_at
		FROM generated_artifacts
		WHERE run_id = ?
		ORDER BY machine, output_path
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*entity.GeneratedArtifact
	for rows.Next() {
		var a entity.GeneratedArtifact
		if err := rows.Scan(&a.Machine, &a.OutputPath, &a.DefinitionHash, &a.RunID, &a.SizeBytes, &a.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*entity.GenerationRun, error) {
	var (
		run        entity.GenerationRun
		errMsg     sql.NullString
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Status,
		&run.Machines,
		&run.Written,
		&run.Skipped,
		&errMsg,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.GenerationRepository = (*GenerationRepository)(nil)
