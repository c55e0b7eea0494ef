package port

import (
	"context"

	"github.com/garyjia/statecraft/internal/domain/entity"
)

// GenerationRepository persists generation runs and the artifact cache
type GenerationRepository interface {
	CreateRun(ctx context.Context, run *entity.GenerationRun) error
	FinishRun(ctx context.Context, run *entity.GenerationRun) error
	GetRun(ctx context.Context, id string) (*entity.GenerationRun, error)
	ListRuns(ctx context.Context, limit int) ([]*entity.GenerationRun, error)

	// GetArtifact returns nil without error when nothing is cached for the pair
	GetArtifact(ctx context.Context, machine, outputPath string) (*entity.GeneratedArtifact, error)
	UpsertArtifact(ctx context.Context, artifact *entity.GeneratedArtifact) error
	ListArtifacts(ctx context.Context, runID string) ([]*entity.GeneratedArtifact, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
