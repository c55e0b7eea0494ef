package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/domain/entity"
	"github.com/garyjia/statecraft/pkg/database"
)

func newTestRepo(t *testing.T) (*GenerationRepository, *database.DB) {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "cache.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Migrate(context.Background()))
	return NewGenerationRepository(db, zap.NewNop()), db
}

func TestGenerationRepository_Runs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &entity.GenerationRun{
		ID:        "run-1",
		Source:    "machines/",
		Status:    entity.RunStatusRunning,
		StartedAt: started,
	}
	require.NoError(t, repo.CreateRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, started.Equal(got.StartedAt))

	finished := started.Add(time.Second)
	run.Status = entity.RunStatusCompleted
	run.Machines = 3
	run.Written = 2
	run.Skipped = 1
	run.FinishedAt = &finished
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Written)
	assert.Equal(t, 1, got.Skipped)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	t.Run("missing run", func(t *testing.T) {
		_, err := repo.GetRun(ctx, "nope")
		assert.ErrorIs(t, err, ErrRunNotFound)

		err = repo.FinishRun(ctx, &entity.GenerationRun{ID: "nope", Status: entity.RunStatusFailed})
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, repo.CreateRun(ctx, &entity.GenerationRun{
			ID:           "run-2",
			Source:       "spaceship.yaml",
			Status:       entity.RunStatusFailed,
			ErrorMessage: "invalid initial state",
			StartedAt:    started.Add(time.Hour),
		}))

		runs, err := repo.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, "invalid initial state", runs[0].ErrorMessage)
		assert.Equal(t, "run-1", runs[1].ID)

		runs, err = repo.ListRuns(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestGenerationRepository_Artifacts(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, repo.CreateRun(ctx, &entity.GenerationRun{ID: id, Source: "x", Status: entity.RunStatusRunning, StartedAt: now}))
	}

	missing, err := repo.GetArtifact(ctx, "spaceship", "out/spaceship/spaceship_machine.go")
	require.NoError(t, err)
	assert.Nil(t, missing)

	artifact := &entity.GeneratedArtifact{
		Machine:        "spaceship",
		OutputPath:     "out/spaceship/spaceship_machine.go",
		DefinitionHash: "abc",
		RunID:          "run-1",
		SizeBytes:      120,
		GeneratedAt:    now,
	}
	require.NoError(t, repo.UpsertArtifact(ctx, artifact))

	got, err := repo.GetArtifact(ctx, "spaceship", artifact.OutputPath)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.DefinitionHash)
	assert.Equal(t, int64(120), got.SizeBytes)

	artifact.DefinitionHash = "def"
	artifact.RunID = "run-2"
	require.NoError(t, db.WithTransaction(ctx, func(ctx context.Context) error {
		return repo.UpsertArtifact(ctx, artifact)
	}))

	got, err = repo.GetArtifact(ctx, "spaceship", artifact.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "def", got.DefinitionHash)
	assert.Equal(t, "run-2", got.RunID)

	list, err := repo.ListArtifacts(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = repo.ListArtifacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
