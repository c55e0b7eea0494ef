package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrPathEscapesBase is returned for paths outside the storage base directory
var ErrPathEscapesBase = errors.New("path escapes base directory")

// ArtifactKind represents the type of artifact being stored
type ArtifactKind int

const (
	ArtifactGeneric ArtifactKind = iota
	ArtifactGoSource
	ArtifactDiagram
	ArtifactWorkbook
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactGoSource:
		return "go_source"
	case ArtifactDiagram:
		return "diagram"
	case ArtifactWorkbook:
		return "workbook"
	}
	return "generic"
}

// FileStorage defines the interface for artifact storage operations
type FileStorage interface {
	// SaveFile writes content to the specified full path
	// Creates parent directories if needed
	SaveFile(fullPath string, content []byte) (bool, error)

	// SaveArtifact writes content and records its kind in the logs
	SaveArtifact(fullPath string, content []byte, kind ArtifactKind) (bool, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the directory every artifact must live under
func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}

// SaveFile writes content to the specified full path
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) (bool, error) {
	return s.SaveArtifact(fullPath, content, ArtifactGeneric)
}

// SaveArtifact writes content unless the file already holds exactly that
// content. It reports whether the file was written.
func (s *LocalFileStorage) SaveArtifact(fullPath string, content []byte, kind ArtifactKind) (bool, error) {
	if err := s.ValidatePath(fullPath); err != nil {
		return false, err
	}

	if existing, err := os.ReadFile(fullPath); err == nil && bytes.Equal(existing, content) {
		s.logger.Debug("Artifact unchanged, skipping write",
			zap.String("path", fullPath),
			zap.String("kind", kind.String()))
		return false, nil
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return false, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write artifact",
			zap.String("path", fullPath),
			zap.Error(err))
		return false, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Artifact saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.String("kind", kind.String()))

	return true, nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// base + separator, so /out_evil does not pass for /out
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("%w: %s", ErrPathEscapesBase, fullPath)
	}

	return nil
}
