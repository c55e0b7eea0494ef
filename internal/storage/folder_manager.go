package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// FolderManager manages the per-package output folders of generated code
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreatePackageFolder creates {baseDir}/{pkg}/ and returns its path
func (m *FolderManager) CreatePackageFolder(pkg string) (string, error) {
	safeName := m.SanitizeFolderName(pkg)
	if safeName == "" {
		return "", fmt.Errorf("cannot create folder for package %q", pkg)
	}
	folderPath := filepath.Join(m.baseDir, safeName)

	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create package folder",
			zap.String("package", pkg),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created package folder",
		zap.String("package", pkg),
		zap.String("folder_path", folderPath))

	return folderPath, nil
}

// PackageFolderPath returns the folder for pkg without creating it
func (m *FolderManager) PackageFolderPath(pkg string) string {
	return filepath.Join(m.baseDir, m.SanitizeFolderName(pkg))
}

// FolderExists checks if the package folder already exists
func (m *FolderManager) FolderExists(pkg string) bool {
	info, err := os.Stat(m.PackageFolderPath(pkg))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// RemoveStale deletes files in the package folder that end in suffix and
// are not listed in keep. It returns the removed file names.
func (m *FolderManager) RemoveStale(pkg, suffix string, keep []string) ([]string, error) {
	folderPath := m.PackageFolderPath(pkg)
	entries, err := os.ReadDir(folderPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) || keepSet[name] {
			continue
		}
		if err := os.Remove(filepath.Join(folderPath, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		m.logger.Info("Removed stale artifact",
			zap.String("package", pkg),
			zap.String("file", name))
		removed = append(removed, name)
	}
	return removed, nil
}

// SanitizeFolderName returns a filesystem-safe version of the name.
// Path separators and parent references are dropped before other unsafe characters.
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}
