package port

import "github.com/garyjia/statecraft/internal/storage"

// ArtifactStorage writes generated files under a base directory
type ArtifactStorage interface {
	SaveArtifact(fullPath string, content []byte, kind storage.ArtifactKind) (bool, error)
	ValidatePath(fullPath string) error
}

// FolderManager manages per-package output folders
type FolderManager interface {
	CreatePackageFolder(pkg string) (string, error)
	PackageFolderPath(pkg string) string
	RemoveStale(pkg, suffix string, keep []string) ([]string, error)
}
