package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveArtifact(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())

	t.Run("saves file successfully", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "spaceship", "spaceship_machine.go")
		content := []byte("package spaceship\n")

		written, err := fs.SaveArtifact(fullPath, content, ArtifactGoSource)

		require.NoError(t, err)
		assert.True(t, written)
		saved, err := os.ReadFile(fullPath)
		require.NoError(t, err)
		assert.Equal(t, content, saved)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "deep", "nested", "dir", "hatch.mmd")

		written, err := fs.SaveArtifact(fullPath, []byte("stateDiagram-v2\n"), ArtifactDiagram)

		require.NoError(t, err)
		assert.True(t, written)
		assert.FileExists(t, fullPath)
	})

	t.Run("skips identical content", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "same", "file.go")
		_, err := fs.SaveFile(fullPath, []byte("package same\n"))
		require.NoError(t, err)

		written, err := fs.SaveFile(fullPath, []byte("package same\n"))
		require.NoError(t, err)
		assert.False(t, written)
	})

	t.Run("overwrites changed content", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "overwrite", "file.txt")
		_, err := fs.SaveFile(fullPath, []byte("original"))
		require.NoError(t, err)

		written, err := fs.SaveFile(fullPath, []byte("updated"))
		require.NoError(t, err)
		assert.True(t, written)

		content, _ := os.ReadFile(fullPath)
		assert.Equal(t, []byte("updated"), content)
	})

	t.Run("saves empty file", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "empty.txt")
		_, err := fs.SaveFile(fullPath, []byte{})
		require.NoError(t, err)

		info, err := os.Stat(fullPath)
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.Size())
	})
}

func TestLocalFileStorage_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, nil)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid path within base", path: filepath.Join(tempDir, "pkg", "file.go")},
		{name: "base itself", path: tempDir},
		{name: "outside base directory", path: "/etc/passwd", wantErr: true},
		{name: "traversal attempt", path: filepath.Join(tempDir, "..", "..", "etc", "passwd"), wantErr: true},
		{name: "similar prefix", path: tempDir + "_malicious/file.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidatePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathEscapesBase)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := fs.SaveFile("/etc/statecraft_machine.go", []byte("x"))
	assert.ErrorIs(t, err, ErrPathEscapesBase)
}

func TestArtifactKind_String(t *testing.T) {
	assert.Equal(t, "go_source", ArtifactGoSource.String())
	assert.Equal(t, "diagram", ArtifactDiagram.String())
	assert.Equal(t, "workbook", ArtifactWorkbook.String())
	assert.Equal(t, "generic", ArtifactGeneric.String())
}
