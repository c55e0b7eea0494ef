// Package loader reads machine definitions from YAML and JSON documents.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/statecraft/pkg/machine"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither YAML nor JSON
	ErrUnsupportedFormat = errors.New("unsupported definition format")

	// ErrNoDefinitions is returned when a source holds no machine
	ErrNoDefinitions = errors.New("no machine definitions found")

	// ErrDuplicateMachine is returned when two loaded machines share a name
	ErrDuplicateMachine = errors.New("duplicate machine name")
)

// Format is the encoding of a definition document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Loader parses definition files into models and definitions
type Loader struct {
	opts   []machine.ValidateOption
	logger *zap.Logger
}

// NewLoader creates a loader; opts are applied when definitions are built
func NewLoader(logger *zap.Logger, opts ...machine.ValidateOption) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{opts: opts, logger: logger}
}

// Parse decodes every machine in data. YAML sources may hold several
// documents separated by "---"; JSON sources hold an object or an array.
func (l *Loader) Parse(data []byte, format Format) ([]*machine.Model, error) {
	var (
		models []*machine.Model
		err    error
	)
	switch format {
	case FormatYAML:
		models, err = parseYAML(data)
	case FormatJSON:
		models, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, ErrNoDefinitions
	}
	return models, nil
}

func parseYAML(data []byte) ([]*machine.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var models []*machine.Model
	for doc := 0; ; doc++ {
		var m machine.Model
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("yaml document %d: %w", doc, err)
		}
		if isBlank(&m) {
			continue
		}
		models = append(models, &m)
	}
	return models, nil
}

func parseJSON(data []byte) ([]*machine.Model, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if trimmed[0] == '[' {
		var models []*machine.Model
		if err := dec.Decode(&models); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return models, nil
	}

	var m machine.Model
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return []*machine.Model{&m}, nil
}

func isBlank(m *machine.Model) bool {
	return m.Name == "" && m.Initial == "" && len(m.States) == 0 && len(m.Events) == 0
}

// LoadFile reads and parses one definition file
func (l *Loader) LoadFile(path string) ([]*machine.Model, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	models, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.logger.Debug("Loaded definition file",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("machines", len(models)))
	return models, nil
}

// LoadPath loads a single file, or every YAML and JSON file under a directory
// in lexical order.
func (l *Loader) LoadPath(path string) ([]*machine.Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := FormatFromPath(p); ferr == nil {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	sort.Strings(files)

	var models []*machine.Model
	for _, f := range files {
		loaded, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		models = append(models, loaded...)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDefinitions)
	}
	return models, nil
}

// Define validates every model. All failing machines are reported together;
// definitions are returned only when every model is valid.
func (l *Loader) Define(models []*machine.Model) ([]*machine.Definition, error) {
	var (
		defs []*machine.Definition
		errs error
	)
	seen := make(map[string]bool)
	for i, m := range models {
		if m.Name != "" && seen[m.Name] {
			errs = multierr.Append(errs, fmt.Errorf("machine %d: %w: %q", i, ErrDuplicateMachine, m.Name))
			continue
		}
		seen[m.Name] = true

		def, err := machine.Define(m, l.opts...)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("machine %q: %w", m.Name, err))
			continue
		}
		defs = append(defs, def)
	}
	if errs != nil {
		return nil, errs
	}
	return defs, nil
}

// LoadDefinitions loads path and validates every machine it holds
func (l *Loader) LoadDefinitions(path string) ([]*machine.Definition, error) {
	models, err := l.LoadPath(path)
	if err != nil {
		return nil, err
	}
	return l.Define(models)
}
