package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

// ErrMachineNotFound is returned when no loaded machine has the requested name
var ErrMachineNotFound = errors.New("machine not found")

// DefinitionSource produces the current set of definitions
type DefinitionSource func(ctx context.Context) ([]*machine.Definition, error)

// MachineSummary is the listing view of a machine
type MachineSummary struct {
	Name        string `json:"name"`
	Initial     string `json:"initial"`
	States      int    `json:"states"`
	Superstates int    `json:"superstates"`
	Events      int    `json:"events"`
	Edges       int    `json:"edges"`
	Async       bool   `json:"async"`
	Dynamic     bool   `json:"dynamic"`
}

// CatalogService holds the loaded machine definitions
type CatalogService interface {
	List() []MachineSummary
	Get(name string) (*machine.Definition, error)
	All() []*machine.Definition

	// Reload replaces the catalog from its source. On error the previous
	// definitions stay in place.
	Reload(ctx context.Context) (int, error)
}

type catalogServiceImpl struct {
	source DefinitionSource
	logger *zap.Logger

	mu    sync.RWMutex
	defs  map[string]*machine.Definition
	names []string
}

// NewCatalogService creates a catalog; call Reload to fill it
func NewCatalogService(source DefinitionSource, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogServiceImpl{
		source: source,
		logger: logger,
		defs:   make(map[string]*machine.Definition),
	}
}

// NewStaticCatalog creates a catalog over a fixed set of definitions
func NewStaticCatalog(defs []*machine.Definition, logger *zap.Logger) (CatalogService, error) {
	c := NewCatalogService(func(context.Context) ([]*machine.Definition, error) {
		return defs, nil
	}, logger)
	if _, err := c.Reload(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// List implements CatalogService
func (c *catalogServiceImpl) List() []MachineSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summaries := make([]MachineSummary, 0, len(c.names))
	for _, name := range c.names {
		def := c.defs[name]
		summaries = append(summaries, MachineSummary{
			Name:        def.Name(),
			Initial:     def.Initial(),
			States:      len(def.States()),
			Superstates: len(def.Superstates()),
			Events:      len(def.Events()),
			Edges:       def.Graph().Len(),
			Async:       def.Async(),
			Dynamic:     def.Dynamic(),
		})
	}
	return summaries
}

// Get implements CatalogService
func (c *catalogServiceImpl) Get(name string) (*machine.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, name)
	}
	return def, nil
}

// All implements CatalogService
func (c *catalogServiceImpl) All() []*machine.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]*machine.Definition, 0, len(c.names))
	for _, name := range c.names {
		defs = append(defs, c.defs[name])
	}
	return defs
}

// Reload implements CatalogService
func (c *catalogServiceImpl) Reload(ctx context.Context) (int, error) {
	loaded, err := c.source(ctx)
	if err != nil {
		c.logger.Error("Failed to reload machine catalog", zap.Error(err))
		return 0, err
	}

	defs := make(map[string]*machine.Definition, len(loaded))
	names := make([]string, 0, len(loaded))
	for _, def := range loaded {
		if _, dup := defs[def.Name()]; dup {
			return 0, fmt.Errorf("duplicate machine name: %s", def.Name())
		}
		defs[def.Name()] = def
		names = append(names, def.Name())
	}
	sort.Strings(names)

	c.mu.Lock()
	c.defs = defs
	c.names = names
	c.mu.Unlock()

	c.logger.Info("Machine catalog loaded", zap.Int("machines", len(names)))
	return len(names), nil
}
