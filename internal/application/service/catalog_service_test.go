package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

func TestCatalogService(t *testing.T) {
	defs := []*machine.Definition{testDefinition(t, "hatch"), testDefinition(t, "airlock")}
	catalog, err := NewStaticCatalog(defs, zap.NewNop())
	require.NoError(t, err)

	summaries := catalog.List()
	require.Len(t, summaries, 2)
	assert.Equal(t, "airlock", summaries[0].Name, "sorted by name")
	assert.Equal(t, MachineSummary{
		Name:    "hatch",
		Initial: "Closed",
		States:  2,
		Events:  2,
		Edges:   2,
	}, summaries[1])

	def, err := catalog.Get("hatch")
	require.NoError(t, err)
	assert.Same(t, defs[0], def)

	_, err = catalog.Get("cargo_bay")
	assert.ErrorIs(t, err, ErrMachineNotFound)

	all := catalog.All()
	require.Len(t, all, 2)
	assert.Equal(t, "airlock", all[0].Name())
}

func TestCatalogService_Reload(t *testing.T) {
	ctx := context.Background()
	hatch := testDefinition(t, "hatch")
	var (
		current = []*machine.Definition{hatch}
		failure error
	)
	catalog := NewCatalogService(func(context.Context) ([]*machine.Definition, error) {
		return current, failure
	}, nil)

	assert.Empty(t, catalog.List())

	n, err := catalog.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("failed reload keeps previous definitions", func(t *testing.T) {
		failure = errors.New("yaml: line 3: mapping values are not allowed")
		_, err := catalog.Reload(ctx)
		require.Error(t, err)
		_, err = catalog.Get("hatch")
		assert.NoError(t, err)
		failure = nil
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		current = []*machine.Definition{hatch, testDefinition(t, "hatch")}
		_, err := catalog.Reload(ctx)
		assert.Error(t, err)
		assert.Len(t, catalog.List(), 1)
	})

	t.Run("reload replaces the set", func(t *testing.T) {
		current = []*machine.Definition{testDefinition(t, "airlock")}
		n, err := catalog.Reload(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = catalog.Get("hatch")
		assert.ErrorIs(t, err, ErrMachineNotFound)
	})
}
