package writerid_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/writerid"
)

func TestGenerateProducesValidCanonicalID(t *testing.T) {
	id, err := writerid.Generate()
	require.NoError(t, err)
	assert.Len(t, string(id), 28)
	assert.True(t, len(id) > 2 && string(id)[:2] == "w_")
	assert.NoError(t, writerid.Validate(id))
}

func TestGenerateIsNotConstant(t *testing.T) {
	a, err := writerid.Generate()
	require.NoError(t, err)
	b, err := writerid.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateUserSupplied(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"alice", true},
		{"alice.laptop-1", true},
		{"alice_2", true},
		{"", false},
		{"../escape", false},
		{".hidden", false},
		{"has space", false},
		{"has/slash", false},
	}
	for _, c := range cases {
		err := writerid.Validate(writerid.ID(c.id))
		if c.valid {
			assert.NoErrorf(t, err, "expected %q to be valid", c.id)
		} else {
			assert.Errorf(t, err, "expected %q to be invalid", c.id)
		}
	}
}

func TestValidateRejectsMalformedCanonical(t *testing.T) {
	assert.Error(t, writerid.Validate("w_tooshort"))
	assert.Error(t, writerid.Validate(writerid.ID("w_"+string(make([]byte, 26)))))
}

func TestLoadOrCreatePersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "writer-identity.json")

	first, err := writerid.LoadOrCreate(cfgPath, "graph-a", "")
	require.NoError(t, err)

	second, err := writerid.LoadOrCreate(cfgPath, "graph-a", "")
	require.NoError(t, err)

	assert.Equal(t, first, second, "writer id must not change once persisted")
}

func TestLoadOrCreateDistinctPerGraph(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "writer-identity.json")

	a, err := writerid.LoadOrCreate(cfgPath, "graph-a", "")
	require.NoError(t, err)
	b, err := writerid.LoadOrCreate(cfgPath, "graph-b", "")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLoadOrCreateHonorsPreferred(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "writer-identity.json")

	id, err := writerid.LoadOrCreate(cfgPath, "graph-a", "alice")
	require.NoError(t, err)
	assert.Equal(t, writerid.ID("alice"), id)
}
