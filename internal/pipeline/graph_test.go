package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStages_RegistryIsValid(t *testing.T) {
	p := &Pipeline{}
	ordered, err := orderStages(p.stages())
	require.NoError(t, err)
	require.Len(t, ordered, 10)

	pos := make(map[string]int, len(ordered))
	for i, s := range ordered {
		pos[s.ID] = i
	}
	for _, s := range ordered {
		for _, dep := range s.Deps {
			assert.Less(t, pos[dep], pos[s.ID], "%s must run after %s", s.ID, dep)
		}
	}
	assert.Equal(t, "fetch", ordered[0].ID)
	assert.Equal(t, "export", ordered[len(ordered)-1].ID)
}

func TestOrderStages_Deterministic(t *testing.T) {
	p := &Pipeline{}
	first, err := orderStages(p.stages())
	require.NoError(t, err)
	for range 5 {
		again, err := orderStages(p.stages())
		require.NoError(t, err)
		for i := range first {
			assert.Equal(t, first[i].ID, again[i].ID)
		}
	}
}

func TestOrderStages_Cycle(t *testing.T) {
	stages := []Stage{
		{ID: "a", Deps: []string{"b"}},
		{ID: "b", Deps: []string{"a"}},
	}
	_, err := orderStages(stages)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "cycle")
}

func TestOrderStages_UnknownDep(t *testing.T) {
	stages := []Stage{{ID: "a", Deps: []string{"missing"}}}
	_, err := orderStages(stages)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "missing")
}

func TestOrderStages_DuplicateID(t *testing.T) {
	stages := []Stage{{ID: "a"}, {ID: "a"}}
	_, err := orderStages(stages)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestEnabledSet(t *testing.T) {
	stages := []Stage{
		{ID: "a", Mandatory: true},
		{ID: "b"},
	}

	set, err := enabledSet(stages, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, set["a"])
	assert.True(t, set["b"])

	set, err = enabledSet(stages, []string{"a"})
	require.NoError(t, err)
	assert.False(t, set["b"])

	_, err = enabledSet(stages, []string{"a", "nope"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = enabledSet(stages, []string{"b"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "mandatory")
}
