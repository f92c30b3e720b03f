package synchroniser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fluxgraph.dev/flux/internal/message"
	"fluxgraph.dev/flux/internal/synchroniser"
)

func TestPassthroughSelectsEverything(t *testing.T) {
	sources := map[string][]*message.Message{
		"a": {message.New(), message.New()},
		"b": {message.New()},
	}
	out := synchroniser.Passthrough(sources)
	assert.Equal(t, []int{0, 1}, out["a"])
	assert.Equal(t, []int{0}, out["b"])
}

func TestLatestSelectsLastOnly(t *testing.T) {
	sources := map[string][]*message.Message{
		"a": {message.New(), message.New(), message.New()},
	}
	out := synchroniser.Latest(sources)
	assert.Equal(t, []int{2}, out["a"])
}

func TestLatestEmptyOriginSelectsNothing(t *testing.T) {
	sources := map[string][]*message.Message{"a": {}}
	out := synchroniser.Latest(sources)
	assert.Nil(t, out["a"])
}

func TestRegistryHasDefaults(t *testing.T) {
	_, ok := synchroniser.Registry["passthrough"]
	assert.True(t, ok)
	_, ok = synchroniser.Registry["latest"]
	assert.True(t, ok)
}
