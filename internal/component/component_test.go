package component_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/component"
	"fluxgraph.dev/flux/internal/corerr"
)

func TestBuildUnknownMarkFails(t *testing.T) {
	r := component.NewRegistry()
	_, err := r.Build(component.NodeSpec{Name: "n", Mark: "nope"}, nil, "pipe")
	assert.ErrorIs(t, err, corerr.ErrPluginLoad)
}

func TestBuildPassthroughAndSink(t *testing.T) {
	r := component.NewRegistry()

	p, err := r.Build(component.NodeSpec{Name: "p", Mark: "passthrough"}, nil, "pipe")
	require.NoError(t, err)
	assert.Equal(t, "p", p.Name)

	s, err := r.Build(component.NodeSpec{Name: "s", Mark: "sink"}, nil, "pipe")
	require.NoError(t, err)
	assert.Equal(t, "s", s.Name)
}

func TestMarksListsBuiltins(t *testing.T) {
	r := component.NewRegistry()
	marks := r.Marks()
	assert.Contains(t, marks, "passthrough")
	assert.Contains(t, marks, "sink")
}

func TestResolveSynchroniserDefaultsToPassthrough(t *testing.T) {
	s := component.ResolveSynchroniser("")
	assert.NotNil(t, s)
	s2 := component.ResolveSynchroniser("does-not-exist")
	assert.NotNil(t, s2)
}
