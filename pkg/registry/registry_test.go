package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	id      string
	running bool
}

func (f *fakePipeline) ProjectID() string { return f.id }
func (f *fakePipeline) Start()            { f.running = true }
func (f *fakePipeline) Stop()             { f.running = false }
func (f *fakePipeline) IsRunning() bool   { return f.running }

func TestGetOrCreateIsSingleton(t *testing.T) {
	calls := 0
	r := New(func(id string) Pipeline {
		calls++
		return &fakePipeline{id: id}
	})

	p1 := r.GetOrCreate("proj1")
	p2 := r.GetOrCreate("proj1")
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestStopUnknownProject(t *testing.T) {
	r := New(func(id string) Pipeline { return &fakePipeline{id: id} })
	err := r.Stop("missing")
	require.Error(t, err)
	var notFound *ErrProjectNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestStartCreatesAndStarts(t *testing.T) {
	r := New(func(id string) Pipeline { return &fakePipeline{id: id} })
	r.Start("proj1")
	p, ok := r.Get("proj1")
	require.True(t, ok)
	assert.True(t, p.IsRunning())
}
