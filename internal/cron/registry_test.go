package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	registry, err := NewRegistry(namedJob("overdue-invoices"), namedJob("low-stock-sweep"))
	require.NoError(t, err)
	require.NoError(t, registry.Register(namedJob("outbox-retention")))

	assert.Equal(t, []string{"overdue-invoices", "low-stock-sweep", "outbox-retention"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	_, err := NewRegistry(namedJob("sweep"), namedJob("sweep"))
	assert.ErrorContains(t, err, "registered twice")

	registry, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(namedJob("")))
	assert.Empty(t, registry.Names())
}
