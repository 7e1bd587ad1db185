package agentssdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestInstrument_Defaults(t *testing.T) {
	n, _ := newInlineNotifier(t)

	wrapped := Instrument(nil, n)

	require.NotNil(t, wrapped)
	assert.NotNil(t, wrapped.enrichments)
	assert.NotNil(t, wrapped.logger)
	assert.False(t, wrapped.startTime.IsZero())
}

func TestInstrument_PassesOptions(t *testing.T) {
	n, _ := newInlineNotifier(t)
	store := NewEnrichmentStore()
	logger := zaptest.NewLogger(t)

	wrapped := Instrument(nil, n,
		WithEnrichmentStore(store),
		WithLogger(logger),
	)

	store.Update("run-1", func(e *Enrichment) { e.AgentName = "planner" })

	enrichment, ok := wrapped.enrichments.Get("run-1")
	require.True(t, ok, "wrapper should share the supplied store")
	assert.Equal(t, "planner", enrichment.AgentName)
	if wrapped.logger != logger {
		t.Error("logger was not set")
	}
}

func TestInstrument_NilOptionsKeepDefaults(t *testing.T) {
	n, _ := newInlineNotifier(t)

	wrapped := Instrument(nil, n, WithEnrichmentStore(nil), WithLogger((*zap.Logger)(nil)))

	assert.NotNil(t, wrapped.enrichments)
	assert.NotNil(t, wrapped.logger)
}
