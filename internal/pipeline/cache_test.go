package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"pipeboard/internal/crm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithinWindowServesCache(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{
		"New Lead": {{ID: "1", Name: "Jane", Stage: "New Lead"}},
	}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Minute)

	first, err := cache.Load(context.Background(), false)
	require.NoError(t, err)
	second, err := cache.Load(context.Background(), false)
	require.NoError(t, err)

	assert.Same(t, first, second, "fresh snapshot should be served as-is")
	assert.Equal(t, 1, gw.fetchLeadsCalls)
	assert.Equal(t, 1, gw.fetchMetricsCalls)
}

func TestLoadForceBypassesWindow(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Minute)

	_, err := cache.Load(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.Load(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, gw.fetchLeadsCalls)
	assert.Equal(t, 2, gw.fetchMetricsCalls)
}

func TestLoadExpiredWindowFetches(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Nanosecond)

	_, err := cache.Load(context.Background(), false)
	require.NoError(t, err)
	time.Sleep(2 * time.Nanosecond)
	_, err = cache.Load(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, gw.fetchLeadsCalls)
}

func TestLoadFailureLeavesCacheUntouched(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{
		"New Lead": {{ID: "1", Name: "Jane", Stage: "New Lead"}},
	}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Nanosecond)

	good, err := cache.Load(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, cache.LastError())

	gw.fetchLeadsErr = errors.New("connection refused")
	_, err = cache.Load(context.Background(), true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetch leads")

	assert.Same(t, good, cache.Snapshot(), "failed load must not replace the snapshot")
	assert.Equal(t, err, cache.LastError())

	// Recovery clears the recorded error.
	gw.fetchLeadsErr = nil
	_, err = cache.Load(context.Background(), true)
	require.NoError(t, err)
	assert.NoError(t, cache.LastError())
}

func TestLoadRejectedEnvelopeIsAFailure(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Minute)

	_, err := cache.Load(context.Background(), false)
	require.NoError(t, err)
	before := cache.Snapshot()

	gw.metricsReject = "rate limited"
	_, err = cache.Load(context.Background(), true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")
	assert.Same(t, before, cache.Snapshot())
}

func TestLoadMergesObservedStages(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{
		"Contacted": {{ID: "2", Name: "Bob", Stage: "Contacted"}},
		"Won":       {{ID: "3", Name: "Eve", Stage: "Won"}},
	}}
	registry := NewStageRegistry("New Lead", "Contacted")
	cache := NewCache(gw, registry, time.Minute)

	snap, err := cache.Load(context.Background(), true)
	require.NoError(t, err)

	// Defaults keep their position; the server-only stage is appended.
	assert.Equal(t, []string{"New Lead", "Contacted", "Won"}, registry.Names())

	// Every registered stage has a list, even when the server omitted it.
	list, ok := snap.LeadsByStage["New Lead"]
	require.True(t, ok)
	assert.Empty(t, list)
	assert.Len(t, snap.LeadsByStage["Won"], 1)
}

func TestLocalColumnSurvivesRefresh(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{
		"New Lead": {{ID: "1", Name: "Jane", Stage: "New Lead"}},
	}}
	registry := NewStageRegistry("New Lead")
	cache := NewCache(gw, registry, time.Minute)

	registry.Register("VIP")
	snap, err := cache.Load(context.Background(), true)
	require.NoError(t, err)

	list, ok := snap.LeadsByStage["VIP"]
	require.True(t, ok, "locally registered column must appear after a refresh")
	assert.Empty(t, list)
}

func TestLoadCarriesMetrics(t *testing.T) {
	gw := &mockGateway{
		leads: map[string][]*crm.Lead{"New Lead": {}},
		metrics: map[string]crm.StageMetrics{
			"New Lead": {"avgTime": "2d", "conversion": 0.4},
		},
	}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Minute)

	snap, err := cache.Load(context.Background(), true)
	require.NoError(t, err)
	require.Contains(t, snap.Metrics, "New Lead")
	assert.Equal(t, "2d", snap.Metrics["New Lead"]["avgTime"])
}

func TestSetTTLAdjustsWindow(t *testing.T) {
	gw := &mockGateway{leads: map[string][]*crm.Lead{}}
	cache := NewCache(gw, NewStageRegistry("New Lead"), time.Minute)

	_, err := cache.Load(context.Background(), false)
	require.NoError(t, err)

	cache.SetTTL(time.Nanosecond)
	time.Sleep(2 * time.Nanosecond)
	_, err = cache.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.fetchLeadsCalls, "shrunk window should force a refetch")

	cache.SetTTL(0)
	assert.Equal(t, time.Nanosecond, cache.TTL(), "non-positive TTL is ignored")
}

func TestSeedSnapshotIsExpired(t *testing.T) {
	cache := NewCache(&mockGateway{}, NewStageRegistry("New Lead"), time.Hour)
	snap := cache.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Expired(time.Hour))
	assert.Contains(t, snap.LeadsByStage, "New Lead")
}
