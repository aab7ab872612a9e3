package geoqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatuser struct{ healthy bool }

func (f fakeStatuser) CanMakeRequest() bool { return f.healthy }

type fakeLookup struct {
	mu       sync.Mutex
	statuses map[string]fakeStatuser
	groups   map[string]string
}

func (f *fakeLookup) Status(engineID string) (EngineStatuser, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[engineID]
	return s, f.groups[engineID], ok
}

func (f *fakeLookup) setHealthy(engineID string, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[engineID] = fakeStatuser{healthy: healthy}
}

func TestFIFOAtEqualPriority(t *testing.T) {
	lookup := &fakeLookup{statuses: map[string]fakeStatuser{"bing_api": {healthy: true}}, groups: map[string]string{}}

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	q := New(Config{
		Engines: lookup,
		Handler: func(ctx context.Context, t Task) error {
			mu.Lock()
			order = append(order, t.Keyword)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil
		},
	})

	q.EnqueueBatch([]Task{
		{EngineID: "bing_api", Keyword: "a", Priority: 1},
		{EngineID: "bing_api", Keyword: "b", Priority: 1},
		{EngineID: "bing_api", Keyword: "c", Priority: 1},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestGroupDailyCapBlocksDispatch(t *testing.T) {
	lookup := &fakeLookup{
		statuses: map[string]fakeStatuser{"google_maps": {healthy: true}},
		groups:   map[string]string{"google_maps": "google"},
	}

	var handled int32
	var mu sync.Mutex
	total := 200

	q := New(Config{
		Engines: lookup,
		Handler: func(ctx context.Context, t Task) error {
			mu.Lock()
			handled++
			mu.Unlock()
			return nil
		},
		GroupTotal: func(group string) int {
			mu.Lock()
			defer mu.Unlock()
			return total
		},
	})

	q.EnqueueBatch([]Task{{EngineID: "google_maps", Priority: 1}})
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, int32(0), handled)
	mu.Unlock()
	require.True(t, q.HasRetryTimer("google_maps"))

	mu.Lock()
	total = 190
	mu.Unlock()

	q.EnsureProcessing()
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), handled)
}
