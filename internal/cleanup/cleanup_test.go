package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sitework/sitework/internal/storage"
	"github.com/sitework/sitework/pkg/metrics"
	"github.com/stretchr/testify/require"
)

type staticRefs struct {
	keys map[string]bool
	err  error
}

func (s staticRefs) ReferencedKeys(context.Context) (map[string]bool, error) { return s.keys, s.err }

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func seeded() *storage.MemoryStore {
	s := storage.NewMemoryStore()
	s.PutAt("docs", "old-orphan.pdf", []byte("a"), now.Add(-48*time.Hour))
	s.PutAt("docs", "old-referenced.pdf", []byte("b"), now.Add(-48*time.Hour))
	s.PutAt("docs", "new-orphan.pdf", []byte("c"), now.Add(-time.Hour))
	s.PutAt("photos", "old.jpg", []byte("d"), now.Add(-72*time.Hour))
	return s
}

func newCleaner(s storage.ObjectStore, refs ReferenceChecker) *Cleaner {
	c := NewCleaner(s, refs)
	c.now = func() time.Time { return now }
	return c
}

func TestDryRunNeverDeletes(t *testing.T) {
	s := seeded()
	c := newCleaner(s, staticRefs{keys: map[string]bool{"old-referenced.pdf": true}})

	rep := c.Run(context.Background(), Options{Buckets: []string{"docs", "photos"}, OlderThan: 24 * time.Hour, DryRun: true})
	require.False(t, rep.Failed())
	require.Len(t, rep.Buckets, 2)
	require.Equal(t, 3, rep.Buckets[0].Scanned)
	require.Equal(t, []string{"old-orphan.pdf"}, rep.Buckets[0].Orphaned)
	require.Equal(t, 0, rep.Buckets[0].Deleted)
	require.Equal(t, []string{"old.jpg"}, rep.Buckets[1].Orphaned)

	for _, k := range []string{"old-orphan.pdf", "old-referenced.pdf", "new-orphan.pdf"} {
		require.True(t, s.Has("docs", k), k)
	}
	require.True(t, s.Has("photos", "old.jpg"))
}

func TestRunDeletesOnlyOldUnreferenced(t *testing.T) {
	s := seeded()
	c := newCleaner(s, staticRefs{keys: map[string]bool{"old-referenced.pdf": true}})
	before := testutil.ToFloat64(metrics.CleanupDeleted.WithLabelValues("docs"))

	rep := c.Run(context.Background(), Options{Buckets: []string{"docs"}, OlderThan: 24 * time.Hour})
	require.Equal(t, 1, rep.Buckets[0].Deleted)
	require.False(t, s.Has("docs", "old-orphan.pdf"))
	require.True(t, s.Has("docs", "old-referenced.pdf"))
	require.True(t, s.Has("docs", "new-orphan.pdf"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.CleanupDeleted.WithLabelValues("docs")))
}

func TestReportOnlyOverridesOptions(t *testing.T) {
	s := seeded()
	c := newCleaner(s, staticRefs{keys: map[string]bool{}}).ReportOnly()

	rep := c.Run(context.Background(), Options{Buckets: []string{"docs"}, OlderThan: 24 * time.Hour, DryRun: false})
	require.True(t, rep.DryRun)
	require.Len(t, rep.Buckets[0].Orphaned, 2)
	require.Equal(t, 0, rep.Buckets[0].Deleted)
	require.True(t, s.Has("docs", "old-orphan.pdf"))
	require.True(t, s.Has("docs", "old-referenced.pdf"))
}

func TestBucketFailureIsIsolated(t *testing.T) {
	s := seeded()
	s.ListErr["docs"] = errors.New("access denied")
	c := newCleaner(s, staticRefs{keys: map[string]bool{}})

	rep := c.Run(context.Background(), Options{Buckets: []string{"docs", "photos"}, OlderThan: 24 * time.Hour})
	require.True(t, rep.Failed())
	require.NotEmpty(t, rep.Buckets[0].Errors)
	require.Empty(t, rep.Buckets[1].Errors)
	require.Equal(t, 1, rep.Buckets[1].Deleted)
	require.False(t, s.Has("photos", "old.jpg"))
}

func TestReferenceFailureDeletesNothing(t *testing.T) {
	s := seeded()
	c := newCleaner(s, staticRefs{err: errors.New("db down")})

	rep := c.Run(context.Background(), Options{Buckets: []string{"docs", "photos"}, OlderThan: time.Hour})
	require.True(t, rep.Failed())
	require.True(t, s.Has("docs", "old-orphan.pdf"))
	require.True(t, s.Has("photos", "old.jpg"))
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	s := seeded()
	c := newCleaner(s, staticRefs{keys: map[string]bool{}})
	sched := NewScheduler(c, 5*time.Millisecond, Options{Buckets: []string{"photos"}, OlderThan: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return !s.Has("photos", "old.jpg") }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
