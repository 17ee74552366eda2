// Package cleanup removes stored objects that no live row references.
package cleanup

import (
	"context"
	"time"

	"github.com/sitework/sitework/internal/storage"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
)

// ReferenceChecker returns every object key still referenced by application data.
type ReferenceChecker interface {
	ReferencedKeys(ctx context.Context) (map[string]bool, error)
}

type Options struct {
	Buckets   []string      `json:"buckets"`
	OlderThan time.Duration `json:"-"`
	DryRun    bool          `json:"dryRun"`
}

// BucketReport is the outcome for one bucket. Errors never abort other buckets.
type BucketReport struct {
	Bucket   string   `json:"bucket"`
	Scanned  int      `json:"scanned"`
	Orphaned []string `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors,omitempty"`
}

type Report struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	DryRun     bool           `json:"dryRun"`
	Cutoff     time.Time      `json:"cutoff"`
	Buckets    []BucketReport `json:"buckets"`
}

// Failed reports whether any bucket recorded an error.
func (r *Report) Failed() bool {
	for _, b := range r.Buckets {
		if len(b.Errors) > 0 {
			return true
		}
	}
	return false
}

type Cleaner struct {
	store      storage.ObjectStore
	refs       ReferenceChecker
	reportOnly bool
	now        func() time.Time
}

func NewCleaner(store storage.ObjectStore, refs ReferenceChecker) *Cleaner {
	return &Cleaner{store: store, refs: refs, now: time.Now}
}

// ReportOnly makes every later Run a dry run, whatever its options say. Used
// when the reference set cannot see everything that points into the store.
func (c *Cleaner) ReportOnly() *Cleaner {
	c.reportOnly = true
	return c
}

// Run scans each bucket for objects last modified before now-OlderThan that are
// not referenced, and deletes them unless DryRun is set.
func (c *Cleaner) Run(ctx context.Context, opts Options) *Report {
	if c.reportOnly {
		opts.DryRun = true
	}
	start := c.now()
	rep := &Report{StartedAt: start, DryRun: opts.DryRun, Cutoff: start.Add(-opts.OlderThan)}

	refs, refErr := c.refs.ReferencedKeys(ctx)
	for _, bucket := range opts.Buckets {
		br := BucketReport{Bucket: bucket, Orphaned: []string{}}
		if refErr != nil {
			// without the reference set nothing can be classified safely
			br.Errors = append(br.Errors, "load references: "+refErr.Error())
			metrics.CleanupErrors.WithLabelValues(bucket).Inc()
			rep.Buckets = append(rep.Buckets, br)
			continue
		}
		c.runBucket(ctx, bucket, rep.Cutoff, refs, opts.DryRun, &br)
		rep.Buckets = append(rep.Buckets, br)
	}
	rep.FinishedAt = c.now()
	return rep
}

func (c *Cleaner) runBucket(ctx context.Context, bucket string, cutoff time.Time, refs map[string]bool, dryRun bool, br *BucketReport) {
	log := logger.With(logger.Fields{"bucket": bucket, "dry_run": dryRun})
	objs, err := c.store.List(ctx, bucket)
	if err != nil {
		br.Errors = append(br.Errors, "list: "+err.Error())
		metrics.CleanupErrors.WithLabelValues(bucket).Inc()
		log.Errorf("cleanup list failed: %v", err)
		return
	}
	br.Scanned = len(objs)
	for _, o := range objs {
		if !o.LastModified.Before(cutoff) || refs[o.Key] {
			continue
		}
		br.Orphaned = append(br.Orphaned, o.Key)
		metrics.CleanupOrphaned.WithLabelValues(bucket).Inc()
		if dryRun {
			continue
		}
		if err := c.store.Remove(ctx, bucket, o.Key); err != nil {
			br.Errors = append(br.Errors, o.Key+": "+err.Error())
			metrics.CleanupErrors.WithLabelValues(bucket).Inc()
			continue
		}
		br.Deleted++
		metrics.CleanupDeleted.WithLabelValues(bucket).Inc()
	}
	log.Infof("cleanup scanned=%d orphaned=%d deleted=%d", br.Scanned, len(br.Orphaned), br.Deleted)
}
