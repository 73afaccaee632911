// Package gc provides garbage collection for orphaned objects.
//
// An object is orphaned when no chain of hard links from the root group
// reaches it and it is not the metadata or attribute object of an object
// that is reached. Orphans can be left behind by:
//   - Crashes between provisioning an object and linking it
//   - Cascade deletes that failed after unlinking only some sub-objects
//   - Rollbacks that could not unlink what they had created
//
// The collector marks from the root at one snapshot and sweeps in the
// following write epoch, so it must not run concurrently with writers that
// provision an object in one epoch and link it in a later one.
package gc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/marmos91/dittolink/pkg/store/object"
)

// Lister enumerates every object of a store.
type Lister interface {
	ListObjects(ctx context.Context, rtid object.TxID) ([]object.ObjectID, error)
}

// RunFunc runs fn inside one write epoch and commits it.
type RunFunc func(ctx context.Context, fn func(tx object.Tx) error) error

// Collector performs periodic garbage collection on one container.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	lister  Lister
	service *link.Service
	run     RunFunc
	config  Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection is active
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// BatchSize is how many orphans are unlinked between cancellation
	// checks (default: 1000)
	BatchSize int

	// DryRun mode logs what would be deleted without actually deleting
	DryRun bool

	// ChecksumScope is used when reading scratch pads during marking
	ChecksumScope link.ChecksumScope
}

// runTimeout bounds one background collection.
const runTimeout = 10 * time.Minute

// NewCollector creates a new garbage collector.
//
// The collector will be initialized but not started. Call Start() to begin
// background garbage collection.
//
// Parameters:
//   - lister: Enumerates the objects of the container's store
//   - service: Link service over the same store
//   - run: Opens the write epoch each collection runs in
//   - config: Garbage collection configuration
func NewCollector(lister Lister, service *link.Service, run RunFunc, config Config) (*Collector, error) {
	if lister == nil || service == nil || run == nil {
		return nil, fmt.Errorf("gc: lister, service and run are required")
	}

	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}

	return &Collector{
		lister:  lister,
		service: service,
		run:     run,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins background garbage collection.
//
// This starts a goroutine that runs a collection every Interval until Stop
// is called. A disabled collector does nothing.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for an in-progress collection
// to finish, or for ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection and blocks until it completes or ctx is
// cancelled. It works whether or not the collector is enabled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic garbage collection.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single garbage collection run:
//  1. Mark every object reachable from the root at the read snapshot
//  2. List every object that exists at the read snapshot
//  3. Compute orphaned = existing - referenced
//  4. Unlink the orphans at the write id, in batches
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	err := c.run(ctx, func(tx object.Tx) error {
		return c.collectAt(ctx, tx, stats)
	})
	stats.EndTime = time.Now()
	return stats, err
}

func (c *Collector) collectAt(ctx context.Context, tx object.Tx, stats *Stats) error {
	logger.Info("GC: Phase 1 - Marking objects reachable from the root at tx %d...", tx.Read)

	referenced, err := c.mark(ctx, tx.Read)
	if err != nil {
		return fmt.Errorf("failed to mark referenced objects: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))

	logger.Info("GC: Phase 2 - Listing existing objects...")

	existing, err := c.lister.ListObjects(ctx, tx.Read)
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	orphaned := make([]object.ObjectID, 0)
	for _, id := range existing {
		if _, ok := referenced[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))
	stats.Orphaned = orphaned

	if len(orphaned) == 0 {
		logger.Info("GC: No orphaned objects found")
		return nil
	}

	logger.Info("GC: Found %d orphaned objects", stats.OrphanedCount)

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - Would delete %d objects:", stats.OrphanedCount)
		for i, id := range orphaned {
			if i < 10 {
				logger.Info("  - %s", id)
			}
		}
		if len(orphaned) > 10 {
			logger.Info("  ... and %d more", len(orphaned)-10)
		}
		return nil
	}

	logger.Info("GC: Phase 3 - Unlinking orphaned objects in batches of %d...", c.config.BatchSize)

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+c.config.BatchSize, len(orphaned))
		for _, id := range orphaned[i:end] {
			if err := c.service.Client.Unlink(ctx, id, tx.Write); err != nil {
				logger.Debug("GC: Failed to unlink %s: %v", id, err)
				stats.FailedCount++
				continue
			}
			stats.DeletedCount++
		}
	}

	logger.Info("GC: Completed - deleted %d objects, %d failed", stats.DeletedCount, stats.FailedCount)
	return nil
}

// mark returns every object reachable from the root at rtid, including the
// metadata and attribute objects of each reachable object.
//
// Hard links to objects that no longer exist are skipped. Any other read
// failure aborts the mark, so a damaged tree never turns into deletions.
func (c *Collector) mark(ctx context.Context, rtid object.TxID) (referenced map[object.ObjectID]struct{}, err error) {
	scope := c.service.NewScope()
	defer func() {
		err = errors.Join(err, scope.Close())
	}()

	referenced = map[object.ObjectID]struct{}{object.RootID: {}}
	queue := []object.ObjectID{object.RootID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := queue[0]
		queue = queue[1:]

		h, err := scope.OpenRead(ctx, id, rtid)
		if err != nil {
			if id != object.RootID && errors.Is(err, object.ErrObjectNotFound) {
				logger.Debug("GC: dangling hard link to %s", id)
				continue
			}
			return nil, err
		}

		children, err := c.visit(ctx, h, rtid, referenced)
		_ = scope.Release(h)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	return referenced, nil
}

// visit marks the sub-objects of the object behind h and returns the hard
// link targets it has not seen before.
func (c *Collector) visit(ctx context.Context, h object.Handle, rtid object.TxID, referenced map[object.ObjectID]struct{}) ([]object.ObjectID, error) {
	pad, err := c.service.Lifecycle.ReadScratchPad(ctx, h, rtid, c.config.ChecksumScope)
	if err != nil {
		return nil, err
	}
	referenced[pad.MetadataID] = struct{}{}
	referenced[pad.AttributeID] = struct{}{}

	if !h.Type.IsContainer() {
		return nil, nil
	}

	entries, err := c.service.Links.List(ctx, h, rtid)
	if err != nil {
		return nil, err
	}

	var children []object.ObjectID
	for _, e := range entries {
		hard, ok := e.Link.(link.Hard)
		if !ok {
			continue
		}
		if _, seen := referenced[hard.Target]; seen {
			continue
		}
		referenced[hard.Target] = struct{}{}
		children = append(children, hard.Target)
	}
	return children, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time         // When collection started
	EndTime         time.Time         // When collection ended
	ReferencedCount uint64            // Number of objects reachable from the root
	ExistingCount   uint64            // Number of objects in the store
	OrphanedCount   uint64            // Number of orphaned objects found
	DeletedCount    uint64            // Number of orphans successfully unlinked
	FailedCount     uint64            // Number of orphans that failed to unlink
	Orphaned        []object.ObjectID // The orphans found
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
