// Package storage – checkpointer.go flushes dirty session states to
// the store on a cron schedule, so a crash loses at most one interval
// of conversation.
package storage

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Snapshotter supplies the serialized states that need persisting.
// Implementations return only sessions dirty since the last call.
type Snapshotter interface {
	Snapshot() (map[string][]byte, error)
}

// Checkpointer periodically writes snapshots to a Store.
type Checkpointer struct {
	store   Store
	source  Snapshotter
	cron    *cron.Cron
	entryID cron.EntryID
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewCheckpointer wires a snapshot source to a store. Call Start with
// a cron expression to begin the flush loop.
func NewCheckpointer(store Store, source Snapshotter, logger *slog.Logger) *Checkpointer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpointer{
		store:  store,
		source: source,
		cron:   cron.New(),
		logger: logger.With("component", "checkpointer"),
	}
}

// Start schedules the flush loop. Schedule accepts standard 5-field
// cron expressions and shorthands like "@every 30s".
func (c *Checkpointer) Start(schedule string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("checkpointer already started")
	}

	id, err := c.cron.AddFunc(schedule, c.flush)
	if err != nil {
		return fmt.Errorf("invalid checkpoint schedule %q: %w", schedule, err)
	}
	c.entryID = id
	c.cron.Start()
	c.running = true
	c.logger.Info("checkpointer started", "schedule", schedule)
	return nil
}

// Stop halts the loop and performs one final flush.
func (c *Checkpointer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	ctx := c.cron.Stop()
	<-ctx.Done()
	c.flush()
	c.logger.Info("checkpointer stopped")
}

// Flush forces an immediate write, outside the schedule.
func (c *Checkpointer) Flush() {
	c.flush()
}

func (c *Checkpointer) flush() {
	entries, err := c.source.Snapshot()
	if err != nil {
		c.logger.Error("snapshot failed", "err", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	if err := c.store.Write(entries); err != nil {
		c.logger.Error("checkpoint write failed", "sessions", len(entries), "err", err)
		return
	}
	c.logger.Debug("checkpoint flushed", "sessions", len(entries))
}
