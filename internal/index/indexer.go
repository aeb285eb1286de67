// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package index maintains eventually consistent per-entity-set statistics.
// Mutating engines fire invalidations; a worker goroutine recounts the
// affected set from the primary store. Readers of Size observe the last
// completed count, which may lag recent writes.
package index

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// CountSource supplies the authoritative live count for one entity set.
type CountSource interface {
	CountEntities(ctx context.Context, entitySetID uuid.UUID) (int64, error)
}

// event is one queued invalidation.
type event struct {
	ID          ulid.ULID
	EntitySetID uuid.UUID
}

// entry is the indexed state of one entity set.
type entry struct {
	size      int64
	indexedAt time.Time
}

// IndexerConfig holds dependencies for an Indexer.
type IndexerConfig struct {
	Source CountSource
	Logger *slog.Logger
	// QueueSize bounds the invalidation channel; zero means a default of 256.
	QueueSize int
}

// Indexer is the asynchronous statistics worker. Invalidate never blocks the
// write path: when the queue is full the event is dropped, which is safe
// because a later invalidation or recount converges on the same state.
type Indexer struct {
	source  CountSource
	logger  *slog.Logger
	events  chan event
	entropy *ulid.MonotonicEntropy

	mu      sync.RWMutex
	entries map[uuid.UUID]entry

	cancel context.CancelFunc
	done   chan struct{}

	entropyMu sync.Mutex
}

// NewIndexer creates an Indexer and starts its worker goroutine.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		source:  cfg.Source,
		logger:  logger,
		events:  make(chan event, queueSize),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		entries: make(map[uuid.UUID]entry),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go idx.run(ctx)
	return idx
}

// Invalidate queues a recount of the entity set. Fire-and-forget.
func (i *Indexer) Invalidate(entitySetID uuid.UUID) {
	i.entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), i.entropy)
	i.entropyMu.Unlock()

	select {
	case i.events <- event{ID: id, EntitySetID: entitySetID}:
	default:
		i.logger.Warn("index queue full, dropping invalidation",
			"event_id", id.String(),
			"entity_set_id", entitySetID.String())
	}
}

// Size returns the entity set's size as last indexed. The second return is
// false when the set has never been indexed.
func (i *Indexer) Size(entitySetID uuid.UUID) (int64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[entitySetID]
	return e.size, ok
}

// LastIndexed returns when the entity set was last recounted.
func (i *Indexer) LastIndexed(entitySetID uuid.UUID) (time.Time, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[entitySetID]
	return e.indexedAt, ok
}

// Close stops the worker and waits for it to drain.
func (i *Indexer) Close() {
	i.cancel()
	<-i.done
}

func (i *Indexer) run(ctx context.Context) {
	defer close(i.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-i.events:
			i.process(ctx, ev)
		}
	}
}

func (i *Indexer) process(ctx context.Context, ev event) {
	size, err := i.source.CountEntities(ctx, ev.EntitySetID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		i.logger.Error("index recount failed",
			"event_id", ev.ID.String(),
			"entity_set_id", ev.EntitySetID.String(),
			"error", err)
		return
	}

	i.mu.Lock()
	i.entries[ev.EntitySetID] = entry{size: size, indexedAt: time.Now()}
	i.mu.Unlock()

	observeEvent()
	i.logger.Debug("entity set reindexed",
		"event_id", ev.ID.String(),
		"entity_set_id", ev.EntitySetID.String(),
		"size", size)
}
