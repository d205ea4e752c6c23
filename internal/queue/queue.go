// Package queue implements the per-domain durable queue of pending
// mutations. A mutation enters the queue when the online submission path
// gives up and leaves it only after the remote authority acknowledges it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/afridiag/fieldsync/internal/core/domain"
	"github.com/afridiag/fieldsync/internal/metrics"
	"github.com/afridiag/fieldsync/internal/storage"
)

// Queue persists one insertion-ordered mutation list per domain under a
// well-known store key. Each domain's "load, modify, write back" sequence is
// a critical section guarded by a per-domain mutex, so a UI-triggered
// enqueue cannot race a sync pass's write-back. Domains use disjoint keys
// and do not serialize against each other.
type Queue struct {
	store storage.Store
	locks map[domain.Domain]*sync.Mutex
	log   *slog.Logger
}

func New(store storage.Store) *Queue {
	locks := make(map[domain.Domain]*sync.Mutex, len(domain.SyncOrder))
	for _, d := range domain.SyncOrder {
		locks[d] = &sync.Mutex{}
	}
	return &Queue{
		store: store,
		locks: locks,
		log:   slog.Default().With("component", "queue"),
	}
}

func storeKey(d domain.Domain) string {
	return "sync_queue:" + string(d)
}

// Enqueue appends a mutation for d and persists the list before returning.
// On a persistence failure the mutation is not queued and the error
// propagates.
func (q *Queue) Enqueue(ctx context.Context, d domain.Domain, payload map[string]any) (*domain.Mutation, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown domain %q", d)
	}

	mu := q.locks[d]
	mu.Lock()
	defer mu.Unlock()

	pending, err := q.load(ctx, d)
	if err != nil {
		return nil, err
	}

	m := domain.Mutation{
		LocalID:   uuid.NewString(),
		Domain:    d,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.save(ctx, d, append(pending, m)); err != nil {
		return nil, err
	}

	q.log.Info("queued mutation for later sync", "domain", d, "local_id", m.LocalID)
	return &m, nil
}

// List returns the pending mutations for d in insertion order.
func (q *Queue) List(ctx context.Context, d domain.Domain) ([]domain.Mutation, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown domain %q", d)
	}

	mu := q.locks[d]
	mu.Lock()
	defer mu.Unlock()

	return q.load(ctx, d)
}

// Remove deletes the mutation with localID from d's queue and persists the
// remainder. Removing an absent id is not an error.
func (q *Queue) Remove(ctx context.Context, d domain.Domain, localID string) error {
	if !d.Valid() {
		return fmt.Errorf("unknown domain %q", d)
	}

	mu := q.locks[d]
	mu.Lock()
	defer mu.Unlock()

	pending, err := q.load(ctx, d)
	if err != nil {
		return err
	}

	kept := pending[:0]
	for _, m := range pending {
		if m.LocalID != localID {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(pending) {
		return nil
	}
	return q.save(ctx, d, kept)
}

// ReplaceAll writes back the post-pass remainder. Stored entries present in
// mutations are overwritten (picking up attempt-count updates); entries
// enqueued after the pass snapshotted the list are preserved. Entries the
// pass already removed stay removed.
func (q *Queue) ReplaceAll(ctx context.Context, d domain.Domain, mutations []domain.Mutation) error {
	if !d.Valid() {
		return fmt.Errorf("unknown domain %q", d)
	}

	mu := q.locks[d]
	mu.Lock()
	defer mu.Unlock()

	current, err := q.load(ctx, d)
	if err != nil {
		return err
	}

	updated := make(map[string]domain.Mutation, len(mutations))
	for _, m := range mutations {
		updated[m.LocalID] = m
	}

	merged := current[:0]
	for _, m := range current {
		if u, ok := updated[m.LocalID]; ok {
			merged = append(merged, u)
		} else {
			merged = append(merged, m)
		}
	}
	return q.save(ctx, d, merged)
}

// Counts returns the number of pending mutations per domain. Domains with
// an empty queue are included with a zero count.
func (q *Queue) Counts(ctx context.Context) (map[domain.Domain]int, error) {
	counts := make(map[domain.Domain]int, len(domain.SyncOrder))
	for _, d := range domain.SyncOrder {
		pending, err := q.List(ctx, d)
		if err != nil {
			return nil, err
		}
		counts[d] = len(pending)
	}
	return counts, nil
}

// load reads d's list. Caller holds the domain lock.
func (q *Queue) load(ctx context.Context, d domain.Domain) ([]domain.Mutation, error) {
	raw, err := q.store.Get(ctx, storeKey(d))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue for %s: %w", d, err)
	}

	var pending []domain.Mutation
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("decode queue for %s: %w", d, err)
	}
	return pending, nil
}

// save persists d's list. Caller holds the domain lock.
func (q *Queue) save(ctx context.Context, d domain.Domain, pending []domain.Mutation) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode queue for %s: %w", d, err)
	}
	if err := q.store.Put(ctx, storeKey(d), raw); err != nil {
		return fmt.Errorf("persist queue for %s: %w", d, err)
	}
	metrics.QueueDepth.WithLabelValues(string(d)).Set(float64(len(pending)))
	return nil
}
