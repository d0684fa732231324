// Package tasks tracks orchestration task state. The registry is the only
// place holding task progress/results; units report through it and the API
// polls it by task identifier.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"newswire/cache"
	"newswire/config"
	"newswire/types"
)

const keyPrefix = "task:"

// ErrNotFound is returned when no record exists for a task identifier.
var ErrNotFound = fmt.Errorf("task not found")

// Registry stores task records in the cache backend with a retention TTL,
// so terminal records are garbage-collected by expiry.
type Registry struct {
	backend cache.Backend
}

// NewRegistry wires a backend. Lifecycle stays with the caller.
func NewRegistry(backend cache.Backend) *Registry {
	return &Registry{backend: backend}
}

// Create registers a new pending task and returns its record.
func (r *Registry) Create(ctx context.Context, kind types.TaskKind, message string) (types.TaskRecord, error) {
	now := time.Now().UTC()
	rec := types.TaskRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     types.TaskPending,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.save(ctx, rec); err != nil {
		return types.TaskRecord{}, err
	}
	return rec, nil
}

// Get returns the latest known state for a task, even while sub-units are
// still pending.
func (r *Registry) Get(ctx context.Context, id string) (types.TaskRecord, error) {
	raw, err := r.backend.Get(ctx, keyPrefix+id)
	if err == cache.ErrMiss {
		return types.TaskRecord{}, ErrNotFound
	}
	if err != nil {
		return types.TaskRecord{}, fmt.Errorf("load task %s: %w", id, err)
	}
	var rec types.TaskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.TaskRecord{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return rec, nil
}

// Start moves a task to in_progress. No-op once the task is terminal.
func (r *Registry) Start(ctx context.Context, id, message string) {
	r.update(ctx, id, func(rec *types.TaskRecord) {
		rec.State = types.TaskInProgress
		rec.Message = message
	})
}

// Progress updates the human-readable progress message.
func (r *Registry) Progress(ctx context.Context, id, message string) {
	r.update(ctx, id, func(rec *types.TaskRecord) {
		rec.Message = message
	})
}

// Succeed marks a task terminal-successful with a result payload.
func (r *Registry) Succeed(ctx context.Context, id string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		log.WithField("task_id", id).WithError(err).Warn("task result not serializable")
		raw = nil
	}
	r.update(ctx, id, func(rec *types.TaskRecord) {
		rec.State = types.TaskSucceeded
		rec.Message = "completed"
		rec.Result = raw
	})
}

// Fail marks a task terminal-failed with an error detail.
func (r *Registry) Fail(ctx context.Context, id, errDetail string) {
	r.update(ctx, id, func(rec *types.TaskRecord) {
		rec.State = types.TaskFailed
		rec.Message = "failed"
		rec.Error = errDetail
	})
}

// Cancel marks a task failed with a cancellation reason. In-flight units
// observe this at their next I/O boundary and stop.
func (r *Registry) Cancel(ctx context.Context, id, reason string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return fmt.Errorf("task %s already %s", id, rec.State)
	}
	r.Fail(ctx, id, "cancelled: "+reason)
	return nil
}

// Cancelled reports whether a task has been cancelled. Unknown tasks and
// registry failures read as not-cancelled so work is never dropped by a
// tracking outage.
func (r *Registry) Cancelled(ctx context.Context, id string) bool {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return false
	}
	return rec.State == types.TaskFailed && strings.HasPrefix(rec.Error, "cancelled")
}

// update applies a mutation unless the task is already terminal. Registry
// unavailability is logged, never propagated: status tracking must not
// fail the unit's real work.
func (r *Registry) update(ctx context.Context, id string, mutate func(*types.TaskRecord)) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		log.WithField("task_id", id).WithError(err).Warn("task update skipped")
		return
	}
	if rec.State.Terminal() {
		log.WithFields(log.Fields{"task_id": id, "state": rec.State}).Warn("ignoring update to terminal task")
		return
	}
	mutate(&rec)
	rec.UpdatedAt = time.Now().UTC()
	if err := r.save(ctx, rec); err != nil {
		log.WithField("task_id", id).WithError(err).Warn("task save skipped")
	}
}

func (r *Registry) save(ctx context.Context, rec types.TaskRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", rec.ID, err)
	}
	if err := r.backend.Set(ctx, keyPrefix+rec.ID, raw, config.TaskRetention); err != nil {
		return fmt.Errorf("store task %s: %w", rec.ID, err)
	}
	return nil
}
