package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/google/uuid"
)

const registryPrefix = "reminder:"

// ErrNoLiveJob is returned when no job is registered for an item.
var ErrNoLiveJob = errors.New("no live reminder job")

// Registry records, per item, the id of the queued job that is currently
// allowed to deliver. Cancelling or replacing a reminder only rewrites this
// entry; stale jobs are dropped by the worker when they come due.
type Registry struct {
	store kv.Store
}

func NewRegistry(store kv.Store) *Registry {
	return &Registry{store: store}
}

func registryKey(itemID uuid.UUID) string {
	return registryPrefix + itemID.String()
}

// Set marks jobID as the live job for itemID.
func (r *Registry) Set(ctx context.Context, itemID, jobID uuid.UUID) error {
	if err := r.store.Put(ctx, registryKey(itemID), []byte(jobID.String())); err != nil {
		return fmt.Errorf("failed to register reminder job: %w", err)
	}
	return nil
}

// Live returns the live job id for itemID.
func (r *Registry) Live(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	data, err := r.store.Get(ctx, registryKey(itemID))
	if errors.Is(err, kv.ErrNotFound) {
		return uuid.Nil, ErrNoLiveJob
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read reminder registry: %w", err)
	}
	id, err := uuid.ParseBytes(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt reminder registry entry for %s: %w", itemID, err)
	}
	return id, nil
}

// IsLive reports whether jobID is still the live job for itemID.
func (r *Registry) IsLive(ctx context.Context, itemID, jobID uuid.UUID) (bool, error) {
	live, err := r.Live(ctx, itemID)
	if errors.Is(err, ErrNoLiveJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return live == jobID, nil
}

// Clear removes the entry for itemID.
func (r *Registry) Clear(ctx context.Context, itemID uuid.UUID) error {
	if err := r.store.Delete(ctx, registryKey(itemID)); err != nil {
		return fmt.Errorf("failed to clear reminder registry: %w", err)
	}
	return nil
}
