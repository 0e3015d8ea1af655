// Package registry guards exclusive assignment of trucks and drivers.
//
// Every status flip from available to deployed goes through the store's
// compare-and-set acquire, so two deployments can never hold the same
// resource at the same time no matter how requests interleave.
package registry

import (
	"context"
	"log/slog"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// Registry mediates acquisition and release of deployment resources.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry creates a resource registry.
func NewRegistry(s store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  s,
		logger: logger.With("component", "registry"),
	}
}

// Acquire marks a resource as deployed. Returns store.ErrUnavailable if the
// resource is held by another deployment or marked unavailable, and
// store.ErrNotFound if it does not exist.
func (r *Registry) Acquire(ctx context.Context, kind domain.ResourceKind, id string) error {
	if err := r.store.AcquireResource(ctx, kind, id); err != nil {
		return err
	}
	r.logger.Info("resource acquired", "kind", string(kind), "id", id)
	return nil
}

// Release marks a resource as available again. Releasing an already
// available resource is a no-op.
func (r *Registry) Release(ctx context.Context, kind domain.ResourceKind, id string) error {
	if err := r.store.ReleaseResource(ctx, kind, id); err != nil {
		return err
	}
	r.logger.Info("resource released", "kind", string(kind), "id", id)
	return nil
}

// AcquirePair acquires a truck and a driver for a new deployment. If the
// driver acquisition fails after the truck succeeded, the truck is released
// again so a failed creation leaves nothing held.
func (r *Registry) AcquirePair(ctx context.Context, truckID, driverID string) error {
	if err := r.Acquire(ctx, domain.KindTruck, truckID); err != nil {
		return err
	}

	if err := r.Acquire(ctx, domain.KindDriver, driverID); err != nil {
		if relErr := r.Release(ctx, domain.KindTruck, truckID); relErr != nil {
			r.logger.Error("failed to release truck after driver acquisition failed",
				"truck_id", truckID, "error", relErr)
		}
		return err
	}

	return nil
}

// Swap replaces one resource with another of the same kind. The new resource
// is acquired first; the old one is released only after that succeeds, so a
// failed swap leaves the current assignment untouched. Swapping a resource
// for itself is a no-op.
func (r *Registry) Swap(ctx context.Context, kind domain.ResourceKind, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	if err := r.Acquire(ctx, kind, newID); err != nil {
		return err
	}

	if err := r.Release(ctx, kind, oldID); err != nil {
		r.logger.Error("failed to release replaced resource",
			"kind", string(kind), "id", oldID, "error", err)
		return err
	}

	r.logger.Info("resource swapped", "kind", string(kind), "old_id", oldID, "new_id", newID)
	return nil
}

// ReleaseAll releases every resource a deployment currently holds. Used when
// a deployment reaches a terminal state. Errors are collected per resource
// but the remaining releases still run.
func (r *Registry) ReleaseAll(ctx context.Context, truckID, driverID string) error {
	var firstErr error
	if err := r.Release(ctx, domain.KindTruck, truckID); err != nil {
		firstErr = err
	}
	if err := r.Release(ctx, domain.KindDriver, driverID); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
