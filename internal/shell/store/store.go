package store

import (
	"context"

	"github.com/fleetyard/dispatch/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for Dispatch entities.
//
// Deployments, resources, timeline entries, and activity entries are
// separate storage units; there is no cross-entity transaction unless
// the caller wraps operations in WithTx. The AcquireResource operation
// is the single atomic guard for resource exclusivity.
type Store interface {
	// Deployment operations
	CreateDeployment(ctx context.Context, d *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	UpdateDeployment(ctx context.Context, d *domain.Deployment) error
	ListDeployments(ctx context.Context, filter DeploymentFilter, opts ListOptions) ([]domain.Deployment, error)
	CountDeployments(ctx context.Context, filter DeploymentFilter) (int, error)
	ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error)

	// Truck operations
	CreateTruck(ctx context.Context, t *domain.Truck) error
	GetTruck(ctx context.Context, id string) (*domain.Truck, error)
	UpdateTruck(ctx context.Context, t *domain.Truck) error
	ListTrucks(ctx context.Context, opts ListOptions) ([]domain.Truck, error)

	// Driver operations
	CreateDriver(ctx context.Context, d *domain.Driver) error
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
	UpdateDriver(ctx context.Context, d *domain.Driver) error
	ListDrivers(ctx context.Context, opts ListOptions) ([]domain.Driver, error)
	IncrementDriverTrips(ctx context.Context, id string) error

	// Resource status operations. AcquireResource is a single
	// compare-and-set (available -> deployed); it returns ErrUnavailable
	// when the resource is held elsewhere. ReleaseResource is idempotent.
	AcquireResource(ctx context.Context, kind domain.ResourceKind, id string) error
	ReleaseResource(ctx context.Context, kind domain.ResourceKind, id string) error
	ListDeployedResourceIDs(ctx context.Context, kind domain.ResourceKind) ([]string, error)

	// Timeline operations. Lookup is keyed on (deployment_id, action);
	// milestone actions have at most one entry per deployment.
	CreateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error
	GetTimelineEntryByAction(ctx context.Context, deploymentID string, action domain.TimelineAction) (*domain.TimelineEntry, error)
	UpdateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error
	ListTimelineEntries(ctx context.Context, deploymentID string) ([]domain.TimelineEntry, error)

	// Activity operations (append-only)
	CreateActivityEntry(ctx context.Context, e *domain.ActivityEntry) error
	ListActivityEntries(ctx context.Context, filter ActivityFilter, opts ListOptions) ([]domain.ActivityEntry, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Filters and Options
// =============================================================================

// DeploymentFilter narrows deployment listings. Zero values match all.
type DeploymentFilter struct {
	Status   domain.DeploymentStatus
	TruckID  string
	DriverID string
}

// ActivityFilter narrows activity listings. Zero values match all.
type ActivityFilter struct {
	Type         domain.ActivityType
	DeploymentID string
}

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
