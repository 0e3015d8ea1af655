// Package orchestrator coordinates the deployment lifecycle: creation
// against the resource registry, milestone-driven status progression,
// mid-run replacements, timeline reconciliation, and the activity audit
// trail. It is the only writer of deployment state; HTTP handlers call
// into it and translate its errors.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/core/lifecycle"
	"github.com/fleetyard/dispatch/internal/shell/registry"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// Orchestrator owns deployment lifecycle operations.
type Orchestrator struct {
	store    store.Store
	registry *registry.Registry
	timeline *TimelineReconciler
	audit    *AuditLogger
	logger   *slog.Logger
}

// New creates an orchestrator wired to its collaborators.
func New(s store.Store, reg *registry.Registry, tl *TimelineReconciler, audit *AuditLogger, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    s,
		registry: reg,
		timeline: tl,
		audit:    audit,
		logger:   logger.With("component", "orchestrator"),
	}
}

// =============================================================================
// Inputs and Views
// =============================================================================

// CreateInput is the request to create a deployment.
type CreateInput struct {
	TruckID      string
	DriverID     string
	SacksCount   int
	LoadWeightKg float64
	PickupSite   string
	Destination  string
	TruckType    string
	HelperCount  int
}

// Validate checks required fields.
func (in CreateInput) Validate() error {
	if in.TruckID == "" {
		return fmt.Errorf("%w: truck_id", domain.ErrMissingField)
	}
	if in.DriverID == "" {
		return fmt.Errorf("%w: driver_id", domain.ErrMissingField)
	}
	if in.PickupSite == "" {
		return fmt.Errorf("%w: pickup_site", domain.ErrMissingField)
	}
	if in.Destination == "" {
		return fmt.Errorf("%w: destination", domain.ErrMissingField)
	}
	return nil
}

// UpdateInput is the request to update a deployment. All fields are
// optional; nil leaves the stored value unchanged.
type UpdateInput struct {
	Milestones  lifecycle.MilestoneInput
	Replacement *lifecycle.ReplacementInput

	// Status is an explicit override. An explicit cancel always lands;
	// any other override loses to milestone-derived transitions.
	Status *string

	// TruckID and DriverID reassign the base resources of a deployment
	// that has no replacement for that kind.
	TruckID  *string
	DriverID *string

	SacksCount   *int
	LoadWeightKg *float64
	PickupSite   *string
	Destination  *string
	TruckType    *string
	HelperCount  *int
}

// DeploymentView is a deployment with its assigned resources populated.
type DeploymentView struct {
	Deployment        domain.Deployment
	Truck             *domain.Truck
	Driver            *domain.Driver
	ReplacementTruck  *domain.Truck
	ReplacementDriver *domain.Driver
}

// UpdateResult is the outcome of an update: the refreshed view plus the
// labels of timeline events recorded by this update, in the order they
// were logged.
type UpdateResult struct {
	View            *DeploymentView
	TimelineChanges []string
}

// ListResult is a page of deployments plus the total match count.
type ListResult struct {
	Deployments []DeploymentView
	Total       int
}

// =============================================================================
// Create
// =============================================================================

// CreateDeployment validates the request, atomically acquires the truck and
// driver, and persists the new deployment in preparing state. If the
// deployment row cannot be written the acquired resources are released
// again.
func (o *Orchestrator) CreateDeployment(ctx context.Context, actor auth.Context, in CreateInput) (*DeploymentView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	truck, err := o.store.GetTruck(ctx, in.TruckID)
	if err != nil {
		return nil, err
	}
	driver, err := o.store.GetDriver(ctx, in.DriverID)
	if err != nil {
		return nil, err
	}

	if err := o.registry.AcquirePair(ctx, in.TruckID, in.DriverID); err != nil {
		if store.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
		}
		return nil, err
	}

	d := domain.NewDeployment(in.TruckID, in.DriverID)
	d.SacksCount = in.SacksCount
	d.LoadWeightKg = in.LoadWeightKg
	d.PickupSite = in.PickupSite
	d.Destination = in.Destination
	d.TruckType = in.TruckType
	if d.TruckType == "" {
		d.TruckType = truck.TruckType
	}
	d.HelperCount = in.HelperCount

	if err := o.store.CreateDeployment(ctx, d); err != nil {
		if relErr := o.registry.ReleaseAll(ctx, in.TruckID, in.DriverID); relErr != nil {
			o.logger.Error("failed to release resources after create failure",
				"deployment_id", d.ID, "error", relErr)
		}
		return nil, err
	}

	o.audit.DeploymentCreated(ctx, actor, d, truck, driver)
	o.logger.Info("deployment created",
		"deployment_id", d.ID, "code", d.Code,
		"truck_id", in.TruckID, "driver_id", in.DriverID)

	return &DeploymentView{Deployment: *d, Truck: truck, Driver: driver}, nil
}

// =============================================================================
// Read
// =============================================================================

// GetDeployment returns a deployment with its resources populated.
func (o *Orchestrator) GetDeployment(ctx context.Context, id string) (*DeploymentView, error) {
	d, err := o.store.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.populate(ctx, d)
}

// ListDeployments returns a filtered page of deployments plus the total
// match count.
func (o *Orchestrator) ListDeployments(ctx context.Context, filter store.DeploymentFilter, opts store.ListOptions) (*ListResult, error) {
	deployments, err := o.store.ListDeployments(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	total, err := o.store.CountDeployments(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]DeploymentView, 0, len(deployments))
	for i := range deployments {
		v, err := o.populate(ctx, &deployments[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}

	return &ListResult{Deployments: views, Total: total}, nil
}

// Timeline returns the milestone and status history of a deployment.
func (o *Orchestrator) Timeline(ctx context.Context, deploymentID string) ([]domain.TimelineEntry, error) {
	if _, err := o.store.GetDeployment(ctx, deploymentID); err != nil {
		return nil, err
	}
	return o.timeline.Entries(ctx, deploymentID)
}

// Activity returns a filtered page of activity entries.
func (o *Orchestrator) Activity(ctx context.Context, filter store.ActivityFilter, opts store.ListOptions) ([]domain.ActivityEntry, error) {
	return o.store.ListActivityEntries(ctx, filter, opts)
}

func (o *Orchestrator) populate(ctx context.Context, d *domain.Deployment) (*DeploymentView, error) {
	view := &DeploymentView{Deployment: *d}

	truck, err := o.store.GetTruck(ctx, d.TruckID)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	view.Truck = truck

	driver, err := o.store.GetDriver(ctx, d.DriverID)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	view.Driver = driver

	if d.Replacement != nil {
		if d.Replacement.TruckID != "" {
			rt, err := o.store.GetTruck(ctx, d.Replacement.TruckID)
			if err != nil && !store.IsNotFound(err) {
				return nil, err
			}
			view.ReplacementTruck = rt
		}
		if d.Replacement.DriverID != "" {
			rd, err := o.store.GetDriver(ctx, d.Replacement.DriverID)
			if err != nil && !store.IsNotFound(err) {
				return nil, err
			}
			view.ReplacementDriver = rd
		}
	}

	return view, nil
}

// =============================================================================
// Update
// =============================================================================

// UpdateDeployment applies a partial update: milestone merges, derived or
// explicit status transitions, replacements, reassignments, and descriptive
// field edits. Resource effects follow the transition: terminal states
// release the active truck and driver, resuming a canceled deployment
// re-acquires them, and the first transition into completed increments the
// active driver's trip count. A completed deployment only accepts an
// identical-data resubmission, which is a no-op.
func (o *Orchestrator) UpdateDeployment(ctx context.Context, actor auth.Context, id string, in UpdateInput) (*UpdateResult, error) {
	d, err := o.store.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Status == domain.StatusCompleted {
		// Replaying a request that changes nothing is an idempotent
		// no-op, not a conflict, so a retried completion never
		// double-counts the driver's trip.
		if isIdenticalResubmission(d, in) {
			view, err := o.populate(ctx, d)
			if err != nil {
				return nil, err
			}
			return &UpdateResult{View: view}, nil
		}
		return nil, domain.ErrDeploymentCompleted
	}

	if err := in.Milestones.Validate(); err != nil {
		return nil, err
	}

	before := *d
	wasActive := d.IsActive()

	merged := lifecycle.MergeMilestones(d.Milestones, in.Milestones)

	var override domain.DeploymentStatus
	if in.Status != nil {
		override = domain.DeploymentStatus(*in.Status)
	}

	newStatus, err := domain.DeriveStatus(d.Status, merged, override)
	if err != nil {
		return nil, err
	}

	// Resource moves happen before the row is written so a refused swap or
	// re-acquisition aborts the whole update.
	if in.Replacement != nil {
		if err := o.applyReplacement(ctx, actor, d, *in.Replacement); err != nil {
			return nil, err
		}
	}

	if err := o.applyReassignment(ctx, actor, d, in, wasActive); err != nil {
		return nil, err
	}

	// Any transition out of canceled is a resume and gets a timeline
	// entry carrying the destination status; resources are only
	// re-acquired when that destination is an active state.
	resumed := d.Status == domain.StatusCanceled && newStatus != domain.StatusCanceled
	if resumed && (newStatus == domain.StatusPreparing || newStatus == domain.StatusOngoing) {
		if err := o.registry.AcquirePair(ctx, d.ActiveTruckID(), d.ActiveDriverID()); err != nil {
			if store.IsUnavailable(err) {
				return nil, fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
			}
			return nil, err
		}
	}

	applyFieldEdits(d, in)
	d.Milestones = merged
	d.Status = newStatus
	d.UpdatedAt = time.Now().UTC()

	// The deployment row is the source of truth; write it before any
	// release so a crash leaves resources held rather than double-bookable.
	if err := o.store.UpdateDeployment(ctx, d); err != nil {
		return nil, err
	}

	if err := o.applyTransitionEffects(ctx, &before, d, wasActive); err != nil {
		return nil, err
	}

	changes, err := o.reconcileTimeline(ctx, actor, &before, d, merged, resumed)
	if err != nil {
		return nil, err
	}

	for _, change := range lifecycle.DiffFields(&before, d) {
		o.audit.FieldChanged(ctx, actor, d, change)
	}

	view, err := o.populate(ctx, d)
	if err != nil {
		return nil, err
	}

	o.logger.Info("deployment updated",
		"deployment_id", d.ID, "status", string(d.Status),
		"timeline_changes", len(changes))

	return &UpdateResult{View: view, TimelineChanges: changes}, nil
}

// applyReassignment handles direct truck_id/driver_id changes. While the
// deployment is active the registry swap keeps exclusivity; a canceled
// deployment holds nothing, so only the field changes. Reassigning a
// resource that has already been replaced mid-run is refused: the
// replacement record owns the active assignment. Each swapped kind gets
// its own audit entry naming the resources.
func (o *Orchestrator) applyReassignment(ctx context.Context, actor auth.Context, d *domain.Deployment, in UpdateInput, active bool) error {
	if in.TruckID != nil && *in.TruckID != d.TruckID {
		if d.Replacement != nil && d.Replacement.TruckID != "" {
			return fmt.Errorf("%w: truck", domain.ErrResourceReplaced)
		}
		oldTruck, err := o.store.GetTruck(ctx, d.TruckID)
		if err != nil {
			return err
		}
		newTruck, err := o.store.GetTruck(ctx, *in.TruckID)
		if err != nil {
			return err
		}
		if active {
			if err := o.registry.Swap(ctx, domain.KindTruck, d.TruckID, *in.TruckID); err != nil {
				if store.IsUnavailable(err) {
					return fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
				}
				return err
			}
		}
		d.TruckID = *in.TruckID
		o.audit.TruckReassigned(ctx, actor, d, oldTruck, newTruck)
	}

	if in.DriverID != nil && *in.DriverID != d.DriverID {
		if d.Replacement != nil && d.Replacement.DriverID != "" {
			return fmt.Errorf("%w: driver", domain.ErrResourceReplaced)
		}
		oldDriver, err := o.store.GetDriver(ctx, d.DriverID)
		if err != nil {
			return err
		}
		newDriver, err := o.store.GetDriver(ctx, *in.DriverID)
		if err != nil {
			return err
		}
		if active {
			if err := o.registry.Swap(ctx, domain.KindDriver, d.DriverID, *in.DriverID); err != nil {
				if store.IsUnavailable(err) {
					return fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
				}
				return err
			}
		}
		d.DriverID = *in.DriverID
		o.audit.DriverReassigned(ctx, actor, d, oldDriver, newDriver)
	}

	return nil
}

// applyTransitionEffects releases resources on terminal transitions and
// counts the driver's trip on the first completion.
func (o *Orchestrator) applyTransitionEffects(ctx context.Context, before, d *domain.Deployment, wasActive bool) error {
	terminal := d.Status == domain.StatusCompleted || d.Status == domain.StatusCanceled
	if wasActive && terminal {
		if err := o.registry.ReleaseAll(ctx, d.ActiveTruckID(), d.ActiveDriverID()); err != nil {
			o.logger.Error("failed to release resources on terminal transition",
				"deployment_id", d.ID, "error", err)
		}
	}

	if d.Status == domain.StatusCompleted && before.Status != domain.StatusCompleted {
		if err := o.store.IncrementDriverTrips(ctx, d.ActiveDriverID()); err != nil {
			o.logger.Error("failed to increment driver trip count",
				"deployment_id", d.ID, "driver_id", d.ActiveDriverID(), "error", err)
		}
	}

	return nil
}

// reconcileTimeline logs newly set milestones through the keyed
// reconciler plus unkeyed cancel and resume events. Returns the labels
// of everything recorded.
func (o *Orchestrator) reconcileTimeline(ctx context.Context, actor auth.Context, before, d *domain.Deployment, merged domain.Milestones, resumed bool) ([]string, error) {
	var changes []string

	for _, kind := range lifecycle.NewlySet(before.Milestones, merged) {
		ts, err := time.Parse(time.RFC3339, merged.Get(kind))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTimestamp, merged.Get(kind))
		}
		label, err := o.timeline.RecordMilestone(ctx, actor, d.ID, kind, ts, d.Status)
		if err != nil {
			return nil, err
		}
		changes = append(changes, label)
		o.audit.MilestoneLogged(ctx, actor, d, kind, merged.Get(kind))
	}

	if d.Status == domain.StatusCanceled && before.Status != domain.StatusCanceled {
		label, err := o.timeline.RecordStatusEvent(ctx, actor, d.ID, domain.ActionCanceled, d.Status)
		if err != nil {
			return nil, err
		}
		changes = append(changes, label)
	}

	if resumed {
		label, err := o.timeline.RecordStatusEvent(ctx, actor, d.ID, domain.ActionResumed, d.Status)
		if err != nil {
			return nil, err
		}
		changes = append(changes, label)
	}

	return changes, nil
}

// isIdenticalResubmission reports whether every submitted value already
// matches what is stored. Replacement input always counts as a change:
// even a repeated replacement id can edit its descriptive sub-fields.
func isIdenticalResubmission(d *domain.Deployment, in UpdateInput) bool {
	if in.Replacement != nil {
		return false
	}
	if in.Status != nil && domain.DeploymentStatus(*in.Status) != d.Status {
		return false
	}
	if in.TruckID != nil && *in.TruckID != d.TruckID {
		return false
	}
	if in.DriverID != nil && *in.DriverID != d.DriverID {
		return false
	}
	if lifecycle.MergeMilestones(d.Milestones, in.Milestones) != d.Milestones {
		return false
	}
	if in.SacksCount != nil && *in.SacksCount != d.SacksCount {
		return false
	}
	if in.LoadWeightKg != nil && *in.LoadWeightKg != d.LoadWeightKg {
		return false
	}
	if in.PickupSite != nil && *in.PickupSite != d.PickupSite {
		return false
	}
	if in.Destination != nil && *in.Destination != d.Destination {
		return false
	}
	if in.TruckType != nil && *in.TruckType != d.TruckType {
		return false
	}
	if in.HelperCount != nil && *in.HelperCount != d.HelperCount {
		return false
	}
	return true
}

func applyFieldEdits(d *domain.Deployment, in UpdateInput) {
	if in.SacksCount != nil {
		d.SacksCount = *in.SacksCount
	}
	if in.LoadWeightKg != nil {
		d.LoadWeightKg = *in.LoadWeightKg
	}
	if in.PickupSite != nil {
		d.PickupSite = *in.PickupSite
	}
	if in.Destination != nil {
		d.Destination = *in.Destination
	}
	if in.TruckType != nil {
		d.TruckType = *in.TruckType
	}
	if in.HelperCount != nil {
		d.HelperCount = *in.HelperCount
	}
}
