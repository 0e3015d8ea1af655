package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/core/lifecycle"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// AuditLogger writes append-only activity entries describing who changed
// what. A failed audit write never fails the operation it describes; it is
// logged and dropped.
type AuditLogger struct {
	store  store.Store
	logger *slog.Logger
}

// NewAuditLogger creates an audit logger.
func NewAuditLogger(s store.Store, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		store:  s,
		logger: logger.With("component", "audit"),
	}
}

func (a *AuditLogger) record(ctx context.Context, entry *domain.ActivityEntry) {
	if err := a.store.CreateActivityEntry(ctx, entry); err != nil {
		a.logger.Warn("failed to write activity entry",
			"action", entry.Action, "error", err)
	}
}

// DeploymentCreated records the creation of a deployment, naming the
// assigned truck and driver.
func (a *AuditLogger) DeploymentCreated(ctx context.Context, actor auth.Context, d *domain.Deployment, truck *domain.Truck, driver *domain.Driver) {
	entry := domain.NewActivityEntry(domain.ActivityDeployment,
		fmt.Sprintf("%s: Created deployment with truck %s and driver %s",
			d.Code, truck.PlateNumber, driver.FullName),
		actor.ActorLabel())
	entry.DeploymentID = d.ID
	entry.TruckID = truck.ID
	entry.DriverID = driver.ID
	a.record(ctx, entry)
}

// FieldChanged records a single before/after field change on a deployment.
func (a *AuditLogger) FieldChanged(ctx context.Context, actor auth.Context, d *domain.Deployment, change lifecycle.FieldChange) {
	entry := domain.NewActivityEntry(domain.ActivityDeployment,
		fmt.Sprintf("%s: %s changed from %s to %s",
			d.Code, change.Field, change.Old, change.New),
		actor.ActorLabel())
	entry.DeploymentID = d.ID
	a.record(ctx, entry)
}

// MilestoneLogged records that a milestone timestamp was set.
func (a *AuditLogger) MilestoneLogged(ctx context.Context, actor auth.Context, d *domain.Deployment, kind domain.MilestoneKind, value string) {
	entry := domain.NewActivityEntry(domain.ActivityDeployment,
		fmt.Sprintf("%s: %s at %s",
			d.Code, domain.ActionLabel(domain.MilestoneAction(kind)), value),
		actor.ActorLabel())
	entry.DeploymentID = d.ID
	a.record(ctx, entry)
}

// TruckReplaced records a mid-run truck substitution by plate number.
func (a *AuditLogger) TruckReplaced(ctx context.Context, actor auth.Context, d *domain.Deployment, oldTruck, newTruck *domain.Truck, reason string) {
	action := fmt.Sprintf("%s: Truck replaced: %s -> %s",
		d.Code, oldTruck.PlateNumber, newTruck.PlateNumber)
	if reason != "" {
		action += " (" + reason + ")"
	}
	entry := domain.NewActivityEntry(domain.ActivityDeployment, action, actor.ActorLabel())
	entry.DeploymentID = d.ID
	entry.TruckID = newTruck.ID
	a.record(ctx, entry)
}

// DriverReplaced records a mid-run driver substitution by name.
func (a *AuditLogger) DriverReplaced(ctx context.Context, actor auth.Context, d *domain.Deployment, oldDriver, newDriver *domain.Driver, reason string) {
	action := fmt.Sprintf("%s: Driver replaced: %s -> %s",
		d.Code, oldDriver.FullName, newDriver.FullName)
	if reason != "" {
		action += " (" + reason + ")"
	}
	entry := domain.NewActivityEntry(domain.ActivityDeployment, action, actor.ActorLabel())
	entry.DeploymentID = d.ID
	entry.DriverID = newDriver.ID
	a.record(ctx, entry)
}

// TruckReassigned records a direct non-replacement truck swap by plate
// number.
func (a *AuditLogger) TruckReassigned(ctx context.Context, actor auth.Context, d *domain.Deployment, oldTruck, newTruck *domain.Truck) {
	entry := domain.NewActivityEntry(domain.ActivityDeployment,
		fmt.Sprintf("%s: Truck reassigned: %s -> %s",
			d.Code, oldTruck.PlateNumber, newTruck.PlateNumber),
		actor.ActorLabel())
	entry.DeploymentID = d.ID
	entry.TruckID = newTruck.ID
	a.record(ctx, entry)
}

// DriverReassigned records a direct non-replacement driver swap by name.
func (a *AuditLogger) DriverReassigned(ctx context.Context, actor auth.Context, d *domain.Deployment, oldDriver, newDriver *domain.Driver) {
	entry := domain.NewActivityEntry(domain.ActivityDeployment,
		fmt.Sprintf("%s: Driver reassigned: %s -> %s",
			d.Code, oldDriver.FullName, newDriver.FullName),
		actor.ActorLabel())
	entry.DeploymentID = d.ID
	entry.DriverID = newDriver.ID
	a.record(ctx, entry)
}

// TruckRegistered records the registration of a new truck.
func (a *AuditLogger) TruckRegistered(ctx context.Context, actor auth.Context, truck *domain.Truck) {
	entry := domain.NewActivityEntry(domain.ActivityTruck,
		fmt.Sprintf("Registered truck %s", truck.PlateNumber),
		actor.ActorLabel())
	entry.TruckID = truck.ID
	a.record(ctx, entry)
}

// DriverRegistered records the registration of a new driver.
func (a *AuditLogger) DriverRegistered(ctx context.Context, actor auth.Context, driver *domain.Driver) {
	entry := domain.NewActivityEntry(domain.ActivityDriver,
		fmt.Sprintf("Registered driver %s", driver.FullName),
		actor.ActorLabel())
	entry.DriverID = driver.ID
	a.record(ctx, entry)
}
