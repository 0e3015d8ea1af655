package orchestrator

import (
	"context"
	"fmt"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// =============================================================================
// Trucks
// =============================================================================

// TruckInput is the request to register or edit a truck.
type TruckInput struct {
	PlateNumber string
	TruckType   string
	Condition   *string
	Status      *string
}

// RegisterTruck adds a truck to the fleet.
func (o *Orchestrator) RegisterTruck(ctx context.Context, actor auth.Context, in TruckInput) (*domain.Truck, error) {
	if in.PlateNumber == "" {
		return nil, fmt.Errorf("%w: plate_number", domain.ErrMissingField)
	}
	if in.TruckType == "" {
		return nil, fmt.Errorf("%w: truck_type", domain.ErrMissingField)
	}

	truck := domain.NewTruck(in.PlateNumber, in.TruckType)
	if in.Condition != nil {
		truck.Condition = domain.TruckCondition(*in.Condition)
	}

	if err := o.store.CreateTruck(ctx, truck); err != nil {
		return nil, err
	}

	o.audit.TruckRegistered(ctx, actor, truck)
	o.logger.Info("truck registered", "truck_id", truck.ID, "plate_number", truck.PlateNumber)
	return truck, nil
}

// UpdateTruck edits a truck's descriptive fields. Availability stays under
// registry control: a deployed truck cannot be marked available here.
func (o *Orchestrator) UpdateTruck(ctx context.Context, actor auth.Context, id string, in TruckInput) (*domain.Truck, error) {
	truck, err := o.store.GetTruck(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.PlateNumber != "" {
		truck.PlateNumber = in.PlateNumber
	}
	if in.TruckType != "" {
		truck.TruckType = in.TruckType
	}
	if in.Condition != nil {
		truck.Condition = domain.TruckCondition(*in.Condition)
	}
	if in.Status != nil {
		next := domain.ResourceStatus(*in.Status)
		if truck.Status == domain.ResourceDeployed || next == domain.ResourceDeployed {
			return nil, fmt.Errorf("%w: deployed status is registry-managed", domain.ErrResourceUnavailable)
		}
		truck.Status = next
	}

	if err := o.store.UpdateTruck(ctx, truck); err != nil {
		return nil, err
	}

	return truck, nil
}

// ListTrucks returns a page of trucks.
func (o *Orchestrator) ListTrucks(ctx context.Context, opts store.ListOptions) ([]domain.Truck, error) {
	return o.store.ListTrucks(ctx, opts)
}

// =============================================================================
// Drivers
// =============================================================================

// DriverInput is the request to register or edit a driver.
type DriverInput struct {
	FullName string
	Phone    string
	Status   *string
}

// RegisterDriver adds a driver to the roster.
func (o *Orchestrator) RegisterDriver(ctx context.Context, actor auth.Context, in DriverInput) (*domain.Driver, error) {
	if in.FullName == "" {
		return nil, fmt.Errorf("%w: full_name", domain.ErrMissingField)
	}

	driver := domain.NewDriver(in.FullName, in.Phone)
	if err := o.store.CreateDriver(ctx, driver); err != nil {
		return nil, err
	}

	o.audit.DriverRegistered(ctx, actor, driver)
	o.logger.Info("driver registered", "driver_id", driver.ID, "full_name", driver.FullName)
	return driver, nil
}

// UpdateDriver edits a driver's descriptive fields with the same status
// restriction as trucks.
func (o *Orchestrator) UpdateDriver(ctx context.Context, actor auth.Context, id string, in DriverInput) (*domain.Driver, error) {
	driver, err := o.store.GetDriver(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FullName != "" {
		driver.FullName = in.FullName
	}
	if in.Phone != "" {
		driver.Phone = in.Phone
	}
	if in.Status != nil {
		next := domain.ResourceStatus(*in.Status)
		if driver.Status == domain.ResourceDeployed || next == domain.ResourceDeployed {
			return nil, fmt.Errorf("%w: deployed status is registry-managed", domain.ErrResourceUnavailable)
		}
		driver.Status = next
	}

	if err := o.store.UpdateDriver(ctx, driver); err != nil {
		return nil, err
	}

	return driver, nil
}

// ListDrivers returns a page of drivers.
func (o *Orchestrator) ListDrivers(ctx context.Context, opts store.ListOptions) ([]domain.Driver, error) {
	return o.store.ListDrivers(ctx, opts)
}
