package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Resource Kinds and Status
// =============================================================================

// ResourceKind identifies the type of exclusively-assignable resource.
type ResourceKind string

const (
	KindTruck  ResourceKind = "truck"
	KindDriver ResourceKind = "driver"
)

// ResourceStatus is the availability state of a truck or driver.
// deployed means the resource is the active truck/driver of exactly one
// deployment in preparing or ongoing state.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceDeployed    ResourceStatus = "deployed"
	ResourceUnavailable ResourceStatus = "unavailable"
)

// =============================================================================
// Truck
// =============================================================================

// TruckCondition describes the mechanical state of a truck.
type TruckCondition string

const (
	ConditionGood        TruckCondition = "good"
	ConditionMaintenance TruckCondition = "maintenance"
	ConditionDamaged     TruckCondition = "damaged"
)

// Truck is an exclusively-assignable vehicle resource.
type Truck struct {
	ID          string         `json:"id"`
	PlateNumber string         `json:"plate_number"`
	TruckType   string         `json:"truck_type"`
	Condition   TruckCondition `json:"condition"`
	Status      ResourceStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewTruck creates an available truck with a generated id.
func NewTruck(plateNumber, truckType string) *Truck {
	now := time.Now().UTC()
	return &Truck{
		ID:          "trk_" + uuid.New().String()[:8],
		PlateNumber: plateNumber,
		TruckType:   truckType,
		Condition:   ConditionGood,
		Status:      ResourceAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// Driver
// =============================================================================

// Driver is an exclusively-assignable personnel resource.
// TripCount is incremented once for every deployment the driver completes.
type Driver struct {
	ID        string         `json:"id"`
	FullName  string         `json:"full_name"`
	Phone     string         `json:"phone,omitempty"`
	TripCount int            `json:"trip_count"`
	Status    ResourceStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewDriver creates an available driver with a generated id.
func NewDriver(fullName, phone string) *Driver {
	now := time.Now().UTC()
	return &Driver{
		ID:        "drv_" + uuid.New().String()[:8],
		FullName:  fullName,
		Phone:     phone,
		Status:    ResourceAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
