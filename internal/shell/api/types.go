package api

import (
	"time"

	"github.com/fleetyard/dispatch/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// CreateDeploymentRequest is the request body for creating a deployment.
type CreateDeploymentRequest struct {
	TruckID      string  `json:"truck_id"`
	DriverID     string  `json:"driver_id"`
	SacksCount   int     `json:"sacks_count"`
	LoadWeightKg float64 `json:"load_weight_kg"`
	PickupSite   string  `json:"pickup_site"`
	Destination  string  `json:"destination"`
	TruckType    string  `json:"truck_type"`
	HelperCount  int     `json:"helper_count"`
}

// MilestonesRequest carries the optional milestone timestamps of an
// update. Omitted fields stay unchanged; empty strings clear.
type MilestonesRequest struct {
	Departed      *string `json:"departed,omitempty"`
	PickupIn      *string `json:"pickup_in,omitempty"`
	PickupOut     *string `json:"pickup_out,omitempty"`
	DestArrival   *string `json:"dest_arrival,omitempty"`
	DestDeparture *string `json:"dest_departure,omitempty"`
}

// ReplacementRequest is the optional replacement sub-object of an update.
type ReplacementRequest struct {
	TruckID     *string `json:"truck_id,omitempty"`
	DriverID    *string `json:"driver_id,omitempty"`
	TruckType   *string `json:"truck_type,omitempty"`
	HelperCount *int    `json:"helper_count,omitempty"`
	ReplacedAt  *string `json:"replaced_at,omitempty"`
	Reason      *string `json:"reason,omitempty"`
	Remarks     *string `json:"remarks,omitempty"`
}

// UpdateDeploymentRequest is the request body for a partial deployment
// update.
type UpdateDeploymentRequest struct {
	Milestones   *MilestonesRequest  `json:"milestones,omitempty"`
	Replacement  *ReplacementRequest `json:"replacement,omitempty"`
	Status       *string             `json:"status,omitempty"`
	TruckID      *string             `json:"truck_id,omitempty"`
	DriverID     *string             `json:"driver_id,omitempty"`
	SacksCount   *int                `json:"sacks_count,omitempty"`
	LoadWeightKg *float64            `json:"load_weight_kg,omitempty"`
	PickupSite   *string             `json:"pickup_site,omitempty"`
	Destination  *string             `json:"destination,omitempty"`
	TruckType    *string             `json:"truck_type,omitempty"`
	HelperCount  *int                `json:"helper_count,omitempty"`
}

// CreateTruckRequest is the request body for registering a truck.
type CreateTruckRequest struct {
	PlateNumber string  `json:"plate_number"`
	TruckType   string  `json:"truck_type"`
	Condition   *string `json:"condition,omitempty"`
}

// UpdateTruckRequest is the request body for editing a truck.
type UpdateTruckRequest struct {
	PlateNumber string  `json:"plate_number,omitempty"`
	TruckType   string  `json:"truck_type,omitempty"`
	Condition   *string `json:"condition,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// CreateDriverRequest is the request body for registering a driver.
type CreateDriverRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// UpdateDriverRequest is the request body for editing a driver.
type UpdateDriverRequest struct {
	FullName string  `json:"full_name,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// TruckResponse is the API representation of a truck.
type TruckResponse struct {
	ID          string    `json:"id"`
	PlateNumber string    `json:"plate_number"`
	TruckType   string    `json:"truck_type"`
	Condition   string    `json:"condition"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DriverResponse is the API representation of a driver.
type DriverResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	TripCount int       `json:"trip_count"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReplacementResponse is the API representation of a replacement record.
type ReplacementResponse struct {
	TruckID     string          `json:"truck_id,omitempty"`
	DriverID    string          `json:"driver_id,omitempty"`
	TruckType   string          `json:"truck_type,omitempty"`
	HelperCount int             `json:"helper_count,omitempty"`
	ReplacedAt  string          `json:"replaced_at,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
	Truck       *TruckResponse  `json:"truck,omitempty"`
	Driver      *DriverResponse `json:"driver,omitempty"`
}

// DeploymentResponse is the API representation of a deployment with its
// resources populated.
type DeploymentResponse struct {
	ID           string               `json:"id"`
	Code         string               `json:"code"`
	TruckID      string               `json:"truck_id"`
	DriverID     string               `json:"driver_id"`
	Status       string               `json:"status"`
	Milestones   domain.Milestones    `json:"milestones"`
	Replacement  *ReplacementResponse `json:"replacement,omitempty"`
	SacksCount   int                  `json:"sacks_count"`
	LoadWeightKg float64              `json:"load_weight_kg"`
	PickupSite   string               `json:"pickup_site"`
	Destination  string               `json:"destination"`
	TruckType    string               `json:"truck_type"`
	HelperCount  int                  `json:"helper_count"`
	Truck        *TruckResponse       `json:"truck,omitempty"`
	Driver       *DriverResponse      `json:"driver,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// UpdateDeploymentResponse is the update response: the refreshed
// deployment plus the timeline events this update recorded.
type UpdateDeploymentResponse struct {
	Deployment      DeploymentResponse `json:"deployment"`
	TimelineChanges []string           `json:"timeline_changes"`
}

// ListDeploymentsResponse is a page of deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// TimelineEntryResponse is the API representation of a timeline entry.
type TimelineEntryResponse struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Label       string    `json:"label"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityEntryResponse is the API representation of an activity entry.
type ActivityEntryResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Action       string    `json:"action"`
	PerformedBy  string    `json:"performed_by"`
	DeploymentID string    `json:"deployment_id,omitempty"`
	TruckID      string    `json:"truck_id,omitempty"`
	DriverID     string    `json:"driver_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
