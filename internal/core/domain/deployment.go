package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDeploymentCompleted = errors.New("deployment is completed and cannot change status")
	ErrResourceUnavailable = errors.New("resource is not available")
	ErrInvalidTimestamp    = errors.New("timestamp is not a valid RFC3339 value")
	ErrMissingField        = errors.New("required field is missing")
	ErrResourceReplaced    = errors.New("resource already replaced for this deployment")
)

// =============================================================================
// Deployment Status
// =============================================================================

type DeploymentStatus string

const (
	StatusPreparing DeploymentStatus = "preparing"
	StatusOngoing   DeploymentStatus = "ongoing"
	StatusCompleted DeploymentStatus = "completed"
	StatusCanceled  DeploymentStatus = "canceled"
)

// ValidStatus reports whether s is a known deployment status.
func ValidStatus(s DeploymentStatus) bool {
	switch s {
	case StatusPreparing, StatusOngoing, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// =============================================================================
// Milestones
// =============================================================================

// MilestoneKind identifies one of the five timestamped lifecycle events.
type MilestoneKind string

const (
	MilestoneDeparted      MilestoneKind = "departed"
	MilestonePickupIn      MilestoneKind = "pickup_in"
	MilestonePickupOut     MilestoneKind = "pickup_out"
	MilestoneDestArrival   MilestoneKind = "dest_arrival"
	MilestoneDestDeparture MilestoneKind = "dest_departure"
)

// MilestoneKinds lists all milestone kinds in lifecycle order.
var MilestoneKinds = []MilestoneKind{
	MilestoneDeparted,
	MilestonePickupIn,
	MilestonePickupOut,
	MilestoneDestArrival,
	MilestoneDestDeparture,
}

// Milestones holds the five lifecycle timestamps as raw RFC3339 strings.
// An empty string means the milestone has not been recorded.
type Milestones struct {
	Departed      string `json:"departed,omitempty"`
	PickupIn      string `json:"pickup_in,omitempty"`
	PickupOut     string `json:"pickup_out,omitempty"`
	DestArrival   string `json:"dest_arrival,omitempty"`
	DestDeparture string `json:"dest_departure,omitempty"`
}

// Get returns the stored timestamp for the given milestone kind.
func (m Milestones) Get(kind MilestoneKind) string {
	switch kind {
	case MilestoneDeparted:
		return m.Departed
	case MilestonePickupIn:
		return m.PickupIn
	case MilestonePickupOut:
		return m.PickupOut
	case MilestoneDestArrival:
		return m.DestArrival
	case MilestoneDestDeparture:
		return m.DestDeparture
	}
	return ""
}

// Set stores the timestamp for the given milestone kind.
func (m *Milestones) Set(kind MilestoneKind, value string) {
	switch kind {
	case MilestoneDeparted:
		m.Departed = value
	case MilestonePickupIn:
		m.PickupIn = value
	case MilestonePickupOut:
		m.PickupOut = value
	case MilestoneDestArrival:
		m.DestArrival = value
	case MilestoneDestDeparture:
		m.DestDeparture = value
	}
}

// ValidateTimestamp checks that a non-empty milestone value parses as RFC3339.
func ValidateTimestamp(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	return nil
}

// =============================================================================
// Replacement
// =============================================================================

// Replacement records a mid-deployment substitution of the active truck
// and/or driver. Either sub-reference can be set independently.
type Replacement struct {
	TruckID     string `json:"truck_id,omitempty"`
	DriverID    string `json:"driver_id,omitempty"`
	TruckType   string `json:"truck_type,omitempty"`
	HelperCount int    `json:"helper_count,omitempty"`
	ReplacedAt  string `json:"replaced_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment represents one truck+driver delivery run tracked from
// assignment to completion or cancellation.
type Deployment struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	TruckID      string           `json:"truck_id"`
	DriverID     string           `json:"driver_id"`
	Replacement  *Replacement     `json:"replacement,omitempty"`
	Status       DeploymentStatus `json:"status"`
	Milestones   Milestones       `json:"milestones"`
	SacksCount   int              `json:"sacks_count"`
	LoadWeightKg float64          `json:"load_weight_kg"`
	PickupSite   string           `json:"pickup_site"`
	Destination  string           `json:"destination"`
	TruckType    string           `json:"truck_type"`
	HelperCount  int              `json:"helper_count"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewDeployment creates a deployment in preparing state with a generated
// id and business code.
func NewDeployment(truckID, driverID string) *Deployment {
	now := time.Now().UTC()
	return &Deployment{
		ID:        "dep_" + uuid.New().String()[:8],
		Code:      GenerateDeploymentCode(now),
		TruckID:   truckID,
		DriverID:  driverID,
		Status:    StatusPreparing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ActiveTruckID returns the truck currently responsible for the run:
// the replacement truck if one has been set, otherwise the original.
func (d *Deployment) ActiveTruckID() string {
	if d.Replacement != nil && d.Replacement.TruckID != "" {
		return d.Replacement.TruckID
	}
	return d.TruckID
}

// ActiveDriverID returns the driver currently responsible for the run.
func (d *Deployment) ActiveDriverID() string {
	if d.Replacement != nil && d.Replacement.DriverID != "" {
		return d.Replacement.DriverID
	}
	return d.DriverID
}

// IsActive reports whether the deployment holds exclusive claims on its
// active truck and driver.
func (d *Deployment) IsActive() bool {
	return d.Status == StatusPreparing || d.Status == StatusOngoing
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed status transitions.
// canceled is a soft terminal: it can be re-entered from any active state
// and resumed into any other state. completed is a true terminal.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	StatusPreparing: {StatusOngoing, StatusCompleted, StatusCanceled},
	StatusOngoing:   {StatusCompleted, StatusCanceled},
	StatusCanceled:  {StatusPreparing, StatusOngoing, StatusCompleted},
	StatusCompleted: {},
}

// ValidateTransition checks if a status transition is valid.
// A transition to the current status is a no-op and always allowed.
func ValidateTransition(from, to DeploymentStatus) error {
	if from == to {
		return nil
	}
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	if from == StatusCompleted {
		return ErrDeploymentCompleted
	}
	return ErrInvalidTransition
}

// DeriveStatus computes the deployment's target status from its merged
// milestone fields, the current status, and an optional explicit override.
// Precedence, first match wins:
//
//  1. explicit canceled override -> canceled
//  2. dest_departure set and current != canceled -> completed
//  3. departed set, dest_departure unset, current != canceled -> ongoing
//  4. explicit override submitted -> used after transition validation
//  5. otherwise unchanged
//
// The canceled override is checked before milestone derivation: once
// departed is recorded the milestone rules would pin the status to
// ongoing or completed and an active run could never be canceled.
func DeriveStatus(current DeploymentStatus, m Milestones, override DeploymentStatus) (DeploymentStatus, error) {
	if override != "" && !ValidStatus(override) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, override)
	}
	if override == StatusCanceled {
		if err := ValidateTransition(current, override); err != nil {
			return "", err
		}
		return StatusCanceled, nil
	}
	if m.DestDeparture != "" && current != StatusCanceled {
		return StatusCompleted, nil
	}
	if m.Departed != "" && m.DestDeparture == "" && current != StatusCanceled {
		return StatusOngoing, nil
	}
	if override != "" {
		if err := ValidateTransition(current, override); err != nil {
			return "", err
		}
		return override, nil
	}
	return current, nil
}

// =============================================================================
// Code Generation
// =============================================================================

// GenerateDeploymentCode generates a human-readable business code.
// Pattern: DPL-YYYYMMDD-{hex}
func GenerateDeploymentCode(t time.Time) string {
	suffix := make([]byte, 3)
	rand.Read(suffix)
	return fmt.Sprintf("DPL-%s-%s", t.Format("20060102"), hex.EncodeToString(suffix))
}
