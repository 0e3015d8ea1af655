package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Timeline Actions
// =============================================================================

// TimelineAction is the fixed label key of a timeline entry: one per
// milestone plus the two status-transition actions.
type TimelineAction string

const (
	ActionDeparted      TimelineAction = "departed"
	ActionPickupIn      TimelineAction = "pickup_in"
	ActionPickupOut     TimelineAction = "pickup_out"
	ActionDestArrival   TimelineAction = "dest_arrival"
	ActionDestDeparture TimelineAction = "dest_departure"
	ActionCanceled      TimelineAction = "canceled"
	ActionResumed       TimelineAction = "resumed"
)

// actionLabels maps each action to its human-readable label.
var actionLabels = map[TimelineAction]string{
	ActionDeparted:      "Departed from station",
	ActionPickupIn:      "Arrived at pickup point",
	ActionPickupOut:     "Departed from pickup point",
	ActionDestArrival:   "Arrived at destination",
	ActionDestDeparture: "Departed from destination",
	ActionCanceled:      "Deployment canceled",
	ActionResumed:       "Deployment resumed",
}

// ActionLabel returns the human-readable label for an action.
func ActionLabel(a TimelineAction) string {
	return actionLabels[a]
}

// MilestoneAction maps a milestone kind to its timeline action.
func MilestoneAction(kind MilestoneKind) TimelineAction {
	switch kind {
	case MilestoneDeparted:
		return ActionDeparted
	case MilestonePickupIn:
		return ActionPickupIn
	case MilestonePickupOut:
		return ActionPickupOut
	case MilestoneDestArrival:
		return ActionDestArrival
	case MilestoneDestDeparture:
		return ActionDestDeparture
	}
	return ""
}

// =============================================================================
// Timeline Entry
// =============================================================================

// TimelineEntry is one record in a deployment's ordered milestone history.
// Entries are append-only except for the keyed reconciliation update: a
// corrected milestone timestamp updates the existing entry for that
// (deployment, action) pair in place. canceled/resumed entries are always
// created fresh.
type TimelineEntry struct {
	ID           string           `json:"id"`
	DeploymentID string           `json:"deployment_id"`
	Action       TimelineAction   `json:"action"`
	Label        string           `json:"label"`
	Status       DeploymentStatus `json:"status"`
	Timestamp    time.Time        `json:"timestamp"`
	PerformedBy  string           `json:"performed_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewTimelineEntry creates a timeline entry for a deployment.
func NewTimelineEntry(deploymentID string, action TimelineAction, status DeploymentStatus, timestamp time.Time, performedBy string) *TimelineEntry {
	now := time.Now().UTC()
	return &TimelineEntry{
		ID:           "tml_" + uuid.New().String()[:8],
		DeploymentID: deploymentID,
		Action:       action,
		Label:        ActionLabel(action),
		Status:       status,
		Timestamp:    timestamp,
		PerformedBy:  performedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
