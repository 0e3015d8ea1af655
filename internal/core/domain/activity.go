package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Activity Log
// =============================================================================

// ActivityType identifies which entity an activity entry is about.
type ActivityType string

const (
	ActivityDeployment ActivityType = "deployment"
	ActivityTruck      ActivityType = "truck"
	ActivityDriver     ActivityType = "driver"
)

// ActivityEntry is one line in the append-only administrative change log.
// Entries are never mutated or deleted.
type ActivityEntry struct {
	ID           string       `json:"id"`
	Type         ActivityType `json:"type"`
	Action       string       `json:"action"`
	PerformedBy  string       `json:"performed_by"`
	DeploymentID string       `json:"deployment_id,omitempty"`
	TruckID      string       `json:"truck_id,omitempty"`
	DriverID     string       `json:"driver_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewActivityEntry creates an activity entry with a generated id.
func NewActivityEntry(typ ActivityType, action, performedBy string) *ActivityEntry {
	return &ActivityEntry{
		ID:          "act_" + uuid.New().String()[:8],
		Type:        typ,
		Action:      action,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	}
}
