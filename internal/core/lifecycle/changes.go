package lifecycle

import (
	"strconv"

	"github.com/fleetyard/dispatch/internal/core/domain"
)

// =============================================================================
// Field Diffing
// =============================================================================

// FieldChange records one scalar field edit for audit logging.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// DiffFields compares the tracked scalar fields of a deployment before
// and after an update and returns one change per edited field. Resource
// reassignments and replacements are audited separately.
func DiffFields(before, after *domain.Deployment) []FieldChange {
	var changes []FieldChange

	add := func(field, oldV, newV string) {
		if oldV != newV {
			changes = append(changes, FieldChange{Field: field, Old: oldV, New: newV})
		}
	}

	add("truck type", before.TruckType, after.TruckType)
	add("helper count", strconv.Itoa(before.HelperCount), strconv.Itoa(after.HelperCount))
	add("pickup site", before.PickupSite, after.PickupSite)
	add("destination", before.Destination, after.Destination)
	add("sacks count", strconv.Itoa(before.SacksCount), strconv.Itoa(after.SacksCount))
	add("load weight", formatWeight(before.LoadWeightKg), formatWeight(after.LoadWeightKg))
	add("status", string(before.Status), string(after.Status))

	return changes
}

func formatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', -1, 64) + "kg"
}
