package lifecycle

import (
	"github.com/fleetyard/dispatch/internal/core/domain"
)

// =============================================================================
// Milestone Input
// =============================================================================

// MilestoneInput carries the optional milestone fields of an update
// request. A nil pointer leaves the stored value unchanged; an empty
// string explicitly clears it.
type MilestoneInput struct {
	Departed      *string
	PickupIn      *string
	PickupOut     *string
	DestArrival   *string
	DestDeparture *string
}

// get returns the submitted pointer for a milestone kind.
func (in MilestoneInput) get(kind domain.MilestoneKind) *string {
	switch kind {
	case domain.MilestoneDeparted:
		return in.Departed
	case domain.MilestonePickupIn:
		return in.PickupIn
	case domain.MilestonePickupOut:
		return in.PickupOut
	case domain.MilestoneDestArrival:
		return in.DestArrival
	case domain.MilestoneDestDeparture:
		return in.DestDeparture
	}
	return nil
}

// Validate checks every submitted milestone value for parseability.
func (in MilestoneInput) Validate() error {
	for _, kind := range domain.MilestoneKinds {
		if v := in.get(kind); v != nil {
			if err := domain.ValidateTimestamp(*v); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// Merging and Detection
// =============================================================================

// MergeMilestones applies submitted milestone fields onto the existing
// values. Omitted fields are untouched.
func MergeMilestones(existing domain.Milestones, in MilestoneInput) domain.Milestones {
	merged := existing
	for _, kind := range domain.MilestoneKinds {
		if v := in.get(kind); v != nil {
			merged.Set(kind, *v)
		}
	}
	return merged
}

// NewlySet returns the milestone kinds that transitioned from unset to a
// non-empty value between before and after. Only these recordings produce
// timeline entries: resubmitting a different value for an already-set
// milestone changes the stored field but is not re-logged.
func NewlySet(before, after domain.Milestones) []domain.MilestoneKind {
	var kinds []domain.MilestoneKind
	for _, kind := range domain.MilestoneKinds {
		if before.Get(kind) == "" && after.Get(kind) != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
