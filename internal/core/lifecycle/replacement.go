package lifecycle

import (
	"github.com/fleetyard/dispatch/internal/core/domain"
)

// =============================================================================
// Replacement Input
// =============================================================================

// ReplacementInput carries the optional replacement sub-object of an
// update request. Nil pointers leave the corresponding stored value
// unchanged.
type ReplacementInput struct {
	TruckID     *string
	DriverID    *string
	TruckType   *string
	HelperCount *int
	ReplacedAt  *string
	Reason      *string
	Remarks     *string
}

// =============================================================================
// Replacement Plan
// =============================================================================

// Swap describes one resource substitution the registry must perform:
// acquire NewID, then release OldID.
type Swap struct {
	Kind  domain.ResourceKind
	OldID string
	NewID string
}

// Plan is the outcome of planning a replacement request: the swaps to
// execute and the replacement record to store on the deployment.
type Plan struct {
	// TruckSwap and DriverSwap are nil when the requested id matches the
	// current replacement id (or none was requested).
	TruckSwap  *Swap
	DriverSwap *Swap

	// Next is the replacement record after applying the request, nil if
	// the deployment still has no replacement.
	Next *domain.Replacement
}

// PlanReplacement decides, for each of truck and driver independently,
// whether the requested replacement id is new and therefore requires a
// registry swap against the resource active before this change. The
// descriptive sub-fields are applied onto the record regardless of
// whether either id changed.
func PlanReplacement(d *domain.Deployment, in ReplacementInput) Plan {
	var plan Plan

	next := domain.Replacement{}
	if d.Replacement != nil {
		next = *d.Replacement
	}

	if in.TruckID != nil && *in.TruckID != "" {
		existing := next.TruckID
		if existing != *in.TruckID {
			plan.TruckSwap = &Swap{
				Kind:  domain.KindTruck,
				OldID: d.ActiveTruckID(),
				NewID: *in.TruckID,
			}
			next.TruckID = *in.TruckID
		}
	}

	if in.DriverID != nil && *in.DriverID != "" {
		existing := next.DriverID
		if existing != *in.DriverID {
			plan.DriverSwap = &Swap{
				Kind:  domain.KindDriver,
				OldID: d.ActiveDriverID(),
				NewID: *in.DriverID,
			}
			next.DriverID = *in.DriverID
		}
	}

	if in.TruckType != nil {
		next.TruckType = *in.TruckType
	}
	if in.HelperCount != nil {
		next.HelperCount = *in.HelperCount
	}
	if in.ReplacedAt != nil {
		next.ReplacedAt = *in.ReplacedAt
	}
	if in.Reason != nil {
		next.Reason = *in.Reason
	}
	if in.Remarks != nil {
		next.Remarks = *in.Remarks
	}

	if next != (domain.Replacement{}) {
		plan.Next = &next
	} else {
		plan.Next = d.Replacement
	}

	return plan
}
