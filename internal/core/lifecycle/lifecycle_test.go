package lifecycle

import (
	"testing"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// =============================================================================
// Milestone Merge Tests
// =============================================================================

func TestMergeMilestones_OmittedFieldsUnchanged(t *testing.T) {
	existing := domain.Milestones{Departed: "2024-01-01T08:00:00+08:00"}

	merged := MergeMilestones(existing, MilestoneInput{PickupIn: strPtr("2024-01-01T10:00:00+08:00")})

	assert.Equal(t, "2024-01-01T08:00:00+08:00", merged.Departed)
	assert.Equal(t, "2024-01-01T10:00:00+08:00", merged.PickupIn)
	assert.Empty(t, merged.DestDeparture)
}

func TestMergeMilestones_ExplicitClear(t *testing.T) {
	existing := domain.Milestones{Departed: "2024-01-01T08:00:00+08:00"}

	merged := MergeMilestones(existing, MilestoneInput{Departed: strPtr("")})

	assert.Empty(t, merged.Departed)
}

func TestNewlySet_FirstRecording(t *testing.T) {
	before := domain.Milestones{}
	after := domain.Milestones{Departed: "2024-01-01T08:00:00+08:00"}

	kinds := NewlySet(before, after)
	assert.Equal(t, []domain.MilestoneKind{domain.MilestoneDeparted}, kinds)
}

func TestNewlySet_ResubmissionNotLogged(t *testing.T) {
	before := domain.Milestones{Departed: "2024-01-01T08:00:00+08:00"}
	after := domain.Milestones{Departed: "2024-01-01T09:00:00+08:00"}

	assert.Empty(t, NewlySet(before, after))
}

func TestNewlySet_MultipleInOneRequest(t *testing.T) {
	before := domain.Milestones{Departed: "2024-01-01T08:00:00+08:00"}
	after := domain.Milestones{
		Departed:    "2024-01-01T08:00:00+08:00",
		PickupIn:    "2024-01-01T10:00:00+08:00",
		PickupOut:   "2024-01-01T11:00:00+08:00",
		DestArrival: "2024-01-01T15:00:00+08:00",
	}

	kinds := NewlySet(before, after)
	assert.Equal(t, []domain.MilestoneKind{
		domain.MilestonePickupIn,
		domain.MilestonePickupOut,
		domain.MilestoneDestArrival,
	}, kinds)
}

func TestMilestoneInput_Validate(t *testing.T) {
	assert.NoError(t, MilestoneInput{}.Validate())
	assert.NoError(t, MilestoneInput{Departed: strPtr("2024-01-01T08:00:00+08:00")}.Validate())
	assert.NoError(t, MilestoneInput{Departed: strPtr("")}.Validate())
	assert.ErrorIs(t, MilestoneInput{PickupIn: strPtr("not-a-date")}.Validate(), domain.ErrInvalidTimestamp)
}

// =============================================================================
// Replacement Plan Tests
// =============================================================================

func TestPlanReplacement_FirstTruckReplacement(t *testing.T) {
	d := domain.NewDeployment("trk_orig", "drv_orig")

	plan := PlanReplacement(d, ReplacementInput{
		TruckID: strPtr("trk_new"),
		Reason:  strPtr("breakdown"),
	})

	require.NotNil(t, plan.TruckSwap)
	assert.Equal(t, domain.KindTruck, plan.TruckSwap.Kind)
	assert.Equal(t, "trk_orig", plan.TruckSwap.OldID)
	assert.Equal(t, "trk_new", plan.TruckSwap.NewID)
	assert.Nil(t, plan.DriverSwap)

	require.NotNil(t, plan.Next)
	assert.Equal(t, "trk_new", plan.Next.TruckID)
	assert.Equal(t, "breakdown", plan.Next.Reason)
}

func TestPlanReplacement_SecondTruckReplacement(t *testing.T) {
	// The second substitution swaps out the first replacement truck, not
	// the original assignment.
	d := domain.NewDeployment("trk_orig", "drv_orig")
	d.Replacement = &domain.Replacement{TruckID: "trk_first"}

	plan := PlanReplacement(d, ReplacementInput{TruckID: strPtr("trk_second")})

	require.NotNil(t, plan.TruckSwap)
	assert.Equal(t, "trk_first", plan.TruckSwap.OldID)
	assert.Equal(t, "trk_second", plan.TruckSwap.NewID)
}

func TestPlanReplacement_SameIDNoSwap(t *testing.T) {
	d := domain.NewDeployment("trk_orig", "drv_orig")
	d.Replacement = &domain.Replacement{TruckID: "trk_new", Reason: "breakdown"}

	plan := PlanReplacement(d, ReplacementInput{
		TruckID: strPtr("trk_new"),
		Remarks: strPtr("tire fixed en route"),
	})

	assert.Nil(t, plan.TruckSwap)
	assert.Nil(t, plan.DriverSwap)
	// Descriptive fields are still edited independently.
	require.NotNil(t, plan.Next)
	assert.Equal(t, "tire fixed en route", plan.Next.Remarks)
	assert.Equal(t, "breakdown", plan.Next.Reason)
}

func TestPlanReplacement_BothKindsIndependent(t *testing.T) {
	d := domain.NewDeployment("trk_orig", "drv_orig")
	d.Replacement = &domain.Replacement{TruckID: "trk_new"}

	plan := PlanReplacement(d, ReplacementInput{
		TruckID:     strPtr("trk_new"),
		DriverID:    strPtr("drv_new"),
		HelperCount: intPtr(3),
	})

	assert.Nil(t, plan.TruckSwap)
	require.NotNil(t, plan.DriverSwap)
	assert.Equal(t, "drv_orig", plan.DriverSwap.OldID)
	assert.Equal(t, "drv_new", plan.DriverSwap.NewID)
	assert.Equal(t, 3, plan.Next.HelperCount)
}

func TestPlanReplacement_NoInput(t *testing.T) {
	d := domain.NewDeployment("trk_orig", "drv_orig")

	plan := PlanReplacement(d, ReplacementInput{})

	assert.Nil(t, plan.TruckSwap)
	assert.Nil(t, plan.DriverSwap)
	assert.Nil(t, plan.Next)
}

// =============================================================================
// Field Diff Tests
// =============================================================================

func TestDiffFields(t *testing.T) {
	before := domain.NewDeployment("trk_a", "drv_a")
	before.Destination = "Manila"
	before.SacksCount = 100
	before.LoadWeightKg = 2500

	after := *before
	after.Destination = "Cebu"
	after.SacksCount = 120
	after.Status = domain.StatusOngoing

	changes := DiffFields(before, &after)

	require.Len(t, changes, 3)
	assert.Equal(t, FieldChange{Field: "destination", Old: "Manila", New: "Cebu"}, changes[0])
	assert.Equal(t, FieldChange{Field: "sacks count", Old: "100", New: "120"}, changes[1])
	assert.Equal(t, FieldChange{Field: "status", Old: "preparing", New: "ongoing"}, changes[2])
}

func TestDiffFields_NoChanges(t *testing.T) {
	d := domain.NewDeployment("trk_a", "drv_a")
	copy := *d

	assert.Empty(t, DiffFields(d, &copy))
}

func TestDiffFields_Weight(t *testing.T) {
	before := domain.NewDeployment("trk_a", "drv_a")
	before.LoadWeightKg = 2500.5
	after := *before
	after.LoadWeightKg = 2600

	changes := DiffFields(before, &after)
	require.Len(t, changes, 1)
	assert.Equal(t, "load weight", changes[0].Field)
	assert.Equal(t, "2500.5kg", changes[0].Old)
	assert.Equal(t, "2600kg", changes[0].New)
}
