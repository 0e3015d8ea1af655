package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Deployment Creation Tests
// =============================================================================

func TestNewDeployment(t *testing.T) {
	d := NewDeployment("trk_abc", "drv_def")

	assert.NotEmpty(t, d.ID)
	assert.Contains(t, d.ID, "dep_")
	assert.Contains(t, d.Code, "DPL-")
	assert.Equal(t, "trk_abc", d.TruckID)
	assert.Equal(t, "drv_def", d.DriverID)
	assert.Equal(t, StatusPreparing, d.Status)
	assert.Nil(t, d.Replacement)
	assert.NotZero(t, d.CreatedAt)
}

func TestGenerateDeploymentCode_UniqueSuffix(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	code1 := GenerateDeploymentCode(at)
	code2 := GenerateDeploymentCode(at)

	assert.Contains(t, code1, "DPL-20240101-")
	assert.NotEqual(t, code1, code2)
}

// =============================================================================
// Active Resource Tests
// =============================================================================

func TestDeployment_ActiveResources_NoReplacement(t *testing.T) {
	d := NewDeployment("trk_abc", "drv_def")

	assert.Equal(t, "trk_abc", d.ActiveTruckID())
	assert.Equal(t, "drv_def", d.ActiveDriverID())
}

func TestDeployment_ActiveResources_TruckReplaced(t *testing.T) {
	d := NewDeployment("trk_abc", "drv_def")
	d.Replacement = &Replacement{TruckID: "trk_new"}

	assert.Equal(t, "trk_new", d.ActiveTruckID())
	assert.Equal(t, "drv_def", d.ActiveDriverID())
}

func TestDeployment_ActiveResources_BothReplaced(t *testing.T) {
	d := NewDeployment("trk_abc", "drv_def")
	d.Replacement = &Replacement{TruckID: "trk_new", DriverID: "drv_new"}

	assert.Equal(t, "trk_new", d.ActiveTruckID())
	assert.Equal(t, "drv_new", d.ActiveDriverID())
}

func TestDeployment_IsActive(t *testing.T) {
	d := NewDeployment("trk_abc", "drv_def")

	d.Status = StatusPreparing
	assert.True(t, d.IsActive())
	d.Status = StatusOngoing
	assert.True(t, d.IsActive())
	d.Status = StatusCompleted
	assert.False(t, d.IsActive())
	d.Status = StatusCanceled
	assert.False(t, d.IsActive())
}

// =============================================================================
// Transition Validation Tests
// =============================================================================

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    DeploymentStatus
		to      DeploymentStatus
		wantErr error
	}{
		{"preparing to ongoing", StatusPreparing, StatusOngoing, nil},
		{"preparing to completed", StatusPreparing, StatusCompleted, nil},
		{"preparing to canceled", StatusPreparing, StatusCanceled, nil},
		{"ongoing to completed", StatusOngoing, StatusCompleted, nil},
		{"ongoing to canceled", StatusOngoing, StatusCanceled, nil},
		{"ongoing to preparing", StatusOngoing, StatusPreparing, ErrInvalidTransition},
		{"canceled resume to preparing", StatusCanceled, StatusPreparing, nil},
		{"canceled resume to ongoing", StatusCanceled, StatusOngoing, nil},
		{"canceled resume to completed", StatusCanceled, StatusCompleted, nil},
		{"completed is terminal", StatusCompleted, StatusCanceled, ErrDeploymentCompleted},
		{"completed to ongoing", StatusCompleted, StatusOngoing, ErrDeploymentCompleted},
		{"no-op same status", StatusOngoing, StatusOngoing, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// Status Derivation Tests
// =============================================================================

func TestDeriveStatus_DestDepartureWins(t *testing.T) {
	m := Milestones{Departed: "2024-01-01T08:00:00+08:00", DestDeparture: "2024-01-01T17:00:00+08:00"}

	status, err := DeriveStatus(StatusOngoing, m, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestDeriveStatus_DepartedMeansOngoing(t *testing.T) {
	m := Milestones{Departed: "2024-01-01T08:00:00+08:00"}

	status, err := DeriveStatus(StatusPreparing, m, "")
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, status)
}

func TestDeriveStatus_CanceledBlocksDerivation(t *testing.T) {
	// Milestone-driven rules never pull a canceled deployment out of
	// canceled; only an explicit resume does.
	m := Milestones{Departed: "2024-01-01T08:00:00+08:00", DestDeparture: "2024-01-01T17:00:00+08:00"}

	status, err := DeriveStatus(StatusCanceled, m, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, status)
}

func TestDeriveStatus_ExplicitCancel(t *testing.T) {
	status, err := DeriveStatus(StatusPreparing, Milestones{}, StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, status)
}

func TestDeriveStatus_ExplicitCancelBeatsMilestones(t *testing.T) {
	// departed would derive ongoing, but an explicit cancel must still
	// land: it is the only way out of an in-flight run.
	m := Milestones{Departed: "2026-03-01T08:00:00Z"}

	status, err := DeriveStatus(StatusOngoing, m, StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, status)

	m.DestDeparture = "2026-03-01T17:00:00Z"
	status, err = DeriveStatus(StatusOngoing, m, StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, status)
}

func TestDeriveStatus_ExplicitResume(t *testing.T) {
	status, err := DeriveStatus(StatusCanceled, Milestones{}, StatusOngoing)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, status)
}

func TestDeriveStatus_CompletedIsTerminal(t *testing.T) {
	_, err := DeriveStatus(StatusCompleted, Milestones{DestDeparture: ""}, StatusCanceled)
	assert.ErrorIs(t, err, ErrDeploymentCompleted)
}

func TestDeriveStatus_UnknownOverride(t *testing.T) {
	_, err := DeriveStatus(StatusPreparing, Milestones{}, DeploymentStatus("bogus"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeriveStatus_Unchanged(t *testing.T) {
	status, err := DeriveStatus(StatusPreparing, Milestones{}, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, status)
}

// =============================================================================
// Milestone Tests
// =============================================================================

func TestMilestones_GetSet(t *testing.T) {
	var m Milestones
	for _, kind := range MilestoneKinds {
		assert.Empty(t, m.Get(kind))
		m.Set(kind, "2024-01-01T08:00:00+08:00")
		assert.Equal(t, "2024-01-01T08:00:00+08:00", m.Get(kind))
	}
}

func TestValidateTimestamp(t *testing.T) {
	assert.NoError(t, ValidateTimestamp(""))
	assert.NoError(t, ValidateTimestamp("2024-01-01T08:00:00+08:00"))
	assert.NoError(t, ValidateTimestamp("2024-01-01T08:00:00Z"))
	assert.ErrorIs(t, ValidateTimestamp("yesterday"), ErrInvalidTimestamp)
	assert.ErrorIs(t, ValidateTimestamp("2024-01-01"), ErrInvalidTimestamp)
}
