package store

import (
	"context"
	"testing"
	"time"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func createTestTruck(t *testing.T, s Store, id, plate string) *domain.Truck {
	t.Helper()

	truck := domain.NewTruck(plate, "10-wheeler")
	truck.ID = id
	require.NoError(t, s.CreateTruck(context.Background(), truck))
	return truck
}

func createTestDriver(t *testing.T, s Store, id, name string) *domain.Driver {
	t.Helper()

	driver := domain.NewDriver(name, "0917-555-0000")
	driver.ID = id
	require.NoError(t, s.CreateDriver(context.Background(), driver))
	return driver
}

func createTestDeployment(t *testing.T, s Store, truckID, driverID string) *domain.Deployment {
	t.Helper()

	now := time.Now().UTC()
	d := &domain.Deployment{
		ID:           "dep_" + truckID + driverID,
		Code:         domain.GenerateDeploymentCode(now),
		TruckID:      truckID,
		DriverID:     driverID,
		Status:       domain.StatusPreparing,
		SacksCount:   100,
		LoadWeightKg: 2500,
		PickupSite:   "North Warehouse",
		Destination:  "Harbor Terminal",
		TruckType:    "10-wheeler",
		HelperCount:  2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateDeployment(context.Background(), d))
	return d
}

// =============================================================================
// Truck and Driver Tests
// =============================================================================

func TestCreateGetTruck(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")

	got, err := s.GetTruck(ctx, "trk_1")
	require.NoError(t, err)
	assert.Equal(t, "ABC-1234", got.PlateNumber)
	assert.Equal(t, domain.ResourceAvailable, got.Status)
	assert.Equal(t, domain.ConditionGood, got.Condition)
}

func TestCreateTruckDuplicatePlate(t *testing.T) {
	s := setupTestStore(t)

	createTestTruck(t, s, "trk_1", "ABC-1234")

	dup := domain.NewTruck("ABC-1234", "6-wheeler")
	err := s.CreateTruck(context.Background(), dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestGetTruckNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetTruck(context.Background(), "trk_missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdateTruck(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	truck := createTestTruck(t, s, "trk_1", "ABC-1234")
	truck.Condition = domain.ConditionMaintenance
	truck.Status = domain.ResourceUnavailable
	require.NoError(t, s.UpdateTruck(ctx, truck))

	got, err := s.GetTruck(ctx, "trk_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConditionMaintenance, got.Condition)
	assert.Equal(t, domain.ResourceUnavailable, got.Status)
}

func TestIncrementDriverTrips(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")

	require.NoError(t, s.IncrementDriverTrips(ctx, "drv_1"))
	require.NoError(t, s.IncrementDriverTrips(ctx, "drv_1"))

	got, err := s.GetDriver(ctx, "drv_1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TripCount)
}

func TestIncrementDriverTripsNotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.IncrementDriverTrips(context.Background(), "drv_missing")
	assert.True(t, IsNotFound(err))
}

// =============================================================================
// Resource Acquisition Tests
// =============================================================================

func TestAcquireResource(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")

	require.NoError(t, s.AcquireResource(ctx, domain.KindTruck, "trk_1"))

	got, err := s.GetTruck(ctx, "trk_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceDeployed, got.Status)
}

func TestAcquireResourceAlreadyDeployed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	require.NoError(t, s.AcquireResource(ctx, domain.KindTruck, "trk_1"))

	err := s.AcquireResource(ctx, domain.KindTruck, "trk_1")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestAcquireResourceUnavailable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	truck := createTestTruck(t, s, "trk_1", "ABC-1234")
	truck.Status = domain.ResourceUnavailable
	require.NoError(t, s.UpdateTruck(ctx, truck))

	err := s.AcquireResource(ctx, domain.KindTruck, "trk_1")
	assert.True(t, IsUnavailable(err))
}

func TestAcquireResourceNotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.AcquireResource(context.Background(), domain.KindDriver, "drv_missing")
	assert.True(t, IsNotFound(err))
}

func TestReleaseResource(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	require.NoError(t, s.AcquireResource(ctx, domain.KindDriver, "drv_1"))
	require.NoError(t, s.ReleaseResource(ctx, domain.KindDriver, "drv_1"))

	got, err := s.GetDriver(ctx, "drv_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceAvailable, got.Status)

	// Releasing an already-available resource is a no-op.
	require.NoError(t, s.ReleaseResource(ctx, domain.KindDriver, "drv_1"))
}

func TestListDeployedResourceIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestTruck(t, s, "trk_2", "XYZ-5678")
	require.NoError(t, s.AcquireResource(ctx, domain.KindTruck, "trk_2"))

	ids, err := s.ListDeployedResourceIDs(ctx, domain.KindTruck)
	require.NoError(t, err)
	assert.Equal(t, []string{"trk_2"}, ids)
}

// =============================================================================
// Deployment Tests
// =============================================================================

func TestCreateGetDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	got, err := s.GetDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Code, got.Code)
	assert.Equal(t, "trk_1", got.TruckID)
	assert.Equal(t, "drv_1", got.DriverID)
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.Nil(t, got.Replacement)
	assert.Equal(t, 100, got.SacksCount)
}

func TestCreateDeploymentBadForeignKey(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC()
	d := &domain.Deployment{
		ID:        "dep_bad",
		Code:      domain.GenerateDeploymentCode(now),
		TruckID:   "trk_missing",
		DriverID:  "drv_missing",
		Status:    domain.StatusPreparing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateDeployment(context.Background(), d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestUpdateDeploymentWithReplacement(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestTruck(t, s, "trk_2", "XYZ-5678")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	d.Replacement = &domain.Replacement{
		TruckID:    "trk_2",
		ReplacedAt: time.Now().UTC().Format(time.RFC3339),
		Reason:     "flat tire",
	}
	d.Status = domain.StatusOngoing
	d.Milestones.Departed = "2026-03-01T08:00:00Z"
	require.NoError(t, s.UpdateDeployment(ctx, d))

	got, err := s.GetDeployment(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Replacement)
	assert.Equal(t, "trk_2", got.Replacement.TruckID)
	assert.Equal(t, "flat tire", got.Replacement.Reason)
	assert.Equal(t, "trk_2", got.ActiveTruckID())
	assert.Equal(t, "2026-03-01T08:00:00Z", got.Milestones.Departed)
}

func TestListDeploymentsFiltered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestTruck(t, s, "trk_2", "XYZ-5678")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")

	d1 := createTestDeployment(t, s, "trk_1", "drv_1")
	d2 := createTestDeployment(t, s, "trk_2", "drv_1")
	d2.Status = domain.StatusCompleted
	require.NoError(t, s.UpdateDeployment(ctx, d2))

	all, err := s.ListDeployments(ctx, DeploymentFilter{}, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	preparing, err := s.ListDeployments(ctx, DeploymentFilter{Status: domain.StatusPreparing}, ListOptions{})
	require.NoError(t, err)
	require.Len(t, preparing, 1)
	assert.Equal(t, d1.ID, preparing[0].ID)

	byTruck, err := s.ListDeployments(ctx, DeploymentFilter{TruckID: "trk_2"}, ListOptions{})
	require.NoError(t, err)
	require.Len(t, byTruck, 1)
	assert.Equal(t, d2.ID, byTruck[0].ID)

	count, err := s.CountDeployments(ctx, DeploymentFilter{Status: domain.StatusPreparing})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListActiveDeployments(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestTruck(t, s, "trk_2", "XYZ-5678")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")

	createTestDeployment(t, s, "trk_1", "drv_1")
	d2 := createTestDeployment(t, s, "trk_2", "drv_1")
	d2.Status = domain.StatusCanceled
	require.NoError(t, s.UpdateDeployment(ctx, d2))

	active, err := s.ListActiveDeployments(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "trk_1", active[0].TruckID)
}

// =============================================================================
// Timeline Tests
// =============================================================================

func TestTimelineKeyedLookup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	entry := domain.NewTimelineEntry(d.ID, domain.ActionDeparted, domain.StatusOngoing,
		mustParseTime(t, "2026-03-01T08:00:00Z"), "Admin One")
	require.NoError(t, s.CreateTimelineEntry(ctx, entry))

	got, err := s.GetTimelineEntryByAction(ctx, d.ID, domain.ActionDeparted)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "Departed from station", got.Label)

	_, err = s.GetTimelineEntryByAction(ctx, d.ID, domain.ActionPickupIn)
	assert.True(t, IsNotFound(err))
}

func TestTimelineMilestoneUniquePerDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	ts := mustParseTime(t, "2026-03-01T08:00:00Z")
	first := domain.NewTimelineEntry(d.ID, domain.ActionDeparted, domain.StatusOngoing, ts, "Admin One")
	require.NoError(t, s.CreateTimelineEntry(ctx, first))

	second := domain.NewTimelineEntry(d.ID, domain.ActionDeparted, domain.StatusOngoing, ts, "Admin One")
	err := s.CreateTimelineEntry(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestTimelineCancelResumeRepeatable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	ts := time.Now().UTC()
	require.NoError(t, s.CreateTimelineEntry(ctx,
		domain.NewTimelineEntry(d.ID, domain.ActionCanceled, domain.StatusCanceled, ts, "Admin One")))
	require.NoError(t, s.CreateTimelineEntry(ctx,
		domain.NewTimelineEntry(d.ID, domain.ActionResumed, domain.StatusPreparing, ts.Add(time.Hour), "Admin One")))
	require.NoError(t, s.CreateTimelineEntry(ctx,
		domain.NewTimelineEntry(d.ID, domain.ActionCanceled, domain.StatusCanceled, ts.Add(2*time.Hour), "Admin One")))

	entries, err := s.ListTimelineEntries(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestUpdateTimelineEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	entry := domain.NewTimelineEntry(d.ID, domain.ActionDeparted, domain.StatusOngoing,
		mustParseTime(t, "2026-03-01T08:00:00Z"), "Admin One")
	require.NoError(t, s.CreateTimelineEntry(ctx, entry))

	entry.Timestamp = mustParseTime(t, "2026-03-01T08:30:00Z")
	require.NoError(t, s.UpdateTimelineEntry(ctx, entry))

	got, err := s.GetTimelineEntryByAction(ctx, d.ID, domain.ActionDeparted)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T08:30:00Z", got.Timestamp.Format(time.RFC3339))

	entries, err := s.ListTimelineEntries(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// Activity Tests
// =============================================================================

func TestActivityEntries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")
	d := createTestDeployment(t, s, "trk_1", "drv_1")

	e1 := domain.NewActivityEntry(domain.ActivityDeployment, "DPL-20260301-abc123: Created deployment", "Admin One")
	e1.DeploymentID = d.ID
	require.NoError(t, s.CreateActivityEntry(ctx, e1))

	e2 := domain.NewActivityEntry(domain.ActivityTruck, "Registered truck ABC-1234", "Admin One")
	e2.TruckID = "trk_1"
	require.NoError(t, s.CreateActivityEntry(ctx, e2))

	all, err := s.ListActivityEntries(ctx, ActivityFilter{}, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	deploymentOnly, err := s.ListActivityEntries(ctx, ActivityFilter{Type: domain.ActivityDeployment}, ListOptions{})
	require.NoError(t, err)
	require.Len(t, deploymentOnly, 1)
	assert.Equal(t, d.ID, deploymentOnly[0].DeploymentID)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTxRollback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")

	err := s.WithTx(ctx, func(txs Store) error {
		if err := txs.AcquireResource(ctx, domain.KindTruck, "trk_1"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	// Acquisition rolled back with the transaction.
	got, err := s.GetTruck(ctx, "trk_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceAvailable, got.Status)
}

func TestWithTxCommit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestTruck(t, s, "trk_1", "ABC-1234")
	createTestDriver(t, s, "drv_1", "Juan Dela Cruz")

	err := s.WithTx(ctx, func(txs Store) error {
		if err := txs.AcquireResource(ctx, domain.KindTruck, "trk_1"); err != nil {
			return err
		}
		return txs.AcquireResource(ctx, domain.KindDriver, "drv_1")
	})
	require.NoError(t, err)

	truck, err := s.GetTruck(ctx, "trk_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceDeployed, truck.Status)

	driver, err := s.GetDriver(ctx, "drv_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceDeployed, driver.Status)
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
