package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) (*Registry, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(s, logger), s
}

func addTruck(t *testing.T, s store.Store, id, plate string) {
	t.Helper()
	truck := domain.NewTruck(plate, "10-wheeler")
	truck.ID = id
	require.NoError(t, s.CreateTruck(context.Background(), truck))
}

func addDriver(t *testing.T, s store.Store, id, name string) {
	t.Helper()
	driver := domain.NewDriver(name, "0917-555-0000")
	driver.ID = id
	require.NoError(t, s.CreateDriver(context.Background(), driver))
}

func truckStatus(t *testing.T, s store.Store, id string) domain.ResourceStatus {
	t.Helper()
	truck, err := s.GetTruck(context.Background(), id)
	require.NoError(t, err)
	return truck.Status
}

func driverStatus(t *testing.T, s store.Store, id string) domain.ResourceStatus {
	t.Helper()
	driver, err := s.GetDriver(context.Background(), id)
	require.NoError(t, err)
	return driver.Status
}

func TestAcquireRelease(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")

	require.NoError(t, r.Acquire(ctx, domain.KindTruck, "trk_1"))
	assert.Equal(t, domain.ResourceDeployed, truckStatus(t, s, "trk_1"))

	err := r.Acquire(ctx, domain.KindTruck, "trk_1")
	assert.True(t, store.IsUnavailable(err))

	require.NoError(t, r.Release(ctx, domain.KindTruck, "trk_1"))
	assert.Equal(t, domain.ResourceAvailable, truckStatus(t, s, "trk_1"))
}

func TestAcquirePair(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")
	addDriver(t, s, "drv_1", "Juan Dela Cruz")

	require.NoError(t, r.AcquirePair(ctx, "trk_1", "drv_1"))
	assert.Equal(t, domain.ResourceDeployed, truckStatus(t, s, "trk_1"))
	assert.Equal(t, domain.ResourceDeployed, driverStatus(t, s, "drv_1"))
}

func TestAcquirePairReleasesTruckOnDriverFailure(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")
	addDriver(t, s, "drv_1", "Juan Dela Cruz")

	// Another deployment already holds the driver.
	require.NoError(t, r.Acquire(ctx, domain.KindDriver, "drv_1"))

	err := r.AcquirePair(ctx, "trk_1", "drv_1")
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))

	// The truck acquisition was rolled back.
	assert.Equal(t, domain.ResourceAvailable, truckStatus(t, s, "trk_1"))
}

func TestSwap(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")
	addTruck(t, s, "trk_2", "XYZ-5678")

	require.NoError(t, r.Acquire(ctx, domain.KindTruck, "trk_1"))
	require.NoError(t, r.Swap(ctx, domain.KindTruck, "trk_1", "trk_2"))

	assert.Equal(t, domain.ResourceAvailable, truckStatus(t, s, "trk_1"))
	assert.Equal(t, domain.ResourceDeployed, truckStatus(t, s, "trk_2"))
}

func TestSwapFailureKeepsOldAssignment(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")
	addTruck(t, s, "trk_2", "XYZ-5678")

	require.NoError(t, r.Acquire(ctx, domain.KindTruck, "trk_1"))
	// trk_2 is taken by someone else.
	require.NoError(t, r.Acquire(ctx, domain.KindTruck, "trk_2"))

	err := r.Swap(ctx, domain.KindTruck, "trk_1", "trk_2")
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))

	// The original assignment still stands.
	assert.Equal(t, domain.ResourceDeployed, truckStatus(t, s, "trk_1"))
}

func TestSwapSameResourceIsNoOp(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")

	require.NoError(t, r.Acquire(ctx, domain.KindTruck, "trk_1"))
	require.NoError(t, r.Swap(ctx, domain.KindTruck, "trk_1", "trk_1"))
	assert.Equal(t, domain.ResourceDeployed, truckStatus(t, s, "trk_1"))
}

func TestReleaseAll(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	addTruck(t, s, "trk_1", "ABC-1234")
	addDriver(t, s, "drv_1", "Juan Dela Cruz")

	require.NoError(t, r.AcquirePair(ctx, "trk_1", "drv_1"))
	require.NoError(t, r.ReleaseAll(ctx, "trk_1", "drv_1"))

	assert.Equal(t, domain.ResourceAvailable, truckStatus(t, s, "trk_1"))
	assert.Equal(t, domain.ResourceAvailable, driverStatus(t, s, "drv_1"))
}
