package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Interface Dispatch
// =============================================================================

func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *domain.Deployment) error {
	return createDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, d *domain.Deployment) error {
	return updateDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, filter DeploymentFilter, opts ListOptions) ([]domain.Deployment, error) {
	return listDeployments(ctx, s.db, filter, opts)
}

func (s *SQLiteStore) CountDeployments(ctx context.Context, filter DeploymentFilter) (int, error) {
	return countDeployments(ctx, s.db, filter)
}

func (s *SQLiteStore) ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return listActiveDeployments(ctx, s.db)
}

func (s *SQLiteStore) CreateTruck(ctx context.Context, t *domain.Truck) error {
	return createTruck(ctx, s.db, t)
}

func (s *SQLiteStore) GetTruck(ctx context.Context, id string) (*domain.Truck, error) {
	return getTruck(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateTruck(ctx context.Context, t *domain.Truck) error {
	return updateTruck(ctx, s.db, t)
}

func (s *SQLiteStore) ListTrucks(ctx context.Context, opts ListOptions) ([]domain.Truck, error) {
	return listTrucks(ctx, s.db, opts)
}

func (s *SQLiteStore) CreateDriver(ctx context.Context, d *domain.Driver) error {
	return createDriver(ctx, s.db, d)
}

func (s *SQLiteStore) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	return getDriver(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDriver(ctx context.Context, d *domain.Driver) error {
	return updateDriver(ctx, s.db, d)
}

func (s *SQLiteStore) ListDrivers(ctx context.Context, opts ListOptions) ([]domain.Driver, error) {
	return listDrivers(ctx, s.db, opts)
}

func (s *SQLiteStore) IncrementDriverTrips(ctx context.Context, id string) error {
	return incrementDriverTrips(ctx, s.db, id)
}

func (s *SQLiteStore) AcquireResource(ctx context.Context, kind domain.ResourceKind, id string) error {
	return acquireResource(ctx, s.db, kind, id)
}

func (s *SQLiteStore) ReleaseResource(ctx context.Context, kind domain.ResourceKind, id string) error {
	return releaseResource(ctx, s.db, kind, id)
}

func (s *SQLiteStore) ListDeployedResourceIDs(ctx context.Context, kind domain.ResourceKind) ([]string, error) {
	return listDeployedResourceIDs(ctx, s.db, kind)
}

func (s *SQLiteStore) CreateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error {
	return createTimelineEntry(ctx, s.db, e)
}

func (s *SQLiteStore) GetTimelineEntryByAction(ctx context.Context, deploymentID string, action domain.TimelineAction) (*domain.TimelineEntry, error) {
	return getTimelineEntryByAction(ctx, s.db, deploymentID, action)
}

func (s *SQLiteStore) UpdateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error {
	return updateTimelineEntry(ctx, s.db, e)
}

func (s *SQLiteStore) ListTimelineEntries(ctx context.Context, deploymentID string) ([]domain.TimelineEntry, error) {
	return listTimelineEntries(ctx, s.db, deploymentID)
}

func (s *SQLiteStore) CreateActivityEntry(ctx context.Context, e *domain.ActivityEntry) error {
	return createActivityEntry(ctx, s.db, e)
}

func (s *SQLiteStore) ListActivityEntries(ctx context.Context, filter ActivityFilter, opts ListOptions) ([]domain.ActivityEntry, error) {
	return listActivityEntries(ctx, s.db, filter, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, d *domain.Deployment) error {
	return createDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, d *domain.Deployment) error {
	return updateDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) ListDeployments(ctx context.Context, filter DeploymentFilter, opts ListOptions) ([]domain.Deployment, error) {
	return listDeployments(ctx, s.tx, filter, opts)
}

func (s *txSQLiteStore) CountDeployments(ctx context.Context, filter DeploymentFilter) (int, error) {
	return countDeployments(ctx, s.tx, filter)
}

func (s *txSQLiteStore) ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return listActiveDeployments(ctx, s.tx)
}

func (s *txSQLiteStore) CreateTruck(ctx context.Context, t *domain.Truck) error {
	return createTruck(ctx, s.tx, t)
}

func (s *txSQLiteStore) GetTruck(ctx context.Context, id string) (*domain.Truck, error) {
	return getTruck(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateTruck(ctx context.Context, t *domain.Truck) error {
	return updateTruck(ctx, s.tx, t)
}

func (s *txSQLiteStore) ListTrucks(ctx context.Context, opts ListOptions) ([]domain.Truck, error) {
	return listTrucks(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateDriver(ctx context.Context, d *domain.Driver) error {
	return createDriver(ctx, s.tx, d)
}

func (s *txSQLiteStore) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	return getDriver(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDriver(ctx context.Context, d *domain.Driver) error {
	return updateDriver(ctx, s.tx, d)
}

func (s *txSQLiteStore) ListDrivers(ctx context.Context, opts ListOptions) ([]domain.Driver, error) {
	return listDrivers(ctx, s.tx, opts)
}

func (s *txSQLiteStore) IncrementDriverTrips(ctx context.Context, id string) error {
	return incrementDriverTrips(ctx, s.tx, id)
}

func (s *txSQLiteStore) AcquireResource(ctx context.Context, kind domain.ResourceKind, id string) error {
	return acquireResource(ctx, s.tx, kind, id)
}

func (s *txSQLiteStore) ReleaseResource(ctx context.Context, kind domain.ResourceKind, id string) error {
	return releaseResource(ctx, s.tx, kind, id)
}

func (s *txSQLiteStore) ListDeployedResourceIDs(ctx context.Context, kind domain.ResourceKind) ([]string, error) {
	return listDeployedResourceIDs(ctx, s.tx, kind)
}

func (s *txSQLiteStore) CreateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error {
	return createTimelineEntry(ctx, s.tx, e)
}

func (s *txSQLiteStore) GetTimelineEntryByAction(ctx context.Context, deploymentID string, action domain.TimelineAction) (*domain.TimelineEntry, error) {
	return getTimelineEntryByAction(ctx, s.tx, deploymentID, action)
}

func (s *txSQLiteStore) UpdateTimelineEntry(ctx context.Context, e *domain.TimelineEntry) error {
	return updateTimelineEntry(ctx, s.tx, e)
}

func (s *txSQLiteStore) ListTimelineEntries(ctx context.Context, deploymentID string) ([]domain.TimelineEntry, error) {
	return listTimelineEntries(ctx, s.tx, deploymentID)
}

func (s *txSQLiteStore) CreateActivityEntry(ctx context.Context, e *domain.ActivityEntry) error {
	return createActivityEntry(ctx, s.tx, e)
}

func (s *txSQLiteStore) ListActivityEntries(ctx context.Context, filter ActivityFilter, opts ListOptions) ([]domain.ActivityEntry, error) {
	return listActivityEntries(ctx, s.tx, filter, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Row Types
// =============================================================================

type deploymentRow struct {
	ID            string  `db:"id"`
	Code          string  `db:"code"`
	TruckID       string  `db:"truck_id"`
	DriverID      string  `db:"driver_id"`
	Replacement   *string `db:"replacement"`
	Status        string  `db:"status"`
	Departed      string  `db:"departed"`
	PickupIn      string  `db:"pickup_in"`
	PickupOut     string  `db:"pickup_out"`
	DestArrival   string  `db:"dest_arrival"`
	DestDeparture string  `db:"dest_departure"`
	SacksCount    int     `db:"sacks_count"`
	LoadWeightKg  float64 `db:"load_weight_kg"`
	PickupSite    string  `db:"pickup_site"`
	Destination   string  `db:"destination"`
	TruckType     string  `db:"truck_type"`
	HelperCount   int     `db:"helper_count"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

type truckRow struct {
	ID          string `db:"id"`
	PlateNumber string `db:"plate_number"`
	TruckType   string `db:"truck_type"`
	Condition   string `db:"condition"`
	Status      string `db:"status"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

type driverRow struct {
	ID        string `db:"id"`
	FullName  string `db:"full_name"`
	Phone     string `db:"phone"`
	TripCount int    `db:"trip_count"`
	Status    string `db:"status"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type timelineRow struct {
	ID           string `db:"id"`
	DeploymentID string `db:"deployment_id"`
	Action       string `db:"action"`
	Label        string `db:"label"`
	Status       string `db:"status"`
	Timestamp    string `db:"timestamp"`
	PerformedBy  string `db:"performed_by"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

type activityRow struct {
	ID           string `db:"id"`
	EntityType   string `db:"entity_type"`
	Action       string `db:"action"`
	PerformedBy  string `db:"performed_by"`
	DeploymentID string `db:"deployment_id"`
	TruckID      string `db:"truck_id"`
	DriverID     string `db:"driver_id"`
	CreatedAt    string `db:"created_at"`
}

// =============================================================================
// Deployment Implementation
// =============================================================================

func deploymentToRowMap(d *domain.Deployment) (map[string]any, error) {
	var replacement *string
	if d.Replacement != nil {
		b, err := json.Marshal(d.Replacement)
		if err != nil {
			return nil, NewStoreError("deploymentToRowMap", "deployment", d.ID, "failed to serialize replacement", ErrInvalidData)
		}
		s := string(b)
		replacement = &s
	}

	return map[string]any{
		"id":             d.ID,
		"code":           d.Code,
		"truck_id":       d.TruckID,
		"driver_id":      d.DriverID,
		"replacement":    replacement,
		"status":         string(d.Status),
		"departed":       d.Milestones.Departed,
		"pickup_in":      d.Milestones.PickupIn,
		"pickup_out":     d.Milestones.PickupOut,
		"dest_arrival":   d.Milestones.DestArrival,
		"dest_departure": d.Milestones.DestDeparture,
		"sacks_count":    d.SacksCount,
		"load_weight_kg": d.LoadWeightKg,
		"pickup_site":    d.PickupSite,
		"destination":    d.Destination,
		"truck_type":     d.TruckType,
		"helper_count":   d.HelperCount,
		"created_at":     d.CreatedAt.Format(time.RFC3339),
		"updated_at":     d.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func createDeployment(ctx context.Context, exec executor, d *domain.Deployment) error {
	row, err := deploymentToRowMap(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO deployments (
			id, code, truck_id, driver_id, replacement, status,
			departed, pickup_in, pickup_out, dest_arrival, dest_departure,
			sacks_count, load_weight_kg, pickup_site, destination,
			truck_type, helper_count, created_at, updated_at
		) VALUES (
			:id, :code, :truck_id, :driver_id, :replacement, :status,
			:departed, :pickup_in, :pickup_out, :dest_arrival, :dest_departure,
			:sacks_count, :load_weight_kg, :pickup_site, :destination,
			:truck_type, :helper_count, :created_at, :updated_at
		)`

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", d.ID, "deployment with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.code") {
			return NewStoreError("CreateDeployment", "deployment", d.ID, "deployment with this code already exists", ErrDuplicateCode)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateDeployment", "deployment", d.ID, "referenced truck or driver not found", ErrForeignKey)
		}
		return NewStoreError("CreateDeployment", "deployment", d.ID, err.Error(), err)
	}

	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE id = ?`

	var row deploymentRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}

	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, exec executor, d *domain.Deployment) error {
	row, err := deploymentToRowMap(d)
	if err != nil {
		return err
	}

	query := `
		UPDATE deployments SET
			truck_id = :truck_id,
			driver_id = :driver_id,
			replacement = :replacement,
			status = :status,
			departed = :departed,
			pickup_in = :pickup_in,
			pickup_out = :pickup_out,
			dest_arrival = :dest_arrival,
			dest_departure = :dest_departure,
			sacks_count = :sacks_count,
			load_weight_kg = :load_weight_kg,
			pickup_site = :pickup_site,
			destination = :destination,
			truck_type = :truck_type,
			helper_count = :helper_count,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, "deployment not found", ErrNotFound)
	}

	return nil
}

func deploymentFilterClause(filter DeploymentFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TruckID != "" {
		conds = append(conds, "truck_id = ?")
		args = append(args, filter.TruckID)
	}
	if filter.DriverID != "" {
		conds = append(conds, "driver_id = ?")
		args = append(args, filter.DriverID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func listDeployments(ctx context.Context, exec executor, filter DeploymentFilter, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()
	where, args := deploymentFilterClause(filter)
	query := `SELECT * FROM deployments` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []deploymentRow
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("ListDeployments", "deployment", "", err.Error(), err)
	}

	deployments := make([]domain.Deployment, 0, len(rows))
	for _, row := range rows {
		d, err := rowToDeployment(&row)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}

	return deployments, nil
}

func countDeployments(ctx context.Context, exec executor, filter DeploymentFilter) (int, error) {
	where, args := deploymentFilterClause(filter)
	query := `SELECT COUNT(*) FROM deployments` + where

	var count int
	if err := exec.GetContext(ctx, &count, query, args...); err != nil {
		return 0, NewStoreError("CountDeployments", "deployment", "", err.Error(), err)
	}
	return count, nil
}

func listActiveDeployments(ctx context.Context, exec executor) ([]domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE status IN ('preparing', 'ongoing') ORDER BY created_at`

	var rows []deploymentRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListActiveDeployments", "deployment", "", err.Error(), err)
	}

	deployments := make([]domain.Deployment, 0, len(rows))
	for _, row := range rows {
		d, err := rowToDeployment(&row)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}

	return deployments, nil
}

// =============================================================================
// Truck Implementation
// =============================================================================

func createTruck(ctx context.Context, exec executor, t *domain.Truck) error {
	query := `
		INSERT INTO trucks (id, plate_number, truck_type, condition, status, created_at, updated_at)
		VALUES (:id, :plate_number, :truck_type, :condition, :status, :created_at, :updated_at)`

	row := map[string]any{
		"id":           t.ID,
		"plate_number": t.PlateNumber,
		"truck_type":   t.TruckType,
		"condition":    string(t.Condition),
		"status":       string(t.Status),
		"created_at":   t.CreatedAt.Format(time.RFC3339),
		"updated_at":   t.UpdatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: trucks.id") {
			return NewStoreError("CreateTruck", "truck", t.ID, "truck with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: trucks.plate_number") {
			return NewStoreError("CreateTruck", "truck", t.ID, "truck with this plate number already exists", ErrDuplicateCode)
		}
		return NewStoreError("CreateTruck", "truck", t.ID, err.Error(), err)
	}

	return nil
}

func getTruck(ctx context.Context, exec executor, id string) (*domain.Truck, error) {
	query := `SELECT * FROM trucks WHERE id = ?`

	var row truckRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTruck", "truck", id, "truck not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTruck", "truck", id, err.Error(), err)
	}

	return rowToTruck(&row), nil
}

func updateTruck(ctx context.Context, exec executor, t *domain.Truck) error {
	query := `
		UPDATE trucks SET
			plate_number = :plate_number,
			truck_type = :truck_type,
			condition = :condition,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	row := map[string]any{
		"id":           t.ID,
		"plate_number": t.PlateNumber,
		"truck_type":   t.TruckType,
		"condition":    string(t.Condition),
		"status":       string(t.Status),
		"updated_at":   t.UpdatedAt.Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateTruck", "truck", t.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateTruck", "truck", t.ID, "truck not found", ErrNotFound)
	}

	return nil
}

func listTrucks(ctx context.Context, exec executor, opts ListOptions) ([]domain.Truck, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM trucks ORDER BY plate_number LIMIT ? OFFSET ?`

	var rows []truckRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListTrucks", "truck", "", err.Error(), err)
	}

	trucks := make([]domain.Truck, 0, len(rows))
	for _, row := range rows {
		trucks = append(trucks, *rowToTruck(&row))
	}

	return trucks, nil
}

// =============================================================================
// Driver Implementation
// =============================================================================

func createDriver(ctx context.Context, exec executor, d *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, full_name, phone, trip_count, status, created_at, updated_at)
		VALUES (:id, :full_name, :phone, :trip_count, :status, :created_at, :updated_at)`

	row := map[string]any{
		"id":         d.ID,
		"full_name":  d.FullName,
		"phone":      d.Phone,
		"trip_count": d.TripCount,
		"status":     string(d.Status),
		"created_at": d.CreatedAt.Format(time.RFC3339),
		"updated_at": d.UpdatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: drivers.id") {
			return NewStoreError("CreateDriver", "driver", d.ID, "driver with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDriver", "driver", d.ID, err.Error(), err)
	}

	return nil
}

func getDriver(ctx context.Context, exec executor, id string) (*domain.Driver, error) {
	query := `SELECT * FROM drivers WHERE id = ?`

	var row driverRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDriver", "driver", id, "driver not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDriver", "driver", id, err.Error(), err)
	}

	return rowToDriver(&row), nil
}

func updateDriver(ctx context.Context, exec executor, d *domain.Driver) error {
	query := `
		UPDATE drivers SET
			full_name = :full_name,
			phone = :phone,
			trip_count = :trip_count,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	row := map[string]any{
		"id":         d.ID,
		"full_name":  d.FullName,
		"phone":      d.Phone,
		"trip_count": d.TripCount,
		"status":     string(d.Status),
		"updated_at": d.UpdatedAt.Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDriver", "driver", d.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDriver", "driver", d.ID, "driver not found", ErrNotFound)
	}

	return nil
}

func listDrivers(ctx context.Context, exec executor, opts ListOptions) ([]domain.Driver, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM drivers ORDER BY full_name LIMIT ? OFFSET ?`

	var rows []driverRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDrivers", "driver", "", err.Error(), err)
	}

	drivers := make([]domain.Driver, 0, len(rows))
	for _, row := range rows {
		drivers = append(drivers, *rowToDriver(&row))
	}

	return drivers, nil
}

func incrementDriverTrips(ctx context.Context, exec executor, id string) error {
	query := `UPDATE drivers SET trip_count = trip_count + 1, updated_at = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("IncrementDriverTrips", "driver", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("IncrementDriverTrips", "driver", id, "driver not found", ErrNotFound)
	}

	return nil
}

// =============================================================================
// Resource Status Implementation
// =============================================================================

func resourceTable(kind domain.ResourceKind) (string, error) {
	switch kind {
	case domain.KindTruck:
		return "trucks", nil
	case domain.KindDriver:
		return "drivers", nil
	}
	return "", NewStoreError("resourceTable", string(kind), "", "unknown resource kind", ErrInvalidData)
}

// acquireResource flips available -> deployed in a single compare-and-set
// statement. Two concurrent acquirers of the same resource cannot both
// succeed: the WHERE clause only matches while status is 'available'.
func acquireResource(ctx context.Context, exec executor, kind domain.ResourceKind, id string) error {
	table, err := resourceTable(kind)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET status = 'deployed', updated_at = ? WHERE id = ? AND status = 'available'`

	result, err := exec.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("AcquireResource", string(kind), id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 1 {
		return nil
	}

	// CAS missed: distinguish a missing resource from a held one.
	var status string
	err = exec.GetContext(ctx, &status, `SELECT status FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError("AcquireResource", string(kind), id, string(kind)+" not found", ErrNotFound)
		}
		return NewStoreError("AcquireResource", string(kind), id, err.Error(), err)
	}

	return NewStoreError("AcquireResource", string(kind), id,
		fmt.Sprintf("%s is %s, not available", kind, status), ErrUnavailable)
}

// releaseResource sets the resource back to available unconditionally.
func releaseResource(ctx context.Context, exec executor, kind domain.ResourceKind, id string) error {
	table, err := resourceTable(kind)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET status = 'available', updated_at = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("ReleaseResource", string(kind), id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("ReleaseResource", string(kind), id, string(kind)+" not found", ErrNotFound)
	}

	return nil
}

func listDeployedResourceIDs(ctx context.Context, exec executor, kind domain.ResourceKind) ([]string, error) {
	table, err := resourceTable(kind)
	if err != nil {
		return nil, err
	}

	var ids []string
	query := `SELECT id FROM ` + table + ` WHERE status = 'deployed' ORDER BY id`
	if err := exec.SelectContext(ctx, &ids, query); err != nil {
		return nil, NewStoreError("ListDeployedResourceIDs", string(kind), "", err.Error(), err)
	}

	return ids, nil
}

// =============================================================================
// Timeline Implementation
// =============================================================================

func createTimelineEntry(ctx context.Context, exec executor, e *domain.TimelineEntry) error {
	query := `
		INSERT INTO timeline_entries (id, deployment_id, action, label, status, timestamp, performed_by, created_at, updated_at)
		VALUES (:id, :deployment_id, :action, :label, :status, :timestamp, :performed_by, :created_at, :updated_at)`

	row := map[string]any{
		"id":            e.ID,
		"deployment_id": e.DeploymentID,
		"action":        string(e.Action),
		"label":         e.Label,
		"status":        string(e.Status),
		"timestamp":     e.Timestamp.Format(time.RFC3339),
		"performed_by":  e.PerformedBy,
		"created_at":    e.CreatedAt.Format(time.RFC3339),
		"updated_at":    e.UpdatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateTimelineEntry", "timeline_entry", e.ID, "entry for this milestone already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateTimelineEntry", "timeline_entry", e.ID, "deployment not found", ErrForeignKey)
		}
		return NewStoreError("CreateTimelineEntry", "timeline_entry", e.ID, err.Error(), err)
	}

	return nil
}

func getTimelineEntryByAction(ctx context.Context, exec executor, deploymentID string, action domain.TimelineAction) (*domain.TimelineEntry, error) {
	query := `
		SELECT * FROM timeline_entries
		WHERE deployment_id = ? AND action = ?
		ORDER BY created_at DESC LIMIT 1`

	var row timelineRow
	err := exec.GetContext(ctx, &row, query, deploymentID, string(action))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTimelineEntryByAction", "timeline_entry", deploymentID, "entry not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTimelineEntryByAction", "timeline_entry", deploymentID, err.Error(), err)
	}

	return rowToTimelineEntry(&row), nil
}

// updateTimelineEntry only touches timestamp and status: the keyed
// reconciliation path. Identity fields never change.
func updateTimelineEntry(ctx context.Context, exec executor, e *domain.TimelineEntry) error {
	query := `
		UPDATE timeline_entries SET
			status = :status,
			timestamp = :timestamp,
			updated_at = :updated_at
		WHERE id = :id`

	row := map[string]any{
		"id":         e.ID,
		"status":     string(e.Status),
		"timestamp":  e.Timestamp.Format(time.RFC3339),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateTimelineEntry", "timeline_entry", e.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateTimelineEntry", "timeline_entry", e.ID, "entry not found", ErrNotFound)
	}

	return nil
}

func listTimelineEntries(ctx context.Context, exec executor, deploymentID string) ([]domain.TimelineEntry, error) {
	query := `SELECT * FROM timeline_entries WHERE deployment_id = ? ORDER BY timestamp, created_at`

	var rows []timelineRow
	err := exec.SelectContext(ctx, &rows, query, deploymentID)
	if err != nil {
		return nil, NewStoreError("ListTimelineEntries", "timeline_entry", deploymentID, err.Error(), err)
	}

	entries := make([]domain.TimelineEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *rowToTimelineEntry(&row))
	}

	return entries, nil
}

// =============================================================================
// Activity Implementation
// =============================================================================

func createActivityEntry(ctx context.Context, exec executor, e *domain.ActivityEntry) error {
	query := `
		INSERT INTO activity_entries (id, entity_type, action, performed_by, deployment_id, truck_id, driver_id, created_at)
		VALUES (:id, :entity_type, :action, :performed_by, :deployment_id, :truck_id, :driver_id, :created_at)`

	row := map[string]any{
		"id":            e.ID,
		"entity_type":   string(e.Type),
		"action":        e.Action,
		"performed_by":  e.PerformedBy,
		"deployment_id": e.DeploymentID,
		"truck_id":      e.TruckID,
		"driver_id":     e.DriverID,
		"created_at":    e.CreatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateActivityEntry", "activity_entry", e.ID, "entry with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateActivityEntry", "activity_entry", e.ID, err.Error(), err)
	}

	return nil
}

func listActivityEntries(ctx context.Context, exec executor, filter ActivityFilter, opts ListOptions) ([]domain.ActivityEntry, error) {
	opts = opts.Normalize()

	var conds []string
	var args []any
	if filter.Type != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.DeploymentID != "" {
		conds = append(conds, "deployment_id = ?")
		args = append(args, filter.DeploymentID)
	}

	query := `SELECT * FROM activity_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []activityRow
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("ListActivityEntries", "activity_entry", "", err.Error(), err)
	}

	entries := make([]domain.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *rowToActivityEntry(&row))
	}

	return entries, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var replacement *domain.Replacement
	if row.Replacement != nil && *row.Replacement != "" && *row.Replacement != "null" {
		replacement = &domain.Replacement{}
		if err := json.Unmarshal([]byte(*row.Replacement), replacement); err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "failed to parse replacement", ErrInvalidData)
		}
	}

	return &domain.Deployment{
		ID:          row.ID,
		Code:        row.Code,
		TruckID:     row.TruckID,
		DriverID:    row.DriverID,
		Replacement: replacement,
		Status:      domain.DeploymentStatus(row.Status),
		Milestones: domain.Milestones{
			Departed:      row.Departed,
			PickupIn:      row.PickupIn,
			PickupOut:     row.PickupOut,
			DestArrival:   row.DestArrival,
			DestDeparture: row.DestDeparture,
		},
		SacksCount:   row.SacksCount,
		LoadWeightKg: row.LoadWeightKg,
		PickupSite:   row.PickupSite,
		Destination:  row.Destination,
		TruckType:    row.TruckType,
		HelperCount:  row.HelperCount,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func rowToTruck(row *truckRow) *domain.Truck {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.Truck{
		ID:          row.ID,
		PlateNumber: row.PlateNumber,
		TruckType:   row.TruckType,
		Condition:   domain.TruckCondition(row.Condition),
		Status:      domain.ResourceStatus(row.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func rowToDriver(row *driverRow) *domain.Driver {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.Driver{
		ID:        row.ID,
		FullName:  row.FullName,
		Phone:     row.Phone,
		TripCount: row.TripCount,
		Status:    domain.ResourceStatus(row.Status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func rowToTimelineEntry(row *timelineRow) *domain.TimelineEntry {
	timestamp, _ := time.Parse(time.RFC3339, row.Timestamp)
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.TimelineEntry{
		ID:           row.ID,
		DeploymentID: row.DeploymentID,
		Action:       domain.TimelineAction(row.Action),
		Label:        row.Label,
		Status:       domain.DeploymentStatus(row.Status),
		Timestamp:    timestamp,
		PerformedBy:  row.PerformedBy,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

func rowToActivityEntry(row *activityRow) *domain.ActivityEntry {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	return &domain.ActivityEntry{
		ID:           row.ID,
		Type:         domain.ActivityType(row.EntityType),
		Action:       row.Action,
		PerformedBy:  row.PerformedBy,
		DeploymentID: row.DeploymentID,
		TruckID:      row.TruckID,
		DriverID:     row.DriverID,
		CreatedAt:    createdAt,
	}
}
