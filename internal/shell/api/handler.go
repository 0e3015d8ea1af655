// Package api provides HTTP handlers for the dispatch API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/core/lifecycle"
	"github.com/fleetyard/dispatch/internal/shell/orchestrator"
	"github.com/fleetyard/dispatch/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	orch          *orchestrator.Orchestrator
	store         store.Store
	logger        *slog.Logger
	gatewaySecret string
	metrics       *requestMetrics
}

// NewHandler creates a new API handler. gatewaySecret, when non-empty, is
// required in the X-Gateway-Secret header of every API request.
func NewHandler(orch *orchestrator.Orchestrator, s store.Store, l *slog.Logger, gatewaySecret string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		orch:          orch,
		store:         s,
		logger:        l,
		gatewaySecret: gatewaySecret,
		metrics:       newRequestMetrics(),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(h.metrics.instrument)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.authContext)
		r.Use(h.gatewayCheck)

		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleCreateDeployment)
			r.Get("/", h.handleListDeployments)
			r.Get("/{id}", h.handleGetDeployment)
			r.Patch("/{id}", h.handleUpdateDeployment)
			r.Get("/{id}/timeline", h.handleDeploymentTimeline)
		})

		r.Route("/trucks", func(r chi.Router) {
			r.Post("/", h.handleCreateTruck)
			r.Get("/", h.handleListTrucks)
			r.Get("/{id}", h.handleGetTruck)
			r.Patch("/{id}", h.handleUpdateTruck)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Post("/", h.handleCreateDriver)
			r.Get("/", h.handleListDrivers)
			r.Get("/{id}", h.handleGetDriver)
			r.Patch("/{id}", h.handleUpdateDriver)
		})

		r.Get("/activity", h.handleListActivity)
	})

	return r
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.CountDeployments(r.Context(), store.DeploymentFilter{}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageDeployments(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage deployments", "permission_denied")
		return
	}

	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	view, err := h.orch.CreateDeployment(r.Context(), actor, orchestrator.CreateInput{
		TruckID:      req.TruckID,
		DriverID:     req.DriverID,
		SacksCount:   req.SacksCount,
		LoadWeightKg: req.LoadWeightKg,
		PickupSite:   req.PickupSite,
		Destination:  req.Destination,
		TruckType:    req.TruckType,
		HelperCount:  req.HelperCount,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, h.viewToResponse(view))
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	view, err := h.orch.GetDeployment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.viewToResponse(view))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)
	filter := store.DeploymentFilter{
		Status:   domain.DeploymentStatus(r.URL.Query().Get("status")),
		TruckID:  r.URL.Query().Get("truck_id"),
		DriverID: r.URL.Query().Get("driver_id"),
	}

	result, err := h.orch.ListDeployments(r.Context(), filter, opts)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(result.Deployments)),
		Total:       result.Total,
		Limit:       opts.Normalize().Limit,
		Offset:      opts.Normalize().Offset,
	}
	for i := range result.Deployments {
		resp.Deployments = append(resp.Deployments, h.viewToResponse(&result.Deployments[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateDeployment(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageDeployments(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage deployments", "permission_denied")
		return
	}

	var req UpdateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	in := orchestrator.UpdateInput{
		Status:       req.Status,
		TruckID:      req.TruckID,
		DriverID:     req.DriverID,
		SacksCount:   req.SacksCount,
		LoadWeightKg: req.LoadWeightKg,
		PickupSite:   req.PickupSite,
		Destination:  req.Destination,
		TruckType:    req.TruckType,
		HelperCount:  req.HelperCount,
	}
	if req.Milestones != nil {
		in.Milestones = lifecycle.MilestoneInput{
			Departed:      req.Milestones.Departed,
			PickupIn:      req.Milestones.PickupIn,
			PickupOut:     req.Milestones.PickupOut,
			DestArrival:   req.Milestones.DestArrival,
			DestDeparture: req.Milestones.DestDeparture,
		}
	}
	if req.Replacement != nil {
		in.Replacement = &lifecycle.ReplacementInput{
			TruckID:     req.Replacement.TruckID,
			DriverID:    req.Replacement.DriverID,
			TruckType:   req.Replacement.TruckType,
			HelperCount: req.Replacement.HelperCount,
			ReplacedAt:  req.Replacement.ReplacedAt,
			Reason:      req.Replacement.Reason,
			Remarks:     req.Replacement.Remarks,
		}
	}

	result, err := h.orch.UpdateDeployment(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	timelineChanges := result.TimelineChanges
	if timelineChanges == nil {
		timelineChanges = []string{}
	}
	h.writeJSON(w, http.StatusOK, UpdateDeploymentResponse{
		Deployment:      h.viewToResponse(result.View),
		TimelineChanges: timelineChanges,
	})
}

func (h *Handler) handleDeploymentTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orch.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, TimelineEntryResponse{
			ID:          e.ID,
			Action:      string(e.Action),
			Label:       e.Label,
			Status:      string(e.Status),
			Timestamp:   e.Timestamp,
			PerformedBy: e.PerformedBy,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.UpdatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Truck Handlers
// =============================================================================

func (h *Handler) handleCreateTruck(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageResources(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage resources", "permission_denied")
		return
	}

	var req CreateTruckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	truck, err := h.orch.RegisterTruck(r.Context(), actor, orchestrator.TruckInput{
		PlateNumber: req.PlateNumber,
		TruckType:   req.TruckType,
		Condition:   req.Condition,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, truckToResponse(truck))
}

func (h *Handler) handleGetTruck(w http.ResponseWriter, r *http.Request) {
	truck, err := h.store.GetTruck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, truckToResponse(truck))
}

func (h *Handler) handleListTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := h.orch.ListTrucks(r.Context(), parseListOptions(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]TruckResponse, 0, len(trucks))
	for i := range trucks {
		resp = append(resp, truckToResponse(&trucks[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateTruck(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageResources(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage resources", "permission_denied")
		return
	}

	var req UpdateTruckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	truck, err := h.orch.UpdateTruck(r.Context(), actor, chi.URLParam(r, "id"), orchestrator.TruckInput{
		PlateNumber: req.PlateNumber,
		TruckType:   req.TruckType,
		Condition:   req.Condition,
		Status:      req.Status,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, truckToResponse(truck))
}

// =============================================================================
// Driver Handlers
// =============================================================================

func (h *Handler) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageResources(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage resources", "permission_denied")
		return
	}

	var req CreateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	driver, err := h.orch.RegisterDriver(r.Context(), actor, orchestrator.DriverInput{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, driverToResponse(driver))
}

func (h *Handler) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := h.store.GetDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, driverToResponse(driver))
}

func (h *Handler) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.orch.ListDrivers(r.Context(), parseListOptions(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]DriverResponse, 0, len(drivers))
	for i := range drivers {
		resp = append(resp, driverToResponse(&drivers[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateDriver(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanManageResources(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to manage resources", "permission_denied")
		return
	}

	var req UpdateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	driver, err := h.orch.UpdateDriver(r.Context(), actor, chi.URLParam(r, "id"), orchestrator.DriverInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Status:   req.Status,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, driverToResponse(driver))
}

// =============================================================================
// Activity Handlers
// =============================================================================

func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if !auth.CanViewLogs(actor) {
		h.writeError(w, http.StatusForbidden, "not allowed to view activity", "permission_denied")
		return
	}

	filter := store.ActivityFilter{
		Type:         domain.ActivityType(r.URL.Query().Get("type")),
		DeploymentID: r.URL.Query().Get("deployment_id"),
	}

	entries, err := h.orch.Activity(r.Context(), filter, parseListOptions(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]ActivityEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ActivityEntryResponse{
			ID:           e.ID,
			Type:         string(e.Type),
			Action:       e.Action,
			PerformedBy:  e.PerformedBy,
			DeploymentID: e.DeploymentID,
			TruckID:      e.TruckID,
			DriverID:     e.DriverID,
			CreatedAt:    e.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeDomainError translates orchestrator and store errors into HTTP
// responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, domain.ErrResourceUnavailable), store.IsUnavailable(err):
		h.writeError(w, http.StatusConflict, err.Error(), "resource_unavailable")
	case errors.Is(err, domain.ErrDeploymentCompleted):
		h.writeError(w, http.StatusConflict, err.Error(), "deployment_completed")
	case errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrInvalidTimestamp),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrResourceReplaced),
		errors.Is(err, store.ErrDuplicateCode):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	default:
		h.logger.Error("internal error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}

func (h *Handler) viewToResponse(view *orchestrator.DeploymentView) DeploymentResponse {
	d := view.Deployment
	resp := DeploymentResponse{
		ID:           d.ID,
		Code:         d.Code,
		TruckID:      d.TruckID,
		DriverID:     d.DriverID,
		Status:       string(d.Status),
		Milestones:   d.Milestones,
		SacksCount:   d.SacksCount,
		LoadWeightKg: d.LoadWeightKg,
		PickupSite:   d.PickupSite,
		Destination:  d.Destination,
		TruckType:    d.TruckType,
		HelperCount:  d.HelperCount,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if view.Truck != nil {
		t := truckToResponse(view.Truck)
		resp.Truck = &t
	}
	if view.Driver != nil {
		dr := driverToResponse(view.Driver)
		resp.Driver = &dr
	}
	if d.Replacement != nil {
		rep := &ReplacementResponse{
			TruckID:     d.Replacement.TruckID,
			DriverID:    d.Replacement.DriverID,
			TruckType:   d.Replacement.TruckType,
			HelperCount: d.Replacement.HelperCount,
			ReplacedAt:  d.Replacement.ReplacedAt,
			Reason:      d.Replacement.Reason,
			Remarks:     d.Replacement.Remarks,
		}
		if view.ReplacementTruck != nil {
			t := truckToResponse(view.ReplacementTruck)
			rep.Truck = &t
		}
		if view.ReplacementDriver != nil {
			dr := driverToResponse(view.ReplacementDriver)
			rep.Driver = &dr
		}
		resp.Replacement = rep
	}
	return resp
}

func truckToResponse(t *domain.Truck) TruckResponse {
	return TruckResponse{
		ID:          t.ID,
		PlateNumber: t.PlateNumber,
		TruckType:   t.TruckType,
		Condition:   string(t.Condition),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func driverToResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:        d.ID,
		FullName:  d.FullName,
		Phone:     d.Phone,
		TripCount: d.TripCount,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func parseListOptions(r *http.Request) store.ListOptions {
	var opts store.ListOptions
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	return opts
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return false
}
