package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// TimelineReconciler keeps the milestone history table in step with the
// deployment's milestone fields. Milestone entries are keyed by
// (deployment, action): re-submitting a milestone corrects the existing
// entry in place instead of growing the history. Cancel and resume events
// are unkeyed and always append.
type TimelineReconciler struct {
	store  store.Store
	logger *slog.Logger
}

// NewTimelineReconciler creates a timeline reconciler.
func NewTimelineReconciler(s store.Store, logger *slog.Logger) *TimelineReconciler {
	return &TimelineReconciler{
		store:  s,
		logger: logger.With("component", "timeline"),
	}
}

// RecordMilestone creates or updates the single entry for a milestone. If
// an entry with the same (deployment, action) key exists its timestamp and
// status are corrected; otherwise a new entry is created. Returns the
// human-readable label of the recorded event.
func (r *TimelineReconciler) RecordMilestone(ctx context.Context, actor auth.Context, deploymentID string, kind domain.MilestoneKind, timestamp time.Time, status domain.DeploymentStatus) (string, error) {
	action := domain.MilestoneAction(kind)

	existing, err := r.store.GetTimelineEntryByAction(ctx, deploymentID, action)
	if err == nil {
		existing.Timestamp = timestamp
		existing.Status = status
		if err := r.store.UpdateTimelineEntry(ctx, existing); err != nil {
			return "", err
		}
		r.logger.Info("timeline entry corrected",
			"deployment_id", deploymentID, "action", string(action))
		return existing.Label, nil
	}
	if !store.IsNotFound(err) {
		return "", err
	}

	entry := domain.NewTimelineEntry(deploymentID, action, status, timestamp, actor.ActorLabel())
	if err := r.store.CreateTimelineEntry(ctx, entry); err != nil {
		return "", err
	}

	r.logger.Info("timeline entry created",
		"deployment_id", deploymentID, "action", string(action))
	return entry.Label, nil
}

// RecordStatusEvent appends a cancel or resume event. These repeat freely:
// a deployment canceled twice has two canceled entries.
func (r *TimelineReconciler) RecordStatusEvent(ctx context.Context, actor auth.Context, deploymentID string, action domain.TimelineAction, status domain.DeploymentStatus) (string, error) {
	entry := domain.NewTimelineEntry(deploymentID, action, status, time.Now().UTC(), actor.ActorLabel())
	if err := r.store.CreateTimelineEntry(ctx, entry); err != nil {
		return "", err
	}

	r.logger.Info("timeline event recorded",
		"deployment_id", deploymentID, "action", string(action))
	return entry.Label, nil
}

// Entries returns the full timeline of a deployment in chronological order.
func (r *TimelineReconciler) Entries(ctx context.Context, deploymentID string) ([]domain.TimelineEntry, error) {
	return r.store.ListTimelineEntries(ctx, deploymentID)
}
