// Package lifecycle provides pure functions for planning deployment changes.
//
// This package contains the functional core logic that decides what an
// update request means before any storage is touched. All functions are
// pure (no I/O, no side effects).
//
// # Functions
//
//   - Milestones: merge submitted milestone fields and detect first-time
//     recordings (MergeMilestones, NewlySet)
//   - Replacement: decide whether a replacement request requires a resource
//     swap and compute the next replacement record (PlanReplacement)
//   - Changes: diff tracked scalar fields for audit logging (DiffFields)
//
// The imperative shell (internal/shell/orchestrator) uses these plans to
// drive the resource registry, timeline reconciler, and audit logger.
package lifecycle
