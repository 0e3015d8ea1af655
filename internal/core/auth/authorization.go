package auth

// =============================================================================
// Deployment Authorization
// =============================================================================

// CanManageDeployments checks if the caller may create or update
// deployments. Only head_admin and admin roles qualify.
func CanManageDeployments(ctx Context) bool {
	if !ctx.Authenticated {
		return false
	}
	return ctx.Role == RoleHeadAdmin || ctx.Role == RoleAdmin
}

// CanManageResources checks if the caller may register trucks and drivers.
// Same roles as deployment management.
func CanManageResources(ctx Context) bool {
	return CanManageDeployments(ctx)
}

// CanViewLogs checks if the caller may read timeline and activity logs.
// Any authenticated caller can view.
func CanViewLogs(ctx Context) bool {
	return ctx.Authenticated
}
