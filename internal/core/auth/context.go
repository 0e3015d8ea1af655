// Package auth provides request identity context and authorization checks.
// Identity is supplied by the authentication gateway in front of the
// service via injected headers; this package never validates credentials.
package auth

import (
	"context"
	"net/http"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Roles
// =============================================================================

// Role is the caller's role as asserted by the gateway.
type Role string

const (
	RoleHeadAdmin Role = "head_admin"
	RoleAdmin     Role = "admin"
	RoleViewer    Role = "viewer"
)

// =============================================================================
// Types
// =============================================================================

// Context represents the identity and role of a request, extracted from
// gateway-injected headers and stored in the request context.
type Context struct {
	// UserID is the gateway user id string (from X-User-ID).
	UserID string

	// Name is the caller's display name (from X-User-Name), used as the
	// performed-by value on timeline and activity entries.
	Name string

	// Role is the caller's role (from X-User-Role).
	Role Role

	// Authenticated indicates whether the request carried an identity.
	Authenticated bool
}

// ActorLabel returns the value recorded as performed-by on log entries.
func (c Context) ActorLabel() string {
	if c.Name != "" {
		return c.Name
	}
	return c.UserID
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	// HeaderUserID is the header containing the authenticated user's id.
	HeaderUserID = "X-User-ID"

	// HeaderUserName is the header containing the user's display name.
	HeaderUserName = "X-User-Name"

	// HeaderUserRole is the header containing the user's role.
	HeaderUserRole = "X-User-Role"

	// HeaderGatewaySecret is the header containing the shared secret the
	// gateway uses to prove requests passed through it.
	HeaderGatewaySecret = "X-Gateway-Secret"
)

// =============================================================================
// Context Extraction
// =============================================================================

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

type headerGetter struct {
	r *http.Request
}

func (h headerGetter) Get(key string) string {
	return h.r.Header.Get(key)
}

// ExtractFromRequest extracts auth context from HTTP request headers.
// If X-User-ID is not present, returns an unauthenticated context.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(headerGetter{r: r})
}

// ExtractFromHeaders extracts auth context from headers. Pure function,
// testable without HTTP dependencies.
func ExtractFromHeaders(headers HeaderGetter) Context {
	userID := headers.Get(HeaderUserID)
	if userID == "" {
		return Context{Authenticated: false}
	}

	role := Role(headers.Get(HeaderUserRole))
	if role == "" {
		role = RoleViewer
	}

	return Context{
		UserID:        userID,
		Name:          headers.Get(HeaderUserName),
		Role:          role,
		Authenticated: true,
	}
}

// =============================================================================
// Request Context Storage
// =============================================================================

// WithContext stores the auth context in a context.Context.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext retrieves the auth context from a context.Context.
// Returns an unauthenticated context if none is stored.
func FromContext(ctx context.Context) Context {
	if ac, ok := ctx.Value(authContextKey).(Context); ok {
		return ac
	}
	return Context{Authenticated: false}
}
