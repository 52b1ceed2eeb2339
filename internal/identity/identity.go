// Package identity resolves the optional caller identity of a request.
//
// The service has no authentication. A registered user is identified by the
// X-User-ID header or the user_id query parameter; requests without either are
// guests.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	UserHeaderName = "X-User-ID"
	UserQueryParam = "user_id"
)

type contextKey int

const userIDKey contextKey = iota

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context. Guests
// have an empty user ID.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// SanitizeUserID trims id and returns it if it is a well-formed user ID, or
// "" otherwise. IDs made only of dots are rejected since they double as
// storage path segments.
func SanitizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if !userIDPattern.MatchString(id) || strings.Trim(id, ".") == "" {
		return ""
	}
	return id
}

// UserIDFromRequest reads the caller's user ID from the header, falling back to
// the query string. Malformed values are treated as absent.
func UserIDFromRequest(r *http.Request) string {
	uid := r.Header.Get(UserHeaderName)
	if uid == "" {
		uid = r.URL.Query().Get(UserQueryParam)
	}
	return SanitizeUserID(uid)
}

// Middleware injects the optional user identity into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithUserID(r.Context(), UserIDFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
