package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"narrative-safety/internal/models"
)

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditMiddleware logs reviewer and admin actions
type AuditMiddleware struct {
	recorder AuditRecorder
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(recorder AuditRecorder) *AuditMiddleware {
	return &AuditMiddleware{recorder: recorder}
}

// Log records action after the wrapped handler has responded. The resource
// is resourceType plus the {id} path value when the route has one.
func (m *AuditMiddleware) Log(action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped, ok := w.(*responseWriter)
			if !ok {
				wrapped = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			}

			next.ServeHTTP(wrapped, r)

			resource := resourceType
			if id := r.PathValue("id"); id != "" {
				resource = resourceType + "/" + id
			}
			m.LogAction(r, action, resource, fmt.Sprintf("status=%d", wrapped.statusCode))
		})
	}
}

// LogAction records a single entry for the caller of r. Failures are logged,
// never surfaced to the client.
func (m *AuditMiddleware) LogAction(r *http.Request, action, resource, details string) {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: getIP(r),
		UserAgent: r.UserAgent(),
		RequestID: GetRequestID(r),
	}
	if p, ok := GetPrincipal(r); ok {
		entry.UserID = &p.UserID
		if p.Email != "" {
			entry.UserEmail = &p.Email
		}
	}

	if err := m.recorder.Create(context.WithoutCancel(r.Context()), entry); err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}
