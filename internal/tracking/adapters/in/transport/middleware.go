package transport

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/utils"
)

type contextKey string

const (
	contextKeyUserID    contextKey = "user_id"
	contextKeyRole      contextKey = "role"
	contextKeyRequestID contextKey = "request_id"

	headerRequestID = "X-Request-ID"
)

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = utils.NewUUID()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging writes one access entry per request.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := logger.Entry{
				Action:    "http_request",
				Message:   r.Method + " " + r.URL.Path,
				RequestID: GetRequestIDFromContext(r.Context()),
				Additional: map[string]any{
					"status":      rec.status,
					"duration_ms": time.Since(start).Milliseconds(),
				},
			}
			if rec.status >= http.StatusInternalServerError {
				log.Error(entry)
			} else {
				log.Debug(entry)
			}
		})
	}
}

// JWTMiddleware validates the bearer token and stores user_id and role in the context.
func JWTMiddleware(jwtService *auth.JWTService, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Warn(logger.Entry{
					Action:    "jwt_middleware_missing_token",
					Message:   "authorization header missing",
					RequestID: GetRequestIDFromContext(r.Context()),
				})
				respondError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := auth.BearerToken(authHeader)
			if !ok {
				respondError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				log.Warn(logger.Entry{
					Action:    "jwt_middleware_invalid_token",
					Message:   err.Error(),
					RequestID: GetRequestIDFromContext(r.Context()),
					Error:     &logger.ErrObj{Msg: err.Error()},
				})
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, contextKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole runs after JWTMiddleware and lets only the given roles through.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, GetRoleFromContext(r.Context())) {
				respondError(w, http.StatusForbidden, "access denied: "+strings.Join(roles, "|")+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	return userID, ok && userID != ""
}

func GetRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(contextKeyRole).(string)
	return role
}
