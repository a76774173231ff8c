package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/toutaio/kubit"
)

type scopeKey struct{}

// WithScope stores scope in ctx.
func WithScope(ctx context.Context, scope *kubit.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the request scope stored by RequestScope.
func ScopeFrom(ctx context.Context) (*kubit.Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*kubit.Scope)
	return scope, ok
}

// RequestScope gives every request its own container scope, created with the
// request context and disposed once the handler returns.
//
// Example:
//
//	func (h *Users) Create(w http.ResponseWriter, r *http.Request) {
//	    scope, _ := httpserver.ScopeFrom(r.Context())
//	    tx, err := kubit.Use[*database.Transaction](scope, database.TransactionNamespace)
//	    ...
//	}
func RequestScope(container *kubit.Ioc, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := container.CreateScopeContext(r.Context())
			defer func() {
				if err := scope.Dispose(); err != nil {
					log.ErrorContext(r.Context(), "request scope disposal failed", slog.String("error", err.Error()))
				}
			}()

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// RequestLogger logs one line per request at debug level, or warn for 5xx.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
