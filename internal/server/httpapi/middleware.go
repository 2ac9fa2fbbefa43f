package httpapi

import (
	"net/http"
	"time"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/carmarket/marketauth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/unrolled/secure"
)

// NewRouter builds the chi router with the middleware chain and the auth
// routes mounted.
func NewRouter(h *Handler, logger logging.Logger) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		requestID,
		requestLogger(logger),
		middleware.Recoverer,
		secureMiddleware.Handler,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.MountRoutes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})
	return r
}

// requestID reuses the caller's X-Request-Id or generates one, and echoes
// it in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		ctx := r.Context()
		next.ServeHTTP(w, r.WithContext(withRequestID(ctx, id)))
	})
}

func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log := logger.With(
				"request_id", requestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
			if ww.Status() >= http.StatusInternalServerError {
				log.Error(r.Context(), "request failed")
			} else {
				log.Info(r.Context(), "request handled")
			}
		})
	}
}
