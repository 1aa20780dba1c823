package metrics

import (
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// RouteNamer maps a request to a low-cardinality endpoint label. Returning
// "" falls back to "unmatched".
type RouteNamer func(r *http.Request) string

// Middleware records HTTP metrics for all requests. Endpoints are labelled
// by route template so path parameters do not explode label cardinality.
func Middleware(name RouteNamer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			IncActiveConnections()
			defer DecActiveConnections()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			endpoint := ""
			if name != nil {
				endpoint = name(r)
			}
			if endpoint == "" {
				endpoint = "unmatched"
			}
			RecordHTTPRequest(r.Method, endpoint, rw.statusCode, time.Since(start))
		})
	}
}
