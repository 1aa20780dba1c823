// Package api exposes the patient repository over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/dentalapp/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router. Patient routes live
// under prefix; the welcome, health and metrics routes stay at the root.
func SetupRoutes(repo PatientRepository, prefix string) *mux.Router {
	h := NewHandlers(repo)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)

	r.Use(RequestIDMiddleware)
	r.Use(metrics.Middleware(routeTemplate))
	r.Use(LoggingMiddleware)

	r.HandleFunc("/", WelcomeHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r
	if prefix != "" {
		api = r.PathPrefix(prefix).Subrouter()
	}

	api.HandleFunc("/patients", h.CreatePatient).Methods(http.MethodPost)
	api.HandleFunc("/patients", h.ListPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", h.GetPatient).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", h.UpdatePatient).Methods(http.MethodPut)
	api.HandleFunc("/patients/{id}", h.DeletePatient).Methods(http.MethodDelete)

	return r
}

// routeTemplate labels metrics with the matched route, e.g. /api/patients/{id}.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
}
