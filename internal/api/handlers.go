package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// Handlers serves the patient routes.
type Handlers struct {
	repo PatientRepository
}

func NewHandlers(repo PatientRepository) *Handlers {
	return &Handlers{repo: repo}
}

// WelcomeHandler handles the root endpoint
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: WelcomeMessage})
}

// Health reports whether the patient store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handlers) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var in patient.PatientCreate
	if err := decodeBody(w, r, &in); err != nil {
		bodyError(w, err)
		return
	}

	created, err := h.repo.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) ListPatients(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	patients, err := h.repo.List(r.Context(), params)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []patient.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (h *Handlers) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := identifier.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	found, ok, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: PatientNotFound})
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handlers) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := identifier.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	var patch patient.PatientUpdate
	if err := decodeBody(w, r, &patch); err != nil {
		bodyError(w, err)
		return
	}

	updated, ok, err := h.repo.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: PatientNotFound})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := identifier.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: PatientNotFound})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: PatientDeletedMessage})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// listParams reads skip, limit and search from the query string. Range
// checks are left to the repository.
func listParams(r *http.Request) (patient.ListParams, error) {
	q := r.URL.Query()
	params := patient.ListParams{Skip: 0, Limit: patient.DefaultLimit, Search: q.Get("search")}
	verr := &patient.ValidationError{}

	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = map[string]string{"skip": "value is not a valid integer"}
			return params, verr
		}
		params.Skip = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = map[string]string{"limit": "value is not a valid integer"}
			return params, verr
		}
		params.Limit = n
	}
	return params, nil
}
