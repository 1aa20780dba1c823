package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a repository or input error to a response. fallback is
// the status for errors outside the known taxonomy: list failures are
// server errors, everything else is reported as a bad request.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	var (
		verr    *patient.ValidationError
		invalid *identifier.InvalidError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: patient.ErrValidation.Error(), Details: verr.Fields})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid patient ID",
			Details: map[string]string{"id": invalid.Error()},
		})
	case errors.Is(err, patient.ErrDuplicateEmail):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: patient.ErrDuplicateEmail.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", fallback).
			Msg("Request failed")

		msg := err.Error()
		if fallback >= http.StatusInternalServerError {
			msg = "Internal server error"
		}
		writeJSON(w, fallback, ErrorResponse{Error: msg})
	}
}

// bodyError reports a request body that is not valid JSON for the target type.
func bodyError(w http.ResponseWriter, err error) {
	details := map[string]string{"body": err.Error()}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		details = map[string]string{typeErr.Field: "invalid type, expected " + typeErr.Type.String()}
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON format", Details: details})
}
