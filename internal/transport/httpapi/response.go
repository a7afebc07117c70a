package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"drone-dispatch/internal/domain"
)

var errInvalidInterval = fmt.Errorf("interval: %w", domain.ErrInvalid)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status, resp := errorBody(err)
	respondJSON(w, status, resp)
}

func errorBody(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Code: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Code: "forbidden", Message: "forbidden"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "not_found", Message: "not found"}
	case errors.Is(err, domain.ErrSimulationRunning):
		return http.StatusConflict, errorResponse{Code: "simulation_running", Message: "a planning cycle or simulation is already running"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Code: "conflict", Message: "conflict"}
	case errors.Is(err, domain.ErrWeightExceeded):
		return http.StatusUnprocessableEntity, errorResponse{Code: "weight_exceeded", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusUnprocessableEntity, errorResponse{Code: "invalid", Message: "invalid request"}
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict, errorResponse{Code: "precondition_failed", Message: "precondition failed"}
	case errors.Is(err, domain.ErrStepLimit):
		return http.StatusInternalServerError, errorResponse{Code: "step_limit", Message: "simulation did not settle"}
	default:
		return http.StatusInternalServerError, errorResponse{Code: "internal", Message: "internal error"}
	}
}
