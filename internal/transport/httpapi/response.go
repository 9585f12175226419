package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"skybite/internal/domain"
)

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
	status := http.StatusInternalServerError
	code := "internal"
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "unauthorized"
		message = "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		code = "forbidden"
		message = "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = "not found"
	case errors.Is(err, domain.ErrStateConflict):
		status = http.StatusConflict
		code = "state_conflict"
		message = err.Error()
	case errors.Is(err, domain.ErrDroneUnavailable):
		status = http.StatusConflict
		code = "drone_unavailable"
		message = err.Error()
	case errors.Is(err, domain.ErrBatteryLow):
		status = http.StatusConflict
		code = "battery_low"
		message = err.Error()
	case errors.Is(err, domain.ErrNoDroneAvailable):
		status = http.StatusConflict
		code = "no_drone_available"
		message = "no drone available"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		code = "conflict"
		message = "conflict"
	case errors.Is(err, domain.ErrInvalidCoordinates):
		status = http.StatusUnprocessableEntity
		code = "invalid_coordinates"
		message = "invalid coordinates"
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusUnprocessableEntity
		code = "invalid"
		message = "invalid request"
	}
	respondJSON(w, status, errorResponse{Code: code, Message: message})
}
