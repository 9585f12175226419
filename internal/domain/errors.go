package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStateConflict      = errors.New("state conflict")
	ErrDroneUnavailable   = errors.New("drone unavailable")
	ErrBatteryLow         = errors.New("battery too low")
	ErrNoDroneAvailable   = errors.New("no drone available")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidInput       = errors.New("invalid input")
)
