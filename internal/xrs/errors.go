package xrs

import "errors"

// Engine error taxonomy. Wrapped errors carry context; match with errors.Is.
var (
	ErrInvalidSatellite         = errors.New("invalid GOES satellite")
	ErrMissingChannel           = errors.New("missing XRS channel")
	ErrUnitMismatch             = errors.New("flux unit is not W/m^2")
	ErrEmptySeries              = errors.New("empty XRS series")
	ErrInvalidAbundance         = errors.New("invalid abundance model")
	ErrUnsupportedDetectorTable = errors.New("no response table for detector")
	ErrNoDetectorDataFound      = errors.New("no samples matched any detector pair")
)
