package xrs

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSatellite extracts the GOES number from an observatory name.
// Accepted forms: "GOES-15", "goes15", "G15", "15".
func ParseSatellite(observatory string) (int, error) {
	s := strings.TrimSpace(observatory)
	if s == "" {
		return 0, fmt.Errorf("%w: satellite number not found", ErrInvalidSatellite)
	}

	u := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(u, "GOES"):
		u = strings.TrimLeft(strings.TrimPrefix(u, "GOES"), "-_ ")
	case strings.HasPrefix(u, "G"):
		u = strings.TrimLeft(strings.TrimPrefix(u, "G"), "-_ ")
	}

	n, err := strconv.Atoi(u)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a satellite number", ErrInvalidSatellite, observatory)
	}
	if err := CheckSatellite(n); err != nil {
		return 0, err
	}
	return n, nil
}

// CheckSatellite verifies n is within [MinSatellite, MaxSatellite].
func CheckSatellite(n int) error {
	if n < MinSatellite || n > MaxSatellite {
		return fmt.Errorf("%w: GOES satellite number has to be between %d and %d, %d was found",
			ErrInvalidSatellite, MinSatellite, MaxSatellite, n)
	}
	return nil
}

// Validate checks that a series can enter the engine. The satellite may
// come from either Satellite or the observatory name. Validate only reads
// s and is safe to call concurrently.
func Validate(s *Series) error {
	if s == nil {
		return fmt.Errorf("%w: series is nil", ErrEmptySeries)
	}
	if _, err := s.SatelliteNumber(); err != nil {
		return err
	}

	if err := checkChannel("short (xrsa)", s.Short, len(s.Times)); err != nil {
		return err
	}
	if err := checkChannel("long (xrsb)", s.Long, len(s.Times)); err != nil {
		return err
	}

	if len(s.Times) == 0 {
		return ErrEmptySeries
	}
	return nil
}

func checkChannel(name string, c *Channel, n int) error {
	if c == nil || c.Flux == nil {
		return fmt.Errorf("%w: %s", ErrMissingChannel, name)
	}
	if !c.Unit.compatible() {
		return fmt.Errorf("%w: %s is in %q", ErrUnitMismatch, name, c.Unit)
	}
	if len(c.Flux) != n {
		return fmt.Errorf("%w: %s has %d values for %d timestamps", ErrMissingChannel, name, len(c.Flux), n)
	}
	if c.Quality != nil && len(c.Quality) != n {
		return fmt.Errorf("%w: %s quality has %d values for %d timestamps", ErrMissingChannel, name, len(c.Quality), n)
	}
	if c.PrimaryDetector != nil && len(c.PrimaryDetector) != n {
		return fmt.Errorf("%w: %s detector selection has %d values for %d timestamps",
			ErrMissingChannel, name, len(c.PrimaryDetector), n)
	}
	return nil
}
