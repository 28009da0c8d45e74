package scenario

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors. Validate wraps them with the offending object.
var (
	ErrEmptyTeamID   = errors.New("team id is empty")
	ErrEmptyObjectID = errors.New("object id is empty")
	ErrDuplicateID   = errors.New("duplicate object id")
	ErrUnknownRole   = errors.New("unknown role")
	ErrNegativeStart = errors.New("negative start_sec")
	ErrNegativeSpeed = errors.New("negative speed")
	ErrNonFinite     = errors.New("non-finite value")
	ErrLatitudeRange = errors.New("latitude out of range")
	ErrNegativeRange = errors.New("negative range")
)

// Validate checks everything the kernel assumes about its input and returns
// all problems found joined together, or nil.
func Validate(s *Scenario) error {
	var errs []error

	perf := []struct {
		name  string
		value float64
	}{
		{"scout.comm_range_m", s.Performance.Scout.CommRangeM},
		{"scout.detect_range_m", s.Performance.Scout.DetectRangeM},
		{"messenger.comm_range_m", s.Performance.Messenger.CommRangeM},
		{"attacker.bom_range_m", s.Performance.Attacker.BomRangeM},
	}
	for _, p := range perf {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			errs = append(errs, fmt.Errorf("performance.%s: %w", p.name, ErrNonFinite))
		} else if p.value < 0 {
			errs = append(errs, fmt.Errorf("performance.%s: %w", p.name, ErrNegativeRange))
		}
	}

	seen := make(map[string]struct{})
	for ti, team := range s.Teams {
		if team.ID == "" {
			errs = append(errs, fmt.Errorf("teams[%d]: %w", ti, ErrEmptyTeamID))
		}

		for _, obj := range team.Objects {
			if obj.ID == "" {
				errs = append(errs, fmt.Errorf("team %q: %w", team.ID, ErrEmptyObjectID))
			} else if _, dup := seen[obj.ID]; dup {
				errs = append(errs, fmt.Errorf("object %q: %w", obj.ID, ErrDuplicateID))
			}
			seen[obj.ID] = struct{}{}

			if !obj.Role.Valid() {
				errs = append(errs, fmt.Errorf("object %q: %w %q", obj.ID, ErrUnknownRole, obj.Role))
			}
			if obj.StartSec < 0 {
				errs = append(errs, fmt.Errorf("object %q: %w (%d)", obj.ID, ErrNegativeStart, obj.StartSec))
			}

			for wi, wp := range obj.Route {
				errs = append(errs, validateWaypoint(obj.ID, wi, wp)...)
			}
		}
	}

	return errors.Join(errs...)
}

func validateWaypoint(objectID string, i int, wp Waypoint) []error {
	var errs []error
	for _, v := range []float64{wp.LatDeg, wp.LonDeg, wp.AltM, wp.SpeedKph} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return []error{fmt.Errorf("object %q route[%d]: %w", objectID, i, ErrNonFinite)}
		}
	}
	if wp.LatDeg < -90 || wp.LatDeg > 90 {
		errs = append(errs, fmt.Errorf("object %q route[%d]: %w (%f)", objectID, i, ErrLatitudeRange, wp.LatDeg))
	}
	if wp.SpeedKph < 0 {
		errs = append(errs, fmt.Errorf("object %q route[%d]: %w (%f)", objectID, i, ErrNegativeSpeed, wp.SpeedKph))
	}
	return errs
}
