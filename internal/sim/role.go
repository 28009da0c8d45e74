package sim

import (
	"fmt"

	"github.com/OCAP2/missionsim/internal/scenario"
)

// Role is the closed set of entity roles.
type Role uint8

const (
	RoleCommander Role = iota
	RoleScout
	RoleMessenger
	RoleAttacker
)

// String returns the role label written to the timeline.
func (r Role) String() string {
	switch r {
	case RoleCommander:
		return string(scenario.RoleCommander)
	case RoleScout:
		return string(scenario.RoleScout)
	case RoleMessenger:
		return string(scenario.RoleMessenger)
	case RoleAttacker:
		return string(scenario.RoleAttacker)
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole maps a scenario role label to a Role.
func ParseRole(r scenario.Role) (Role, error) {
	switch r {
	case scenario.RoleCommander:
		return RoleCommander, nil
	case scenario.RoleScout:
		return RoleScout, nil
	case scenario.RoleMessenger:
		return RoleMessenger, nil
	case scenario.RoleAttacker:
		return RoleAttacker, nil
	}
	return 0, fmt.Errorf("%w: %q", scenario.ErrUnknownRole, r)
}

// Detection is what a scout recorded about one target on one tick.
type Detection struct {
	LatDeg    float64
	LonDeg    float64
	AltM      float64
	DistanceM int
}

// ScoutState is the scout payload. Detected always holds the previous
// tick's detections until the detection pass replaces it.
type ScoutState struct {
	DetectRangeM float64
	CommRangeM   float64
	Detected     map[string]Detection
}

// MessengerState is the messenger payload. The comm range is not used by
// the kernel.
type MessengerState struct {
	CommRangeM float64
}

// AttackerState is the attacker payload. Fired never goes back to false.
type AttackerState struct {
	BomRangeM float64
	Fired     bool
}
