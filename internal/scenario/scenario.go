// Package scenario holds the declarative scenario description consumed by the
// simulation kernel, together with its JSON loader and validation.
package scenario

import "github.com/OCAP2/missionsim/pkg/core"

// Role is the role label of an entity as written in the scenario file.
type Role string

const (
	RoleCommander Role = "commander"
	RoleScout     Role = "scout"
	RoleMessenger Role = "messenger"
	RoleAttacker  Role = "attacker"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCommander, RoleScout, RoleMessenger, RoleAttacker:
		return true
	}
	return false
}

// Scenario is the full scenario file.
type Scenario struct {
	Performance Performance `json:"performance"`
	Teams       []Team      `json:"teams"`
}

// Performance carries the global per-role capability values.
type Performance struct {
	Scout     ScoutPerformance     `json:"scout"`
	Messenger MessengerPerformance `json:"messenger"`
	Attacker  AttackerPerformance  `json:"attacker"`
}

type ScoutPerformance struct {
	CommRangeM   float64 `json:"comm_range_m"`
	DetectRangeM float64 `json:"detect_range_m"`
}

type MessengerPerformance struct {
	CommRangeM float64 `json:"comm_range_m"`
}

type AttackerPerformance struct {
	BomRangeM float64 `json:"bom_range_m"`
}

// Team groups the objects sharing a team id.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Objects []Object `json:"objects"`
}

// Object is one entity definition.
type Object struct {
	ID       string     `json:"id"`
	Role     Role       `json:"role"`
	StartSec int        `json:"start_sec"`
	Route    []Waypoint `json:"route"`
	Network  []string   `json:"network,omitempty"`
}

// Waypoint is a route vertex. SpeedKph is the speed of the leg that starts here.
type Waypoint struct {
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	AltM     float64 `json:"alt_m"`
	SpeedKph float64 `json:"speeds_kph"`
}

// ObjectCount returns the number of objects over all teams.
func (s *Scenario) ObjectCount() int {
	n := 0
	for _, team := range s.Teams {
		n += len(team.Objects)
	}
	return n
}

// Entities lists every object as a storage entity, in team then object order.
func (s *Scenario) Entities() []core.Entity {
	out := make([]core.Entity, 0, s.ObjectCount())
	for _, team := range s.Teams {
		for _, obj := range team.Objects {
			route := make([]core.Waypoint, len(obj.Route))
			for i, wp := range obj.Route {
				route[i] = core.Waypoint(wp)
			}
			out = append(out, core.Entity{
				ObjectID: obj.ID,
				TeamID:   team.ID,
				TeamName: team.Name,
				Role:     string(obj.Role),
				StartSec: obj.StartSec,
				Route:    route,
				Network:  obj.Network,
			})
		}
	}
	return out
}
