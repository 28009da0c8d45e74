// pkg/core/entity.go
package core

// Waypoint is a route vertex as given in the scenario.
type Waypoint struct {
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	AltM     float64 `json:"alt_m"`
	SpeedKph float64 `json:"speeds_kph"`
}

// Entity is the static description of one simulated object, registered with
// storage before the first tick. ID is assigned by the backend.
type Entity struct {
	ID       uint       `json:"-"`
	ObjectID string     `json:"object_id"`
	TeamID   string     `json:"team_id"`
	TeamName string     `json:"team_name"`
	Role     string     `json:"role"`
	StartSec int        `json:"start_sec"`
	Route    []Waypoint `json:"route"`
	Network  []string   `json:"network,omitempty"`
}

// UploadMetadata accompanies a recording sent to the web frontend.
type UploadMetadata struct {
	RunName     string
	Scenario    string
	DurationSec float64
	Tag         string
}
