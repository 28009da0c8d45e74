// pkg/core/events.go
package core

// Event type labels carried in the event_type field.
const (
	EventTypeDetection  = "detection"
	EventTypeDetonation = "detonation"
)

// DetectionAction is the transition a scout observed for one target.
type DetectionAction string

const (
	DetectionFound DetectionAction = "found"
	DetectionLost  DetectionAction = "lost"
)

// Event is anything written to the event stream.
type Event interface {
	// Type returns the event_type label.
	Type() string
	// Tick returns the simulated second the event was emitted at.
	Tick() int
}

// DetectionEvent is emitted when a target enters or leaves a scout's range.
// For lost events the position and distance are the last recorded ones.
type DetectionEvent struct {
	EventType string          `json:"event_type"`
	Action    DetectionAction `json:"detection_action"`
	TimeSec   int             `json:"time_sec"`
	ScoutID   string          `json:"scout_id"`
	DetectID  string          `json:"detect_id"`
	LatDeg    float64         `json:"lat_deg"`
	LonDeg    float64         `json:"lon_deg"`
	AltM      float64         `json:"alt_m"`
	DistanceM int             `json:"distance_m"`
}

func (e DetectionEvent) Type() string { return EventTypeDetection }
func (e DetectionEvent) Tick() int    { return e.TimeSec }

// DetonationEvent is emitted once when an attacker completes its route.
type DetonationEvent struct {
	EventType  string  `json:"event_type"`
	TimeSec    int     `json:"time_sec"`
	AttackerID string  `json:"attacker_id"`
	LatDeg     float64 `json:"lat_deg"`
	LonDeg     float64 `json:"lon_deg"`
	AltM       float64 `json:"alt_m"`
	BomRangeM  float64 `json:"bom_range_m"`
}

func (e DetonationEvent) Type() string { return EventTypeDetonation }
func (e DetonationEvent) Tick() int    { return e.TimeSec }
