// Package model holds the GORM models persisted by the relational backends.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is the full schema, in migration order.
var DatabaseModels = []any{
	&SimInfo{},
	&Run{},
	&Entity{},
	&TimelinePosition{},
	&DetectionEvent{},
	&DetonationEvent{},
	&SimPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SimInfo identifies the installation that produced the recordings.
type SimInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Version     string `json:"version" gorm:"size:64"`
}

func (*SimInfo) TableName() string {
	return "sim_infos"
}

// SimPerformance is one sample of writer health taken by the monitor.
type SimPerformance struct {
	Time                time.Time         `json:"time" gorm:"index:idx_simperformance_time"`
	RunID               uint              `json:"runId" gorm:"index:idx_simperformance_run_id"`
	Run                 Run               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Tick                int               `json:"tick"`
	TicksPerSecond      float64           `json:"ticksPerSecond"`
	BufferLengths       BufferLengths     `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*SimPerformance) TableName() string {
	return "sim_performances"
}

// BufferLengths are the dispatcher queue lengths
type BufferLengths struct {
	Events   uint32 `json:"events"`
	Timeline uint32 `json:"timeline"`
}

// WriteQueueLengths are the pending database rows per queued table. Runs and
// entities are inserted synchronously and have no queue.
type WriteQueueLengths struct {
	TimelinePositions uint32 `json:"timelinePositions"`
	DetectionEvents   uint32 `json:"detectionEvents"`
	DetonationEvents  uint32 `json:"detonationEvents"`
}

////////////////////////
// RUN DATA
////////////////////////

// Run is one execution of the kernel over a scenario
type Run struct {
	gorm.Model
	UUID         string     `json:"uuid" gorm:"size:36;index:idx_run_uuid"`
	Name         string     `json:"name" gorm:"size:200"`
	ScenarioPath string     `json:"scenarioPath" gorm:"size:512"`
	StartSec     int        `json:"startSec"`
	EndSec       int        `json:"endSec"`
	LastTick     int        `json:"lastTick" gorm:"default:-1"`
	EntityCount  int        `json:"entityCount"`
	TeamCount    int        `json:"teamCount"`
	StartedAt    time.Time  `json:"startedAt" gorm:"index:idx_run_started_at"`
	EndedAt      *time.Time `json:"endedAt"`

	Entities []Entity `json:"-"`
}

func (*Run) TableName() string {
	return "runs"
}

// Entity is a simulated object registered at the start of a run.
// ObjectID is the scenario id and is unique within a run.
type Entity struct {
	ID       uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID    uint   `json:"runId" gorm:"uniqueIndex:idx_entity_run_object"`
	Run      Run    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	ObjectID string `json:"objectId" gorm:"size:64;uniqueIndex:idx_entity_run_object"`
	TeamID   string `json:"teamId" gorm:"size:64;index:idx_entity_team_id"`
	TeamName string `json:"teamName" gorm:"size:127"`
	Role     string `json:"role" gorm:"size:16"`
	StartSec int    `json:"startSec"`

	Route     geom.LineString `json:"route"`     // EPSG:3857 LineString Z, empty for single point routes
	Waypoints datatypes.JSON  `json:"waypoints"` // route as given, with leg speeds
	Network   datatypes.JSON  `json:"network"`
}

func (*Entity) TableName() string {
	return "entities"
}

// TimelinePosition is one entity's position at one tick
type TimelinePosition struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time"` // wall time the row was produced
	RunID    uint      `json:"runId" gorm:"index:idx_timelineposition_run_id"`
	Run      Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	TimeSec  int       `json:"timeSec" gorm:"index:idx_timelineposition_time_sec"`
	EntityID uint      `json:"entityId" gorm:"index:idx_timelineposition_entity_id"`
	ObjectID string    `json:"objectId" gorm:"size:64"`

	Position geom.Point `json:"position"` // EPSG:3857, Z = altitude
	LatDeg   float64    `json:"latDeg"`
	LonDeg   float64    `json:"lonDeg"`
	AltM     float64    `json:"altM"`
}

func (*TimelinePosition) TableName() string {
	return "timeline_positions"
}

// DetectionEvent is a found or lost transition seen by a scout.
// Position and distance describe the target.
type DetectionEvent struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time `json:"time"`
	RunID          uint      `json:"runId" gorm:"index:idx_detectionevent_run_id"`
	Run            Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	TimeSec        int       `json:"timeSec" gorm:"index:idx_detectionevent_time_sec"`
	Action         string    `json:"action" gorm:"size:8"`
	ScoutObjectID  string    `json:"scoutObjectId" gorm:"size:64;index:idx_detectionevent_scout"`
	TargetObjectID string    `json:"targetObjectId" gorm:"size:64"`

	Position  geom.Point `json:"position"`
	LatDeg    float64    `json:"latDeg"`
	LonDeg    float64    `json:"lonDeg"`
	AltM      float64    `json:"altM"`
	DistanceM int        `json:"distanceM"`
}

func (*DetectionEvent) TableName() string {
	return "detection_events"
}

// DetonationEvent records an attacker firing at the end of its route
type DetonationEvent struct {
	ID               uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time             time.Time `json:"time"`
	RunID            uint      `json:"runId" gorm:"index:idx_detonationevent_run_id"`
	Run              Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	TimeSec          int       `json:"timeSec" gorm:"index:idx_detonationevent_time_sec"`
	AttackerObjectID string    `json:"attackerObjectId" gorm:"size:64"`

	Position  geom.Point `json:"position"`
	LatDeg    float64    `json:"latDeg"`
	LonDeg    float64    `json:"lonDeg"`
	AltM      float64    `json:"altM"`
	BomRangeM float64    `json:"bomRangeM"`
}

func (*DetonationEvent) TableName() string {
	return "detonation_events"
}
