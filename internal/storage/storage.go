// Package storage defines what a recording backend must do with the output
// of a simulation run.
package storage

import "github.com/OCAP2/missionsim/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Calls for one run arrive in order: StartRun, AddEntity for every entity,
// then records in tick order, then EndRun.
type Backend interface {
	Init() error
	Close() error

	StartRun(run *core.Run) error
	EndRun(lastTick int) error

	// AddEntity assigns e.ID.
	AddEntity(e *core.Entity) error

	RecordTimeline(r *core.TimelineRecord) error
	RecordDetection(e *core.DetectionEvent) error
	RecordDetonation(e *core.DetonationEvent) error
}

// Uploadable is implemented by backends that leave a single file suitable
// for upload to the web frontend.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() core.UploadMetadata
}
