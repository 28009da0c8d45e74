// pkg/core/run.go
package core

import "time"

// Run describes one simulation run. UUID identifies the run across
// backends; ID is assigned by the backend that records it.
type Run struct {
	ID           uint
	UUID         string
	Name         string
	ScenarioPath string
	StartSec     int
	EndSec       int
	EntityCount  int
	TeamCount    int
	StartedAt    time.Time
}

// Ticks returns the number of ticks the run covers, both ends inclusive.
func (r Run) Ticks() int {
	if r.EndSec < r.StartSec {
		return 0
	}
	return r.EndSec - r.StartSec + 1
}
