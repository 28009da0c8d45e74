package worker

import (
	"fmt"

	"github.com/OCAP2/missionsim/internal/dispatcher"
	"github.com/OCAP2/missionsim/pkg/core"
)

// Dispatcher commands of the two record streams.
const (
	CommandEvent    = ":SIM:EVENT:"
	CommandTimeline = ":SIM:TIMELINE:"
)

// RegisterHandlers registers both streams with the dispatcher. Each stream
// is buffered and blocking so no record is dropped and order is kept.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.dispatcher = d
	d.OnError(m.recordError)

	d.Register(CommandEvent, m.handleEvent, dispatcher.Buffered(m.deps.BufferSize), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(CommandTimeline, m.handleTimeline, dispatcher.Buffered(m.deps.BufferSize), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleEvent(e dispatcher.Event) (any, error) {
	switch ev := e.Payload.(type) {
	case core.DetectionEvent:
		return nil, m.backend.RecordDetection(&ev)
	case *core.DetectionEvent:
		return nil, m.backend.RecordDetection(ev)
	case core.DetonationEvent:
		return nil, m.backend.RecordDetonation(&ev)
	case *core.DetonationEvent:
		return nil, m.backend.RecordDetonation(ev)
	default:
		return nil, fmt.Errorf("unsupported event payload %T", e.Payload)
	}
}

func (m *Manager) handleTimeline(e dispatcher.Event) (any, error) {
	switch rec := e.Payload.(type) {
	case core.TimelineRecord:
		return nil, m.backend.RecordTimeline(&rec)
	case *core.TimelineRecord:
		return nil, m.backend.RecordTimeline(rec)
	default:
		return nil, fmt.Errorf("unsupported timeline payload %T", e.Payload)
	}
}
