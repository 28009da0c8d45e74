package sim

import (
	"math"
	"sort"

	"github.com/OCAP2/missionsim/internal/geo"
	"github.com/OCAP2/missionsim/internal/route"
)

// Entity is one simulated object. Only the payload matching Role is set.
type Entity struct {
	ID       string
	TeamID   string
	Role     Role
	StartSec int

	Route       []route.Point
	SegmentEnds []float64
	TotalSec    float64

	Position geo.ECEF

	Scout     *ScoutState
	Messenger *MessengerState
	Attacker  *AttackerState
}

// positionAt is the position of e at simulated second t. It depends only on
// the route, start time and role, never on the previous position.
func positionAt(e *Entity, t float64) geo.ECEF {
	if len(e.Route) == 0 {
		return geo.ECEF{}
	}
	first := e.Route[0].ECEF
	last := e.Route[len(e.Route)-1].ECEF

	if e.Role == RoleCommander {
		return first
	}
	if t < float64(e.StartSec) {
		return first
	}
	if len(e.SegmentEnds) == 0 {
		return last
	}

	elapsed := t - float64(e.StartSec)
	if elapsed >= e.TotalSec {
		return last
	}

	// first leg ending strictly after elapsed
	k := sort.Search(len(e.SegmentEnds), func(i int) bool {
		return e.SegmentEnds[i] > elapsed
	})
	if k >= len(e.SegmentEnds) {
		return last
	}

	legStart := 0.0
	if k > 0 {
		legStart = e.SegmentEnds[k-1]
	}
	legEnd := e.SegmentEnds[k]
	duration := legEnd - legStart

	switch {
	case duration <= 0:
		return e.Route[k+1].ECEF
	case math.IsInf(duration, 1):
		// stalled on a zero speed leg
		return e.Route[k].ECEF
	}

	frac := (elapsed - legStart) / duration
	return geo.Lerp(e.Route[k].ECEF, e.Route[k+1].ECEF, frac)
}
