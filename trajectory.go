package fingerforce

import (
	"sync"

	"go.viam.com/rdk/logging"
)

// PinchJointSpec identifies the primary finger joint and its rest and extreme positions, in degrees.
type PinchJointSpec struct {
	Joint    int
	StartPos float64
	PinchPos float64
}

// ExperimentParameters drive the shape of a pinch sequence.
type ExperimentParameters struct {
	NPinches         int
	PinchIncrement   float64
	PinchDuration    float64 // seconds
	PinchDelay       float64 // seconds
	ProgressiveDepth bool
	UseThumb         bool
}

// TrajectoryState is the mutable part of the depth trajectory.
type TrajectoryState struct {
	Counter        int
	PrevDepth      float64
	PrevThumbDepth float64
}

// phase of a progressive sequence a pinch falls in.
type phase int

const (
	phaseFixed phase = iota
	phaseAscending
	phaseApex
	phaseDescending
	phaseExhausted
)

func (p phase) String() string {
	switch p {
	case phaseFixed:
		return "fixed"
	case phaseAscending:
		return "ascending"
	case phaseApex:
		return "apex"
	case phaseDescending:
		return "descending"
	default:
		return "exhausted"
	}
}

// depthTarget is the descent target for one pinch.
type depthTarget struct {
	Index      int
	Phase      phase
	Depth      float64
	ThumbDepth float64
}

// trajectory computes descent targets and owns the TrajectoryState.
// The mutex only serializes Next against a counter reset arriving from another caller.
type trajectory struct {
	finger    PinchJointSpec
	params    ExperimentParameters
	thumbHome float64
	logger    logging.Logger

	mu    sync.Mutex
	state TrajectoryState
}

func newTrajectory(finger PinchJointSpec, params ExperimentParameters, thumbHome float64, logger logging.Logger) *trajectory {
	t := &trajectory{
		finger:    finger,
		params:    params,
		thumbHome: thumbHome,
		logger:    logger,
	}
	t.state = t.seed()
	return t
}

func (t *trajectory) seed() TrajectoryState {
	return TrajectoryState{PrevDepth: t.finger.StartPos, PrevThumbDepth: t.thumbHome}
}

// phaseFor applies the literal phase boundaries. The apex check comes before the
// descending one, so with half = n/2 the apex pinch is counter == half and the
// descending pinches are half < counter < n.
func (t *trajectory) phaseFor(counter int) phase {
	if !t.params.ProgressiveDepth {
		return phaseFixed
	}
	n := t.params.NPinches
	half := n / 2
	switch {
	case counter >= 0 && counter < half:
		return phaseAscending
	case counter == half:
		return phaseApex
	case counter >= half && counter < n:
		return phaseDescending
	default:
		return phaseExhausted
	}
}

// Next returns the descent target for the next pinch and advances the state.
func (t *trajectory) Next() depthTarget {
	t.mu.Lock()
	defer t.mu.Unlock()

	inc := t.params.PinchIncrement
	target := depthTarget{Index: t.state.Counter, Phase: t.phaseFor(t.state.Counter)}

	switch target.Phase {
	case phaseFixed:
		target.Depth = t.finger.StartPos + inc
		target.ThumbDepth = t.thumbHome + inc
		t.advance()
		return target
	case phaseAscending:
		t.state.PrevDepth += inc
		t.state.PrevThumbDepth += inc
	case phaseDescending:
		t.state.PrevDepth -= inc
		t.state.PrevThumbDepth -= inc
	case phaseApex:
	case phaseExhausted:
		t.logger.Warnf("pinch counter %d reached %d pinches, holding depth %.2f until reset",
			t.state.Counter, t.params.NPinches, t.state.PrevDepth)
	}

	target.Depth = t.state.PrevDepth
	target.ThumbDepth = t.state.PrevThumbDepth
	t.advance()
	return target
}

// advance counts one pinch, saturating at NPinches.
func (t *trajectory) advance() {
	if t.state.Counter < t.params.NPinches {
		t.state.Counter++
	}
}

// ResetCounter zeroes the pinch counter and keeps both depths.
func (t *trajectory) ResetCounter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Counter = 0
}

// Reset restores the full state to its seeds.
func (t *trajectory) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = t.seed()
}

// State returns a copy of the current state.
func (t *trajectory) State() TrajectoryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
