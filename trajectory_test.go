package fingerforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func depths(t *trajectory, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = t.Next().Depth
	}
	return out
}

func TestProgressiveDepthTenPinches(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{Joint: 11, StartPos: 0, PinchPos: 20},
		ExperimentParameters{NPinches: 10, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 5, 4, 3, 2, 1}, depths(traj, 10))
	assert.Equal(t, 10, traj.State().Counter)
	assert.Equal(t, 1.0, traj.State().PrevDepth)
}

func TestProgressiveDepthPhases(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{StartPos: 0}, ExperimentParameters{NPinches: 10, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)

	var phases []string
	for i := 0; i < 10; i++ {
		phases = append(phases, traj.Next().Phase.String())
	}
	assert.Equal(t, []string{
		"ascending", "ascending", "ascending", "ascending", "ascending",
		"apex",
		"descending", "descending", "descending", "descending",
	}, phases)
}

func TestProgressiveDepthIsSymmetricForEvenCounts(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, n := range []int{2, 4, 6, 8, 12, 20} {
		traj := newTrajectory(PinchJointSpec{StartPos: 3}, ExperimentParameters{NPinches: n, PinchIncrement: 2, ProgressiveDepth: true}, 0, logger)
		d := depths(traj, n)
		for i := 0; i < n/2; i++ {
			assert.Equal(t, d[i], d[n-1-i], "n=%d i=%d", n, i)
		}
	}
}

func TestProgressiveDepthOddCounts(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// half = 2: two ascending, apex at counter 2, then two descending below the apex.
	traj := newTrajectory(PinchJointSpec{StartPos: 0}, ExperimentParameters{NPinches: 5, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)
	assert.Equal(t, []float64{1, 2, 2, 1, 0}, depths(traj, 5))

	// half = 0: the very first pinch is the apex.
	traj = newTrajectory(PinchJointSpec{StartPos: 4}, ExperimentParameters{NPinches: 1, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)
	target := traj.Next()
	assert.Equal(t, phaseApex, target.Phase)
	assert.Equal(t, 4.0, target.Depth)
}

func TestFixedDepth(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{StartPos: 2}, ExperimentParameters{NPinches: 4, PinchIncrement: 1.5}, 10, logger)

	for i := 0; i < 6; i++ {
		target := traj.Next()
		assert.Equal(t, phaseFixed, target.Phase)
		assert.Equal(t, 3.5, target.Depth)
		assert.Equal(t, 11.5, target.ThumbDepth)
		assert.Equal(t, min(i+1, 4), traj.State().Counter, "pinch %d", i)
	}
	// the depths are not accumulated in fixed mode
	assert.Equal(t, TrajectoryState{Counter: 4, PrevDepth: 2, PrevThumbDepth: 10}, traj.State())

	traj.ResetCounter()
	assert.Equal(t, 0, traj.State().Counter)
	assert.Equal(t, 3.5, traj.Next().Depth)
}

func TestResetCounterKeepsDepth(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{StartPos: 0}, ExperimentParameters{NPinches: 10, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)

	depths(traj, 3)
	traj.ResetCounter()
	state := traj.State()
	assert.Equal(t, 0, state.Counter)
	assert.Equal(t, 3.0, state.PrevDepth)

	assert.Equal(t, 4.0, traj.Next().Depth)

	traj.Reset()
	assert.Equal(t, TrajectoryState{PrevDepth: 0}, traj.State())
	assert.Equal(t, 1.0, traj.Next().Depth)
}

func TestCounterSaturates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{StartPos: 0}, ExperimentParameters{NPinches: 4, PinchIncrement: 1, ProgressiveDepth: true}, 0, logger)

	depths(traj, 4)
	require.Equal(t, 4, traj.State().Counter)

	target := traj.Next()
	assert.Equal(t, phaseExhausted, target.Phase)
	assert.Equal(t, 1.0, target.Depth)
	assert.Equal(t, 4, traj.State().Counter)
}

func TestThumbFollowsFingerPhase(t *testing.T) {
	logger := logging.NewTestLogger(t)
	traj := newTrajectory(PinchJointSpec{StartPos: 0}, ExperimentParameters{NPinches: 4, PinchIncrement: 1, ProgressiveDepth: true, UseThumb: true}, 10, logger)

	var thumb []float64
	for i := 0; i < 4; i++ {
		thumb = append(thumb, traj.Next().ThumbDepth)
	}
	assert.Equal(t, []float64{11, 12, 12, 11}, thumb)
}
