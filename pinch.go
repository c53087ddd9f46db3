package fingerforce

import (
	"context"
	"time"

	goutils "go.viam.com/utils"
)

// PinchResult describes one pinch.
type PinchResult struct {
	Index       int
	Phase       string
	Depth       float64
	ThumbDepth  float64
	Reached     float64
	DescentDone bool
	ReleaseDone bool
}

// SequenceReport describes a pinch sequence.
type SequenceReport struct {
	Pinches    []PinchResult
	RecorderOK bool
}

// Timeouts counts the moves that did not report completion in time.
func (r SequenceReport) Timeouts() int {
	n := 0
	for _, p := range r.Pinches {
		if !p.DescentDone {
			n++
		}
		if !p.ReleaseDone {
			n++
		}
	}
	return n
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Pinch descends the finger to the next trajectory depth, holds, and releases it
// back to its start position. Motion timeouts do not stop the pinch; gateway
// errors do. If ctx is cancelled during the hold the finger is still released.
func (e *Engine) Pinch(ctx context.Context) (PinchResult, error) {
	positions, err := e.snapshot(ctx)
	if err != nil {
		return PinchResult{}, err
	}

	target := e.traj.Next()
	res := PinchResult{
		Index:      target.Index,
		Phase:      target.Phase.String(),
		Depth:      target.Depth,
		ThumbDepth: target.ThumbDepth,
	}
	if e.beyondPinchPos(target.Depth) {
		e.logger.Warnf("pinch depth %.2f is past the configured pinch position %.2f", target.Depth, e.finger.PinchPos)
	}

	positions[e.finger.Joint] = target.Depth
	if e.params.UseThumb {
		positions[e.thumbJoint] = target.ThumbDepth
	}
	e.logger.Infof("Pinch %d (%s): depth %.2f", res.Index, res.Phase, res.Depth)

	res.DescentDone, err = e.move(ctx, "pinch", positions)
	if err != nil {
		return res, err
	}
	if reached, err := e.gw.Positions(ctx); err == nil && len(reached) > e.finger.Joint {
		res.Reached = reached[e.finger.Joint]
		e.logger.Debugf("finger reached %.2f", res.Reached)
	}

	held := goutils.SelectContextOrWait(ctx, seconds(e.params.PinchDuration))

	releaseCtx := ctx
	if !held {
		releaseCtx = context.WithoutCancel(ctx)
	}
	positions[e.finger.Joint] = e.finger.StartPos
	if e.params.UseThumb {
		positions[e.thumbJoint] = e.thumbHome
	}
	e.logger.Debug("Releasing")
	res.ReleaseDone, err = e.move(releaseCtx, "release", positions)
	if err != nil {
		return res, err
	}
	if !held {
		return res, ctx.Err()
	}
	return res, nil
}

func (e *Engine) beyondPinchPos(depth float64) bool {
	if e.finger.PinchPos >= e.finger.StartPos {
		return depth > e.finger.PinchPos
	}
	return depth < e.finger.PinchPos
}

// PinchSequence resets the trajectory and performs the configured number of
// pinches with a delay after each, bracketed by recorder connect and disconnect.
// Recorder failures are logged and reported, never fatal.
func (e *Engine) PinchSequence(ctx context.Context) (report SequenceReport, err error) {
	e.logger.Infof("Executing a series of %d pinches", e.params.NPinches)
	e.traj.Reset()

	report.RecorderOK = true
	if recErr := e.recorder.Connect(ctx); recErr != nil {
		e.logger.Warnf("data recorder connect failed: %v", recErr)
		report.RecorderOK = false
	}
	defer func() {
		if recErr := e.recorder.Disconnect(context.WithoutCancel(ctx)); recErr != nil {
			e.logger.Warnf("data recorder disconnect failed: %v", recErr)
			report.RecorderOK = false
		}
	}()

	for i := 0; i < e.params.NPinches; i++ {
		res, pinchErr := e.Pinch(ctx)
		report.Pinches = append(report.Pinches, res)
		if pinchErr != nil {
			return report, pinchErr
		}
		if !goutils.SelectContextOrWait(ctx, seconds(e.params.PinchDelay)) {
			return report, ctx.Err()
		}
	}

	e.logger.Infof("Pinch sequence done, %d moves timed out", report.Timeouts())
	return report, nil
}
