package fingerforce

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

// gazeTask keeps a pan/tilt head pointed at a fixed point while pinches run.
// It shares nothing with the pinch engine.
type gazeTask struct {
	head      jointMover
	fixation  r3.Vector
	period    time.Duration
	scheduler gocron.Scheduler
	logger    logging.Logger
}

// panTilt returns the head angles, in radians, that look at p from the head origin.
func panTilt(p r3.Vector) (float64, float64) {
	pan := math.Atan2(p.Y, p.X)
	tilt := math.Atan2(p.Z, math.Hypot(p.X, p.Y))
	return pan, tilt
}

func newGazeTask(head jointMover, fixation r3.Vector, period time.Duration, logger logging.Logger) (*gazeTask, error) {
	if fixation.Norm() == 0 {
		return nil, fmt.Errorf("fixation point cannot be the head origin")
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gaze scheduler")
	}
	return &gazeTask{
		head:      head,
		fixation:  fixation,
		period:    period,
		scheduler: scheduler,
		logger:    logger,
	}, nil
}

func gazeFromDependencies(deps resource.Dependencies, conf *GazeConfig, logger logging.Logger) (*gazeTask, error) {
	res, err := deps.Lookup(resource.NewName(arm.API, conf.Head))
	if err != nil {
		return nil, errors.Wrapf(err, "gaze head %q not available", conf.Head)
	}
	head, ok := res.(arm.Arm)
	if !ok {
		return nil, fmt.Errorf("gaze head %q is not an arm", conf.Head)
	}
	p := conf.FixationPoint
	return newGazeTask(head, r3.Vector{X: p.X, Y: p.Y, Z: p.Z}, time.Duration(conf.PeriodMs)*time.Millisecond, logger)
}

// Start schedules the fixation job and starts the scheduler.
func (g *gazeTask) Start() error {
	j, err := g.scheduler.NewJob(
		gocron.DurationJob(g.period),
		gocron.NewTask(g.fixate),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "failed to schedule gaze job"), g.scheduler.Shutdown())
	}
	g.logger.Debugf("gaze job %s every %v", j.ID(), g.period)
	g.scheduler.Start()
	return nil
}

// fixate points the head at the fixation point. Only the first two head joints
// (pan, tilt) are commanded; any others keep their current value.
func (g *gazeTask) fixate() {
	ctx, cancel := context.WithTimeout(context.Background(), g.period)
	defer cancel()

	inputs, err := g.head.JointPositions(ctx, nil)
	if err != nil {
		g.logger.Debugf("gaze: failed to read head: %v", err)
		return
	}
	if len(inputs) < 2 {
		g.logger.Warnf("gaze: head has %d joints, need pan and tilt", len(inputs))
		return
	}
	pan, tilt := panTilt(g.fixation)
	inputs[0] = pan
	inputs[1] = tilt
	if err := g.head.MoveToJointPositions(ctx, inputs, nil); err != nil {
		g.logger.Debugf("gaze: failed to move head: %v", err)
	}
}

// Stop shuts the scheduler down, waiting for a running fixation to finish.
func (g *gazeTask) Stop() error {
	return g.scheduler.Shutdown()
}
