package fingerforce

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/operation"
	goutils "go.viam.com/utils"
)

const (
	initialReadAttempts = 50
	initialReadDelay    = 100 * time.Millisecond
)

// EngineConfig is everything the pinch engine needs besides its collaborators.
type EngineConfig struct {
	Finger          PinchJointSpec
	Params          ExperimentParameters
	ThumbJoint      int
	Home            HomePose
	MotionTimeout   time.Duration
	PollInterval    time.Duration
	SkipInitialPose bool
	Clock           clock.Clock
}

// Engine sequences pinches on a Gateway.
type Engine struct {
	gw         Gateway
	recorder   Recorder
	traj       *trajectory
	waiter     *motionWaiter
	finger     PinchJointSpec
	params     ExperimentParameters
	thumbJoint int
	thumbHome  float64
	home       HomePose
	skipPose   bool
	jointCount int
	logger     logging.Logger

	opMgr    *operation.SingleOperationManager
	opMu     sync.Mutex
	opActive bool
	opWG     sync.WaitGroup
	closing  atomic.Bool

	initialMu sync.Mutex
	initial   []float64
}

// NewEngine checks the configuration against the gateway. It does not move anything.
func NewEngine(ctx context.Context, gw Gateway, rec Recorder, conf EngineConfig, logger logging.Logger) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("no motion gateway")
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if conf.Params.NPinches <= 0 {
		return nil, fmt.Errorf("number of pinches must be positive, got %d", conf.Params.NPinches)
	}

	jointCount, err := gw.JointCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "motion gateway unavailable")
	}
	if conf.Finger.Joint < 0 || conf.Finger.Joint >= jointCount {
		return nil, fmt.Errorf("finger joint %d out of range for %d joints", conf.Finger.Joint, jointCount)
	}
	if err := conf.Home.check(jointCount); err != nil {
		return nil, err
	}

	thumbHome, covered := conf.Home.Value(conf.ThumbJoint)
	if conf.Params.UseThumb {
		if conf.ThumbJoint < 0 || conf.ThumbJoint >= jointCount {
			return nil, fmt.Errorf("thumb joint %d out of range for %d joints", conf.ThumbJoint, jointCount)
		}
		if conf.ThumbJoint == conf.Finger.Joint {
			return nil, fmt.Errorf("thumb and finger cannot share joint %d", conf.ThumbJoint)
		}
		if !covered {
			return nil, fmt.Errorf("home pose does not cover thumb joint %d", conf.ThumbJoint)
		}
	}

	return &Engine{
		gw:         gw,
		recorder:   rec,
		traj:       newTrajectory(conf.Finger, conf.Params, thumbHome, logger),
		waiter:     newMotionWaiter(conf.MotionTimeout, conf.PollInterval, conf.Clock, logger),
		finger:     conf.Finger,
		params:     conf.Params,
		thumbJoint: conf.ThumbJoint,
		thumbHome:  thumbHome,
		home:       conf.Home,
		skipPose:   conf.SkipInitialPose,
		jointCount: jointCount,
		logger:     logger,
		opMgr:      operation.NewSingleOperationManager(),
	}, nil
}

// Start records the initial joint positions so Shutdown can restore them, then
// reaches the home arm pose and opens the hand.
func (e *Engine) Start(ctx context.Context) error {
	initial, err := e.readInitialPositions(ctx)
	if err != nil {
		return err
	}
	e.initialMu.Lock()
	e.initial = initial
	e.initialMu.Unlock()

	if e.skipPose {
		return nil
	}
	if _, err := e.ReachArm(ctx); err != nil {
		return err
	}
	_, err = e.Open(ctx)
	return err
}

func (e *Engine) readInitialPositions(ctx context.Context) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < initialReadAttempts; attempt++ {
		positions, err := e.gw.Positions(ctx)
		if err == nil {
			return positions, nil
		}
		lastErr = err
		if !goutils.SelectContextOrWait(ctx, initialReadDelay) {
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrapf(lastErr, "could not read initial positions after %d attempts", initialReadAttempts)
}

// snapshot reads the current positions and checks their length.
func (e *Engine) snapshot(ctx context.Context) ([]float64, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return nil, err
	}
	if len(positions) != e.jointCount {
		return nil, fmt.Errorf("gateway reported %d positions, expected %d", len(positions), e.jointCount)
	}
	e.logger.Debugf("snapshot: %v", positions)
	return positions, nil
}

// move commands positions and waits for completion. A timeout is logged and
// reported, never returned as an error.
func (e *Engine) move(ctx context.Context, what string, positions []float64) (bool, error) {
	if err := e.gw.SetPositions(ctx, positions); err != nil {
		return false, errors.Wrapf(err, "failed to command %s", what)
	}
	done := e.waiter.Wait(ctx, e.gw)
	if !done {
		e.logger.Warnf("%s did not complete within %v", what, e.waiter.timeout)
	}
	return done, nil
}

// ReachArm moves the arm joints to the home pose, leaving the hand where it is.
func (e *Engine) ReachArm(ctx context.Context) (bool, error) {
	if len(e.home.Arm) == 0 {
		return true, nil
	}
	positions, err := e.snapshot(ctx)
	if err != nil {
		return false, err
	}
	e.home.applyArm(positions)
	e.logger.Info("Reaching home arm pose")
	return e.move(ctx, "arm reach", positions)
}

// Open moves the hand joints to the home pose with the finger at its start position.
func (e *Engine) Open(ctx context.Context) (bool, error) {
	positions, err := e.snapshot(ctx)
	if err != nil {
		return false, err
	}
	e.home.applyHand(positions)
	positions[e.finger.Joint] = e.finger.StartPos
	e.logger.Info("Opening hand")
	return e.move(ctx, "open", positions)
}

// Shutdown rejects further motion, cancels any running operation, stops the
// gateway and returns the joints to where Start found them.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.opMu.Lock()
	e.closing.Store(true)
	e.opMu.Unlock()
	e.opMgr.CancelRunning(ctx)
	e.waitIdle(ctx)

	var errs error
	if err := e.gw.Stop(ctx); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "failed to stop gateway"))
	}

	e.initialMu.Lock()
	initial := e.initial
	e.initialMu.Unlock()
	if initial != nil {
		e.logger.Info("Restoring initial joint positions")
		if _, err := e.move(ctx, "restore", initial); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return multierr.Append(errs, e.gw.Close(ctx))
}

// waitIdle waits for the operation slot to be released, bounded by twice the motion timeout.
func (e *Engine) waitIdle(ctx context.Context) {
	idle := make(chan struct{})
	go func() {
		e.opWG.Wait()
		close(idle)
	}()
	timer := e.waiter.clock.Timer(2 * e.waiter.timeout)
	defer timer.Stop()
	select {
	case <-idle:
	case <-ctx.Done():
	case <-timer.C:
		e.logger.Warn("pinch operation still running at shutdown")
	}
}

// State returns a copy of the trajectory state.
func (e *Engine) State() TrajectoryState {
	return e.traj.State()
}

// Closing reports whether quit or shutdown has been requested.
func (e *Engine) Closing() bool {
	return e.closing.Load()
}
