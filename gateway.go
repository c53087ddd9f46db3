package fingerforce

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	rutils "go.viam.com/rdk/utils"
	goutils "go.viam.com/utils"
)

// Gateway is the actuator subsystem the pinch engine drives. Positions are in degrees,
// indexed by joint. SetPositions returns once the command is issued; completion is
// observed through MotionDone.
type Gateway interface {
	JointCount(ctx context.Context) (int, error)
	Positions(ctx context.Context) ([]float64, error)
	SetPositions(ctx context.Context, positions []float64) error
	MotionDone(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

// jointMover is the subset of arm.Arm the arm gateway needs.
type jointMover interface {
	JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error)
	MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error
	IsMoving(ctx context.Context) (bool, error)
	Stop(ctx context.Context, extra map[string]interface{}) error
}

// armGateway drives a hand exposed as an rdk arm component. The arm API blocks on
// MoveToJointPositions, so moves run on a background worker and MotionDone reports
// whether any are still in flight.
type armGateway struct {
	name    string
	arm     jointMover
	logger  logging.Logger
	workers *goutils.StoppableWorkers
	pending atomic.Int32
}

func newArmGateway(name string, mover jointMover, logger logging.Logger) *armGateway {
	return &armGateway{
		name:    name,
		arm:     mover,
		logger:  logger,
		workers: goutils.NewBackgroundStoppableWorkers(),
	}
}

// armGatewayFromDependencies looks up the named arm in deps.
func armGatewayFromDependencies(deps resource.Dependencies, name string, logger logging.Logger) (*armGateway, error) {
	res, err := deps.Lookup(resource.NewName(arm.API, name))
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q not available", name)
	}
	a, ok := res.(arm.Arm)
	if !ok {
		return nil, fmt.Errorf("resource %q is not an arm", name)
	}
	return newArmGateway(name, a, logger), nil
}

func (g *armGateway) JointCount(ctx context.Context) (int, error) {
	inputs, err := g.arm.JointPositions(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read joint count")
	}
	return len(inputs), nil
}

func (g *armGateway) Positions(ctx context.Context) ([]float64, error) {
	inputs, err := g.arm.JointPositions(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read joint positions")
	}
	positions := make([]float64, len(inputs))
	for i, in := range inputs {
		positions[i] = rutils.RadToDeg(in)
	}
	return positions, nil
}

func (g *armGateway) SetPositions(ctx context.Context, positions []float64) error {
	inputs := make([]referenceframe.Input, len(positions))
	for i, deg := range positions {
		inputs[i] = rutils.DegToRad(deg)
	}

	g.pending.Add(1)
	g.workers.Add(func(workerCtx context.Context) {
		defer g.pending.Add(-1)
		if err := g.arm.MoveToJointPositions(workerCtx, inputs, nil); err != nil {
			g.logger.Warnf("move on %s failed: %v", g.name, err)
		}
	})
	return nil
}

func (g *armGateway) MotionDone(ctx context.Context) (bool, error) {
	if g.pending.Load() > 0 {
		return false, nil
	}
	moving, err := g.arm.IsMoving(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to query %s motion: %w", g.name, err)
	}
	return !moving, nil
}

func (g *armGateway) Stop(ctx context.Context) error {
	return g.arm.Stop(ctx, nil)
}

// Close waits for in-flight moves. It does not close the arm, which the robot owns.
func (g *armGateway) Close(ctx context.Context) error {
	g.workers.Stop()
	return nil
}
