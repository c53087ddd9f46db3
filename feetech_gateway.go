package fingerforce

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// feetechGateway drives a hand whose joints are STS3215 servos on one serial bus.
// Joint i is servo ids[i].
type feetechGateway struct {
	port     string
	registry *busRegistry
	group    *feetech.ServoGroup
	servos   []*feetech.Servo
	ids      []int
	cal      []JointCalibration
	speed    int
	logger   logging.Logger
}

type feetechGatewayConfig struct {
	Settings        busSettings
	ServoIDs        []int
	CalibrationFile string
	Speed           int
}

func newFeetechGateway(ctx context.Context, registry *busRegistry, conf feetechGatewayConfig, logger logging.Logger) (*feetechGateway, error) {
	bus, err := registry.Acquire(conf.Settings)
	if err != nil {
		return nil, err
	}

	cal := loadCalibrationOrDefault(conf.CalibrationFile, logger)
	if unused := cal.Unused(conf.ServoIDs); len(unused) > 0 {
		logger.Warnf("Calibration covers servos %v that are not configured on %s", unused, conf.Settings.Port)
	}
	g := &feetechGateway{
		port:     conf.Settings.Port,
		registry: registry,
		group:    feetech.NewServoGroupByIDs(bus, conf.ServoIDs...),
		ids:      conf.ServoIDs,
		cal:      cal.ForServos(conf.ServoIDs),
		speed:    conf.Speed,
		logger:   logger,
	}
	for _, id := range conf.ServoIDs {
		g.servos = append(g.servos, feetech.NewServo(bus, id, &feetech.ModelSTS3215))
	}

	if err := g.group.EnableAll(ctx); err != nil {
		if relErr := registry.Release(g.port); relErr != nil {
			logger.Warn(relErr)
		}
		return nil, errors.Wrap(err, "failed to enable hand servos")
	}
	logger.Infof("Feetech hand on %s with %d servos", g.port, len(g.ids))
	return g, nil
}

func (g *feetechGateway) JointCount(ctx context.Context) (int, error) {
	return len(g.ids), nil
}

func (g *feetechGateway) Positions(ctx context.Context) ([]float64, error) {
	raw, err := g.group.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read servo positions")
	}
	positions := make([]float64, len(g.ids))
	for i, id := range g.ids {
		r, ok := raw[id]
		if !ok {
			return nil, fmt.Errorf("no position reported for servo %d", id)
		}
		positions[i] = g.cal[i].Degrees(r)
	}
	return positions, nil
}

func (g *feetechGateway) SetPositions(ctx context.Context, positions []float64) error {
	if len(positions) != len(g.ids) {
		return fmt.Errorf("expected %d joint positions, got %d", len(g.ids), len(positions))
	}

	if g.speed > 0 {
		for i, servo := range g.servos {
			if err := servo.SetPositionWithSpeed(ctx, g.cal[i].Raw(positions[i]), g.speed); err != nil {
				return errors.Wrapf(err, "failed to move servo %d", g.ids[i])
			}
		}
		return nil
	}

	raw := make(feetech.PositionMap, len(g.ids))
	for i, id := range g.ids {
		raw[id] = g.cal[i].Raw(positions[i])
	}
	if err := g.group.SetPositions(ctx, raw); err != nil {
		return errors.Wrap(err, "failed to write servo positions")
	}
	return nil
}

func (g *feetechGateway) MotionDone(ctx context.Context) (bool, error) {
	for i, servo := range g.servos {
		moving, err := servo.Moving(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "failed to query servo %d", g.ids[i])
		}
		if moving {
			return false, nil
		}
	}
	return true, nil
}

// Stop holds every servo where it currently is.
func (g *feetechGateway) Stop(ctx context.Context) error {
	raw, err := g.group.Positions(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read servo positions")
	}
	return g.group.SetPositions(ctx, raw)
}

func (g *feetechGateway) Close(ctx context.Context) error {
	return g.registry.Release(g.port)
}
