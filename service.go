package fingerforce

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

var PinchModel = resource.NewModel("fingerforce", "hand", "pinch")

func init() {
	resource.RegisterService(genericservice.API, PinchModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newPinchService,
		},
	)
}

type pinchService struct {
	resource.Named
	resource.AlwaysRebuild

	engine *Engine
	logger logging.Logger

	gazeMu sync.Mutex
	gaze   *gazeTask
}

func newPinchService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewPinchService(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewPinchService acquires the gateway and recorder, starts the gaze task and moves
// the hand to its initial pose.
func NewPinchService(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	var gw Gateway
	if conf.Arm != "" {
		agw, err := armGatewayFromDependencies(deps, conf.Arm, logger)
		if err != nil {
			return nil, err
		}
		gw = agw
	} else {
		fgw, err := newFeetechGateway(ctx, sharedBusRegistry(), conf.feetechConfig(), logger)
		if err != nil {
			return nil, err
		}
		gw = fgw
	}

	rec, err := recorderFromDependencies(deps, conf.DataDumper, conf.Streams, logger)
	if err != nil {
		return nil, multierr.Combine(err, gw.Close(ctx))
	}

	return newPinchServiceWith(ctx, deps, name, conf, gw, rec, logger)
}

func newPinchServiceWith(
	ctx context.Context,
	deps resource.Dependencies,
	name resource.Name,
	conf *Config,
	gw Gateway,
	rec Recorder,
	logger logging.Logger,
) (*pinchService, error) {
	engine, err := NewEngine(ctx, gw, rec, conf.engineConfig(), logger)
	if err != nil {
		return nil, multierr.Combine(err, gw.Close(ctx))
	}

	s := &pinchService{
		Named:  name.AsNamed(),
		engine: engine,
		logger: logger,
	}

	if conf.Gaze != nil {
		s.gaze, err = gazeFromDependencies(deps, conf.Gaze, logger)
		if err != nil {
			return nil, multierr.Combine(err, gw.Close(ctx))
		}
		if err := s.gaze.Start(); err != nil {
			return nil, multierr.Combine(err, gw.Close(ctx))
		}
	}

	if err := engine.Start(ctx); err != nil {
		return nil, multierr.Combine(fmt.Errorf("failed to reach initial pose: %w", err), s.Close(ctx))
	}
	logger.Infof("Pinch service ready: %d pinches, progressive=%v, thumb=%v",
		conf.Experiment.NPinches, conf.Experiment.ProgressiveDepth, conf.Experiment.UseThumb)
	return s, nil
}

func (s *pinchService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command must be a string, got %v", cmd["command"])
	}
	c, err := ParseCommand(name)
	if err != nil {
		return nil, err
	}
	result := s.engine.Dispatch(ctx, c)
	if c == CmdQuit {
		s.stopGaze()
	}
	return result, nil
}

func (s *pinchService) stopGaze() {
	s.gazeMu.Lock()
	defer s.gazeMu.Unlock()
	if s.gaze == nil {
		return
	}
	if err := s.gaze.Stop(); err != nil {
		s.logger.Debugf("gaze stop: %v", err)
	}
	s.gaze = nil
}

func (s *pinchService) Close(ctx context.Context) error {
	s.logger.Info("Closing pinch service")
	s.stopGaze()
	return s.engine.Shutdown(ctx)
}
