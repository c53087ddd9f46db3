package fingerforce

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

// Recorder starts and stops data capture around a pinch sequence.
type Recorder interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// StreamPair routes one data stream into the recorder.
type StreamPair struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// defaultStreams lists the arm state, force/torque and skin streams of one arm.
func defaultStreams(robot, whichArm string) []StreamPair {
	return []StreamPair{
		{From: fmt.Sprintf("/%s/%s_arm/state:o", robot, whichArm), To: fmt.Sprintf("/dump_%s_pos", whichArm)},
		{From: "/NIDAQmxReader/data/real:o", To: fmt.Sprintf("/dump_%s_nano17", whichArm)},
		{From: fmt.Sprintf("/%s/%s_arm/analog:o", robot, whichArm), To: fmt.Sprintf("/dump_%s_ft", whichArm)},
		{From: fmt.Sprintf("/wholeBodyDynamics/%s_arm/cartesianEndEffectorWrench:o", whichArm), To: fmt.Sprintf("/dump_%s_wbd", whichArm)},
		{From: fmt.Sprintf("/%s/skin/%s_hand", robot, whichArm), To: fmt.Sprintf("/dump_%s_skin_raw", whichArm)},
		{From: fmt.Sprintf("/%s/skin/%s_hand_comp", robot, whichArm), To: fmt.Sprintf("/dump_%s_skin_comp", whichArm)},
	}
}

// commander is anything that accepts DoCommand, typically a dependency resource.
type commander interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// streamRecorder asks a dumper resource to connect or disconnect each stream.
// Every stream is attempted; failures are combined.
type streamRecorder struct {
	dumper  commander
	streams []StreamPair
	logger  logging.Logger
}

func newStreamRecorder(dumper commander, streams []StreamPair, logger logging.Logger) *streamRecorder {
	return &streamRecorder{dumper: dumper, streams: streams, logger: logger}
}

func recorderFromDependencies(deps resource.Dependencies, name string, streams []StreamPair, logger logging.Logger) (Recorder, error) {
	if name == "" {
		return nopRecorder{}, nil
	}
	var dumper resource.Resource
	for n, res := range deps {
		if n.ShortName() == name {
			dumper = res
			break
		}
	}
	if dumper == nil {
		return nil, fmt.Errorf("data dumper %q not found in dependencies", name)
	}
	return newStreamRecorder(dumper, streams, logger), nil
}

func (r *streamRecorder) Connect(ctx context.Context) error {
	return r.each(ctx, "connect")
}

func (r *streamRecorder) Disconnect(ctx context.Context) error {
	return r.each(ctx, "disconnect")
}

func (r *streamRecorder) each(ctx context.Context, command string) error {
	var errs error
	for _, s := range r.streams {
		resp, err := r.dumper.DoCommand(ctx, map[string]interface{}{
			"command": command,
			"from":    s.From,
			"to":      s.To,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s -> %s: %w", command, s.From, s.To, err))
			continue
		}
		if ok, present := resp["success"].(bool); present && !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s %s -> %s: rejected by dumper", command, s.From, s.To))
			continue
		}
		r.logger.Debugf("%s %s -> %s", command, s.From, s.To)
	}
	return errs
}

type nopRecorder struct{}

func (nopRecorder) Connect(context.Context) error    { return nil }
func (nopRecorder) Disconnect(context.Context) error { return nil }
