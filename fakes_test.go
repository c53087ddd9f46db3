package fingerforce

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
)

// fakeGateway applies commands instantly and reports completion after doneAfter polls.
type fakeGateway struct {
	mu        sync.Mutex
	positions []float64
	commands  [][]float64
	doneAfter int
	neverDone bool
	polls     int
	failReads int
	setErr    error
	stopped   int
	closed    int
}

func newFakeGateway(jointCount int) *fakeGateway {
	return &fakeGateway{positions: make([]float64, jointCount)}
}

func (g *fakeGateway) JointCount(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.positions), nil
}

func (g *fakeGateway) Positions(ctx context.Context) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failReads > 0 {
		g.failReads--
		return nil, errors.New("encoders not ready")
	}
	return append([]float64(nil), g.positions...), nil
}

func (g *fakeGateway) SetPositions(ctx context.Context, positions []float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.setErr != nil {
		return g.setErr
	}
	cmd := append([]float64(nil), positions...)
	g.commands = append(g.commands, cmd)
	g.positions = append([]float64(nil), cmd...)
	g.polls = 0
	return nil
}

func (g *fakeGateway) MotionDone(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if g.neverDone {
		return false, nil
	}
	return g.polls > g.doneAfter, nil
}

func (g *fakeGateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped++
	return nil
}

func (g *fakeGateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed++
	return nil
}

func (g *fakeGateway) Commands() [][]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]float64(nil), g.commands...)
}

// fakeRecorder counts calls and can fail.
type fakeRecorder struct {
	mu            sync.Mutex
	connects      int
	disconnects   int
	connectErr    error
	disconnectErr error
}

func (r *fakeRecorder) Connect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	return r.connectErr
}

func (r *fakeRecorder) Disconnect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
	return r.disconnectErr
}

// fakeMover stands in for an arm component.
type fakeMover struct {
	mu       sync.Mutex
	inputs   []referenceframe.Input
	moves    [][]referenceframe.Input
	moveTime time.Duration
	moving   bool
	stops    int
}

func (m *fakeMover) JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]referenceframe.Input(nil), m.inputs...), nil
}

func (m *fakeMover) MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error {
	m.mu.Lock()
	m.moving = true
	m.moves = append(m.moves, positions)
	m.mu.Unlock()

	select {
	case <-time.After(m.moveTime):
	case <-ctx.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = positions
	m.moving = false
	return ctx.Err()
}

func (m *fakeMover) IsMoving(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moving, nil
}

func (m *fakeMover) Stop(ctx context.Context, extra map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *fakeMover) Moves() [][]referenceframe.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]referenceframe.Input(nil), m.moves...)
}

// testEngineConfig is a 16-joint hand with the finger on 11, thumb on 9 and no waiting.
func testEngineConfig(n int, progressive bool) EngineConfig {
	return EngineConfig{
		Finger: PinchJointSpec{Joint: 11, StartPos: 0, PinchPos: 20},
		Params: ExperimentParameters{
			NPinches:         n,
			PinchIncrement:   1,
			ProgressiveDepth: progressive,
		},
		ThumbJoint: 9,
		Home: HomePose{
			Arm:        []float64{-25, 35, 18, 65, -32, 9, -5},
			Hand:       []float64{20, 75, 40, 0, 0, 0, 0, 0, 0},
			HandOffset: 7,
		},
		MotionTimeout: 50 * time.Millisecond,
		PollInterval:  time.Millisecond,
	}
}

func newTestEngine(logger logging.Logger, gw Gateway, rec Recorder, conf EngineConfig) *Engine {
	e, err := NewEngine(context.Background(), gw, rec, conf, logger)
	if err != nil {
		panic(err)
	}
	return e
}
