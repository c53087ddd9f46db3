package fingerforce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"go.viam.com/rdk/logging"
)

// pollGateway reports completion from a script of poll results.
type pollGateway struct {
	fakeGateway
	script []bool
	errs   []error
	calls  int
}

func (g *pollGateway) MotionDone(ctx context.Context) (bool, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return false, g.errs[i]
	}
	if i < len(g.script) {
		return g.script[i], nil
	}
	return false, nil
}

func TestWaiterReturnsOnFirstCompletePoll(t *testing.T) {
	logger := logging.NewTestLogger(t)
	w := newMotionWaiter(time.Second, time.Millisecond, nil, logger)

	gw := &pollGateway{script: []bool{true}}
	assert.True(t, w.Wait(context.Background(), gw))
	assert.Equal(t, 1, gw.calls)

	gw = &pollGateway{script: []bool{false, false, true, true}}
	assert.True(t, w.Wait(context.Background(), gw))
	assert.Equal(t, 3, gw.calls)
}

func TestWaiterTimesOut(t *testing.T) {
	logger := logging.NewTestLogger(t)
	w := newMotionWaiter(30*time.Millisecond, 5*time.Millisecond, nil, logger)

	gw := &pollGateway{}
	start := time.Now()
	assert.False(t, w.Wait(context.Background(), gw))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Greater(t, gw.calls, 1)
}

func TestWaiterTreatsQueryErrorsAsNotDone(t *testing.T) {
	logger := logging.NewTestLogger(t)
	w := newMotionWaiter(time.Second, time.Millisecond, nil, logger)

	boom := errors.New("bus timeout")
	gw := &pollGateway{script: []bool{true, true, true}, errs: []error{boom, boom}}
	assert.True(t, w.Wait(context.Background(), gw))
	assert.Equal(t, 3, gw.calls)
}

func TestWaiterIgnoresCancellation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	w := newMotionWaiter(time.Second, time.Millisecond, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &pollGateway{script: []bool{false, true}}
	assert.True(t, w.Wait(ctx, gw))
	assert.Equal(t, 2, gw.calls)
}

func TestWaiterDefaults(t *testing.T) {
	w := newMotionWaiter(0, 0, clock.NewMock(), logging.NewTestLogger(t))
	assert.Equal(t, 10*time.Second, w.timeout)
	assert.Equal(t, time.Second, w.pollInterval)
}

// steppingClock advances the mock by the requested duration on Sleep.
type steppingClock struct {
	*clock.Mock
}

func (c steppingClock) Sleep(d time.Duration) {
	c.Mock.Add(d)
}

func TestWaiterTimesOutOnceElapsedExceedsTimeout(t *testing.T) {
	clk := steppingClock{clock.NewMock()}
	start := clk.Now()
	w := newMotionWaiter(3*time.Second, time.Second, clk, logging.NewTestLogger(t))

	gw := &pollGateway{}
	assert.False(t, w.Wait(context.Background(), gw))
	// the poll at exactly 3s still runs
	assert.Equal(t, 5, gw.calls)
	assert.Equal(t, 4*time.Second, clk.Since(start))
}

func TestWaiterCompletesOnPollAtTimeout(t *testing.T) {
	clk := steppingClock{clock.NewMock()}
	start := clk.Now()
	w := newMotionWaiter(3*time.Second, time.Second, clk, logging.NewTestLogger(t))

	gw := &pollGateway{script: []bool{false, false, false, true}}
	assert.True(t, w.Wait(context.Background(), gw))
	assert.Equal(t, 4, gw.calls)
	assert.Equal(t, 3*time.Second, clk.Since(start))
}
