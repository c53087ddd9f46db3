package fingerforce

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
)

const (
	defaultMotionTimeout = 10 * time.Second
	defaultPollInterval  = time.Second
)

// motionWaiter polls a gateway until it reports motion complete or the timeout elapses.
type motionWaiter struct {
	timeout      time.Duration
	pollInterval time.Duration
	clock        clock.Clock
	logger       logging.Logger
}

func newMotionWaiter(timeout, pollInterval time.Duration, clk clock.Clock, logger logging.Logger) *motionWaiter {
	if timeout <= 0 {
		timeout = defaultMotionTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &motionWaiter{timeout: timeout, pollInterval: pollInterval, clock: clk, logger: logger}
}

// Wait returns true on the first poll that reports completion and false once the
// elapsed time exceeds the timeout. It runs to resolution; ctx is only handed to the
// gateway query.
func (w *motionWaiter) Wait(ctx context.Context, gw Gateway) bool {
	start := w.clock.Now()
	for {
		done, err := gw.MotionDone(context.WithoutCancel(ctx))
		if err != nil {
			w.logger.Warnf("motion done query failed: %v", err)
		} else if done {
			return true
		}

		if w.clock.Since(start) > w.timeout {
			return false
		}
		w.clock.Sleep(w.pollInterval)
	}
}
