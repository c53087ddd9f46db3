package fingerforce

import (
	"context"
	"errors"
	"fmt"
)

// Command is one operation the engine exposes to callers.
type Command int

const (
	CmdOpen Command = iota
	CmdPinch
	CmdPinchSeq
	CmdResetCounter
	CmdQuit
	CmdStatus
	CmdHelp
)

var commandNames = map[Command]string{
	CmdOpen:         "open",
	CmdPinch:        "pinch",
	CmdPinchSeq:     "pinchseq",
	CmdResetCounter: "resetC",
	CmdQuit:         "quit",
	CmdStatus:       "status",
	CmdHelp:         "help",
}

var commandHelp = map[Command]string{
	CmdOpen:         "move the hand to the open pose",
	CmdPinch:        "perform one pinch with the current trajectory state",
	CmdPinchSeq:     "perform the full pinch sequence",
	CmdResetCounter: "reset the pinch counter, keeping the current depth",
	CmdQuit:         "stop accepting motion commands",
	CmdStatus:       "report the trajectory state",
	CmdHelp:         "list the available commands",
}

var (
	errBusy           = errors.New("another pinch operation is running")
	errClosing        = errors.New("shutting down")
	errUnknownCommand = errors.New("unknown command")
)

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps a command name to a Command.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errUnknownCommand, name)
}

// motion reports whether the command moves the hand.
func (c Command) motion() bool {
	return c == CmdOpen || c == CmdPinch || c == CmdPinchSeq
}

// Dispatch runs one command. Motion commands are single-flight: a call that arrives
// while another is running is rejected. The result always carries "success"; failures
// also carry "error" and are not returned as Go errors.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) map[string]interface{} {
	result := map[string]interface{}{"command": cmd.String()}

	fail := func(err error) map[string]interface{} {
		e.logger.Warnf("%s failed: %v", cmd, err)
		result["success"] = false
		result["error"] = err.Error()
		return result
	}

	if cmd.motion() {
		opCtx, done, err := e.beginOp(ctx)
		if err != nil {
			return fail(err)
		}
		defer done()
		ctx = opCtx
	}

	switch cmd {
	case CmdOpen:
		reached, err := e.Open(ctx)
		if err != nil {
			return fail(err)
		}
		result["reached"] = reached

	case CmdPinch:
		res, err := e.Pinch(ctx)
		if err != nil {
			return fail(err)
		}
		result["depth"] = res.Depth
		result["counter"] = e.traj.State().Counter
		result["descent_done"] = res.DescentDone
		result["release_done"] = res.ReleaseDone
		if e.params.UseThumb {
			result["thumb_depth"] = res.ThumbDepth
		}

	case CmdPinchSeq:
		report, err := e.PinchSequence(ctx)
		if err != nil {
			return fail(err)
		}
		depths := make([]interface{}, len(report.Pinches))
		for i, p := range report.Pinches {
			depths[i] = p.Depth
		}
		result["depths"] = depths
		result["timeouts"] = report.Timeouts()
		result["recorder_ok"] = report.RecorderOK

	case CmdResetCounter:
		e.logger.Info("Resetting the pinch counter")
		e.traj.ResetCounter()

	case CmdQuit:
		e.logger.Info("Quit requested")
		e.opMu.Lock()
		e.closing.Store(true)
		e.opMu.Unlock()
		e.opMgr.CancelRunning(context.Background())

	case CmdStatus:
		state := e.traj.State()
		result["counter"] = state.Counter
		result["previous_depth"] = state.PrevDepth
		result["previous_thumb_depth"] = state.PrevThumbDepth
		result["running"] = e.running()
		result["closing"] = e.closing.Load()

	case CmdHelp:
		help := make(map[string]interface{}, len(commandHelp))
		for c, text := range commandHelp {
			help[c.String()] = text
		}
		result["commands"] = help

	default:
		return fail(fmt.Errorf("%w: %v", errUnknownCommand, cmd))
	}

	result["success"] = true
	return result
}

// beginOp claims the single operation slot. opMgr.New would cancel a running
// operation, so a busy slot is checked first and the call is rejected instead.
func (e *Engine) beginOp(ctx context.Context) (context.Context, func(), error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.closing.Load() {
		return nil, nil, errClosing
	}
	if e.opActive {
		return nil, nil, errBusy
	}
	opCtx, done := e.opMgr.New(ctx)
	e.opActive = true
	e.opWG.Add(1)
	return opCtx, func() {
		done()
		e.opMu.Lock()
		e.opActive = false
		e.opMu.Unlock()
		e.opWG.Done()
	}, nil
}

// running reports whether a motion command holds the operation slot.
func (e *Engine) running() bool {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.opActive
}
