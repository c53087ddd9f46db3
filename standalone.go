package fingerforce

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads an experiment file and fills its defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read experiment file")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse experiment file")
	}
	if _, _, err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewStandaloneEngine builds an engine on a feetech hand without a robot around it.
// The data recorder and gaze task need other resources and are not available here.
func NewStandaloneEngine(ctx context.Context, cfg *Config, logger logging.Logger) (*Engine, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("standalone mode needs a serial port")
	}
	if cfg.DataDumper != "" || cfg.Gaze != nil {
		logger.Warn("data_dumper and gaze are ignored in standalone mode")
	}
	gw, err := newFeetechGateway(ctx, sharedBusRegistry(), cfg.feetechConfig(), logger)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(ctx, gw, nopRecorder{}, cfg.engineConfig(), logger)
	if err != nil {
		if closeErr := gw.Close(ctx); closeErr != nil {
			logger.Warn(closeErr)
		}
		return nil, err
	}
	return engine, nil
}

// RunCommandLoop reads one command per line and dispatches it until quit or EOF.
func RunCommandLoop(ctx context.Context, engine *Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)
			fmt.Fprint(out, "> ")
			continue
		}
		result := engine.Dispatch(ctx, cmd)
		fmt.Fprintln(out, formatResult(result))
		if cmd == CmdQuit {
			return nil
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func formatResult(result map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%v] success=%v", result["command"], result["success"])
	for _, key := range []string{"error", "depth", "counter", "depths", "timeouts", "recorder_ok", "previous_depth", "running"} {
		if v, ok := result[key]; ok {
			fmt.Fprintf(&b, " %s=%v", key, v)
		}
	}
	if help, ok := result["commands"].(map[string]interface{}); ok {
		for _, c := range []Command{CmdOpen, CmdPinch, CmdPinchSeq, CmdResetCounter, CmdQuit, CmdStatus, CmdHelp} {
			fmt.Fprintf(&b, "\n  %-9s %v", c, help[c.String()])
		}
	}
	return b.String()
}
