// Package main runs a pinch experiment on a feetech hand without a robot server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"fingerforce"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger := logging.NewLogger("fingerforce-cli")

	configPath := "experiment.yaml"
	port := ""
	run := ""
	debug := false

	flag.StringVar(&configPath, "config", configPath, "experiment file (YAML)")
	flag.StringVar(&port, "port", port, "serial port, overrides the experiment file")
	flag.StringVar(&run, "run", run, "run one command (open, pinch, pinchseq, resetC, status) and exit")
	flag.BoolVar(&debug, "debug", debug, "debug")
	flag.Parse()

	if debug {
		logger.SetLevel(logging.DEBUG)
	}

	cfg, err := fingerforce.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	engine, err := fingerforce.NewStandaloneEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(func() error {
		return engine.Shutdown(context.Background())
	})

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if run != "" {
		cmd, err := fingerforce.ParseCommand(run)
		if err != nil {
			return err
		}
		result := engine.Dispatch(ctx, cmd)
		logger.Infof("%s: %v", run, result)
		if ok, _ := result["success"].(bool); !ok {
			return fmt.Errorf("%s failed: %v", run, result["error"])
		}
		return nil
	}

	return fingerforce.RunCommandLoop(ctx, engine, os.Stdin, os.Stdout)
}
