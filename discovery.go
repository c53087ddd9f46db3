package fingerforce

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	genericservice "go.viam.com/rdk/services/generic"
)

var HandDiscoveryModel = resource.NewModel("fingerforce", "hand", "discovery")

func init() {
	resource.RegisterService(
		discovery.API,
		HandDiscoveryModel,
		resource.Registration[discovery.Service, *HandDiscoveryConfig]{
			Constructor: newHandDiscovery,
		})
}

// HandDiscoveryConfig selects which servo identifies a hand.
type HandDiscoveryConfig struct {
	ProbeServoID int `json:"probe_servo_id,omitempty"` // default: servo of the default finger joint
	Baudrate     int `json:"baudrate,omitempty"`
}

func (cfg *HandDiscoveryConfig) Validate(path string) ([]string, []string, error) {
	if cfg.ProbeServoID == 0 {
		cfg.ProbeServoID = defaultFingerJoint + 1
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = 1000000
	}
	return nil, nil, nil
}

type handDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	probeID  int
	baudrate int
	ping     func(port string) bool
	logger   logging.Logger
}

func newHandDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*HandDiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}
	dis := &handDiscovery{
		Named:    conf.ResourceName().AsNamed(),
		probeID:  cfg.ProbeServoID,
		baudrate: cfg.Baudrate,
		logger:   logger,
	}
	dis.ping = dis.pingFinger
	return dis, nil
}

// DiscoverResources proposes a pinch service for every serial port whose finger servo answers.
func (dis *handDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dis.logger.Info("Starting hand discovery")

	candidates := filterCandidatePorts(enumerateSerialPorts())
	dis.logger.Debugf("Found %d candidate ports", len(candidates))

	return dis.discoverPorts(ctx, candidates)
}

func (dis *handDiscovery) discoverPorts(ctx context.Context, ports []string) ([]resource.Config, error) {
	var configs []resource.Config
	for _, portPath := range ports {
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return configs, ctx.Err()
		default:
		}

		if !dis.ping(portPath) {
			dis.logger.Debugf("No finger servo on %s", portPath)
			continue
		}
		dis.logger.Infof("Discovered hand on %s", portPath)
		configs = append(configs, dis.proposeConfig(portPath))
	}

	if len(configs) == 0 {
		dis.logger.Info("No hands discovered")
	}
	return configs, nil
}

func (dis *handDiscovery) pingFinger(portPath string) bool {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     portPath,
		BaudRate: dis.baudrate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		dis.logger.Debugf("Failed to open port %s: %v", portPath, err)
		return false
	}
	defer bus.Close()

	servo := feetech.NewServo(bus, dis.probeID, &feetech.ModelSTS3215)
	_, err = servo.Ping(context.Background())
	return err == nil
}

// proposeConfig returns a pinch service on the port. The home pose is a neutral
// placeholder the operator is expected to edit.
func (dis *handDiscovery) proposeConfig(portPath string) resource.Config {
	suffix := extractPortSuffix(portPath)
	attrs := map[string]interface{}{
		"port":     portPath,
		"baudrate": dis.baudrate,
		"home": map[string]interface{}{
			"hand": []float64{0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	if cal := findCalibrationFile(moduleDataDir, suffix, dis.logger); cal != "" {
		attrs["calibration_file"] = cal
	} else if cal, err := writeDefaultCalibration(suffix); err != nil {
		dis.logger.Warnf("Failed to write default calibration for %s: %v", portPath, err)
	} else {
		dis.logger.Infof("Wrote full-range calibration %s for %s", cal, portPath)
		attrs["calibration_file"] = cal
	}
	return resource.Config{
		Name:       "pinch-" + suffix,
		API:        genericservice.API,
		Model:      PinchModel,
		Attributes: attrs,
	}
}

func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

// isCandidatePort matches USB serial adapters on Linux, macOS and Windows.
func isCandidatePort(port string) bool {
	for _, prefix := range []string{
		"/dev/ttyUSB", "/dev/ttyACM",
		"/dev/tty.usbmodem", "/dev/tty.usbserial", "/dev/cu.usbmodem", "/dev/cu.usbserial",
		"COM",
	} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	return false
}

// extractPortSuffix turns /dev/ttyUSB0 into ttyUSB0 and /dev/tty.usbmodem123 into usbmodem123.
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// findCalibrationFile looks for <port>_calibration.json, then hand_calibration.json.
func findCalibrationFile(moduleDataDir, portSuffix string, logger logging.Logger) string {
	for _, name := range []string{portSuffix + "_calibration.json", "hand_calibration.json"} {
		if _, err := os.Stat(filepath.Join(moduleDataDir, name)); err == nil {
			logger.Debugf("Found calibration file: %s", name)
			return name
		}
	}
	logger.Debug("No calibration file found")
	return ""
}

// writeDefaultCalibration saves a full-range calibration as <port>_calibration.json
// so the operator has a file to edit.
func writeDefaultCalibration(portSuffix string) (string, error) {
	name := portSuffix + "_calibration.json"
	if err := SaveHandCalibration(name, defaultHandCalibration(defaultServoIDs())); err != nil {
		return "", err
	}
	return name, nil
}

func enumerateSerialPorts() []string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return []string{}
	}
	var portPaths []string
	for _, port := range ports {
		portPaths = append(portPaths, port.Name)
	}
	return portPaths
}
