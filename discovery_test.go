package fingerforce

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	genericservice "go.viam.com/rdk/services/generic"
)

func TestFilterCandidatePorts(t *testing.T) {
	tests := []struct {
		name     string
		ports    []string
		expected []string
	}{
		{
			name:     "Linux USB ports",
			ports:    []string{"/dev/ttyUSB0", "/dev/ttyS0", "/dev/ttyACM0", "/dev/null"},
			expected: []string{"/dev/ttyUSB0", "/dev/ttyACM0"},
		},
		{
			name:     "macOS USB ports",
			ports:    []string{"/dev/tty.usbmodem123", "/dev/tty.Bluetooth", "/dev/cu.usbserial-AB"},
			expected: []string{"/dev/tty.usbmodem123", "/dev/cu.usbserial-AB"},
		},
		{
			name:     "Windows COM ports",
			ports:    []string{"COM3", "COM10", "LPT1", "PRN"},
			expected: []string{"COM3", "COM10"},
		},
		{
			name:     "No matching ports",
			ports:    []string{"/dev/null", "/dev/zero"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filterCandidatePorts(tt.ports))
		})
	}
}

func TestExtractPortSuffix(t *testing.T) {
	assert.Equal(t, "ttyUSB0", extractPortSuffix("/dev/ttyUSB0"))
	assert.Equal(t, "usbmodem123", extractPortSuffix("/dev/tty.usbmodem123"))
	assert.Equal(t, "usbserial-AB", extractPortSuffix("/dev/cu.usbserial-AB"))
	assert.Equal(t, "COM3", extractPortSuffix("COM3"))
}

func testDiscovery(t *testing.T, answering ...string) *handDiscovery {
	cfg := &HandDiscoveryConfig{}
	_, _, err := cfg.Validate("services.0")
	require.NoError(t, err)

	dis := &handDiscovery{probeID: cfg.ProbeServoID, baudrate: cfg.Baudrate, logger: logging.NewTestLogger(t)}
	dis.ping = func(port string) bool {
		for _, p := range answering {
			if p == port {
				return true
			}
		}
		return false
	}
	return dis
}

func TestDiscoveryConfigDefaults(t *testing.T) {
	dis := testDiscovery(t)
	assert.Equal(t, 12, dis.probeID)
	assert.Equal(t, 1000000, dis.baudrate)
}

func TestDiscoverPortsProposesPinchService(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIAM_MODULE_DATA", dir)
	dis := testDiscovery(t, "/dev/ttyACM0")

	configs, err := dis.discoverPorts(context.Background(), []string{"/dev/ttyUSB0", "/dev/ttyACM0"})
	require.NoError(t, err)
	require.Len(t, configs, 1)

	conf := configs[0]
	assert.Equal(t, "pinch-ttyACM0", conf.Name)
	assert.Equal(t, genericservice.API, conf.API)
	assert.Equal(t, PinchModel, conf.Model)
	assert.Equal(t, "/dev/ttyACM0", conf.Attributes["port"])
	assert.Equal(t, 1000000, conf.Attributes["baudrate"])
	assert.Equal(t, "ttyACM0_calibration.json", conf.Attributes["calibration_file"])

	// a full-range calibration is written for the operator to edit
	cal, err := LoadHandCalibration(filepath.Join(dir, "ttyACM0_calibration.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultServoIDs(), cal.IDs())
	assert.Equal(t, defaultJointCalibration(12), cal["servo_12"])
}

func TestDiscoverPortsOmitsUnwritableCalibration(t *testing.T) {
	t.Setenv("VIAM_MODULE_DATA", filepath.Join(t.TempDir(), "missing"))
	dis := testDiscovery(t, "/dev/ttyUSB0")

	configs, err := dis.discoverPorts(context.Background(), []string{"/dev/ttyUSB0"})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.NotContains(t, configs[0].Attributes, "calibration_file")
}

func TestDiscoverPortsFindsCalibration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIAM_MODULE_DATA", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hand_calibration.json"), []byte("{}"), 0o644))
	dis := testDiscovery(t, "/dev/ttyUSB0", "/dev/ttyUSB1")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttyUSB1_calibration.json"), []byte("{}"), 0o644))
	configs, err := dis.discoverPorts(context.Background(), []string{"/dev/ttyUSB0", "/dev/ttyUSB1"})
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "hand_calibration.json", configs[0].Attributes["calibration_file"])
	assert.Equal(t, "ttyUSB1_calibration.json", configs[1].Attributes["calibration_file"])
}

func TestDiscoverPortsCancelled(t *testing.T) {
	dis := testDiscovery(t, "/dev/ttyUSB0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	configs, err := dis.discoverPorts(ctx, []string{"/dev/ttyUSB0"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, configs)
}

func TestProposedConfigValidates(t *testing.T) {
	t.Setenv("VIAM_MODULE_DATA", t.TempDir())
	dis := testDiscovery(t)
	attrs := dis.proposeConfig("/dev/ttyUSB0").Attributes

	home := attrs["home"].(map[string]interface{})
	cfg := &Config{
		Port:     attrs["port"].(string),
		Baudrate: attrs["baudrate"].(int),
		Home:     &HomeConfig{Hand: home["hand"].([]float64)},
	}
	_, _, err := cfg.Validate("services.0")
	assert.NoError(t, err)
}
