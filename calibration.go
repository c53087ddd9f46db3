package fingerforce

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.viam.com/rdk/logging"
)

// STS3215 resolution in ticks per revolution.
const servoResolution = 4096

// JointCalibration maps one servo's raw ticks to degrees around the middle of its range.
type JointCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// HandCalibration holds per-servo calibration keyed by a joint name.
type HandCalibration map[string]JointCalibration

// servos on a hand bus when the config lists none
const defaultServoCount = 16

func defaultServoIDs() []int {
	ids := make([]int, defaultServoCount)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func defaultJointCalibration(id int) JointCalibration {
	return JointCalibration{ID: id, RangeMin: 0, RangeMax: servoResolution - 1}
}

func (c JointCalibration) center() float64 {
	return float64(c.RangeMin+c.RangeMax) / 2.0
}

// Degrees converts a raw position to degrees.
func (c JointCalibration) Degrees(raw int) float64 {
	deg := (float64(raw) - c.center()) * 360 / servoResolution
	if c.DriveMode != 0 {
		deg = -deg
	}
	return deg
}

// Raw converts degrees to a raw position clamped to the calibrated range.
func (c JointCalibration) Raw(deg float64) int {
	if c.DriveMode != 0 {
		deg = -deg
	}
	raw := int(math.Round(deg*servoResolution/360 + c.center()))
	if raw < c.RangeMin {
		raw = c.RangeMin
	}
	if raw > c.RangeMax {
		raw = c.RangeMax
	}
	return raw
}

// Validate checks the calibration parameters.
func (c JointCalibration) Validate() error {
	if c.ID < 0 || c.ID > 253 {
		return fmt.Errorf("invalid servo ID: %d", c.ID)
	}
	if c.RangeMin >= c.RangeMax {
		return fmt.Errorf("invalid range: min (%d) must be less than max (%d)", c.RangeMin, c.RangeMax)
	}
	if c.RangeMin < 0 || c.RangeMax > servoResolution-1 {
		return fmt.Errorf("range values must be between 0-%d, got min=%d max=%d", servoResolution-1, c.RangeMin, c.RangeMax)
	}
	return nil
}

// ByID returns the calibration for a servo ID.
func (h HandCalibration) ByID(id int) (JointCalibration, bool) {
	for _, c := range h {
		if c.ID == id {
			return c, true
		}
	}
	return JointCalibration{}, false
}

// ForServos returns one calibration per servo ID, falling back to the full range
// for servos the file does not mention.
func (h HandCalibration) ForServos(ids []int) []JointCalibration {
	out := make([]JointCalibration, len(ids))
	for i, id := range ids {
		if c, ok := h.ByID(id); ok {
			out[i] = c
			continue
		}
		out[i] = defaultJointCalibration(id)
	}
	return out
}

// IDs returns the servo IDs in ascending order.
func (h HandCalibration) IDs() []int {
	ids := make([]int, 0, len(h))
	for _, c := range h {
		ids = append(ids, c.ID)
	}
	sort.Ints(ids)
	return ids
}

// defaultHandCalibration maps every servo over its full range, keyed servo_<id>.
func defaultHandCalibration(ids []int) HandCalibration {
	cal := make(HandCalibration, len(ids))
	for _, id := range ids {
		cal[fmt.Sprintf("servo_%d", id)] = defaultJointCalibration(id)
	}
	return cal
}

// Unused returns the calibrated servo IDs missing from ids.
func (h HandCalibration) Unused(ids []int) []int {
	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	var unused []int
	for _, id := range h.IDs() {
		if !present[id] {
			unused = append(unused, id)
		}
	}
	return unused
}

// resolveDataPath makes relative paths relative to VIAM_MODULE_DATA.
func resolveDataPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	return filepath.Join(moduleDataDir, path)
}

// LoadHandCalibration reads a calibration file and validates every entry.
func LoadHandCalibration(path string) (HandCalibration, error) {
	data, err := os.ReadFile(resolveDataPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var cal HandCalibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	for name, c := range cal {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("calibration for %s: %w", name, err)
		}
	}
	return cal, nil
}

// SaveHandCalibration writes a calibration file.
func SaveHandCalibration(path string, cal HandCalibration) error {
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}
	if err := os.WriteFile(resolveDataPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}

// loadCalibrationOrDefault returns the file's calibration, or an empty one that
// maps every servo over its full range.
func loadCalibrationOrDefault(path string, logger logging.Logger) HandCalibration {
	if path == "" {
		logger.Debug("No calibration file specified, using full servo range")
		return HandCalibration{}
	}
	cal, err := LoadHandCalibration(path)
	if err != nil {
		logger.Warnf("Failed to load calibration from %s: %v, using full servo range", path, err)
		return HandCalibration{}
	}
	logger.Infof("Loaded calibration for %d servos from %s", len(cal), path)
	return cal
}
