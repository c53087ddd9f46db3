package fingerforce

import (
	"fmt"
	"time"
)

// Config is the attribute set of the pinch service. The CLI reads the same keys from YAML.
type Config struct {
	// Hand exposed as an arm component
	Arm string `json:"arm,omitempty" yaml:"arm,omitempty"`

	// Hand driven directly on a feetech bus
	Port            string `json:"port,omitempty" yaml:"port,omitempty"`
	Baudrate        int    `json:"baudrate,omitempty" yaml:"baudrate,omitempty"`
	ServoIDs        []int  `json:"servo_ids,omitempty" yaml:"servo_ids,omitempty"`
	CalibrationFile string `json:"calibration_file,omitempty" yaml:"calibration_file,omitempty"`
	TimeoutMs       int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Speed           int    `json:"speed,omitempty" yaml:"speed,omitempty"` // Servo speed (0 = servo default)

	Robot    string `json:"robot,omitempty" yaml:"robot,omitempty"`
	WhichArm string `json:"which_arm,omitempty" yaml:"which_arm,omitempty"`

	Finger     *FingerConfig     `json:"finger,omitempty" yaml:"finger,omitempty"`
	Thumb      *ThumbConfig      `json:"thumb,omitempty" yaml:"thumb,omitempty"`
	Experiment *ExperimentConfig `json:"experiment,omitempty" yaml:"experiment,omitempty"`
	Home       *HomeConfig       `json:"home,omitempty" yaml:"home,omitempty"`
	Motion     *MotionConfig     `json:"motion,omitempty" yaml:"motion,omitempty"`

	DataDumper string       `json:"data_dumper,omitempty" yaml:"data_dumper,omitempty"`
	Streams    []StreamPair `json:"streams,omitempty" yaml:"streams,omitempty"`

	Gaze *GazeConfig `json:"gaze,omitempty" yaml:"gaze,omitempty"`

	SkipInitialPose bool `json:"skip_initial_pose,omitempty" yaml:"skip_initial_pose,omitempty"`
}

type FingerConfig struct {
	Joint    *int     `json:"joint,omitempty" yaml:"joint,omitempty"`
	StartPos float64  `json:"start_pos" yaml:"start_pos"`
	PinchPos *float64 `json:"pinch_pos,omitempty" yaml:"pinch_pos,omitempty"`
}

type ThumbConfig struct {
	Joint *int `json:"joint,omitempty" yaml:"joint,omitempty"`
}

type ExperimentConfig struct {
	NPinches         int      `json:"n_pinches,omitempty" yaml:"n_pinches,omitempty"`
	PinchIncrement   *float64 `json:"pinch_increment,omitempty" yaml:"pinch_increment,omitempty"`
	PinchDurationSec *float64 `json:"pinch_duration_sec,omitempty" yaml:"pinch_duration_sec,omitempty"`
	PinchDelaySec    *float64 `json:"pinch_delay_sec,omitempty" yaml:"pinch_delay_sec,omitempty"`
	ProgressiveDepth bool     `json:"progressive_depth,omitempty" yaml:"progressive_depth,omitempty"`
	UseThumb         bool     `json:"use_thumb,omitempty" yaml:"use_thumb,omitempty"`
}

type HomeConfig struct {
	Arm        []float64 `json:"arm,omitempty" yaml:"arm,omitempty"`
	Hand       []float64 `json:"hand" yaml:"hand"`
	HandOffset *int      `json:"hand_offset,omitempty" yaml:"hand_offset,omitempty"`
}

type MotionConfig struct {
	TimeoutSec      float64 `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	PollIntervalSec float64 `json:"poll_interval_sec,omitempty" yaml:"poll_interval_sec,omitempty"`
}

type GazeConfig struct {
	Head          string       `json:"head" yaml:"head"`
	FixationPoint *PointConfig `json:"fixation_point,omitempty" yaml:"fixation_point,omitempty"`
	PeriodMs      int          `json:"period_ms,omitempty" yaml:"period_ms,omitempty"`
}

type PointConfig struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

const (
	defaultFingerJoint   = 11
	defaultFingerPinch   = 20.0
	defaultThumbJoint    = 9
	defaultNPinches      = 10
	defaultIncrement     = 1.0
	defaultPinchDuration = 5.0
	defaultPinchDelay    = 5.0
	defaultHandOffset    = 7
	defaultGazePeriodMs  = 1000
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// Validate fills defaults and returns the arm, data dumper and gaze head as dependencies.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var deps []string
	if cfg.Arm != "" {
		deps = append(deps, cfg.Arm)
	}
	if cfg.DataDumper != "" {
		deps = append(deps, cfg.DataDumper)
	}
	if cfg.Gaze != nil {
		deps = append(deps, cfg.Gaze.Head)
	}
	return deps, nil, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Arm == "" && cfg.Port == "" {
		return fmt.Errorf("must specify either arm or port")
	}
	if cfg.Arm != "" && cfg.Port != "" {
		return fmt.Errorf("arm and port are mutually exclusive")
	}
	if cfg.Port != "" {
		if cfg.Baudrate == 0 {
			cfg.Baudrate = 1000000
		}
		if len(cfg.ServoIDs) == 0 {
			cfg.ServoIDs = defaultServoIDs()
		}
		if cfg.Speed < 0 || cfg.Speed > 4094 {
			return fmt.Errorf("speed must be between 0 and 4094, got %d", cfg.Speed)
		}
	}

	if cfg.Robot == "" {
		cfg.Robot = "icub"
	}
	if cfg.WhichArm == "" {
		cfg.WhichArm = "right"
	}

	if cfg.Finger == nil {
		cfg.Finger = &FingerConfig{}
	}
	if cfg.Finger.Joint == nil {
		cfg.Finger.Joint = intPtr(defaultFingerJoint)
	}
	if cfg.Finger.PinchPos == nil {
		cfg.Finger.PinchPos = floatPtr(defaultFingerPinch)
	}
	if *cfg.Finger.Joint < 0 {
		return fmt.Errorf("finger joint must be non-negative, got %d", *cfg.Finger.Joint)
	}

	if cfg.Thumb == nil {
		cfg.Thumb = &ThumbConfig{}
	}
	if cfg.Thumb.Joint == nil {
		cfg.Thumb.Joint = intPtr(defaultThumbJoint)
	}

	if cfg.Experiment == nil {
		cfg.Experiment = &ExperimentConfig{}
	}
	exp := cfg.Experiment
	if exp.NPinches == 0 {
		exp.NPinches = defaultNPinches
	}
	if exp.NPinches < 0 {
		return fmt.Errorf("n_pinches must be positive, got %d", exp.NPinches)
	}
	if exp.PinchIncrement == nil {
		exp.PinchIncrement = floatPtr(defaultIncrement)
	}
	if exp.PinchDurationSec == nil {
		exp.PinchDurationSec = floatPtr(defaultPinchDuration)
	}
	if exp.PinchDelaySec == nil {
		exp.PinchDelaySec = floatPtr(defaultPinchDelay)
	}
	if *exp.PinchDurationSec < 0 || *exp.PinchDelaySec < 0 {
		return fmt.Errorf("pinch_duration_sec and pinch_delay_sec must be non-negative")
	}

	if cfg.Home == nil {
		return fmt.Errorf("home pose is required")
	}
	if len(cfg.Home.Hand) == 0 {
		return fmt.Errorf("home pose must list the hand joints")
	}
	if cfg.Home.HandOffset == nil {
		cfg.Home.HandOffset = intPtr(defaultHandOffset)
	}
	if *cfg.Home.HandOffset < 0 {
		return fmt.Errorf("home hand_offset must be non-negative, got %d", *cfg.Home.HandOffset)
	}
	if exp.UseThumb {
		if _, ok := cfg.homePose().Value(*cfg.Thumb.Joint); !ok {
			return fmt.Errorf("home pose does not cover thumb joint %d", *cfg.Thumb.Joint)
		}
	}

	if cfg.Motion == nil {
		cfg.Motion = &MotionConfig{}
	}
	if cfg.Motion.TimeoutSec < 0 || cfg.Motion.PollIntervalSec < 0 {
		return fmt.Errorf("motion timeout and poll interval must be non-negative")
	}
	if cfg.Motion.TimeoutSec == 0 {
		cfg.Motion.TimeoutSec = defaultMotionTimeout.Seconds()
	}
	if cfg.Motion.PollIntervalSec == 0 {
		cfg.Motion.PollIntervalSec = defaultPollInterval.Seconds()
	}

	if cfg.DataDumper != "" && len(cfg.Streams) == 0 {
		cfg.Streams = defaultStreams(cfg.Robot, cfg.WhichArm)
	}

	if cfg.Gaze != nil {
		if cfg.Gaze.Head == "" {
			return fmt.Errorf("gaze requires a head component")
		}
		if cfg.Gaze.FixationPoint == nil {
			cfg.Gaze.FixationPoint = &PointConfig{X: 0.3}
		}
		if cfg.Gaze.PeriodMs == 0 {
			cfg.Gaze.PeriodMs = defaultGazePeriodMs
		}
		if cfg.Gaze.PeriodMs < 0 {
			return fmt.Errorf("gaze period_ms must be positive, got %d", cfg.Gaze.PeriodMs)
		}
	}
	return nil
}

func (cfg *Config) homePose() HomePose {
	return HomePose{Arm: cfg.Home.Arm, Hand: cfg.Home.Hand, HandOffset: *cfg.Home.HandOffset}
}

// engineConfig converts a validated config.
func (cfg *Config) engineConfig() EngineConfig {
	exp := cfg.Experiment
	return EngineConfig{
		Finger: PinchJointSpec{
			Joint:    *cfg.Finger.Joint,
			StartPos: cfg.Finger.StartPos,
			PinchPos: *cfg.Finger.PinchPos,
		},
		Params: ExperimentParameters{
			NPinches:         exp.NPinches,
			PinchIncrement:   *exp.PinchIncrement,
			PinchDuration:    *exp.PinchDurationSec,
			PinchDelay:       *exp.PinchDelaySec,
			ProgressiveDepth: exp.ProgressiveDepth,
			UseThumb:         exp.UseThumb,
		},
		ThumbJoint:      *cfg.Thumb.Joint,
		Home:            cfg.homePose(),
		MotionTimeout:   seconds(cfg.Motion.TimeoutSec),
		PollInterval:    seconds(cfg.Motion.PollIntervalSec),
		SkipInitialPose: cfg.SkipInitialPose,
	}
}

func (cfg *Config) feetechConfig() feetechGatewayConfig {
	return feetechGatewayConfig{
		Settings: busSettings{
			Port:     cfg.Port,
			Baudrate: cfg.Baudrate,
			Timeout:  time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		ServoIDs:        cfg.ServoIDs,
		CalibrationFile: cfg.CalibrationFile,
		Speed:           cfg.Speed,
	}
}
