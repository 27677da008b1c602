package navigation

import (
	"time"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/utils"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// EstimatorConfig is everything a PoseEstimator is built from.
type EstimatorConfig struct {
	AngularUnit        spatialmath.AngularUnit
	InitialPosition    r3.Vector
	InitialOrientation spatialmath.EulerAngles
	Sensor             movementsensor.MovementSensor
	// Gravity in m/s². Zero means StandardGravity.
	Gravity float64
	// SensorAngularUnit overrides the unit the sensor declares in its Properties.
	SensorAngularUnit *spatialmath.AngularUnit
}

func (cfg EstimatorConfig) gravity() (float64, error) {
	switch {
	case cfg.Gravity == 0:
		return StandardGravity, nil
	case !utils.IsFinite(cfg.Gravity) || cfg.Gravity < 0:
		return 0, NewConfigurationError("gravity", errNonFiniteConstant)
	}
	return cfg.Gravity, nil
}

// UpdateConfig controls RunContinuousUpdate.
type UpdateConfig struct {
	// UpdateInterval is the time between ticks. Zero means DefaultUpdateInterval.
	UpdateInterval time.Duration
	// LogState appends a LogEntry on every successful tick.
	LogState bool
	// PrintState writes ReportState to the session's report writer on every successful tick.
	PrintState bool
	// PublishState sends every successful tick's LogEntry to the session's publisher, if it has one.
	PublishState bool
}

// DefaultUpdateInterval is the tick period when none is configured.
const DefaultUpdateInterval = 100 * time.Millisecond

// DefaultUpdateConfig logs and publishes every 100ms without printing.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		UpdateInterval: DefaultUpdateInterval,
		LogState:       true,
		PrintState:     false,
		PublishState:   true,
	}
}

// Validate rejects negative intervals.
func (cfg UpdateConfig) Validate() error {
	if cfg.UpdateInterval < 0 {
		return NewConfigurationError("update_interval", errNegativeInterval)
	}
	return nil
}

func (cfg UpdateConfig) withDefaults() UpdateConfig {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	return cfg
}
