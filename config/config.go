// Package config reads the navigator's configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/services/navigation"
	"github.com/macro-rover/navigator/services/navigation/publish"
	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/utils"
)

const (
	defaultAngularUnit = "degrees"
	defaultSensorModel = "fake"
	defaultLogLevel    = "info"
	defaultWSPath      = "/ws"
)

// Config is the whole navigator configuration.
type Config struct {
	AngularUnit        string                  `json:"angular_unit,omitempty" yaml:"angular_unit,omitempty"`
	Gravity            float64                 `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	InitialPosition    r3.Vector               `json:"initial_position" yaml:"initial_position"`
	InitialOrientation spatialmath.EulerAngles `json:"initial_orientation" yaml:"initial_orientation"`
	Sensor             Sensor                  `json:"sensor" yaml:"sensor"`
	Update             Update                  `json:"update" yaml:"update"`
	Publish            publish.Config          `json:"publish" yaml:"publish"`
	LogLevel           string                  `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Sensor names the registered movement sensor model and its attributes.
type Sensor struct {
	Model string `json:"model" yaml:"model"`
	// AngularUnit overrides the unit the sensor reports its rates in.
	AngularUnit string                 `json:"angular_unit,omitempty" yaml:"angular_unit,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Update configures the continuous update loop. Unset flags default to true except PrintState.
type Update struct {
	Interval     time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	LogState     *bool         `json:"log_state,omitempty" yaml:"log_state,omitempty"`
	PrintState   bool          `json:"print_state,omitempty" yaml:"print_state,omitempty"`
	PublishState *bool         `json:"publish_state,omitempty" yaml:"publish_state,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if _, err := spatialmath.ParseAngularUnit(cfg.AngularUnit); err != nil {
		return goutils.NewConfigValidationError("angular_unit", err)
	}
	if !utils.IsFinite(cfg.Gravity) || cfg.Gravity < 0 {
		return goutils.NewConfigValidationError("gravity", errors.Errorf("must be a positive finite number, got %v", cfg.Gravity))
	}
	if !spatialmath.VectorIsFinite(cfg.InitialPosition) {
		return goutils.NewConfigValidationError("initial_position", errors.New("must be finite"))
	}
	if !cfg.InitialOrientation.IsFinite() {
		return goutils.NewConfigValidationError("initial_orientation", errors.New("must be finite"))
	}
	if err := cfg.Sensor.Validate("sensor"); err != nil {
		return err
	}
	if cfg.Update.Interval < 0 {
		return goutils.NewConfigValidationError("update.interval", errors.New("cannot be negative"))
	}
	if err := cfg.Publish.Validate("publish"); err != nil {
		return err
	}
	if _, err := logging.LevelFromString(cfg.LogLevel); err != nil {
		return goutils.NewConfigValidationError("log_level", err)
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (s *Sensor) Validate(path string) error {
	if s.Model == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "model")
	}
	if s.AngularUnit != "" {
		if _, err := spatialmath.ParseAngularUnit(s.AngularUnit); err != nil {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.angular_unit", path), err)
		}
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.AngularUnit == "" {
		cfg.AngularUnit = defaultAngularUnit
	}
	if cfg.Gravity == 0 {
		cfg.Gravity = navigation.StandardGravity
	}
	if cfg.Sensor.Model == "" {
		cfg.Sensor.Model = defaultSensorModel
	}
	if cfg.Update.Interval == 0 {
		cfg.Update.Interval = navigation.DefaultUpdateInterval
	}
	if cfg.Update.LogState == nil {
		cfg.Update.LogState = boolPtr(true)
	}
	if cfg.Update.PublishState == nil {
		cfg.Update.PublishState = boolPtr(true)
	}
	if cfg.Publish.Websocket != nil && cfg.Publish.Websocket.Path == "" {
		cfg.Publish.Websocket.Path = defaultWSPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// Unit is the parsed AngularUnit. Only valid after Validate.
func (cfg *Config) Unit() spatialmath.AngularUnit {
	unit, err := spatialmath.ParseAngularUnit(cfg.AngularUnit)
	if err != nil {
		return spatialmath.Degrees
	}
	return unit
}

// Level is the parsed LogLevel. Only valid after Validate.
func (cfg *Config) Level() logging.Level {
	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// EstimatorConfig builds the estimator settings around an already constructed sensor.
func (cfg *Config) EstimatorConfig(sensor movementsensor.MovementSensor) navigation.EstimatorConfig {
	out := navigation.EstimatorConfig{
		AngularUnit:        cfg.Unit(),
		InitialPosition:    cfg.InitialPosition,
		InitialOrientation: cfg.InitialOrientation,
		Sensor:             sensor,
		Gravity:            cfg.Gravity,
	}
	if cfg.Sensor.AngularUnit != "" {
		if unit, err := spatialmath.ParseAngularUnit(cfg.Sensor.AngularUnit); err == nil {
			out.SensorAngularUnit = &unit
		}
	}
	return out
}

// UpdateConfig converts the update section.
func (cfg *Config) UpdateConfig() navigation.UpdateConfig {
	return navigation.UpdateConfig{
		UpdateInterval: cfg.Update.Interval,
		LogState:       cfg.Update.LogState == nil || *cfg.Update.LogState,
		PrintState:     cfg.Update.PrintState,
		PublishState:   cfg.Update.PublishState == nil || *cfg.Update.PublishState,
	}
}
