// Package fake is a fake MovementSensor for testing and for running the navigator without
// hardware. By default it reports a level IMU at rest.
package fake

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/utils"
)

// Model is the registered model name.
const Model = "fake"

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Config is used for converting fake movementsensor attributes.
type Config struct {
	LinearAcceleration  *r3.Vector `json:"linear_acceleration,omitempty"`
	AngularVelocity     *r3.Vector `json:"angular_velocity,omitempty"`
	MagneticField       *r3.Vector `json:"magnetic_field,omitempty"`
	AngularVelocityUnit string     `json:"angular_velocity_unit,omitempty"`
	Gravity             float64    `json:"gravity,omitempty"`
}

func init() {
	movementsensor.RegisterModel(Model, func(
		ctx context.Context,
		attributes map[string]interface{},
		logger logging.Logger,
	) (movementsensor.MovementSensor, error) {
		var cfg Config
		if err := utils.DecodeAttributes(attributes, &cfg); err != nil {
			return nil, err
		}
		return NewMovementSensorFromConfig(cfg, logger)
	})
}

// MovementSensor is a fake IMU whose readings can be changed while it is being read.
type MovementSensor struct {
	Logger logging.Logger

	mu                 sync.Mutex
	linearAcceleration r3.Vector
	angularVelocity    spatialmath.AngularVelocity
	magneticField      r3.Vector
	unit               spatialmath.AngularUnit
}

// NewMovementSensor returns a level, stationary fake: it measures +gravity on its z axis, zero
// angular velocity in degrees per second and a northward magnetic field.
func NewMovementSensor(gravity float64) *MovementSensor {
	if gravity == 0 {
		gravity = StandardGravity
	}
	return &MovementSensor{
		Logger:             logging.NewBlankLogger(Model),
		linearAcceleration: r3.Vector{Z: gravity},
		magneticField:      r3.Vector{X: 20},
		unit:               spatialmath.Degrees,
	}
}

// NewMovementSensorFromConfig builds a fake with any readings the config overrides.
func NewMovementSensorFromConfig(cfg Config, logger logging.Logger) (*MovementSensor, error) {
	f := NewMovementSensor(cfg.Gravity)
	f.Logger = logger
	if cfg.AngularVelocityUnit != "" {
		unit, err := spatialmath.ParseAngularUnit(cfg.AngularVelocityUnit)
		if err != nil {
			return nil, err
		}
		f.unit = unit
	}
	if cfg.LinearAcceleration != nil {
		f.linearAcceleration = *cfg.LinearAcceleration
	}
	if cfg.AngularVelocity != nil {
		f.angularVelocity = spatialmath.AngularVelocity(*cfg.AngularVelocity)
	}
	if cfg.MagneticField != nil {
		f.magneticField = *cfg.MagneticField
	}
	logger.Debugw("fake movement sensor created",
		"linear_acceleration", f.linearAcceleration, "angular_velocity", f.angularVelocity, "unit", f.unit)
	return f, nil
}

// SetLinearAcceleration changes what LinearAcceleration returns.
func (f *MovementSensor) SetLinearAcceleration(v r3.Vector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linearAcceleration = v
}

// SetAngularVelocity changes what AngularVelocity returns.
func (f *MovementSensor) SetAngularVelocity(av spatialmath.AngularVelocity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.angularVelocity = av
}

// LinearAcceleration returns the configured specific force.
func (f *MovementSensor) LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linearAcceleration, nil
}

// AngularVelocity returns the configured rate.
func (f *MovementSensor) AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.angularVelocity, nil
}

// MagneticField returns the configured field.
func (f *MovementSensor) MagneticField(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.magneticField, nil
}

// Properties reports every reading as supported.
func (f *MovementSensor) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &movementsensor.Properties{
		LinearAccelerationSupported: true,
		AngularVelocitySupported:    true,
		MagneticFieldSupported:      true,
		AngularVelocityUnit:         f.unit,
	}, nil
}

// Close does nothing.
func (f *MovementSensor) Close(ctx context.Context) error {
	return nil
}
