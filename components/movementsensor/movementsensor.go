// Package movementsensor defines the interface of an inertial MovementSensor and the registry of
// models that can be built from configuration.
package movementsensor

import (
	"context"
	"errors"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/spatialmath"
)

// Properties tells you what a MovementSensor supports.
type Properties struct {
	LinearAccelerationSupported bool
	AngularVelocitySupported    bool
	MagneticFieldSupported      bool
	// AngularVelocityUnit is the per-second unit of AngularVelocity readings.
	AngularVelocityUnit spatialmath.AngularUnit
}

// A MovementSensor reports body frame readings from an inertial measurement unit. Readings are
// never encoded as sentinel values; a failed read returns an error.
type MovementSensor interface {
	// LinearAcceleration is the raw specific force in m/s², including gravity.
	LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error)
	// AngularVelocity is in Properties().AngularVelocityUnit per second.
	AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error)
	// MagneticField is in microtesla.
	MagneticField(ctx context.Context, extra map[string]interface{}) (r3.Vector, error)
	Properties(ctx context.Context, extra map[string]interface{}) (*Properties, error)
	Close(ctx context.Context) error
}

var (
	// ErrMethodUnimplementedAngularVelocity returns error if the AngularVelocity method is unimplemented.
	ErrMethodUnimplementedAngularVelocity = errors.New("AngularVelocity Unimplemented")
	// ErrMethodUnimplementedLinearAcceleration returns error if Linear Acceleration is unimplemented.
	ErrMethodUnimplementedLinearAcceleration = errors.New("linear acceleration unimplemented")
	// ErrMethodUnimplementedMagneticField returns error if the MagneticField method is unimplemented.
	ErrMethodUnimplementedMagneticField = errors.New("MagneticField Unimplemented")
	// ErrMethodUnimplementedProperties returns error if the Properties method is unimplemented.
	ErrMethodUnimplementedProperties = errors.New("Properties Unimplemented")
)

// DefaultAngularVelocityUnit is assumed for drivers that do not say otherwise.
const DefaultAngularVelocityUnit = spatialmath.Degrees

// AngularVelocityUnit returns the unit ms reports angular velocity in, falling back to
// DefaultAngularVelocityUnit when the sensor leaves it unset.
func AngularVelocityUnit(ctx context.Context, ms MovementSensor) (spatialmath.AngularUnit, error) {
	props, err := ms.Properties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if props == nil || props.AngularVelocityUnit == 0 {
		return DefaultAngularVelocityUnit, nil
	}
	if err := props.AngularVelocityUnit.Validate(); err != nil {
		return 0, err
	}
	return props.AngularVelocityUnit, nil
}

// Readings is a helper for getting all readings from a MovementSensor. Methods the sensor does not
// implement are left out.
func Readings(ctx context.Context, ms MovementSensor, extra map[string]interface{}) (map[string]interface{}, error) {
	readings := map[string]interface{}{}

	la, err := ms.LinearAcceleration(ctx, extra)
	if err != nil {
		if !errors.Is(err, ErrMethodUnimplementedLinearAcceleration) {
			return nil, err
		}
	} else {
		readings["linear_acceleration"] = la
	}

	avel, err := ms.AngularVelocity(ctx, extra)
	if err != nil {
		if !errors.Is(err, ErrMethodUnimplementedAngularVelocity) {
			return nil, err
		}
	} else {
		readings["angular_velocity"] = avel
	}

	mag, err := ms.MagneticField(ctx, extra)
	if err != nil {
		if !errors.Is(err, ErrMethodUnimplementedMagneticField) {
			return nil, err
		}
	} else {
		readings["magnetic_field"] = mag
	}

	return readings, nil
}
