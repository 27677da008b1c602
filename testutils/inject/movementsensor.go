package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/spatialmath"
)

// MovementSensor is an injected MovementSensor.
type MovementSensor struct {
	movementsensor.MovementSensor
	LinearAccelerationFunc func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error)
	AngularVelocityFunc    func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error)
	MagneticFieldFunc      func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error)
	PropertiesFunc         func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error)
	CloseFunc              func(ctx context.Context) error
}

// NewMovementSensor returns a new injected movement sensor.
func NewMovementSensor() *MovementSensor {
	return &MovementSensor{}
}

// LinearAcceleration func or passthrough.
func (i *MovementSensor) LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	if i.LinearAccelerationFunc == nil {
		return i.MovementSensor.LinearAcceleration(ctx, extra)
	}
	return i.LinearAccelerationFunc(ctx, extra)
}

// AngularVelocity func or passthrough.
func (i *MovementSensor) AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
	if i.AngularVelocityFunc == nil {
		return i.MovementSensor.AngularVelocity(ctx, extra)
	}
	return i.AngularVelocityFunc(ctx, extra)
}

// MagneticField func or passthrough.
func (i *MovementSensor) MagneticField(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	if i.MagneticFieldFunc == nil {
		return i.MovementSensor.MagneticField(ctx, extra)
	}
	return i.MagneticFieldFunc(ctx, extra)
}

// Properties func or passthrough.
func (i *MovementSensor) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	if i.PropertiesFunc == nil {
		return i.MovementSensor.Properties(ctx, extra)
	}
	return i.PropertiesFunc(ctx, extra)
}

// Close calls the injected Close or the real version.
func (i *MovementSensor) Close(ctx context.Context) error {
	if i.CloseFunc == nil {
		if i.MovementSensor == nil {
			return nil
		}
		return i.MovementSensor.Close(ctx)
	}
	return i.CloseFunc(ctx)
}
