package navigation

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/testutils/inject"
)

// newStationarySensor reports a level IMU at rest with rates in degrees per second.
func newStationarySensor() *inject.MovementSensor {
	ms := inject.NewMovementSensor()
	ms.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{
			LinearAccelerationSupported: true,
			AngularVelocitySupported:    true,
			AngularVelocityUnit:         spatialmath.Degrees,
		}, nil
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{}, nil
	}
	ms.LinearAccelerationFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{Z: StandardGravity}, nil
	}
	return ms
}

func newTestEstimator(t *testing.T, unit spatialmath.AngularUnit, ms movementsensor.MovementSensor) *PoseEstimator {
	t.Helper()
	pe, err := NewPoseEstimator(context.Background(), EstimatorConfig{AngularUnit: unit, Sensor: ms}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return pe
}

func assertVector(t *testing.T, got, expected r3.Vector, tol float64) {
	t.Helper()
	test.That(t, got.X, test.ShouldAlmostEqual, expected.X, tol)
	test.That(t, got.Y, test.ShouldAlmostEqual, expected.Y, tol)
	test.That(t, got.Z, test.ShouldAlmostEqual, expected.Z, tol)
}
