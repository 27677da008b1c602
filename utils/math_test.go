package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.)
	for _, deg := range []float64{-720.5, -90, 0, 13.37, 359.999, 1e6} {
		test.That(t, RadToDeg(DegToRad(deg)), test.ShouldAlmostEqual, deg, 1e-9)
	}
}

func TestModAng(t *testing.T) {
	test.That(t, ModAngDeg(-90), test.ShouldAlmostEqual, 270.)
	test.That(t, ModAngDeg(720), test.ShouldAlmostEqual, 0.)
	test.That(t, ModAngDeg(45), test.ShouldAlmostEqual, 45.)
	test.That(t, ModAngRad(-math.Pi/2), test.ShouldAlmostEqual, 3*math.Pi/2)
	test.That(t, ModAngRad(5*math.Pi), test.ShouldAlmostEqual, math.Pi)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1), test.ShouldBeTrue)
	test.That(t, IsFinite(math.NaN()), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, Float64AlmostEqual(1, 1.0001, 1e-3), test.ShouldBeTrue)
	test.That(t, Float64AlmostEqual(1, 1.01, 1e-3), test.ShouldBeFalse)
}
