package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/utils"
)

// AngularVelocity is a body frame rotation rate. X is the roll rate, Y the pitch rate and Z the yaw
// rate. The unit (per second) is declared by whatever produced it.
type AngularVelocity r3.Vector

// Vector returns the rate as a plain vector.
func (av AngularVelocity) Vector() r3.Vector {
	return r3.Vector(av)
}

// Convert re-expresses the rate given in from as to.
func (av AngularVelocity) Convert(from, to AngularUnit) AngularVelocity {
	return AngularVelocity{X: from.Convert(av.X, to), Y: from.Convert(av.Y, to), Z: from.Convert(av.Z, to)}
}

// IsFinite is false if any component is NaN or infinite.
func (av AngularVelocity) IsFinite() bool {
	return vectorIsFinite(r3.Vector(av))
}

func (av AngularVelocity) String() string {
	return fmt.Sprintf("x=%.4f y=%.4f z=%.4f", av.X, av.Y, av.Z)
}

// VectorIsFinite is false if any component of v is NaN or infinite.
func VectorIsFinite(v r3.Vector) bool {
	return vectorIsFinite(v)
}

func vectorIsFinite(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if !utils.IsFinite(c) {
			return false
		}
	}
	return true
}
