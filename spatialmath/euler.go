package spatialmath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/macro-rover/navigator/utils"
)

// EulerAngles is an orientation relative to the global frame, composed as yaw about Z, then pitch
// about Y, then roll about X (intrinsic ZYX). The unit is carried by whatever produced the angles.
type EulerAngles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// NewEulerAngles creates the zero orientation.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// Add returns the componentwise sum.
func (ea EulerAngles) Add(other EulerAngles) EulerAngles {
	return EulerAngles{Yaw: ea.Yaw + other.Yaw, Pitch: ea.Pitch + other.Pitch, Roll: ea.Roll + other.Roll}
}

// ToRadians re-expresses angles given in unit as radians.
func (ea EulerAngles) ToRadians(unit AngularUnit) EulerAngles {
	return EulerAngles{Yaw: unit.ToRadians(ea.Yaw), Pitch: unit.ToRadians(ea.Pitch), Roll: unit.ToRadians(ea.Roll)}
}

// Convert re-expresses angles given in from as to.
func (ea EulerAngles) Convert(from, to AngularUnit) EulerAngles {
	return EulerAngles{Yaw: from.Convert(ea.Yaw, to), Pitch: from.Convert(ea.Pitch, to), Roll: from.Convert(ea.Roll, to)}
}

// IsFinite is false if any angle is NaN or infinite.
func (ea EulerAngles) IsFinite() bool {
	for _, v := range []float64{ea.Yaw, ea.Pitch, ea.Roll} {
		if !utils.IsFinite(v) {
			return false
		}
	}
	return true
}

// Quaternion returns the unit quaternion of the same rotation. Angles are interpreted in unit.
func (ea EulerAngles) Quaternion(unit AngularUnit) quat.Number {
	rad := ea.ToRadians(unit)
	cy, sy := math.Cos(rad.Yaw*0.5), math.Sin(rad.Yaw*0.5)
	cp, sp := math.Cos(rad.Pitch*0.5), math.Sin(rad.Pitch*0.5)
	cr, sr := math.Cos(rad.Roll*0.5), math.Sin(rad.Roll*0.5)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

func (ea EulerAngles) String() string {
	return fmt.Sprintf("yaw=%.4f pitch=%.4f roll=%.4f", ea.Yaw, ea.Pitch, ea.Roll)
}

// QuaternionToRotationMatrix converts a unit quaternion to the equivalent rotation matrix.
func QuaternionToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{[9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}
