package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// RotationEngine builds elementary and combined rotations for angles in a fixed unit. It holds no
// mutable state and is safe for concurrent use.
//
// All rotations are active and right-handed: RotationAboutZ(90°) takes (1, 0, 0) to (0, 1, 0).
// The non-inverted combined rotation maps body frame vectors into the global frame.
type RotationEngine struct {
	unit AngularUnit
}

// NewRotationEngine returns an engine interpreting angles in unit. An unknown unit fails with an
// error wrapping ErrUnknownAngularUnit; callers detect it with errors.Is. The navigation service
// wraps it again as a configuration error without hiding it.
func NewRotationEngine(unit AngularUnit) (*RotationEngine, error) {
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	return &RotationEngine{unit: unit}, nil
}

// NewRotationEngineFromString parses unit with ParseAngularUnit. Failures wrap
// ErrUnknownAngularUnit too.
func NewRotationEngineFromString(unit string) (*RotationEngine, error) {
	u, err := ParseAngularUnit(unit)
	if err != nil {
		return nil, err
	}
	return NewRotationEngine(u)
}

// Unit is the angular unit the engine was built with.
func (re *RotationEngine) Unit() AngularUnit {
	return re.unit
}

func (re *RotationEngine) sinCos(angle float64, invert bool) (float64, float64) {
	rad := re.unit.ToRadians(angle)
	if invert {
		rad = -rad
	}
	return math.Sin(rad), math.Cos(rad)
}

// RotationAboutZ is the yaw rotation. invert returns its transpose.
func (re *RotationEngine) RotationAboutZ(angle float64, invert bool) *RotationMatrix {
	s, c := re.sinCos(angle, invert)
	return &RotationMatrix{[9]float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}}
}

// RotationAboutY is the pitch rotation. invert returns its transpose.
func (re *RotationEngine) RotationAboutY(angle float64, invert bool) *RotationMatrix {
	s, c := re.sinCos(angle, invert)
	return &RotationMatrix{[9]float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}}
}

// RotationAboutX is the roll rotation. invert returns its transpose.
func (re *RotationEngine) RotationAboutX(angle float64, invert bool) *RotationMatrix {
	s, c := re.sinCos(angle, invert)
	return &RotationMatrix{[9]float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}}
}

// CombinedRotation returns Rz(yaw)·Ry(pitch)·Rx(roll). With invert set it returns the transpose
// of that product, the global to body rotation.
func (re *RotationEngine) CombinedRotation(ea EulerAngles, invert bool) *RotationMatrix {
	rm := re.RotationAboutZ(ea.Yaw, false).
		MatMul(re.RotationAboutY(ea.Pitch, false)).
		MatMul(re.RotationAboutX(ea.Roll, false))
	if invert {
		return rm.Transpose()
	}
	return rm
}

// RotateVector applies CombinedRotation(ea, invert) to v.
func (re *RotationEngine) RotateVector(v r3.Vector, ea EulerAngles, invert bool) r3.Vector {
	return re.CombinedRotation(ea, invert).Mul(v)
}

// TranslateVector returns v shifted by translation.
func (re *RotationEngine) TranslateVector(v, translation r3.Vector) r3.Vector {
	return v.Add(translation)
}
