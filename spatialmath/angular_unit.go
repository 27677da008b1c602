package spatialmath

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/macro-rover/navigator/utils"
)

// AngularUnit selects how every angle-bearing input and output of a component is interpreted. It is
// fixed when the component is constructed.
type AngularUnit int

const (
	// Degrees interprets angles as degrees and angular rates as degrees per second.
	Degrees AngularUnit = iota + 1
	// Radians interprets angles as radians and angular rates as radians per second.
	Radians
)

// ErrUnknownAngularUnit is wrapped by every error this package returns for a unit that is neither
// Degrees nor Radians. Match it with errors.Is.
var ErrUnknownAngularUnit = errors.New("unknown angular unit")

// ParseAngularUnit accepts "degrees"/"deg" and "radians"/"rad", case-insensitively.
func ParseAngularUnit(s string) (AngularUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "degrees", "degree", "deg":
		return Degrees, nil
	case "radians", "radian", "rad":
		return Radians, nil
	}
	return 0, errors.Wrapf(ErrUnknownAngularUnit, "%q", s)
}

// Validate returns ErrUnknownAngularUnit for anything but Degrees or Radians.
func (u AngularUnit) Validate() error {
	switch u {
	case Degrees, Radians:
		return nil
	}
	return errors.Wrapf(ErrUnknownAngularUnit, "%d", int(u))
}

func (u AngularUnit) String() string {
	switch u {
	case Degrees:
		return "degrees"
	case Radians:
		return "radians"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (u AngularUnit) MarshalText() ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *AngularUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseAngularUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ToRadians converts an angle expressed in u to radians.
func (u AngularUnit) ToRadians(angle float64) float64 {
	if u == Degrees {
		return utils.DegToRad(angle)
	}
	return angle
}

// FromRadians converts an angle in radians to u.
func (u AngularUnit) FromRadians(angle float64) float64 {
	if u == Degrees {
		return utils.RadToDeg(angle)
	}
	return angle
}

// Convert re-expresses an angle (or rate) given in u in the target unit.
func (u AngularUnit) Convert(angle float64, to AngularUnit) float64 {
	if u == to {
		return angle
	}
	return to.FromRadians(u.ToRadians(angle))
}

// FullTurn is one revolution in u.
func (u AngularUnit) FullTurn() float64 {
	if u == Degrees {
		return 360
	}
	return 2 * math.Pi
}
