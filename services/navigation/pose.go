package navigation

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/utils"
)

// Pose is a snapshot of the estimator state. Position is in meters, Velocity in m/s and
// Acceleration in m/s², all in the global frame; Acceleration has gravity removed.
type Pose struct {
	Position     r3.Vector               `json:"position"`
	Velocity     r3.Vector               `json:"velocity"`
	Acceleration r3.Vector               `json:"acceleration"`
	Orientation  spatialmath.EulerAngles `json:"orientation"`
}

// Heading is the yaw wrapped into [0, one full turn) in unit. Zero points along global +X.
func (p Pose) Heading(unit spatialmath.AngularUnit) float64 {
	if unit == spatialmath.Degrees {
		return utils.ModAngDeg(p.Orientation.Yaw)
	}
	return utils.ModAngRad(p.Orientation.Yaw)
}

// Grade is the tilt of the body z axis away from global vertical, in unit. Zero is level and a
// quarter turn is vertical.
func (p Pose) Grade(unit spatialmath.AngularUnit) float64 {
	pitch := unit.ToRadians(p.Orientation.Pitch)
	roll := unit.ToRadians(p.Orientation.Roll)
	// the (2, 2) element of Rz·Ry·Rx is the cosine of the tilt
	cosTilt := math.Max(-1, math.Min(1, math.Cos(pitch)*math.Cos(roll)))
	return unit.FromRadians(math.Acos(cosTilt))
}

// Speed is the magnitude of the velocity.
func (p Pose) Speed() float64 {
	return p.Velocity.Norm()
}

func (p Pose) isFinite() bool {
	return spatialmath.VectorIsFinite(p.Position) &&
		spatialmath.VectorIsFinite(p.Velocity) &&
		spatialmath.VectorIsFinite(p.Acceleration) &&
		p.Orientation.IsFinite()
}

// GradeColor maps a grade in degrees to a display color: white when level, red at 45° and black
// at 90° or steeper.
func GradeColor(gradeDegrees float64) string {
	grade := math.Max(0, math.Min(90, math.Abs(gradeDegrees)))
	if grade <= 45 {
		return gradeLevel.BlendRgb(gradeSteep, grade/45).Hex()
	}
	return gradeSteep.BlendRgb(gradeVertical, (grade-45)/45).Hex()
}

var (
	gradeLevel    = colorful.Color{R: 1, G: 1, B: 1}
	gradeSteep    = colorful.Color{R: 1}
	gradeVertical = colorful.Color{}
)

// LogEntry is a pose recorded by a session. Entries are never modified after they are appended.
type LogEntry struct {
	// Timestamp is the time since the session run started.
	Timestamp time.Duration `json:"timestamp"`
	Time      time.Time     `json:"time"`
	Tick      uint64        `json:"tick"`
	Pose      Pose          `json:"pose"`
}

// FaultEntry records a tick whose update was skipped.
type FaultEntry struct {
	Timestamp time.Duration
	Time      time.Time
	Tick      uint64
	Err       error
}
