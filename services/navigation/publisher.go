package navigation

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/macro-rover/navigator/spatialmath"
)

// A Publisher emits the payload of every successful tick as a session produces them. Publish
// errors are logged by the session and never stop it.
type Publisher interface {
	Publish(ctx context.Context, payload Payload) error
	Close() error
}

// Quaternion is the JSON form of a unit quaternion.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Payload is the wire form of a LogEntry shared by every publisher.
type Payload struct {
	Session      string                  `json:"session"`
	Tick         uint64                  `json:"tick"`
	T            float64                 `json:"t"`
	Time         string                  `json:"time"`
	Position     r3.Vector               `json:"position"`
	Velocity     r3.Vector               `json:"velocity"`
	Acceleration r3.Vector               `json:"acceleration"`
	Orientation  spatialmath.EulerAngles `json:"orientation"`
	Quaternion   Quaternion              `json:"quaternion"`
	Heading      float64                 `json:"heading"`
	Grade        float64                 `json:"grade"`
	GradeColor   string                  `json:"grade_color"`
	Unit         string                  `json:"unit"`
}

// NewPayload flattens entry for publishing. Angles are in unit.
func NewPayload(sessionID string, entry LogEntry, unit spatialmath.AngularUnit) Payload {
	q := entry.Pose.Orientation.Quaternion(unit)
	grade := entry.Pose.Grade(unit)
	return Payload{
		Session:      sessionID,
		Tick:         entry.Tick,
		T:            entry.Timestamp.Seconds(),
		Time:         entry.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Position:     entry.Pose.Position,
		Velocity:     entry.Pose.Velocity,
		Acceleration: entry.Pose.Acceleration,
		Orientation:  entry.Pose.Orientation,
		Quaternion:   Quaternion{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag},
		Heading:      entry.Pose.Heading(unit),
		Grade:        grade,
		GradeColor:   GradeColor(unit.Convert(grade, spatialmath.Degrees)),
		Unit:         unit.String(),
	}
}
