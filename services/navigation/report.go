package navigation

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/macro-rover/navigator/spatialmath"
)

// ReportState renders the current pose on one line.
func (s *Session) ReportState(timestamp time.Duration) string {
	return FormatPose(timestamp, s.estimator.CurrentPose(), s.estimator.Unit())
}

// FormatPose renders pose on one line with angles in unit.
func FormatPose(timestamp time.Duration, pose Pose, unit spatialmath.AngularUnit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[t=%.2fs] ", timestamp.Seconds())
	fmt.Fprintf(&sb, "position=%s m ", formatVector(pose.Position))
	fmt.Fprintf(&sb, "velocity=%s m/s ", formatVector(pose.Velocity))
	fmt.Fprintf(&sb, "acceleration=%s m/s² ", formatVector(pose.Acceleration))
	fmt.Fprintf(&sb, "orientation=(%s) %s ", pose.Orientation, unit)
	fmt.Fprintf(&sb, "heading=%.2f grade=%.2f", pose.Heading(unit), pose.Grade(unit))
	return sb.String()
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Summary describes a session's log.
type Summary struct {
	SessionID string
	Entries   int
	Faults    int
	// Duration is the timestamp of the last entry.
	Duration time.Duration
	// Distance is the length of the path through every logged position.
	Distance  float64
	MeanSpeed float64
	MaxSpeed  float64
	FinalPose Pose
	Unit      spatialmath.AngularUnit
}

// Summary computes a Summary over everything logged so far.
func (s *Session) Summary() (Summary, error) {
	log := s.Log()
	summary := Summary{
		SessionID: s.ID(),
		Entries:   len(log),
		Faults:    len(s.Faults()),
		FinalPose: s.estimator.CurrentPose(),
		Unit:      s.estimator.Unit(),
	}
	if len(log) == 0 {
		return summary, nil
	}

	speeds := make(stats.Float64Data, 0, len(log))
	for i, entry := range log {
		speeds = append(speeds, entry.Pose.Speed())
		if i > 0 {
			summary.Distance += entry.Pose.Position.Sub(log[i-1].Pose.Position).Norm()
		}
	}
	summary.Duration = log[len(log)-1].Timestamp

	var err error
	if summary.MeanSpeed, err = stats.Mean(speeds); err != nil {
		return Summary{}, errors.Wrap(err, "mean speed")
	}
	if summary.MaxSpeed, err = stats.Max(speeds); err != nil {
		return Summary{}, errors.Wrap(err, "max speed")
	}
	return summary, nil
}

// Render writes the summary as a table.
func (sum Summary) Render(w io.Writer) error {
	t := table.NewWriter()
	t.SetTitle("navigation session " + sum.SessionID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"entries", sum.Entries},
		{"faults", sum.Faults},
		{"duration", sum.Duration.String()},
		{"distance (m)", fmt.Sprintf("%.3f", sum.Distance)},
		{"mean speed (m/s)", fmt.Sprintf("%.3f", sum.MeanSpeed)},
		{"max speed (m/s)", fmt.Sprintf("%.3f", sum.MaxSpeed)},
		{"final position (m)", formatVector(sum.FinalPose.Position)},
		{"final orientation (" + sum.Unit.String() + ")", sum.FinalPose.Orientation.String()},
	})
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}
