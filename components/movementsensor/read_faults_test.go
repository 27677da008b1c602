package movementsensor

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestReadFaults(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rf := NewReadFaults("poll", 1, 1)
		test.That(t, rf.Err(), test.ShouldBeNil)
		rf.Record(nil)
		test.That(t, rf.Err(), test.ShouldBeNil)
	})

	t.Run("reported once", func(t *testing.T) {
		rf := NewReadFaults("poll", 1, 1)
		busErr := errors.New("i2c nack")
		rf.Record(busErr)

		err := rf.Err()
		var fault *ReadFault
		test.That(t, errors.As(err, &fault), test.ShouldBeTrue)
		test.That(t, fault.Op, test.ShouldEqual, "poll")
		test.That(t, fault.Failed, test.ShouldEqual, 1)
		test.That(t, errors.Is(err, busErr), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldEqual, "poll failed 1 of the last 1 reads: i2c nack")
		test.That(t, rf.Err(), test.ShouldBeNil)
	})

	t.Run("most recent failure wins", func(t *testing.T) {
		rf := NewReadFaults("poll", 3, 1)
		rf.Record(errors.New("first"))
		rf.Record(errors.New("second"))
		rf.Record(nil)

		var fault *ReadFault
		test.That(t, errors.As(rf.Err(), &fault), test.ShouldBeTrue)
		test.That(t, fault.Err.Error(), test.ShouldEqual, "second")
		test.That(t, fault.Failed, test.ShouldEqual, 2)
	})

	t.Run("threshold", func(t *testing.T) {
		rf := NewReadFaults("poll", 3, 2)
		rf.Record(errors.New("first"))
		rf.Record(nil)
		test.That(t, rf.Err(), test.ShouldBeNil)

		rf.Record(errors.New("third"))
		err := rf.Err()
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Unwrap(err).Error(), test.ShouldEqual, "third")

		// the window was cleared, so one failure is below threshold again
		rf.Record(errors.New("fourth"))
		test.That(t, rf.Err(), test.ShouldBeNil)
	})

	t.Run("failures age out", func(t *testing.T) {
		rf := NewReadFaults("poll", 2, 1)
		rf.Record(errors.New("stale"))
		for i := 0; i < 5; i++ {
			rf.Record(nil)
		}
		test.That(t, rf.Err(), test.ShouldBeNil)
	})

	t.Run("empty window records nothing", func(t *testing.T) {
		rf := NewReadFaults("poll", 0, 0)
		rf.Record(errors.New("dropped"))
		test.That(t, rf.Err(), test.ShouldBeNil)
	})
}
