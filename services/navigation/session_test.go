package navigation

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/spatialmath"
)

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
	closed   bool
}

func (p *recordingPublisher) Publish(ctx context.Context, payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestNewSession(t *testing.T) {
	_, err := NewSession(nil)
	test.That(t, IsConfigurationError(err), test.ShouldBeTrue)
	test.That(t, errors.Is(err, errMissingEstimator), test.ShouldBeTrue)
	test.That(t, errors.Is(err, errMissingSensor), test.ShouldBeFalse)

	pe := newTestEstimator(t, spatialmath.Degrees, newStationarySensor())
	s1, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)
	s2, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s1.ID(), test.ShouldNotEqual, s2.ID())
	test.That(t, s1.Estimator(), test.ShouldEqual, pe)
	test.That(t, s1.Log(), test.ShouldBeEmpty)
	test.That(t, s1.Faults(), test.ShouldBeEmpty)
}

func TestLogState(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	pe := newTestEstimator(t, spatialmath.Degrees, newStationarySensor())
	s, err := NewSession(pe, WithClock(clk), WithLogger(logging.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)

	first := s.LogState(0)
	test.That(t, first.Time, test.ShouldEqual, clk.Now())
	test.That(t, pe.Reset(r3.Vector{X: 1}, spatialmath.EulerAngles{}), test.ShouldBeNil)
	clk.Add(time.Second)
	s.LogState(time.Second)

	log := s.Log()
	test.That(t, len(log), test.ShouldEqual, 2)
	test.That(t, log[0].Pose.Position, test.ShouldResemble, r3.Vector{})
	test.That(t, log[1].Pose.Position, test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, log[1].Timestamp, test.ShouldEqual, time.Second)
	test.That(t, log[1].Time.Sub(log[0].Time), test.ShouldEqual, time.Second)

	// the returned log is a copy
	log[0].Pose.Position.X = 99
	test.That(t, s.Log()[0].Pose.Position.X, test.ShouldEqual, 0.)
}

func TestTickSkipsFailedReads(t *testing.T) {
	ms := newStationarySensor()
	var reads atomic.Int32
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		if reads.Add(1) == 5 {
			return spatialmath.AngularVelocity{}, errors.New("i2c timeout")
		}
		return spatialmath.AngularVelocity{Z: 10}, nil
	}
	ms.LinearAccelerationFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{X: 1, Z: StandardGravity}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	logger, logs := logging.NewObservedTestLogger(t)
	s, err := NewSession(pe, WithLogger(logger))
	test.That(t, err, test.ShouldBeNil)

	cfg := DefaultUpdateConfig()
	var beforeFault, afterFault Pose
	for i := 1; i <= 10; i++ {
		if i == 5 {
			beforeFault = pe.CurrentPose()
		}
		err := s.tick(context.Background(), cfg, time.Duration(i)*dt, dt)
		if i == 5 {
			test.That(t, IsSensorReadError(err), test.ShouldBeTrue)
			afterFault = pe.CurrentPose()
		} else {
			test.That(t, err, test.ShouldBeNil)
		}
	}
	test.That(t, afterFault, test.ShouldResemble, beforeFault)

	log := s.Log()
	test.That(t, len(log), test.ShouldEqual, 9)
	for _, entry := range log {
		test.That(t, entry.Tick, test.ShouldNotEqual, uint64(5))
	}
	test.That(t, log[3].Tick, test.ShouldEqual, uint64(4))
	test.That(t, log[4].Tick, test.ShouldEqual, uint64(6))

	faults := s.Faults()
	test.That(t, len(faults), test.ShouldEqual, 1)
	test.That(t, faults[0].Tick, test.ShouldEqual, uint64(5))
	test.That(t, faults[0].Timestamp, test.ShouldEqual, 5*dt)
	test.That(t, IsSensorReadError(faults[0].Err), test.ShouldBeTrue)

	warnings := logs.FilterMessage("skipping navigation tick").All()
	test.That(t, len(warnings), test.ShouldEqual, 1)

	// nine successful ticks of 10 °/s for 0.1 s each
	test.That(t, pe.CurrentPose().Orientation.Yaw, test.ShouldAlmostEqual, 9, 1e-9)
}

func TestTickCommitsNothingWhenPositionFails(t *testing.T) {
	ms := newStationarySensor()
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{Z: 50}, nil
	}
	ms.LinearAccelerationFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{}, errors.New("accelerometer saturated")
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	err = s.tick(context.Background(), DefaultUpdateConfig(), dt, dt)
	test.That(t, IsSensorReadError(err), test.ShouldBeTrue)
	test.That(t, pe.CurrentPose(), test.ShouldResemble, Pose{})
	test.That(t, pe.Initialized(), test.ShouldBeFalse)
	test.That(t, s.Log(), test.ShouldBeEmpty)
	test.That(t, len(s.Faults()), test.ShouldEqual, 1)
}

func TestTickIsAtomicForReaders(t *testing.T) {
	entered := make(chan struct{})
	results := make(chan error)
	ms := newStationarySensor()
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{Z: 10}, nil
	}
	ms.LinearAccelerationFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		entered <- struct{}{}
		return r3.Vector{Z: StandardGravity}, <-results
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	cfg := UpdateConfig{UpdateInterval: time.Minute, LogState: true}
	runTick := func(result error) error {
		done := make(chan error, 1)
		go func() {
			done <- s.tick(context.Background(), cfg, dt, dt)
		}()
		<-entered
		// the rate has been read but nothing is visible yet
		test.That(t, pe.CurrentPose().Orientation.Yaw, test.ShouldEqual, 0.)
		results <- result
		return <-done
	}

	err = runTick(errors.New("accelerometer saturated"))
	test.That(t, IsSensorReadError(err), test.ShouldBeTrue)
	test.That(t, pe.CurrentPose(), test.ShouldResemble, Pose{})
	test.That(t, pe.Initialized(), test.ShouldBeFalse)

	test.That(t, runTick(nil), test.ShouldBeNil)
	pose := pe.CurrentPose()
	test.That(t, pose.Orientation.Yaw, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, pe.Initialized(), test.ShouldBeTrue)
	test.That(t, len(s.Log()), test.ShouldEqual, 1)
	test.That(t, s.Log()[0].Pose, test.ShouldResemble, pose)
}

func TestHungSensorHoldsOneRead(t *testing.T) {
	const ticks = 200

	release := make(chan struct{})
	var reads atomic.Int32
	ms := newStationarySensor()
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		reads.Add(1)
		// ignores ctx like a wedged bus
		<-release
		return spatialmath.AngularVelocity{}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	cfg := UpdateConfig{UpdateInterval: time.Millisecond, LogState: true}
	before := runtime.NumGoroutine()
	for i := 1; i <= ticks; i++ {
		err := s.tick(context.Background(), cfg, time.Duration(i)*dt, dt)
		test.That(t, IsSensorReadError(err), test.ShouldBeTrue)
	}
	// only the first read reached the driver and only its goroutine is left
	test.That(t, reads.Load(), test.ShouldEqual, int32(1))
	test.That(t, runtime.NumGoroutine(), test.ShouldBeLessThanOrEqualTo, before+2)

	faults := s.Faults()
	test.That(t, len(faults), test.ShouldEqual, ticks)
	test.That(t, errors.Is(faults[0].Err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, errors.Is(faults[1].Err, errReadInFlight), test.ShouldBeTrue)
	test.That(t, errors.Is(faults[ticks-1].Err, errReadInFlight), test.ShouldBeTrue)
	test.That(t, s.Log(), test.ShouldBeEmpty)

	// once the driver returns, ticks succeed again
	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := s.tick(context.Background(), cfg, ticks*dt, dt)
		if err == nil {
			break
		}
		test.That(t, errors.Is(err, errReadInFlight), test.ShouldBeTrue)
		test.That(t, time.Now().Before(deadline), test.ShouldBeTrue)
		time.Sleep(time.Millisecond)
	}
	test.That(t, len(s.Log()), test.ShouldEqual, 1)
	test.That(t, reads.Load(), test.ShouldEqual, int32(2))
}

func TestTickOutputs(t *testing.T) {
	pe := newTestEstimator(t, spatialmath.Degrees, newStationarySensor())
	publisher := &recordingPublisher{}
	var report bytes.Buffer
	s, err := NewSession(pe, WithPublisher(publisher), WithReportWriter(&report))
	test.That(t, err, test.ShouldBeNil)

	cfg := UpdateConfig{UpdateInterval: dt, LogState: false, PrintState: true, PublishState: true}
	test.That(t, s.tick(context.Background(), cfg, dt, dt), test.ShouldBeNil)

	test.That(t, s.Log(), test.ShouldBeEmpty)
	test.That(t, report.String(), test.ShouldContainSubstring, "[t=0.10s] position=(0.000, 0.000, 0.000) m")
	test.That(t, strings.Count(report.String(), "\n"), test.ShouldEqual, 1)
	test.That(t, len(publisher.payloads), test.ShouldEqual, 1)
	test.That(t, publisher.payloads[0].Session, test.ShouldEqual, s.ID())
	test.That(t, publisher.payloads[0].Tick, test.ShouldEqual, uint64(1))
	test.That(t, publisher.payloads[0].Unit, test.ShouldEqual, "degrees")

	// a failing publisher is only logged
	publisher.err = errors.New("broker down")
	cfg.LogState = true
	test.That(t, s.tick(context.Background(), cfg, 2*dt, dt), test.ShouldBeNil)
	test.That(t, len(s.Log()), test.ShouldEqual, 1)
	test.That(t, s.Faults(), test.ShouldBeEmpty)
}

func TestRunContinuousUpdate(t *testing.T) {
	const ticks = 5

	ms := newStationarySensor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reads atomic.Int32
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		if reads.Add(1) == ticks {
			// cancellation during a tick lets the tick finish
			cancel()
		}
		return spatialmath.AngularVelocity{}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe, WithLogger(logging.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)

	err = s.RunContinuousUpdate(ctx, UpdateConfig{UpdateInterval: 20 * time.Millisecond, LogState: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reads.Load(), test.ShouldEqual, int32(ticks))
	test.That(t, len(s.Log())+len(s.Faults()), test.ShouldEqual, ticks)

	log := s.Log()
	for i := 1; i < len(log); i++ {
		test.That(t, log[i].Timestamp, test.ShouldBeGreaterThan, log[i-1].Timestamp)
		test.That(t, log[i].Tick, test.ShouldBeGreaterThan, log[i-1].Tick)
	}
	assertVector(t, pe.CurrentPosition(), r3.Vector{}, 1e-6)

	// the session can run again once the first run is over
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	test.That(t, s.RunContinuousUpdate(ctx2, DefaultUpdateConfig()), test.ShouldBeNil)
}

// startClock is a mock clock that reports when the update loop has taken its start time, which
// happens right after the ticker is created.
type startClock struct {
	*clock.Mock
	armed   atomic.Bool
	once    sync.Once
	started chan struct{}
}

func newStartClock() *startClock {
	return &startClock{Mock: clock.NewMock(), started: make(chan struct{})}
}

func (c *startClock) Ticker(d time.Duration) *clock.Ticker {
	ticker := c.Mock.Ticker(d)
	c.armed.Store(true)
	return ticker
}

func (c *startClock) Now() time.Time {
	now := c.Mock.Now()
	if c.armed.Load() {
		c.once.Do(func() { close(c.started) })
	}
	return now
}

func TestRunContinuousUpdateWithMockClock(t *testing.T) {
	const ticks = 10

	readCh := make(chan int32, ticks)
	var reads atomic.Int32
	ms := newStationarySensor()
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		n := reads.Add(1)
		defer func() { readCh <- n }()
		if n == 5 {
			return spatialmath.AngularVelocity{}, errors.New("i2c timeout")
		}
		return spatialmath.AngularVelocity{Z: 10}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	logger, logs := logging.NewObservedTestLogger(t)
	clk := newStartClock()
	s, err := NewSession(pe, WithClock(clk), WithLogger(logger))
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.RunContinuousUpdate(ctx, UpdateConfig{UpdateInterval: dt, LogState: true})
	}()
	<-clk.started

	for i := 1; i <= ticks; i++ {
		clk.Add(dt)
		select {
		case n := <-readCh:
			test.That(t, n, test.ShouldEqual, int32(i))
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d never ran", i)
		}
	}
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, reads.Load(), test.ShouldEqual, int32(ticks))

	log := s.Log()
	test.That(t, len(log), test.ShouldEqual, ticks-1)
	test.That(t, log[3].Tick, test.ShouldEqual, uint64(4))
	test.That(t, log[4].Tick, test.ShouldEqual, uint64(6))
	test.That(t, log[4].Timestamp, test.ShouldEqual, 6*dt)
	test.That(t, log[ticks-2].Timestamp, test.ShouldEqual, ticks*dt)

	faults := s.Faults()
	test.That(t, len(faults), test.ShouldEqual, 1)
	test.That(t, faults[0].Tick, test.ShouldEqual, uint64(5))
	test.That(t, faults[0].Timestamp, test.ShouldEqual, 5*dt)
	test.That(t, IsSensorReadError(faults[0].Err), test.ShouldBeTrue)
	test.That(t, len(logs.FilterMessage("skipping navigation tick").All()), test.ShouldEqual, 1)

	// every successful tick spans exactly one interval
	test.That(t, pe.CurrentPose().Orientation.Yaw, test.ShouldAlmostEqual, 9, 1e-9)
}

func TestRunContinuousUpdateRejectsConcurrentRuns(t *testing.T) {
	ms := newStationarySensor()
	started := make(chan struct{})
	var once sync.Once
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		once.Do(func() { close(started) })
		return spatialmath.AngularVelocity{}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.RunContinuousUpdate(ctx, UpdateConfig{UpdateInterval: 5 * time.Millisecond})
	}()
	<-started

	err = s.RunContinuousUpdate(context.Background(), DefaultUpdateConfig())
	test.That(t, err, test.ShouldEqual, errAlreadyRunning)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestRunContinuousUpdateValidates(t *testing.T) {
	pe := newTestEstimator(t, spatialmath.Degrees, newStationarySensor())
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	err = s.RunContinuousUpdate(context.Background(), UpdateConfig{UpdateInterval: -time.Second})
	test.That(t, IsConfigurationError(err), test.ShouldBeTrue)

	test.That(t, UpdateConfig{}.withDefaults().UpdateInterval, test.ShouldEqual, DefaultUpdateInterval)
	cfg := DefaultUpdateConfig()
	test.That(t, cfg.LogState, test.ShouldBeTrue)
	test.That(t, cfg.PrintState, test.ShouldBeFalse)
	test.That(t, cfg.PublishState, test.ShouldBeTrue)
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestSummary(t *testing.T) {
	ms := newStationarySensor()
	ms.LinearAccelerationFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{X: 1, Z: StandardGravity}, nil
	}
	pe := newTestEstimator(t, spatialmath.Degrees, ms)
	s, err := NewSession(pe)
	test.That(t, err, test.ShouldBeNil)

	empty, err := s.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.Entries, test.ShouldEqual, 0)
	test.That(t, empty.MaxSpeed, test.ShouldEqual, 0.)

	for i := 1; i <= 11; i++ {
		test.That(t, s.tick(context.Background(), DefaultUpdateConfig(), time.Duration(i)*dt, dt), test.ShouldBeNil)
	}
	summary, err := s.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.SessionID, test.ShouldEqual, s.ID())
	test.That(t, summary.Entries, test.ShouldEqual, 11)
	test.That(t, summary.Faults, test.ShouldEqual, 0)
	test.That(t, summary.Duration, test.ShouldEqual, 11*dt)
	test.That(t, summary.Distance, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, summary.MaxSpeed, test.ShouldAlmostEqual, 1.0, 1e-9)
	// speeds are 0, 0.1, ..., 1.0
	test.That(t, summary.MeanSpeed, test.ShouldAlmostEqual, 0.5, 1e-9)

	var out bytes.Buffer
	test.That(t, summary.Render(&out), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "entries")
	test.That(t, out.String(), test.ShouldContainSubstring, "0.500")
	test.That(t, out.String(), test.ShouldContainSubstring, s.ID())
}
