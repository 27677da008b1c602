package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/spatialmath"
)

// PoseEstimator dead-reckons a pose from a single IMU. Orientation integrates the gyroscope rate;
// position integrates gravity compensated acceleration under a constant acceleration model:
//
//	a = R(orientation)·f − (0, 0, g)
//	p += v·dt + ½·a·dt²
//	v += a·dt
//
// where f is the raw specific force read from the accelerometer. The first position update only
// records a, so a startup transient cannot kick velocity or position.
//
// Every method is safe for concurrent use; readers always get a consistent snapshot.
type PoseEstimator struct {
	logger     logging.Logger
	engine     *spatialmath.RotationEngine
	sensor     movementsensor.MovementSensor
	sensorUnit spatialmath.AngularUnit
	gravity    float64

	// held by the goroutine of the sensor read in flight, if any
	readMu sync.Mutex

	mu          sync.RWMutex
	pose        Pose
	initialized bool
}

// NewPoseEstimator validates cfg and returns an estimator at the initial pose. The sensor is
// required; a missing sensor or unknown unit is a ConfigurationError.
func NewPoseEstimator(ctx context.Context, cfg EstimatorConfig, logger logging.Logger) (*PoseEstimator, error) {
	if cfg.Sensor == nil {
		return nil, NewConfigurationError("sensor", errMissingSensor)
	}
	engine, err := spatialmath.NewRotationEngine(cfg.AngularUnit)
	if err != nil {
		return nil, NewConfigurationError("angular_unit", err)
	}
	gravity, err := cfg.gravity()
	if err != nil {
		return nil, err
	}
	if !spatialmath.VectorIsFinite(cfg.InitialPosition) {
		return nil, NewConfigurationError("initial_position", errNonFiniteConstant)
	}
	if !cfg.InitialOrientation.IsFinite() {
		return nil, NewConfigurationError("initial_orientation", errNonFiniteConstant)
	}

	var sensorUnit spatialmath.AngularUnit
	if cfg.SensorAngularUnit != nil {
		sensorUnit = *cfg.SensorAngularUnit
		if err := sensorUnit.Validate(); err != nil {
			return nil, NewConfigurationError("sensor_angular_unit", err)
		}
	} else {
		sensorUnit, err = movementsensor.AngularVelocityUnit(ctx, cfg.Sensor)
		if err != nil {
			return nil, NewConfigurationError("sensor", errors.Wrap(err, "cannot determine angular velocity unit"))
		}
	}
	if logger == nil {
		logger = logging.NewBlankLogger("estimator")
	}
	logger.Debugw("pose estimator created",
		"unit", engine.Unit(), "sensor_unit", sensorUnit, "gravity", gravity,
		"position", cfg.InitialPosition, "orientation", cfg.InitialOrientation)

	return &PoseEstimator{
		logger:     logger,
		engine:     engine,
		sensor:     cfg.Sensor,
		sensorUnit: sensorUnit,
		gravity:    gravity,
		pose: Pose{
			Position:    cfg.InitialPosition,
			Orientation: cfg.InitialOrientation,
		},
	}, nil
}

// Unit is the angular unit of every orientation the estimator reports.
func (pe *PoseEstimator) Unit() spatialmath.AngularUnit {
	return pe.engine.Unit()
}

// Engine returns the rotation engine the estimator uses.
func (pe *PoseEstimator) Engine() *spatialmath.RotationEngine {
	return pe.engine
}

// Gravity is the magnitude of gravity removed from every acceleration sample.
func (pe *PoseEstimator) Gravity() float64 {
	return pe.gravity
}

// CurrentPosition returns the position.
func (pe *PoseEstimator) CurrentPosition() r3.Vector {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	return pe.pose.Position
}

// CurrentPose returns a copy of the whole pose.
func (pe *PoseEstimator) CurrentPose() Pose {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	return pe.pose
}

// Initialized is true once UpdatePosition has seen its first sample.
func (pe *PoseEstimator) Initialized() bool {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	return pe.initialized
}

// Reset puts the estimator back at the given pose with zero velocity and acceleration, and
// re-arms the first sample handling of UpdatePosition.
func (pe *PoseEstimator) Reset(position r3.Vector, orientation spatialmath.EulerAngles) error {
	if !spatialmath.VectorIsFinite(position) || !orientation.IsFinite() {
		return NewConfigurationError("reset", errNonFiniteConstant)
	}
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.pose = Pose{Position: position, Orientation: orientation}
	pe.initialized = false
	return nil
}

// ExpectedStationaryReading is what a motionless accelerometer reads at orientation: gravity
// expressed in the body frame, pointing up.
func (pe *PoseEstimator) ExpectedStationaryReading(orientation spatialmath.EulerAngles) r3.Vector {
	return pe.engine.RotateVector(r3.Vector{Z: pe.gravity}, orientation, true)
}

// UpdateOrientation integrates one gyroscope sample over dt. On error the pose is unchanged.
func (pe *PoseEstimator) UpdateOrientation(ctx context.Context, dt time.Duration) error {
	if err := validateDT("UpdateOrientation", dt); err != nil {
		return err
	}
	rate, err := pe.readAngularVelocity(ctx)
	if err != nil {
		return err
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.pose.Orientation = pe.integrateRate(pe.pose.Orientation, rate, dt)
	return nil
}

// UpdatePosition integrates one accelerometer sample over dt, using the current orientation to
// remove gravity. On error the pose is unchanged.
func (pe *PoseEstimator) UpdatePosition(ctx context.Context, dt time.Duration) error {
	if err := validateDT("UpdatePosition", dt); err != nil {
		return err
	}
	specificForce, err := pe.readLinearAcceleration(ctx)
	if err != nil {
		return err
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.integrateSpecificForceLocked(specificForce, dt)
	return nil
}

// step is one whole tick: both sensors are read first, then orientation and position are committed
// together so readers never see one without the other. On error nothing changes.
func (pe *PoseEstimator) step(ctx context.Context, dt time.Duration) error {
	if err := validateDT("step", dt); err != nil {
		return err
	}
	rate, err := pe.readAngularVelocity(ctx)
	if err != nil {
		return err
	}
	specificForce, err := pe.readLinearAcceleration(ctx)
	if err != nil {
		return err
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()
	// position uses the orientation of this tick for gravity compensation
	pe.pose.Orientation = pe.integrateRate(pe.pose.Orientation, rate, dt)
	pe.integrateSpecificForceLocked(specificForce, dt)
	return nil
}

func (pe *PoseEstimator) readAngularVelocity(ctx context.Context) (spatialmath.AngularVelocity, error) {
	rate, err := readSensor(ctx, &pe.readMu, "AngularVelocity", func(ctx context.Context) (spatialmath.AngularVelocity, error) {
		return pe.sensor.AngularVelocity(ctx, nil)
	})
	if err != nil {
		return spatialmath.AngularVelocity{}, err
	}
	if !rate.IsFinite() {
		return spatialmath.AngularVelocity{}, &SensorReadError{Op: "AngularVelocity", Err: errNonFiniteReading}
	}
	return rate.Convert(pe.sensorUnit, pe.engine.Unit()), nil
}

func (pe *PoseEstimator) readLinearAcceleration(ctx context.Context) (r3.Vector, error) {
	specificForce, err := readSensor(ctx, &pe.readMu, "LinearAcceleration", func(ctx context.Context) (r3.Vector, error) {
		return pe.sensor.LinearAcceleration(ctx, nil)
	})
	if err != nil {
		return r3.Vector{}, err
	}
	if !spatialmath.VectorIsFinite(specificForce) {
		return r3.Vector{}, &SensorReadError{Op: "LinearAcceleration", Err: errNonFiniteReading}
	}
	return specificForce, nil
}

// integrateRate takes a rate already converted to the estimator's unit.
func (pe *PoseEstimator) integrateRate(
	orientation spatialmath.EulerAngles,
	rate spatialmath.AngularVelocity,
	dt time.Duration,
) spatialmath.EulerAngles {
	seconds := dt.Seconds()
	return orientation.Add(spatialmath.EulerAngles{
		Yaw:   rate.Z * seconds,
		Pitch: rate.Y * seconds,
		Roll:  rate.X * seconds,
	})
}

// integrateSpecificForceLocked must be called with mu held.
func (pe *PoseEstimator) integrateSpecificForceLocked(specificForce r3.Vector, dt time.Duration) {
	accel := pe.engine.RotateVector(specificForce, pe.pose.Orientation, false).Sub(r3.Vector{Z: pe.gravity})
	if !pe.initialized {
		pe.pose.Acceleration = accel
		pe.initialized = true
		pe.logger.Debugw("first acceleration sample recorded", "acceleration", accel)
		return
	}

	seconds := dt.Seconds()
	pe.pose.Position = pe.pose.Position.
		Add(pe.pose.Velocity.Mul(seconds)).
		Add(accel.Mul(0.5 * seconds * seconds))
	pe.pose.Velocity = pe.pose.Velocity.Add(accel.Mul(seconds))
	pe.pose.Acceleration = accel
}

func validateDT(op string, dt time.Duration) error {
	if dt <= 0 {
		return &IntegrationError{Op: op, DT: dt, Err: errNonPositiveDT}
	}
	return nil
}

type readResult[T any] struct {
	value T
	err   error
}

// readSensor bounds a sensor read by ctx even if the driver ignores it. A read still running when
// ctx ends is abandoned and its result dropped. inFlight is held until the read really returns, so
// a hung driver fails every later read at once instead of piling up goroutines.
func readSensor[T any](
	ctx context.Context,
	inFlight *sync.Mutex,
	op string,
	read func(context.Context) (T, error),
) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &SensorReadError{Op: op, Err: err}
	}
	if !inFlight.TryLock() {
		return zero, &SensorReadError{Op: op, Err: errReadInFlight}
	}

	results := make(chan readResult[T], 1)
	// unlock before delivering so the caller's next read never finds the lock still held
	goutils.PanicCapturingGoWithCallback(func() {
		v, err := read(ctx)
		inFlight.Unlock()
		results <- readResult[T]{value: v, err: err}
	}, func(panicked interface{}) {
		inFlight.Unlock()
		results <- readResult[T]{err: errors.Errorf("sensor panicked: %v", panicked)}
	})

	select {
	case res := <-results:
		if res.err != nil {
			return zero, &SensorReadError{Op: op, Err: res.err}
		}
		return res.value, nil
	case <-ctx.Done():
		return zero, &SensorReadError{Op: op, Err: ctx.Err()}
	}
}
