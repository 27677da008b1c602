// Package mpu6050 implements the movementsensor interface for an MPU-6050 6-axis accelerometer and
// gyroscope attached over I2C. A description of the I2C registers is at
// https://download.datasheets.com/pdfs/2015/3/19/8/3/59/59/invse_/manual/5rm-mpu-6000a-00v4.2.pdf
//
// The chip runs in its power-on configuration: ±2 g full scale for the accelerometer and ±250 °/s
// for the gyroscope. Readings are taken by a background goroutine and cached.
//
// The chip has two possible I2C addresses, which can be selected by wiring the AD0 pin to either
// hot or ground:
//   - if AD0 is wired to ground, it uses the default I2C address of 0x68
//   - if AD0 is wired to hot, it uses the alternate I2C address of 0x69
//
// If you use the alternate address, your config must set "use_alt_i2c_address" to true.
package mpu6050

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/macro-rover/navigator/components/movementsensor"
	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/spatialmath"
	"github.com/macro-rover/navigator/utils"
)

// Model is the registered model name.
const Model = "gyro-mpu6050"

const (
	defaultAddress   = 0x68
	alternateAddress = 0x69

	registerData       = 59
	registerPowerMgmt1 = 107
	registerWhoAmI     = 117
	dataBlockLength    = 14

	sleepBit = 1 << 6

	standardGravity    = 9.80665
	maxAccelerationG   = 2.0
	maxRotationDegrees = 250.0

	defaultPollInterval = time.Millisecond
)

// Config is used to configure the attributes of the chip.
type Config struct {
	I2CBus                 string        `json:"i2c_bus"`
	UseAlternateI2CAddress bool          `json:"use_alt_i2c_address,omitempty"`
	PollInterval           time.Duration `json:"poll_interval,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PollInterval < 0 {
		return goutils.NewConfigValidationError(path, errors.New("poll_interval cannot be negative"))
	}
	return nil
}

func init() {
	movementsensor.RegisterModel(Model, func(
		ctx context.Context,
		attributes map[string]interface{},
		logger logging.Logger,
	) (movementsensor.MovementSensor, error) {
		var cfg Config
		if err := utils.DecodeAttributes(attributes, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate("sensor.attributes"); err != nil {
			return nil, err
		}
		return NewMpu6050(ctx, cfg, logger)
	})
}

type mpu6050 struct {
	dev    *i2c.Dev
	closer func() error
	logger logging.Logger

	// The 3 things we can measure: lock the mutex before reading or writing these.
	mu                 sync.Mutex
	angularVelocity    spatialmath.AngularVelocity
	temperature        float64
	linearAcceleration r3.Vector
	hasReading         bool
	// outcome of recent background polls
	faults *movementsensor.ReadFaults

	workers *utils.Workers
}

// NewMpu6050 opens the configured I2C bus on the host and starts polling the chip.
func NewMpu6050(ctx context.Context, cfg Config, logger logging.Logger) (movementsensor.MovementSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open I2C bus %q for MPU6050 sensor", cfg.I2CBus)
	}

	sensor, err := newMpu6050(ctx, bus, cfg, logger)
	if err != nil {
		return nil, multierr.Combine(err, bus.Close())
	}
	sensor.closer = bus.Close
	sensor.start(cfg.PollInterval)
	return sensor, nil
}

// newMpu6050 checks that an MPU-6050 answers on bus and wakes it up. It does not start polling.
func newMpu6050(ctx context.Context, bus i2c.Bus, cfg Config, logger logging.Logger) (*mpu6050, error) {
	address := uint16(defaultAddress)
	if cfg.UseAlternateI2CAddress {
		address = alternateAddress
	}
	logger.Debugf("Using address %#x for MPU6050 sensor", address)

	sensor := &mpu6050{
		dev:    &i2c.Dev{Bus: bus, Addr: address},
		logger: logger,
		faults: movementsensor.NewReadFaults("MPU6050 poll", 1, 1),
	}

	// To check that we're able to talk to the chip, we should be able to read WHO_AM_I and get
	// back the device's non-alternative address (0x68)
	whoAmI, err := sensor.readByte(ctx, registerWhoAmI)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read from I2C address %#x on bus %s", address, bus)
	}
	if whoAmI != defaultAddress {
		return nil, errors.Errorf("unexpected non-MPU6050 device at address %#x: response %#x", address, whoAmI)
	}

	// The chip starts out in standby mode (the Sleep bit in the power management register defaults
	// to 1). Set it to measurement mode (by turning off the Sleep bit) so we can get data from it.
	if err := sensor.writeByte(ctx, registerPowerMgmt1, 0); err != nil {
		return nil, errors.Wrap(err, "unable to wake up MPU6050")
	}
	return sensor, nil
}

func (mpu *mpu6050) start(pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	mpu.workers = utils.NewWorkers(context.Background(), mpu.logger)
	mpu.workers.Every("mpu6050 poll", pollInterval, func(ctx context.Context) {
		if err := mpu.poll(ctx); err != nil {
			mpu.logger.Infof("error reading MPU6050 sensor: '%s'", err)
		}
	})
}

// poll reads one data block and caches it. The outcome is recorded in the fault window either way.
func (mpu *mpu6050) poll(ctx context.Context) error {
	rawData, err := mpu.readBlock(ctx, registerData, dataBlockLength)
	mpu.faults.Record(err)
	if err != nil {
		return err
	}

	linearAcceleration := toLinearAcceleration(rawData[0:6])
	temperature := toTemperature(rawData[6:8])
	angularVelocity := toAngularVelocity(rawData[8:14])

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	mpu.linearAcceleration = linearAcceleration
	mpu.temperature = temperature
	mpu.angularVelocity = angularVelocity
	mpu.hasReading = true
	return nil
}

func (mpu *mpu6050) readByte(ctx context.Context, register byte) (byte, error) {
	result, err := mpu.readBlock(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	return result[0], nil
}

func (mpu *mpu6050) readBlock(ctx context.Context, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]byte, length)
	if err := mpu.dev.Tx([]byte{register}, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (mpu *mpu6050) writeByte(ctx context.Context, register, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mpu.dev.Tx([]byte{register, value}, nil)
}

// Given a value, scales it so that the range of int16s becomes the range of +/- maxValue.
func setScale(value int16, maxValue float64) float64 {
	return float64(value) * maxValue / (1 << 15)
}

// toAngularVelocity takes 6 big endian bytes and gives back AngularVelocity in degrees per second.
func toAngularVelocity(data []byte) spatialmath.AngularVelocity {
	return spatialmath.AngularVelocity(toScaledVector(data, maxRotationDegrees))
}

// toLinearAcceleration takes 6 big endian bytes and gives back linear acceleration in m/s².
func toLinearAcceleration(data []byte) r3.Vector {
	return toScaledVector(data, maxAccelerationG*standardGravity)
}

func toScaledVector(data []byte, maxValue float64) r3.Vector {
	return r3.Vector{
		X: setScale(int16(binary.BigEndian.Uint16(data[0:2])), maxValue),
		Y: setScale(int16(binary.BigEndian.Uint16(data[2:4])), maxValue),
		Z: setScale(int16(binary.BigEndian.Uint16(data[4:6])), maxValue),
	}
}

// Taken straight from the MPU6050 register map. Yes, these are weird constants.
func toTemperature(data []byte) float64 {
	return float64(int16(binary.BigEndian.Uint16(data)))/340.0 + 36.53
}

func (mpu *mpu6050) current() (r3.Vector, spatialmath.AngularVelocity, float64, error) {
	if err := mpu.faults.Err(); err != nil {
		return r3.Vector{}, spatialmath.AngularVelocity{}, 0, err
	}
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	if !mpu.hasReading {
		return r3.Vector{}, spatialmath.AngularVelocity{}, 0, errors.New("MPU6050 has not produced a reading yet")
	}
	return mpu.linearAcceleration, mpu.angularVelocity, mpu.temperature, nil
}

func (mpu *mpu6050) AngularVelocity(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
	_, av, _, err := mpu.current()
	return av, err
}

func (mpu *mpu6050) LinearAcceleration(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	la, _, _, err := mpu.current()
	return la, err
}

func (mpu *mpu6050) MagneticField(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
	return r3.Vector{}, movementsensor.ErrMethodUnimplementedMagneticField
}

// Readings adds the die temperature to the shared readings.
func (mpu *mpu6050) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	readings, err := movementsensor.Readings(ctx, mpu, extra)
	if err != nil {
		return nil, err
	}
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	readings["temperature_celsius"] = mpu.temperature
	return readings, nil
}

func (mpu *mpu6050) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	return &movementsensor.Properties{
		AngularVelocitySupported:    true,
		LinearAccelerationSupported: true,
		AngularVelocityUnit:         spatialmath.Degrees,
	}, nil
}

func (mpu *mpu6050) Close(ctx context.Context) error {
	if mpu.workers != nil {
		mpu.workers.Stop()
	}

	// Set the Sleep bit in the power control register.
	err := mpu.writeByte(ctx, registerPowerMgmt1, sleepBit)
	if mpu.closer != nil {
		err = multierr.Combine(err, mpu.closer())
	}
	return err
}
