package navigation

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ConfigurationError is an invalid or missing construction-time dependency. Components that return
// one are unusable.
type ConfigurationError struct {
	Field string
	Err   error
}

// NewConfigurationError returns a ConfigurationError for the named field.
func NewConfigurationError(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid navigation configuration %q: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SensorReadError is a single failed or invalid read from the sensor. It only affects the tick it
// happened on.
type SensorReadError struct {
	Op  string
	Err error
}

func (e *SensorReadError) Error() string {
	return fmt.Sprintf("sensor read %s failed: %v", e.Op, e.Err)
}

func (e *SensorReadError) Unwrap() error {
	return e.Err
}

// IntegrationError rejects an integration step that cannot be taken, such as a non-positive dt.
type IntegrationError struct {
	Op  string
	DT  time.Duration
	Err error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s cannot integrate over dt=%v: %v", e.Op, e.DT, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

var (
	errMissingSensor     = errors.New("a movement sensor is required")
	errMissingEstimator  = errors.New("a pose estimator is required")
	errReadInFlight      = errors.New("previous read has not returned yet")
	errNonPositiveDT     = errors.New("dt must be positive")
	errNonFiniteReading  = errors.New("reading has a NaN or infinite component")
	errAlreadyRunning    = errors.New("continuous update is already running on this session")
	errNegativeInterval  = errors.New("update interval cannot be negative")
	errNonFiniteConstant = errors.New("value must be finite")
)

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsSensorReadError reports whether err is or wraps a SensorReadError.
func IsSensorReadError(err error) bool {
	var target *SensorReadError
	return errors.As(err, &target)
}

// IsIntegrationError reports whether err is or wraps an IntegrationError.
func IsIntegrationError(err error) bool {
	var target *IntegrationError
	return errors.As(err, &target)
}
