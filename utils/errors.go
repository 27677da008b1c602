package utils

import (
	"strings"

	"github.com/pkg/errors"
)

// NewModelNotFoundError is used when a model of some kind has not been registered.
func NewModelNotFoundError(kind, model string, registered []string) error {
	return errors.Errorf("unknown %s model %q (registered: %s)", kind, model, strings.Join(registered, ", "))
}
