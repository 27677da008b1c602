package movementsensor

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/utils"
)

// A Constructor builds a MovementSensor from the free-form attributes of its configuration.
type Constructor func(ctx context.Context, attributes map[string]interface{}, logger logging.Logger) (MovementSensor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// RegisterModel makes a sensor model available by name. It panics if the model is registered twice
// or the constructor is nil, which only happens through programmer error in an init function.
func RegisterModel(model string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for movement sensor model %q", model))
	}
	if _, ok := registry[model]; ok {
		panic(errors.Errorf("movement sensor model %q is already registered", model))
	}
	registry[model] = constructor
}

// LookupModel returns the constructor registered for model.
func LookupModel(model string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[model]
	return c, ok
}

// RegisteredModels lists every registered model name in sorted order.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	models := lo.Keys(registry)
	sort.Strings(models)
	return models
}

// New builds a sensor of the named model.
func New(ctx context.Context, model string, attributes map[string]interface{}, logger logging.Logger) (MovementSensor, error) {
	constructor, ok := LookupModel(model)
	if !ok {
		return nil, utils.NewModelNotFoundError("movement sensor", model, RegisteredModels())
	}
	ms, err := constructor(ctx, attributes, logger.Sublogger(model))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot construct movement sensor model %q", model)
	}
	return ms, nil
}
