package utils

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/logging"
)

// Workers runs the named background loops of a driver or server. They share one context that Stop
// cancels. A worker that panics is logged under its name and the others keep running.
type Workers struct {
	logger logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[string]int
}

// NewWorkers returns an empty set of workers that also stop when parent is done.
func NewWorkers(parent context.Context, logger logging.Logger) *Workers {
	ctx, cancel := context.WithCancel(parent)
	return &Workers{logger: logger, ctx: ctx, cancel: cancel, running: map[string]int{}}
}

// Go starts f under name. Once the workers are stopped it starts nothing and returns false.
func (w *Workers) Go(name string, f func(context.Context)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil {
		return false
	}
	w.running[name]++
	w.wg.Add(1)
	goutils.PanicCapturingGoWithCallback(func() {
		f(w.ctx)
		w.done(name)
	}, func(panicked interface{}) {
		w.logger.Errorw("background worker panicked", "worker", name, "panic", panicked)
		w.done(name)
	})
	return true
}

// Every runs f under name once per interval, starting one interval from now, until the workers
// stop.
func (w *Workers) Every(name string, interval time.Duration, f func(context.Context)) bool {
	return w.Go(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for goutils.SelectContextOrWaitChan(ctx, ticker.C) && ctx.Err() == nil {
			f(ctx)
		}
	})
}

func (w *Workers) done(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[name]--; w.running[name] <= 0 {
		delete(w.running, name)
	}
	w.wg.Done()
}

// Running lists the names of the workers that have not returned, sorted.
func (w *Workers) Running() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := lo.Keys(w.running)
	slices.Sort(names)
	return names
}

// Stop cancels the shared context and waits for every worker to return.
func (w *Workers) Stop() {
	w.mu.Lock()
	w.cancel()
	w.mu.Unlock()
	w.wg.Wait()
}

// Context is the context the workers run under.
func (w *Workers) Context() context.Context {
	return w.ctx
}
