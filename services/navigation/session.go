package navigation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/logging"
)

// A Session drives one PoseEstimator through a navigation run: it ticks the estimator on a fixed
// interval, keeps an append-only log of the poses it produced and records the ticks it skipped.
type Session struct {
	id           uuid.UUID
	estimator    *PoseEstimator
	logger       logging.Logger
	clock        clock.Clock
	publisher    Publisher
	reportWriter io.Writer

	mu      sync.Mutex
	log     []LogEntry
	faults  []FaultEntry
	ticks   uint64
	running bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session's logger.
func WithLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) SessionOption {
	return func(s *Session) {
		s.clock = clk
	}
}

// WithPublisher sends every successful tick to p when the update config asks for it.
func WithPublisher(p Publisher) SessionOption {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithReportWriter sets where PrintState reports go. The default is stdout.
func WithReportWriter(w io.Writer) SessionOption {
	return func(s *Session) {
		s.reportWriter = w
	}
}

// NewSession wraps estimator. The estimator is required.
func NewSession(estimator *PoseEstimator, opts ...SessionOption) (*Session, error) {
	if estimator == nil {
		return nil, NewConfigurationError("estimator", errMissingEstimator)
	}
	s := &Session{
		id:           uuid.New(),
		estimator:    estimator,
		clock:        clock.New(),
		reportWriter: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewBlankLogger("session")
	}
	s.logger = s.logger.Sublogger(s.id.String()[:8])
	return s, nil
}

// ID identifies the session in published payloads.
func (s *Session) ID() string {
	return s.id.String()
}

// Estimator returns the wrapped estimator.
func (s *Session) Estimator() *PoseEstimator {
	return s.estimator
}

// LogState appends the current pose to the log, stamped with timestamp.
func (s *Session) LogState(timestamp time.Duration) LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEntryLocked(timestamp, s.ticks)
}

func (s *Session) appendEntryLocked(timestamp time.Duration, tick uint64) LogEntry {
	entry := LogEntry{
		Timestamp: timestamp,
		Time:      s.clock.Now(),
		Tick:      tick,
		Pose:      s.estimator.CurrentPose(),
	}
	s.log = append(s.log, entry)
	return entry
}

// Log returns a copy of every entry logged so far, oldest first.
func (s *Session) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Faults returns a copy of every skipped tick, oldest first.
func (s *Session) Faults() []FaultEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FaultEntry, len(s.faults))
	copy(out, s.faults)
	return out
}

// RunContinuousUpdate ticks the estimator every cfg.UpdateInterval until ctx is done. A tick
// reads both sensors and commits orientation and position together; if either read fails nothing is
// committed, the tick is recorded as a fault and the loop carries on. Cancellation is only acted on between ticks, and a cancelled run
// returns nil. Only one run may be active on a session at a time.
func (s *Session) RunContinuousUpdate(ctx context.Context, cfg UpdateConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Infow("starting continuous update", "interval", cfg.UpdateInterval,
		"log_state", cfg.LogState, "print_state", cfg.PrintState, "publish_state", cfg.PublishState)

	ticker := s.clock.Ticker(cfg.UpdateInterval)
	defer ticker.Stop()

	start := s.clock.Now()
	last := start
	for {
		// a tick and cancellation can be ready together; cancellation wins
		if !goutils.SelectContextOrWaitChan(ctx, ticker.C) || ctx.Err() != nil {
			break
		}
		now := s.clock.Now()
		dt := now.Sub(last)
		if dt <= 0 {
			continue
		}
		last = now
		// failures are recorded as faults by tick
		_ = s.tick(ctx, cfg, now.Sub(start), dt)
	}

	s.logger.Infow("continuous update stopped", "ticks", s.tickCount(), "faults", len(s.Faults()))
	return nil
}

func (s *Session) tickCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// tick runs one update. The updates get their own deadline of one interval and ignore cancellation
// of ctx, so a tick that has started always finishes.
func (s *Session) tick(ctx context.Context, cfg UpdateConfig, elapsed, dt time.Duration) error {
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.UpdateInterval)
	defer cancel()

	err := s.estimator.step(tickCtx, dt)

	s.mu.Lock()
	s.ticks++
	tick := s.ticks
	if err != nil {
		s.faults = append(s.faults, FaultEntry{Timestamp: elapsed, Time: s.clock.Now(), Tick: tick, Err: err})
		s.mu.Unlock()
		s.logger.Warnw("skipping navigation tick", "tick", tick, "dt", dt, "error", err)
		return err
	}
	var entry LogEntry
	if cfg.LogState {
		entry = s.appendEntryLocked(elapsed, tick)
	} else {
		entry = LogEntry{Timestamp: elapsed, Time: s.clock.Now(), Tick: tick, Pose: s.estimator.CurrentPose()}
	}
	s.mu.Unlock()

	if cfg.PrintState {
		if _, werr := fmt.Fprintln(s.reportWriter, s.ReportState(elapsed)); werr != nil {
			s.logger.Warnw("cannot write state report", "error", werr)
		}
	}
	if cfg.PublishState && s.publisher != nil {
		payload := NewPayload(s.ID(), entry, s.estimator.Unit())
		if perr := s.publisher.Publish(tickCtx, payload); perr != nil {
			s.logger.Warnw("cannot publish state", "tick", tick, "error", perr)
		}
	}
	return nil
}
