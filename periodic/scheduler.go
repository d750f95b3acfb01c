// Package periodic implements the external scheduling collaborator:
// something that invokes pgcache.Host.Update on a cadence and never runs
// two updates for the same cache concurrently. pgcache only defines the
// interface this package consumes; tickerScheduler supplies a concrete,
// ticker-based implementation of it so the repository is runnable end to
// end.
package periodic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-pg-cache/pgcache"
)

// Options configures one host's periodic refresh.
type Options struct {
	// Interval between Update calls once the first one completes.
	Interval time.Duration
	// InitialUpdateKind is the kind passed to the very first Update call.
	// Setting it to UpdateIncremental for a host whose AllowedUpdateTypes is
	// AllowFullOnly is a construction-time error: StartPeriodicUpdates
	// rejects it with a *pgcache.ConfigError instead of silently coercing it.
	InitialUpdateKind pgcache.UpdateType
	// UpdateCorrection is subtracted from "now" before it is passed to
	// Update as lastUpdate on the very first call, when there is no prior
	// successful run to derive a real lastUpdate from.
	UpdateCorrection time.Duration
	// Logger receives lifecycle and failure events. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger
}

// Scheduler is the host contract: something that starts and stops periodic
// Update calls for a named pgcache.Host and never overlaps two Update calls
// for the same name.
type Scheduler interface {
	StartPeriodicUpdates(host pgcache.Host, opts Options) error
	StopPeriodicUpdates(name string)
	AllowedUpdateTypes(name string) (pgcache.AllowedUpdateTypes, bool)
}

// entry is the per-cache registration kept by tickerScheduler, keyed by
// host.Name().
type entry struct {
	host   pgcache.Host
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	inFlight   bool
	lastUpdate time.Time
}

// tickerScheduler is the default Scheduler: one time.Ticker goroutine per
// registered host, guarded by a per-entry inFlight flag so a slow Update
// never overlaps with the next tick.
type tickerScheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	logger   *slog.Logger
	newStats func() *pgcache.Stats
}

// NewTickerScheduler returns a Scheduler that drives registered hosts with
// a plain time.Ticker per cache, in its own goroutine.
func NewTickerScheduler(logger *slog.Logger) *tickerScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &tickerScheduler{
		entries:  make(map[string]*entry),
		logger:   logger,
		newStats: pgcache.NewStats,
	}
}

// StartPeriodicUpdates registers host under its own name and begins calling
// Update every opts.Interval, starting with an immediate call. It fails if a
// cache with the same name is already registered.
func (s *tickerScheduler) StartPeriodicUpdates(host pgcache.Host, opts Options) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("periodic: interval must be positive for cache %q", host.Name())
	}
	if opts.InitialUpdateKind == pgcache.UpdateIncremental && host.AllowedUpdateTypes() == pgcache.AllowFullOnly {
		return &pgcache.ConfigError{
			Field:   "InitialUpdateKind",
			Message: fmt.Sprintf("cache %q has no update field and only supports full updates", host.Name()),
		}
	}

	s.mu.Lock()
	if _, exists := s.entries[host.Name()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("periodic: cache %q is already registered", host.Name())
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{host: host, cancel: cancel, done: make(chan struct{})}
	s.entries[host.Name()] = e
	s.mu.Unlock()

	logger := opts.Logger
	if logger == nil {
		logger = s.logger
	}

	go s.run(ctx, e, opts, logger)
	return nil
}

// StopPeriodicUpdates cancels the background goroutine for name and blocks
// until any in-flight Update call returns. It is a no-op if name was never
// registered or was already stopped.
func (s *tickerScheduler) StopPeriodicUpdates(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if ok {
		delete(s.entries, name)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	<-e.done
}

// AllowedUpdateTypes reports the registered host's update capability. The
// second return value is false if name isn't registered.
func (s *tickerScheduler) AllowedUpdateTypes(name string) (pgcache.AllowedUpdateTypes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return 0, false
	}
	return e.host.AllowedUpdateTypes(), true
}

func (s *tickerScheduler) run(ctx context.Context, e *entry, opts Options, logger *slog.Logger) {
	defer close(e.done)

	s.tick(ctx, e, opts.InitialUpdateKind, opts, logger)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nextKind := pgcache.UpdateIncremental
			if e.host.AllowedUpdateTypes() == pgcache.AllowFullOnly {
				nextKind = pgcache.UpdateFull
			}
			s.tick(ctx, e, nextKind, opts, logger)
		}
	}
}

// tick runs exactly one Update call for e, serialized against any call
// still in flight (there shouldn't be one, since the ticker only fires
// after the previous tick's select loop resumes, but the flag also guards
// against a caller driving the same entry from two goroutines).
func (s *tickerScheduler) tick(ctx context.Context, e *entry, kind pgcache.UpdateType, opts Options, logger *slog.Logger) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return
	}
	e.inFlight = true
	lastUpdate := e.lastUpdate
	e.mu.Unlock()

	now := time.Now()
	if lastUpdate.IsZero() {
		lastUpdate = now.Add(-opts.UpdateCorrection)
	}

	stats := s.newStats()
	err := e.host.Update(ctx, kind, lastUpdate, now, stats)

	e.mu.Lock()
	e.inFlight = false
	if err == nil {
		e.lastUpdate = now
	}
	e.mu.Unlock()

	if err != nil {
		logger.Error("periodic update failed",
			"cache", e.host.Name(),
			"kind", kind.String(),
			"error", err,
		)
		return
	}

	logger.Info("periodic update finished",
		"cache", e.host.Name(),
		"kind", kind.String(),
		"documents_read", stats.DocumentsRead(),
		"parse_failures", stats.ParseFailures(),
		"no_changes", stats.NoChanges(),
	)
}
