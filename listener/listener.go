// Package listener runs a single background receive loop over a Source and
// manages its start/stop lifecycle.
//
//	Start: src.Open ──▶ go src.Listen(sink) ──▶ running
//	Stop:  cancel ──▶ join (bounded) ──▶ src.Close ──▶ stopped
//
// At most one loop runs per Listener. A generation counter gates the sink so
// a loop that outlives Stop cannot deliver anything afterwards.
package listener

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultJoinTimeout = 2 * time.Second

// Source is something that can be opened, listened to and closed.
type Source[T any] interface {
	// Open prepares the source, e.g. enables remote delivery and connects.
	Open(ctx context.Context) error
	// Listen delivers values to sink until ctx is done or the source fails.
	// It returns nil on a cooperative stop.
	Listen(ctx context.Context, sink func(T)) error
	// Close undoes Open.
	Close(ctx context.Context) error
}

type config struct {
	joinTimeout time.Duration
	logger      *zap.Logger
	onExit      func(error)
}

type Option func(*config)

// WithJoinTimeout bounds how long Stop waits for the loop to finish.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.joinTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnExit sets a hook run on the loop goroutine when Listen fails on its
// own, i.e. not because of Stop. The hook must not call Stop.
func WithOnExit(fn func(error)) Option {
	return func(c *config) { c.onExit = fn }
}

// Listener owns the background loop for one Source.
type Listener[T any] struct {
	src  Source[T]
	sink func(T)
	cfg  config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	gen atomic.Uint64
}

func New[T any](src Source[T], sink func(T), opts ...Option) *Listener[T] {
	cfg := config{
		joinTimeout: DefaultJoinTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Listener[T]{src: src, sink: sink, cfg: cfg}
}

// Start opens the source and spawns the loop. It is a no-op if the listener is
// already running. If Open fails nothing is spawned and the error is returned.
//
// ctx bounds Open only; the loop runs until Stop.
func (l *Listener[T]) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if err := l.src.Open(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	gen := l.gen.Add(1)

	l.running = true
	l.cancel = cancel
	l.done = done

	go l.loop(loopCtx, gen, done)
	l.cfg.logger.Debug("listener started", zap.Uint64("generation", gen))
	return nil
}

func (l *Listener[T]) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	err := l.src.Listen(ctx, func(v T) {
		if l.gen.Load() == gen {
			l.sink(v)
		}
	})
	if err == nil || ctx.Err() != nil {
		return
	}

	l.cfg.logger.Error("listener exited", zap.Error(err))
	if l.cfg.onExit != nil {
		l.cfg.onExit(err)
	}
}

// Stop cancels the loop, waits for it up to the join timeout and closes the
// source. Stop on a stopped listener is a no-op. The error is Close's.
func (l *Listener[T]) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.gen.Add(1)
	l.cancel()

	timer := time.NewTimer(l.cfg.joinTimeout)
	defer timer.Stop()
	select {
	case <-l.done:
	case <-timer.C:
		l.cfg.logger.Warn("listener goroutine still running after stop",
			zap.Duration("join_timeout", l.cfg.joinTimeout))
	case <-ctx.Done():
		l.cfg.logger.Warn("stop abandoned join", zap.Error(ctx.Err()))
	}

	l.running = false
	l.cancel = nil
	l.done = nil
	return l.src.Close(ctx)
}

// Running reports whether Start succeeded and Stop has not been called since.
// It stays true after the loop exits on its own.
func (l *Listener[T]) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
