// Package lifecycle provides graceful shutdown for running topologies:
// in-flight batches drain before components are closed.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Closer is anything that needs cleanup during shutdown.
type Closer interface {
	Close() error
}

// ShutdownConfig configures the shutdown manager.
type ShutdownConfig struct {
	// DrainTimeout is how long to wait for in-flight batches to finish.
	DrainTimeout time.Duration

	// Logger for shutdown progress. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultShutdownConfig returns sensible defaults.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{DrainTimeout: 30 * time.Second}
}

// ShutdownManager coordinates graceful shutdown: sources stop accepting,
// in-flight batches drain up to a timeout, then registered closers run in
// reverse registration order (sinks were registered last and close first
// among components, after their upstreams stopped feeding them).
type ShutdownManager struct {
	mu sync.Mutex

	drainTimeout time.Duration
	logger       *zap.Logger

	draining   bool
	shutdownAt time.Time

	inFlight      sync.WaitGroup
	inFlightCount int64

	closers []Closer
	done    chan struct{}
}

// NewShutdownManager creates a manager.
func NewShutdownManager(cfg ShutdownConfig) *ShutdownManager {
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ShutdownManager{
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger,
		done:         make(chan struct{}),
	}
}

// RegisterCloser adds a component to be closed during shutdown.
func (m *ShutdownManager) RegisterCloser(c Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, c)
}

// StartBatch marks a batch entering the topology. Returns false when
// draining; the caller should stop producing.
func (m *ShutdownManager) StartBatch() bool {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return false
	}
	m.inFlightCount++
	m.mu.Unlock()

	m.inFlight.Add(1)
	return true
}

// EndBatch marks a batch as fully delivered or dropped.
func (m *ShutdownManager) EndBatch() {
	m.inFlight.Done()

	m.mu.Lock()
	m.inFlightCount--
	m.mu.Unlock()
}

// InFlightCount returns the number of batches currently in the topology.
func (m *ShutdownManager) InFlightCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlightCount
}

// IsDraining reports whether shutdown has begun.
func (m *ShutdownManager) IsDraining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draining
}

// Shutdown drains in-flight batches, then closes registered components in
// reverse order. Safe to call more than once.
func (m *ShutdownManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return nil
	}
	m.draining = true
	m.shutdownAt = time.Now()
	m.mu.Unlock()

	drainDone := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(drainDone)
	}()

	select {
	case <-drainDone:
	case <-time.After(m.drainTimeout):
		m.logger.Warn("drain timeout reached",
			zap.Int64("in_flight", m.InFlightCount()))
	case <-ctx.Done():
	}

	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	close(m.done)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Wait blocks until shutdown is complete.
func (m *ShutdownManager) Wait() {
	<-m.done
}

// HandleSignals triggers Shutdown on SIGINT or SIGTERM.
func (m *ShutdownManager) HandleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			m.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			m.Shutdown(ctx)
		case <-ctx.Done():
		}
	}()
}

// RunWithSignalHandling runs fn with a context that is cancelled on SIGINT
// or SIGTERM, giving fn up to drainTimeout to return after the signal.
func RunWithSignalHandling(logger *zap.Logger, drainTimeout time.Duration, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if drainTimeout == 0 {
		drainTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		select {
		case err := <-errChan:
			return err
		case <-time.After(drainTimeout):
			return fmt.Errorf("shutdown timeout after %s", drainTimeout)
		}
	}
}
