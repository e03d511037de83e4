package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/arewefastyet/jsbuild/pkg/logger"
)

// Manager turns SIGINT/SIGTERM into context cancellation so that a running
// build is killed instead of orphaned.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	sigChan          chan os.Signal
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		logger:           log.WithComponent("signals"),
		shutdownHandlers: make([]func(), 0),
	}
}

// RegisterShutdownHandler adds a handler run (in reverse order) when a signal arrives
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start returns a context that is cancelled when the process receives an
// interrupt or termination signal, or when Stop is called.
func (m *Manager) Start(parent context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	if m.running {
		cancel()
		return parent
	}
	m.running = true
	m.cancel = cancel
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)

	sigChan := m.sigChan
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		select {
		case <-ctx.Done():
		case sig := <-sigChan:
			m.logger.Warn("Received signal, aborting run", logger.WithField("signal", sig))
			m.handleShutdown()
			cancel()
		}
	}()

	return ctx
}

// Stop releases the signal handler and cancels the managed context
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	signal.Stop(m.sigChan)
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// IsRunning checks if the manager is handling signals
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}
