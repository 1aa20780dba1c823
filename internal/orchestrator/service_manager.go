package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Hook is one init/teardown step of the process. Either func may be nil.
type Hook struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// ServiceManager runs the registered hooks in order on startup and unwinds
// the started ones in reverse order on shutdown, exactly once.
type ServiceManager struct {
	mu      sync.Mutex
	hooks   []Hook
	started []Hook

	stopOnce sync.Once
	stopErr  error

	failed chan error
}

// NewServiceManager creates a new service manager
func NewServiceManager() *ServiceManager {
	return &ServiceManager{failed: make(chan error, 1)}
}

// Register appends a hook. Hooks registered after Start are ignored.
func (sm *ServiceManager) Register(h Hook) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, h)
}

// Start runs every Start func in registration order. On the first failure
// the hooks already started are stopped and the error is returned.
func (sm *ServiceManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	hooks := append([]Hook(nil), sm.hooks...)
	sm.mu.Unlock()

	for _, h := range hooks {
		start := time.Now()
		if h.Start != nil {
			if err := h.Start(ctx); err != nil {
				log.Error().Err(err).Str("hook", h.Name).Msg("Startup step failed")
				if stopErr := sm.Stop(ctx); stopErr != nil {
					log.Error().Err(stopErr).Msg("Rollback after failed startup was incomplete")
				}
				return fmt.Errorf("start %s: %w", h.Name, err)
			}
		}
		sm.mu.Lock()
		sm.started = append(sm.started, h)
		sm.mu.Unlock()
		log.Info().Str("hook", h.Name).Dur("duration", time.Since(start)).Msg("Started")
	}
	return nil
}

// Go runs fn in the background. The first error it returns ends Wait.
func (sm *ServiceManager) Go(name string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			select {
			case sm.failed <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
}

// Wait blocks until ctx is cancelled (nil) or a background task fails.
func (sm *ServiceManager) Wait(ctx context.Context) error {
	log.Info().Msg("Services started, waiting for shutdown signal...")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down services...")
		return nil
	case err := <-sm.failed:
		log.Error().Err(err).Msg("Service exited with error")
		return err
	}
}

// Stop runs the Stop funcs of the started hooks in reverse order. Later
// calls return the result of the first one.
func (sm *ServiceManager) Stop(ctx context.Context) error {
	sm.stopOnce.Do(func() {
		sm.mu.Lock()
		started := sm.started
		sm.started = nil
		sm.mu.Unlock()

		var errs []error
		for i := len(started) - 1; i >= 0; i-- {
			h := started[i]
			if h.Stop == nil {
				continue
			}
			if err := h.Stop(ctx); err != nil {
				log.Error().Err(err).Str("hook", h.Name).Msg("Shutdown step failed")
				errs = append(errs, fmt.Errorf("stop %s: %w", h.Name, err))
				continue
			}
			log.Info().Str("hook", h.Name).Msg("Stopped")
		}
		sm.stopErr = errors.Join(errs...)
	})
	return sm.stopErr
}
