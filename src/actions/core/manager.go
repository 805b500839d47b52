package core

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Module is a long-running part of the service (a transport, the
// dispatcher) that can be started and stopped.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts modules in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	modules []Module
	started []Module
}

func NewManager(mods ...Module) *Manager {
	m := &Manager{}
	for _, mod := range mods {
		if mod != nil {
			m.modules = append(m.modules, mod)
		}
	}
	return m
}

// Add registers a module before Start is invoked. Nil modules are ignored
// so optional transports can be passed unconditionally.
func (m *Manager) Add(mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started != nil {
		return fmt.Errorf("core: cannot add module after start")
	}
	if mod != nil {
		m.modules = append(m.modules, mod)
	}
	return nil
}

// Start starts every module. If one fails, the ones already started are
// stopped in reverse order and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started != nil {
		return fmt.Errorf("core: manager already started")
	}

	started := make([]Module, 0, len(m.modules))
	for _, mod := range m.modules {
		if err := mod.Start(ctx); err != nil {
			stopAll(ctx, started)
			return fmt.Errorf("core: module %s failed: %w", mod.Name(), err)
		}
		log.Printf("core: module %s started", mod.Name())
		started = append(started, mod)
	}

	m.started = started
	return nil
}

// Stop shuts down started modules in reverse order.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopAll(ctx, m.started)
	m.started = nil
}

// Names lists registered modules in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.modules))
	for i, mod := range m.modules {
		names[i] = mod.Name()
	}
	return names
}

func stopAll(ctx context.Context, mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		mods[i].Stop(ctx)
		log.Printf("core: module %s stopped", mods[i].Name())
	}
}
