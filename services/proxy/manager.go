package proxy

import (
	"sync"

	"sjsage522/retailcrawler/logger"
)

// Strategy selects how a Manager moves between providers
type Strategy string

const (
	// StrategyFailover sticks to the first available provider
	StrategyFailover Strategy = "failover"
	// StrategyRoundRobin moves to the next available provider on every Rotate
	StrategyRoundRobin Strategy = "round_robin"
)

// Manager chooses between an ordered list of providers
type Manager struct {
	mu        sync.Mutex
	strategy  Strategy
	providers []Provider
	idx       int
}

// NewManager creates a manager. An empty strategy means failover.
func NewManager(strategy Strategy, providers ...Provider) *Manager {
	if strategy == "" {
		strategy = StrategyFailover
	}
	return &Manager{
		strategy:  strategy,
		providers: providers,
	}
}

// Name returns "manager"
func (m *Manager) Name() string {
	return "manager"
}

// Strategy returns the rotation strategy
func (m *Manager) Strategy() Strategy {
	return m.strategy
}

// Current returns the endpoint of the active provider
func (m *Manager) Current() (Config, error) {
	m.mu.Lock()
	p := m.active()
	m.mu.Unlock()

	if p == nil {
		return Config{}, ErrNoProxyAvailable
	}
	return p.Current()
}

// Rotate rotates the active provider under failover, or moves to and rotates
// the next available provider under round robin.
func (m *Manager) Rotate() {
	m.mu.Lock()
	if m.strategy == StrategyRoundRobin && len(m.providers) > 0 {
		m.idx = (m.idx + 1) % len(m.providers)
	}
	p := m.active()
	m.mu.Unlock()

	if p != nil {
		p.Rotate()
	}
}

// Available reports whether any provider is available
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active() != nil
}

// Active returns the provider Current would use
func (m *Manager) Active() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active()
}

// ReportFailure takes the active endpoint out of rotation when the provider
// supports it, then rotates.
func (m *Manager) ReportFailure() {
	p := m.Active()
	if p == nil {
		return
	}
	if f, ok := p.(interface{ MarkFailed() }); ok {
		f.MarkFailed()
	}
	logger.ForProxy().Debug().Str("provider", p.Name()).Msg("Proxy failure reported")
	m.Rotate()
}

// ReportSuccess tells the active provider a request through it succeeded
func (m *Manager) ReportSuccess() {
	if p, ok := m.Active().(interface{ MarkSucceeded() }); ok {
		p.MarkSucceeded()
	}
}

// active returns the first available provider starting at idx. The caller
// holds mu. Under failover idx stays 0.
func (m *Manager) active() Provider {
	n := len(m.providers)
	for i := 0; i < n; i++ {
		j := i
		if m.strategy == StrategyRoundRobin {
			j = (m.idx + i) % n
		}
		if m.providers[j].Available() {
			if m.strategy == StrategyRoundRobin {
				m.idx = j
			}
			return m.providers[j]
		}
	}
	return nil
}
