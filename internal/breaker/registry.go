package breaker

import (
	"log"
	"sync"
)

// Registry tracks every named breaker in the process so operational surfaces
// can enumerate, reset and summarize them.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
	logger   *log.Logger
}

// NewRegistry creates a registry that hands out breakers with cfg.
func NewRegistry(cfg Config, logger *log.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, r.cfg)
	r.breakers[name] = b
	if r.logger != nil {
		r.logger.Printf("registered circuit breaker %q", name)
	}
	return b
}

// Statuses returns a snapshot of every registered breaker.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Status())
	}
	return out
}

// ResetAll closes every breaker and clears counters.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
	if r.logger != nil {
		r.logger.Printf("reset %d circuit breakers", len(r.breakers))
	}
}

// HealthSummary summarizes breaker health for the /healthz surface.
type HealthSummary struct {
	Total    int  `json:"total"`
	Open     int  `json:"open"`
	HalfOpen int  `json:"half_open"`
	Closed   int  `json:"closed"`
	Healthy  bool `json:"healthy"`
}

// HealthSummary counts breakers by state. Healthy is false if any breaker is
// open.
func (r *Registry) HealthSummary() HealthSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := HealthSummary{Total: len(r.breakers)}
	for _, b := range r.breakers {
		switch b.Status().State {
		case StateOpen:
			s.Open++
		case StateHalfOpen:
			s.HalfOpen++
		default:
			s.Closed++
		}
	}
	s.Healthy = s.Open == 0
	return s
}
