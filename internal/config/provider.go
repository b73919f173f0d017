package config

import (
	"sync"
	"time"
)

// Provider hands out the current configuration and refreshes it from the
// environment once the TTL elapses. It is constructed in main and injected
// where needed; nothing reads configuration through package globals.
type Provider struct {
	mu        sync.RWMutex
	current   Config
	loadedAt  time.Time
	ttl       time.Duration
	now       func() time.Time
	loadFresh func() (Config, error)
}

// NewProvider wraps an already-loaded configuration.
func NewProvider(cfg Config) *Provider {
	ttl := cfg.RefreshTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Provider{
		current:   cfg,
		loadedAt:  time.Now(),
		ttl:       ttl,
		now:       time.Now,
		loadFresh: read,
	}
}

// Get returns the current configuration, refreshing it first when the TTL has
// elapsed. A failed refresh keeps serving the last good configuration.
func (p *Provider) Get() Config {
	p.mu.RLock()
	fresh := p.now().Sub(p.loadedAt) < p.ttl
	cfg := p.current
	p.mu.RUnlock()
	if fresh {
		return cfg
	}

	if err := p.Refresh(); err != nil {
		return cfg
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh reloads the configuration from the environment immediately.
func (p *Provider) Refresh() error {
	cfg, err := p.loadFresh()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = cfg
	p.loadedAt = p.now()
	p.mu.Unlock()
	return nil
}
