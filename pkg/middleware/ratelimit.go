package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LoginRateLimitConfig bounds failed and successful login attempts per client
type LoginRateLimitConfig struct {
	// MaxAttempts is the number of attempts allowed per window
	MaxAttempts int `yaml:"max_attempts"`
	// Window is the fixed window length
	Window time.Duration `yaml:"window"`
	// MaxKeys bounds the in-memory limiter; least recently seen clients are evicted
	MaxKeys int `yaml:"max_keys"`
}

// DefaultLoginRateLimitConfig returns default login rate limit settings
func DefaultLoginRateLimitConfig() LoginRateLimitConfig {
	return LoginRateLimitConfig{
		MaxAttempts: 10,
		Window:      15 * time.Minute,
		MaxKeys:     10000,
	}
}

// LoginLimiter counts login attempts per key
type LoginLimiter interface {
	// Allow records an attempt and reports whether it is within the limit
	Allow(ctx context.Context, key string) (bool, error)
	// Backend names the implementation, used as a metric label
	Backend() string
}

// MemoryLoginLimiter is a fixed-window limiter kept in a bounded LRU.
// Expired windows are reset when their key is next seen.
type MemoryLoginLimiter struct {
	config  LoginRateLimitConfig
	windows *lru.Cache[string, *window]
	now     func() time.Time
	mu      sync.Mutex
}

type window struct {
	start time.Time
	count int
}

var _ LoginLimiter = (*MemoryLoginLimiter)(nil)

// NewMemoryLoginLimiter creates a new in-memory login limiter
func NewMemoryLoginLimiter(config LoginRateLimitConfig) (*MemoryLoginLimiter, error) {
	if config.MaxAttempts <= 0 || config.Window <= 0 {
		return nil, fmt.Errorf("login rate limit requires positive max attempts and window")
	}
	if config.MaxKeys <= 0 {
		config.MaxKeys = DefaultLoginRateLimitConfig().MaxKeys
	}

	windows, err := lru.New[string, *window](config.MaxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}

	return &MemoryLoginLimiter{
		config:  config,
		windows: windows,
		now:     time.Now,
	}, nil
}

func (l *MemoryLoginLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= l.config.Window {
		w = &window{start: now}
		l.windows.Add(key, w)
	}

	w.count++
	return w.count <= l.config.MaxAttempts, nil
}

func (l *MemoryLoginLimiter) Backend() string { return "memory" }
