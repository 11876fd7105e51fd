package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferrite-ai/ferrite/internal/log"
)

// Probe timing. Reachability of the upstream provider is checked at most
// once per probeInterval; the dial itself is kept short so turn latency is
// never dominated by a dead upstream.
const (
	probeInterval    = 30 * time.Second
	probeDialTimeout = 500 * time.Millisecond
)

// BuildFunc constructs a fresh Engine. The Manager calls it at startup and
// on every reload; implementations should reuse long-lived state (the
// session store) across builds.
type BuildFunc func(ctx context.Context) (Engine, error)

// Manager holds the current Engine and swaps it atomically when the
// upstream provider's reachability changes or an operator requests a
// reload. Readers never block on a rebuild in progress.
type Manager struct {
	build     BuildFunc
	probeAddr string
	logger    log.Logger

	current atomic.Value // holds engineBox

	mu        sync.Mutex // guards rebuilds and probe bookkeeping
	lastProbe time.Time
	lastUp    bool

	now  func() time.Time                         // test hook
	dial func(addr string, d time.Duration) error // test hook
}

// engineBox wraps the interface value so atomic.Value sees one concrete
// type regardless of the Engine implementation.
type engineBox struct {
	engine Engine
}

// NewManager builds the initial engine and records the upstream as
// reachable.
func NewManager(ctx context.Context, build BuildFunc, probeAddr string, logger log.Logger) (*Manager, error) {
	if build == nil {
		return nil, fmt.Errorf("engine: build func is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("engine: logger is required")
	}

	m := &Manager{
		build:     build,
		probeAddr: probeAddr,
		logger:    logger.With("component", "engine_manager"),
		now:       time.Now,
		dial:      dialTCP,
	}

	eng, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}
	m.current.Store(engineBox{engine: eng})
	m.lastUp = true
	m.lastProbe = m.now()
	return m, nil
}

// Current returns the active engine.
func (m *Manager) Current() Engine {
	return m.current.Load().(engineBox).engine
}

// Reload rebuilds the engine and swaps it in. Turns already running keep
// the engine they started with.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked(ctx)
}

func (m *Manager) reloadLocked(ctx context.Context) error {
	eng, err := m.build(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding engine: %w", err)
	}
	m.current.Store(engineBox{engine: eng})
	m.logger.Info("engine reloaded")
	return nil
}

// MaybeReload probes the upstream provider (throttled) and rebuilds the
// engine when reachability flipped since the last probe. Called before each
// turn; the common path is a timestamp comparison.
func (m *Manager) MaybeReload(ctx context.Context) {
	if m.probeAddr == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastProbe) < probeInterval {
		return
	}
	m.lastProbe = m.now()

	up := m.dial(m.probeAddr, probeDialTimeout) == nil
	if up == m.lastUp {
		return
	}
	m.logger.Info("upstream reachability changed", "addr", m.probeAddr, "reachable", up)
	m.lastUp = up

	if err := m.reloadLocked(ctx); err != nil {
		m.logger.Warn("engine reload after reachability change failed", "error", err)
	}
}

// UpstreamReachable reports the current reachability of the upstream
// provider with a fresh dial (diagnostic endpoint, never throttled).
func (m *Manager) UpstreamReachable() bool {
	if m.probeAddr == "" {
		return false
	}
	up := m.dial(m.probeAddr, probeDialTimeout) == nil

	m.mu.Lock()
	m.lastUp = up
	m.lastProbe = m.now()
	m.mu.Unlock()
	return up
}

func dialTCP(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
