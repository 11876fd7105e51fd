package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferrite-ai/ferrite/internal/log"
)

// nopEngine satisfies Engine for manager tests; no behavior needed.
type nopEngine struct{ id int }

func (nopEngine) EnsureSession(context.Context, string) error { return nil }
func (nopEngine) RunTurn(context.Context, string, string, func(Event)) error {
	return nil
}
func (nopEngine) Reconcile(_ context.Context, sessionID, _ string) (SealToken, error) {
	return NewSealToken(sessionID), nil
}
func (nopEngine) DeleteSession(context.Context, string) error { return nil }

func countingBuild(builds *int) BuildFunc {
	return func(context.Context) (Engine, error) {
		*builds++
		return nopEngine{id: *builds}, nil
	}
}

func TestManagerBuildsOnce(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
	if m.Current() == nil {
		t.Error("Current() = nil")
	}
}

func TestManagerBuildFailure(t *testing.T) {
	boom := errors.New("no upstream")
	_, err := NewManager(context.Background(), func(context.Context) (Engine, error) {
		return nil, boom
	}, "", log.NewNop())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want build error", err)
	}
}

func TestManagerReloadSwaps(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	before := m.Current().(nopEngine).id

	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	after := m.Current().(nopEngine).id
	if after == before {
		t.Errorf("engine id unchanged after reload: %d", after)
	}
	if builds != 2 {
		t.Errorf("builds = %d, want 2", builds)
	}
}

func TestMaybeReloadThrottled(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "localhost:1", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	dials := 0
	m.dial = func(string, time.Duration) error {
		dials++
		return errors.New("down")
	}

	// Within the probe interval nothing happens.
	m.MaybeReload(context.Background())
	if dials != 0 {
		t.Errorf("dials = %d, want 0 inside probe interval", dials)
	}

	// Move past the interval: probe runs, reachability flipped (up->down),
	// engine rebuilds.
	now := time.Now()
	m.now = func() time.Time { return now.Add(probeInterval + time.Second) }
	m.MaybeReload(context.Background())
	if dials != 1 {
		t.Errorf("dials = %d, want 1 after interval", dials)
	}
	if builds != 2 {
		t.Errorf("builds = %d, want rebuild on reachability change", builds)
	}

	// Immediately after, the probe is throttled again.
	m.MaybeReload(context.Background())
	if dials != 1 {
		t.Errorf("dials = %d, want probe throttled", dials)
	}
}

func TestMaybeReloadNoChangeNoRebuild(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "localhost:1", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.dial = func(string, time.Duration) error { return nil } // still up

	now := time.Now()
	m.now = func() time.Time { return now.Add(probeInterval + time.Second) }
	m.MaybeReload(context.Background())
	if builds != 1 {
		t.Errorf("builds = %d, want no rebuild when reachability unchanged", builds)
	}
}

func TestUpstreamReachable(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "localhost:1", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.dial = func(string, time.Duration) error { return nil }
	if !m.UpstreamReachable() {
		t.Error("UpstreamReachable = false, want true")
	}

	m.dial = func(string, time.Duration) error { return errors.New("down") }
	if m.UpstreamReachable() {
		t.Error("UpstreamReachable = true, want false")
	}
}

func TestUpstreamReachableNoAddr(t *testing.T) {
	builds := 0
	m, err := NewManager(context.Background(), countingBuild(&builds), "", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.UpstreamReachable() {
		t.Error("UpstreamReachable = true with no probe address")
	}
}
