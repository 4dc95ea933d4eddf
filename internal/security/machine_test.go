package security

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mjharwell/scenesync/internal/bus"
	"github.com/mjharwell/scenesync/internal/param"
)

func activeMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine(nil, DefaultConfig())
	m.Activate()
	return m
}

func TestSetLevelWhileInactive(t *testing.T) {
	m := NewMachine(nil, DefaultConfig())
	err := m.SetLevel(LevelLockdown)
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if m.Level() != LevelNormal {
		t.Fatalf("level must stay normal, got %s", m.Level())
	}
}

func TestSetLevelUnknown(t *testing.T) {
	m := activeMachine(t)
	if err := m.SetLevel(Level("panic")); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if m.Level() != LevelNormal {
		t.Fatalf("level must stay normal, got %s", m.Level())
	}
}

func TestActivateResets(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.9, []Threat{{Description: "probe"}})
	m.TriggerAlert("flash", nil)
	m.SetLevel(LevelAlert)

	m.Activate()
	snap := m.Snapshot()
	if !snap.Active || snap.Level != LevelNormal {
		t.Fatalf("expected active at normal, got %+v", snap)
	}
	if snap.ThreatScore != 0 || len(snap.Threats) != 0 || len(snap.Alerts) != 0 {
		t.Fatalf("expected cleared threats and alerts, got %+v", snap)
	}
	if !snap.Bridges[param.Security] {
		t.Fatal("expected the security bridge connected after activation")
	}
}

func TestDeactivateFullReset(t *testing.T) {
	m := activeMachine(t)
	m.SetLevel(LevelLockdown)
	m.ThreatDetected(0.7, []Threat{{Description: "scan"}})
	m.PerformanceDegraded(Metrics{FPS: 10})

	m.Deactivate()
	snap := m.Snapshot()
	if snap.Active {
		t.Fatal("expected inactive")
	}
	if snap.Level != LevelNormal || snap.ThreatScore != 0 || snap.PerfMode != PerfNormal {
		t.Fatalf("expected full reset, got %+v", snap)
	}
	if snap.BreakerOpen || snap.SecuredHDR {
		t.Fatalf("expected breaker closed and secured HDR off, got %+v", snap)
	}
	if len(snap.Bridges) != 0 {
		t.Fatalf("expected empty bridge map, got %v", snap.Bridges)
	}
}

func TestEscalationLadderClamped(t *testing.T) {
	m := activeMachine(t)
	want := []Level{LevelScanning, LevelAlert, LevelLockdown, LevelLockdown}
	for i, w := range want {
		m.Escalate()
		if m.Level() != w {
			t.Fatalf("step %d: expected %s, got %s", i, w, m.Level())
		}
	}
	down := []Level{LevelAlert, LevelScanning, LevelNormal, LevelNormal}
	for i, w := range down {
		m.Deescalate()
		if m.Level() != w {
			t.Fatalf("step %d: expected %s, got %s", i, w, m.Level())
		}
	}
}

func TestEscalateInactiveNoOp(t *testing.T) {
	m := NewMachine(nil, DefaultConfig())
	m.Escalate()
	if m.Level() != LevelNormal {
		t.Fatalf("inactive escalate must be a no-op, got %s", m.Level())
	}
}

func TestLockdownSideEffects(t *testing.T) {
	events := bus.New()
	quality := events.Subscribe(bus.EventReduceQuality)
	hdr := events.Subscribe(bus.EventSecuredHDR)

	m := NewMachine(events, DefaultConfig())
	m.Activate()
	if err := m.SetLevel(LevelLockdown); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	select {
	case <-quality:
	default:
		t.Fatal("expected a reduce-quality event on lockdown entry")
	}
	select {
	case <-hdr:
	default:
		t.Fatal("expected a secured-HDR event on lockdown entry")
	}
	if !m.Snapshot().SecuredHDR {
		t.Fatal("expected secured HDR flag set")
	}
}

func TestLockdownWithOpenBreakerRequestsMinimalLighting(t *testing.T) {
	events := bus.New()
	minimal := events.Subscribe(bus.EventMinimalLighting)

	m := NewMachine(events, DefaultConfig())
	m.Activate()
	m.PerformanceDegraded(Metrics{FPS: 12})
	m.SetLevel(LevelLockdown)

	select {
	case <-minimal:
	default:
		t.Fatal("expected a minimal-lighting event")
	}
}

func TestDownwardTransitionEmitsNothing(t *testing.T) {
	events := bus.New()
	m := NewMachine(events, DefaultConfig())
	m.Activate()
	m.SetLevel(LevelLockdown)
	drainTapCount(events) // discard entry events

	m.SetLevel(LevelScanning)
	if n := drainTapCount(events); n != 0 {
		t.Fatalf("downward transition must emit no events, got %d", n)
	}
	if m.Snapshot().SecuredHDR {
		t.Fatal("secured HDR must clear when leaving lockdown")
	}
}

func drainTapCount(b *bus.Bus) int {
	n := 0
	for {
		select {
		case <-b.Tap():
			n++
		default:
			return n
		}
	}
}

func TestThreatScoreLastWriteWins(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.9, nil)
	m.ThreatDetected(0.3, nil)
	if m.ThreatScore() != 0.3 {
		t.Fatalf("score must be last-write, got %f", m.ThreatScore())
	}
}

func TestThreatNegativeScoreIgnored(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.6, nil)
	m.ThreatDetected(-1, []Threat{{Description: "still recorded"}})
	if m.ThreatScore() != 0.6 {
		t.Fatalf("negative score must not overwrite, got %f", m.ThreatScore())
	}
	if len(m.Snapshot().Threats) != 1 {
		t.Fatal("threats from a malformed-score payload are still accumulated")
	}
}

func TestThreatsAccumulateAndFillIDs(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.5, []Threat{{Description: "a"}, {Description: "b"}})
	m.ThreatDetected(0.5, []Threat{{ID: "fixed-id", Description: "c"}})

	threats := m.Snapshot().Threats
	if len(threats) != 3 {
		t.Fatalf("expected 3 threats, got %d", len(threats))
	}
	for _, th := range threats {
		if th.ID == "" {
			t.Fatal("expected generated IDs")
		}
		if th.DetectedAt.IsZero() {
			t.Fatal("expected detection timestamps")
		}
	}
	if threats[2].ID != "fixed-id" {
		t.Fatalf("supplied ID must be preserved, got %s", threats[2].ID)
	}
}

func TestThreatCapEvictsOldest(t *testing.T) {
	m := NewMachine(nil, Config{ThreatCap: 3})
	m.Activate()
	for i := 0; i < 5; i++ {
		m.ThreatDetected(0.5, []Threat{{ID: fmt.Sprintf("t%d", i)}})
	}
	threats := m.Snapshot().Threats
	if len(threats) != 3 {
		t.Fatalf("expected cap 3, got %d", len(threats))
	}
	if threats[0].ID != "t2" || threats[2].ID != "t4" {
		t.Fatalf("expected oldest evicted, got %v", threats)
	}
}

func TestThreatCleared(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.5, []Threat{{ID: "keep"}, {ID: "drop"}})
	m.ThreatCleared("drop")
	m.ThreatCleared("never-existed")

	threats := m.Snapshot().Threats
	if len(threats) != 1 || threats[0].ID != "keep" {
		t.Fatalf("expected only 'keep', got %v", threats)
	}
}

func TestTriggerAlertDefaultsAndStop(t *testing.T) {
	events := bus.New()
	alerts := events.Subscribe(bus.EventAlert)
	m := NewMachine(events, DefaultConfig())
	m.Activate()

	m.TriggerAlert("pulse", nil)
	m.TriggerAlert("flash", &AlertConfig{Color: "#00ff00", Intensity: 0.5})

	snap := m.Snapshot()
	if len(snap.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(snap.Alerts))
	}
	if snap.Alerts[0].Config != DefaultAlertConfig() {
		t.Fatalf("nil config must use defaults, got %+v", snap.Alerts[0].Config)
	}
	if snap.Alerts[1].Config.Color != "#00ff00" {
		t.Fatalf("explicit config must be honored, got %+v", snap.Alerts[1].Config)
	}
	select {
	case <-alerts:
	default:
		t.Fatal("expected an alert event")
	}

	m.StopAlerts()
	if len(m.Snapshot().Alerts) != 0 {
		t.Fatal("expected no alerts after stop")
	}
}

func TestPerformanceBranches(t *testing.T) {
	m := activeMachine(t)

	m.PerformanceDegraded(Metrics{FPS: 60})
	if snap := m.Snapshot(); snap.PerfMode != PerfNormal || snap.BreakerOpen {
		t.Fatalf("healthy fps must leave mode unchanged, got %+v", snap)
	}

	m.PerformanceDegraded(Metrics{FPS: 40})
	if snap := m.Snapshot(); snap.PerfMode != PerfReduced || snap.BreakerOpen {
		t.Fatalf("expected reduced with closed breaker, got %+v", snap)
	}

	m.PerformanceDegraded(Metrics{FPS: 20})
	if snap := m.Snapshot(); snap.PerfMode != PerfMinimal || !snap.BreakerOpen {
		t.Fatalf("expected minimal with open breaker, got %+v", snap)
	}

	// Recovery from minimal back to reduced on an intermediate sample.
	m.PerformanceDegraded(Metrics{FPS: 35})
	if snap := m.Snapshot(); snap.PerfMode != PerfReduced || snap.BreakerOpen {
		t.Fatalf("expected reduced with closed breaker, got %+v", snap)
	}

	m.PerformanceRecovered()
	if snap := m.Snapshot(); snap.PerfMode != PerfNormal || snap.BreakerOpen {
		t.Fatalf("expected normal after recovery, got %+v", snap)
	}
}

func TestPerformanceMalformedMetrics(t *testing.T) {
	m := activeMachine(t)
	m.PerformanceDegraded(Metrics{FPS: -10, CPUPercent: 400})
	if snap := m.Snapshot(); snap.PerfMode != PerfMinimal || !snap.BreakerOpen {
		t.Fatalf("negative fps clamps to 0 and enters minimal, got %+v", snap)
	}
}

func TestBridgesInactiveNoOp(t *testing.T) {
	m := NewMachine(nil, DefaultConfig())
	m.BridgeConnect(param.Bloom)
	if len(m.Snapshot().Bridges) != 0 {
		t.Fatal("inactive bridge connect must be a no-op")
	}
}

func TestBridgeConnectDisconnect(t *testing.T) {
	m := activeMachine(t)
	m.BridgeConnect(param.Bloom)
	m.BridgeConnect(param.Lighting)
	m.BridgeDisconnect(param.Bloom)

	bridges := m.Snapshot().Bridges
	if bridges[param.Bloom] {
		t.Fatal("bloom bridge should be disconnected")
	}
	if !bridges[param.Lighting] || !bridges[param.Security] {
		t.Fatalf("expected lighting and security connected, got %v", bridges)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := activeMachine(t)
	m.ThreatDetected(0.5, []Threat{{ID: "t1"}})
	snap := m.Snapshot()
	snap.Threats[0].ID = "mutated"
	snap.Bridges[param.Bloom] = true

	fresh := m.Snapshot()
	if fresh.Threats[0].ID != "t1" {
		t.Fatal("snapshot threats must be independent copies")
	}
	if fresh.Bridges[param.Bloom] {
		t.Fatal("snapshot bridge map must be an independent copy")
	}
}

func TestParseLevel(t *testing.T) {
	if _, ok := ParseLevel("lockdown"); !ok {
		t.Fatal("lockdown should parse")
	}
	if _, ok := ParseLevel("red-alert"); ok {
		t.Fatal("red-alert should not parse")
	}
}
