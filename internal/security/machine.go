package security

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mjharwell/scenesync/internal/bus"
	"github.com/mjharwell/scenesync/internal/param"
)

// ErrInactive is returned when a command requires an activated machine.
var ErrInactive = errors.New("security machine is not active")

// #region machine

// Machine is the security escalation state machine. It owns the security
// level, the threat set, the active alerts, and the bridge graph. Side
// effects on level transitions are emitted as bus events, never performed as
// direct subsystem mutation. The machine is driven by a single writer (the
// dispatcher) and is not internally synchronized.
type Machine struct {
	cfg    Config
	events *bus.Bus // may be nil; events are then dropped

	active      bool
	level       Level
	threatScore float32
	threats     []Threat
	alerts      []Alert
	perfMode    PerformanceMode
	breakerOpen bool
	securedHDR  bool
	bridges     map[param.Subsystem]bool
}

// NewMachine creates an inactive machine. events may be nil.
func NewMachine(events *bus.Bus, cfg Config) *Machine {
	if cfg.ThreatCap <= 0 {
		cfg.ThreatCap = DefaultConfig().ThreatCap
	}
	return &Machine{
		cfg:      cfg,
		events:   events,
		level:    LevelNormal,
		perfMode: PerfNormal,
		bridges:  make(map[param.Subsystem]bool),
	}
}

// #endregion machine

// #region lifecycle

// Activate starts the machine at level normal, resets the threat score,
// clears threats and alerts, and connects the machine's own bridge.
func (m *Machine) Activate() {
	m.active = true
	m.level = LevelNormal
	m.threatScore = 0
	m.threats = nil
	m.alerts = nil
	m.perfMode = PerfNormal
	m.breakerOpen = false
	m.securedHDR = false
	m.bridges = map[param.Subsystem]bool{param.Security: true}
	log.Printf("[SEC] activated level=%s", m.level)
}

// Deactivate fully resets the machine to its inactive state.
func (m *Machine) Deactivate() {
	m.active = false
	m.level = LevelNormal
	m.threatScore = 0
	m.threats = nil
	m.alerts = nil
	m.perfMode = PerfNormal
	m.breakerOpen = false
	m.securedHDR = false
	m.bridges = make(map[param.Subsystem]bool)
	log.Printf("[SEC] deactivated")
}

// Active reports whether the machine has been activated.
func (m *Machine) Active() bool { return m.active }

// #endregion lifecycle

// #region level-transitions

// Escalate moves one step up the ladder, clamped at lockdown. Escalating from
// lockdown is a no-op, not an error. Inactive machines ignore the command.
func (m *Machine) Escalate() {
	if !m.active {
		return
	}
	ord := levelOrder[m.level]
	if ord >= len(levelByOrder)-1 {
		return
	}
	m.setLevel(levelByOrder[ord+1])
}

// Deescalate moves one step down the ladder, clamped at normal.
func (m *Machine) Deescalate() {
	if !m.active {
		return
	}
	ord := levelOrder[m.level]
	if ord <= 0 {
		return
	}
	m.setLevel(levelByOrder[ord-1])
}

// SetLevel jumps directly to the given level. The level must be one of the
// four known levels and the machine must be active.
func (m *Machine) SetLevel(l Level) error {
	if _, ok := levelOrder[l]; !ok {
		return fmt.Errorf("unknown security level %q", l)
	}
	if !m.active {
		return ErrInactive
	}
	m.setLevel(l)
	return nil
}

// setLevel applies the transition and fires the level side effects.
func (m *Machine) setLevel(l Level) {
	prev := m.level
	m.level = l
	if l == prev {
		return
	}
	log.Printf("[SEC] level %s → %s", prev, l)

	if l != LevelLockdown {
		m.securedHDR = false
	}
	if levelOrder[l] <= levelOrder[prev] {
		return
	}
	// Side effects only fire on upward transitions into alert/lockdown.
	switch l {
	case LevelAlert:
		m.publish(bus.EventReduceQuality, "entering alert: reduce visual-effect quality")
	case LevelLockdown:
		m.publish(bus.EventReduceQuality, "entering lockdown: reduce visual-effect quality")
		m.securedHDR = true
		m.publish(bus.EventSecuredHDR, "entering lockdown: enable secured HDR mode")
		if m.breakerOpen {
			m.publish(bus.EventMinimalLighting, "lockdown with open circuit breaker: minimal lighting mode")
		}
	}
}

// Level returns the current escalation level.
func (m *Machine) Level() Level { return m.level }

// #endregion level-transitions

// #region threats

// ThreatDetected sets the threat score to the given score (last write wins,
// not additive) and appends the given threats to the accumulating set. The
// set is capped; the oldest threat is evicted on overflow. Nil or negative
// payloads are absorbed without corrupting state.
func (m *Machine) ThreatDetected(score float32, threats []Threat) {
	if !m.active {
		return
	}
	if score >= 0 {
		m.threatScore = score
	}
	now := time.Now().UTC()
	for _, t := range threats {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.DetectedAt.IsZero() {
			t.DetectedAt = now
		}
		m.threats = append(m.threats, t)
	}
	for len(m.threats) > m.cfg.ThreatCap {
		m.threats = m.threats[1:]
	}
}

// ThreatCleared removes exactly the threat matching id.
func (m *Machine) ThreatCleared(id string) {
	if !m.active {
		return
	}
	for i, t := range m.threats {
		if t.ID == id {
			m.threats = append(m.threats[:i], m.threats[i+1:]...)
			return
		}
	}
}

// ThreatScore returns the current threat score. The score is read-only to
// every component except the machine itself.
func (m *Machine) ThreatScore() float32 { return m.threatScore }

// #endregion threats

// #region alerts

// TriggerAlert appends an alert with the given pattern. A nil config uses the
// red-flash defaults.
func (m *Machine) TriggerAlert(pattern string, config *AlertConfig) {
	if !m.active {
		return
	}
	cfg := DefaultAlertConfig()
	if config != nil {
		cfg = *config
	}
	a := Alert{
		ID:        uuid.New().String(),
		Pattern:   pattern,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	m.alerts = append(m.alerts, a)
	if m.events != nil {
		m.events.Publish(bus.Event{
			Kind:      bus.EventAlert,
			ID:        a.ID,
			Message:   fmt.Sprintf("alert %s color=%s intensity=%.2f", pattern, cfg.Color, cfg.Intensity),
			System:    string(param.Security),
			Timestamp: a.CreatedAt,
		})
	}
}

// StopAlerts clears all active alerts.
func (m *Machine) StopAlerts() {
	if !m.active {
		return
	}
	m.alerts = nil
}

// #endregion alerts

// #region performance

// PerformanceDegraded applies a frame-metrics sample. fps < 30 enters minimal
// mode and opens the circuit breaker; 30 ≤ fps < 45 enters reduced mode with
// the breaker closed; otherwise the mode is left unchanged. Malformed values
// are clamped so the machine stays in a valid state.
func (m *Machine) PerformanceDegraded(metrics Metrics) {
	if !m.active {
		return
	}
	fps := metrics.FPS
	if fps < 0 {
		fps = 0
	}
	switch {
	case fps < 30:
		m.perfMode = PerfMinimal
		m.breakerOpen = true
		log.Printf("[SEC] performance degraded fps=%.1f mode=minimal breaker=open", fps)
	case fps < 45:
		m.perfMode = PerfReduced
		m.breakerOpen = false
		log.Printf("[SEC] performance degraded fps=%.1f mode=reduced", fps)
	}
}

// PerformanceRecovered resets the performance mode and closes the breaker.
func (m *Machine) PerformanceRecovered() {
	if !m.active {
		return
	}
	m.perfMode = PerfNormal
	m.breakerOpen = false
}

// #endregion performance

// #region bridges

// BridgeConnect marks the named subsystem bridge as connected. Connecting
// while inactive is a legal no-op.
func (m *Machine) BridgeConnect(system param.Subsystem) {
	if !m.active {
		return
	}
	m.bridges[system] = true
}

// BridgeDisconnect marks the named subsystem bridge as disconnected.
func (m *Machine) BridgeDisconnect(system param.Subsystem) {
	if !m.active {
		return
	}
	m.bridges[system] = false
}

// #endregion bridges

// #region snapshot

// Snapshot returns a read-only copy of the machine state.
func (m *Machine) Snapshot() Snapshot {
	threats := make([]Threat, len(m.threats))
	copy(threats, m.threats)
	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)
	bridges := make(map[param.Subsystem]bool, len(m.bridges))
	for k, v := range m.bridges {
		bridges[k] = v
	}
	return Snapshot{
		Active:      m.active,
		Level:       m.level,
		ThreatScore: m.threatScore,
		Threats:     threats,
		Alerts:      alerts,
		PerfMode:    m.perfMode,
		BreakerOpen: m.breakerOpen,
		SecuredHDR:  m.securedHDR,
		Bridges:     bridges,
	}
}

// #endregion snapshot

// #region helpers

func (m *Machine) publish(kind bus.EventKind, msg string) {
	if m.events == nil {
		return
	}
	m.events.Publish(bus.Event{
		Kind:      kind,
		ID:        uuid.New().String(),
		Message:   msg,
		System:    string(param.Security),
		Timestamp: time.Now().UTC(),
	})
}

// #endregion helpers
