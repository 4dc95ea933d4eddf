package dispatch

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mjharwell/scenesync/internal/audit"
	"github.com/mjharwell/scenesync/internal/bus"
	"github.com/mjharwell/scenesync/internal/checkpoint"
	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/resolve"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region phase

// Phase is the dispatcher's position in the synchronization state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidating       Phase = "validating"
	PhaseConflictDetected Phase = "conflict_detected"
	PhaseResolving        Phase = "resolving"
	PhaseSynchronized     Phase = "synchronized"
)

// #endregion phase

// #region adapter

// Adapter applies a synchronized parameter snapshot to one rendering
// subsystem. Adapters are read-only with respect to the authoritative state;
// they receive copies and never mutate the store.
type Adapter interface {
	Subsystem() param.Subsystem
	Apply(snapshot param.State) error
}

// #endregion adapter

// #region config

// Config bundles the dispatcher tunables.
type Config struct {
	Policy       resolve.Policy
	Rules        conflict.Config
	AuditRingCap int
}

// DefaultConfig enables validation and auto-resolve with standard thresholds.
func DefaultConfig() Config {
	return Config{
		Policy:       resolve.DefaultPolicy(),
		Rules:        conflict.DefaultConfig(),
		AuditRingCap: 256,
	}
}

// #endregion config

// #region dispatcher

// Dispatcher sequences every state change: receive update → merge → evaluate
// → resolve or apply → emit. It is the single writer of the authoritative
// parameter state; adapters and the UI observe snapshots and never mutate it.
// Updates arriving mid-cycle are queued and drained in submission order once
// the cycle reaches idle.
type Dispatcher struct {
	mu sync.Mutex

	phase    Phase
	state    param.State
	policy   resolve.Policy
	rules    conflict.Config
	pending  []Command
	current  []conflict.Conflict // conflicts of the cycle awaiting a decision
	preMerge param.State         // last conflict-free state before the pending merge

	sec      *security.Machine
	ckpts    *checkpoint.Store // may be nil: no durability
	events   *bus.Bus          // may be nil
	adapters []Adapter
	ring     *audit.Ring

	logCh   chan audit.Entry
	logOnce sync.Once
	logWG   sync.WaitGroup
}

// New creates a dispatcher owning the given initial state. sec may be nil, in
// which case an inactive machine is created. ckpts and events may be nil.
func New(initial param.State, cfg Config, sec *security.Machine, ckpts *checkpoint.Store, events *bus.Bus, adapters ...Adapter) *Dispatcher {
	if sec == nil {
		sec = security.NewMachine(events, security.DefaultConfig())
	}
	if cfg.AuditRingCap <= 0 {
		cfg.AuditRingCap = DefaultConfig().AuditRingCap
	}
	d := &Dispatcher{
		phase:    PhaseIdle,
		state:    initial,
		preMerge: initial,
		policy:   cfg.Policy,
		rules:    cfg.Rules,
		sec:      sec,
		ckpts:    ckpts,
		events:   events,
		adapters: adapters,
		ring:     audit.NewRing(cfg.AuditRingCap),
	}
	if ckpts != nil {
		d.logCh = make(chan audit.Entry, 256)
		d.logWG.Add(1)
		go d.auditWriter()
	}
	return d
}

// Close stops the background audit writer, draining queued rows.
func (d *Dispatcher) Close() {
	if d.logCh != nil {
		d.logOnce.Do(func() { close(d.logCh) })
		d.logWG.Wait()
	}
}

// #endregion dispatcher

// #region submit

// Submit routes one command through the state machine. Commands are processed
// strictly sequentially under a single lock; there is no parallel mutation of
// the parameter state. Update and checkpoint commands arriving while a cycle
// is in flight are queued FIFO and drained when the cycle reaches idle.
func (d *Dispatcher) Submit(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch c := cmd.(type) {
	// Global commands apply immediately in any phase.
	case ToggleValidation:
		d.policy.ValidationEnabled = !d.policy.ValidationEnabled
		log.Printf("[SYNC] validation=%v", d.policy.ValidationEnabled)
		return nil
	case ToggleAutoResolve:
		d.policy.AutoResolve = !d.policy.AutoResolve
		log.Printf("[SYNC] auto-resolve=%v", d.policy.AutoResolve)
		return nil
	case ClearLogs:
		d.ring.Clear()
		log.Printf("[SYNC] conflict ring cleared")
		return nil

	// Security commands run on the machine's independent lifecycle and never
	// enter the validate/resolve pipeline.
	case Activate:
		d.sec.Activate()
		return nil
	case Deactivate:
		d.sec.Deactivate()
		return nil
	case Escalate:
		d.sec.Escalate()
		return nil
	case Deescalate:
		d.sec.Deescalate()
		return nil
	case SetLevel:
		return d.sec.SetLevel(c.Level)
	case ThreatDetected:
		d.sec.ThreatDetected(c.Score, c.Threats)
		return nil
	case ThreatCleared:
		d.sec.ThreatCleared(c.ID)
		return nil
	case TriggerAlert:
		d.sec.TriggerAlert(c.Pattern, c.Config)
		return nil
	case StopAlerts:
		d.sec.StopAlerts()
		return nil
	case PerformanceDegraded:
		d.sec.PerformanceDegraded(c.Metrics)
		return nil
	case PerformanceRecovered:
		d.sec.PerformanceRecovered()
		return nil
	case BridgeConnect:
		d.sec.BridgeConnect(c.System)
		return nil
	case BridgeDisconnect:
		d.sec.BridgeDisconnect(c.System)
		return nil

	// Resolution commands are only meaningful while a conflict is pending.
	case AutoResolve:
		if d.phase != PhaseConflictDetected {
			return fmt.Errorf("auto-resolve: no conflict pending (phase %s)", d.phase)
		}
		if !d.policy.AutoResolve {
			return fmt.Errorf("auto-resolve is disabled; conflict remains pending")
		}
		d.runAutoResolve()
		return nil
	case ManualResolve:
		if d.phase != PhaseConflictDetected {
			return fmt.Errorf("manual-resolve: no conflict pending (phase %s)", d.phase)
		}
		d.runManualResolve(c)
		return nil
	case Ignore:
		if d.phase != PhaseConflictDetected {
			return fmt.Errorf("ignore: no conflict pending (phase %s)", d.phase)
		}
		d.runIgnore()
		return nil
	case Rollback:
		if d.phase != PhaseIdle && d.phase != PhaseConflictDetected {
			d.pending = append(d.pending, cmd)
			return nil
		}
		d.runRollback()
		return nil

	// Update and checkpoint commands start a cycle; mid-cycle they queue.
	case UpdateSubsystem, SaveCheckpoint, RestoreCheckpoint:
		if d.phase != PhaseIdle {
			d.pending = append(d.pending, cmd)
			return nil
		}
		d.handleQueued(cmd)
		return nil

	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// handleQueued processes an update/checkpoint command from idle. Caller holds
// the lock and guarantees phase == idle.
func (d *Dispatcher) handleQueued(cmd Command) {
	switch c := cmd.(type) {
	case UpdateSubsystem:
		d.runUpdate(c)
	case SaveCheckpoint:
		d.runSave(c.Name)
	case RestoreCheckpoint:
		d.runRestore(c.ID)
	case Rollback:
		d.runRollback()
	}
}

// #endregion submit

// #region cycle

// runUpdate executes one synchronization cycle: merge → evaluate → branch.
func (d *Dispatcher) runUpdate(c UpdateSubsystem) {
	d.phase = PhaseValidating
	d.preMerge = d.state

	rep := d.state.Apply(c.Subsystem, c.Params)
	if len(rep.Clamped) > 0 {
		log.Printf("[SYNC] update %s clamped keys %v", c.Subsystem, rep.Clamped)
	}
	if len(rep.Skipped) > 0 {
		log.Printf("[SYNC] update %s skipped keys %v", c.Subsystem, rep.Skipped)
	}

	rules := d.rules
	rules.Enabled = d.policy.ValidationEnabled
	conflicts := conflict.Evaluate(d.state, d.sec.Snapshot(), rules)
	if len(conflicts) == 0 {
		d.synchronize()
		return
	}

	d.current = conflicts
	d.phase = PhaseConflictDetected
	log.Printf("[SYNC] %d conflict(s) detected, highest severity %s",
		len(conflicts), conflict.Highest(conflicts))

	if d.policy.AutoResolve {
		d.surfaceConflicts(string(resolve.OutcomeResolved))
		d.runAutoResolve()
		return
	}
	d.surfaceConflicts(string(resolve.OutcomeAwaitingDecision))
}

// runAutoResolve checkpoints the last conflict-free state, then applies the
// one-pass resolver. Caller guarantees phase == conflict_detected.
func (d *Dispatcher) runAutoResolve() {
	// Snapshot the pre-merge state so the automatic nudges are never silently
	// destructive; persistence is fire-and-forget inside the store.
	if d.ckpts != nil {
		if _, err := d.ckpts.Save("auto-pre-resolve", d.preMerge); err != nil {
			log.Printf("[SYNC] auto checkpoint failed: %v", err)
		}
	}
	d.phase = PhaseResolving
	res := resolve.Resolve(d.state, d.current, d.policy)
	if res.Outcome != resolve.OutcomeResolved {
		d.phase = PhaseConflictDetected
		log.Printf("[SYNC] resolution did not complete: %s", res.Reason)
		return
	}
	d.state = res.NewState
	for _, n := range res.Nudges {
		log.Printf("[SYNC] nudge %s %s %.3f → %.3f", n.Kind, n.Field, n.From, n.To)
	}
	d.synchronize()
}

// runManualResolve merges the operator patch with no validation pass in the
// same cycle.
func (d *Dispatcher) runManualResolve(c ManualResolve) {
	d.phase = PhaseResolving
	st, rep := resolve.ApplyManual(d.state, c.Subsystem, c.Patch)
	d.state = st
	if len(rep.Skipped) > 0 {
		log.Printf("[SYNC] manual resolve skipped keys %v", rep.Skipped)
	}
	d.synchronize()
}

// runIgnore applies the conflicting state as-is. The conflicts stay in the
// audit ring as the record of the operator override.
func (d *Dispatcher) runIgnore() {
	log.Printf("[SYNC] operator ignored %d conflict(s)", len(d.current))
	d.synchronize()
}

// runRollback replaces the state with the most recent checkpoint. With no
// checkpoints it is a no-op: state and phase are left untouched.
func (d *Dispatcher) runRollback() {
	if d.ckpts == nil {
		log.Printf("[SYNC] rollback: no checkpoint store, no-op")
		return
	}
	st, err := d.ckpts.Restore("")
	if err != nil {
		log.Printf("[SYNC] rollback: %v, no-op", err)
		return
	}
	d.state = st
	log.Printf("[SYNC] rolled back to most recent checkpoint")
	d.synchronize()
}

// runSave snapshots the current state on explicit request.
func (d *Dispatcher) runSave(name string) {
	if d.ckpts == nil {
		log.Printf("[SYNC] checkpoint save: no store configured")
		return
	}
	cp, err := d.ckpts.Save(name, d.state)
	if err != nil {
		log.Printf("[SYNC] checkpoint save: %v", err)
		return
	}
	log.Printf("[SYNC] checkpoint %q saved (%s)", cp.Name, cp.ID)
}

// runRestore restores a named checkpoint and applies it to the adapters.
func (d *Dispatcher) runRestore(id string) {
	if d.ckpts == nil {
		log.Printf("[SYNC] checkpoint restore: no store configured")
		return
	}
	st, err := d.ckpts.Restore(id)
	if err != nil {
		log.Printf("[SYNC] checkpoint restore: %v", err)
		return
	}
	d.state = st
	d.synchronize()
}

// synchronize applies the accepted state to every adapter, emits the applied
// event, and falls through to idle, draining any queued commands.
func (d *Dispatcher) synchronize() {
	d.phase = PhaseSynchronized
	snapshot := d.state
	for _, a := range d.adapters {
		if err := a.Apply(snapshot); err != nil {
			log.Printf("[SYNC] adapter %s apply: %v", a.Subsystem(), err)
		}
	}
	d.publish(bus.Event{
		Kind:      bus.EventStateApplied,
		ID:        uuid.New().String(),
		Message:   "synchronized state applied to adapters",
		Timestamp: time.Now().UTC(),
	})
	d.current = nil
	d.preMerge = d.state
	d.phase = PhaseIdle
	log.Printf("[SYNC] synchronized")
	d.drainPending()
}

// drainPending processes queued commands in submission order. A queued update
// that detects a conflict with auto-resolve disabled parks the dispatcher in
// conflict_detected; the remaining queue waits for the operator decision.
func (d *Dispatcher) drainPending() {
	for len(d.pending) > 0 && d.phase == PhaseIdle {
		next := d.pending[0]
		d.pending = d.pending[1:]
		d.handleQueued(next)
	}
}

// #endregion cycle

// #region notifications

// surfaceConflicts emits one notification per conflict and records each in
// the bounded ring and the durable conflict log, independent of how the
// conflict is later resolved.
func (d *Dispatcher) surfaceConflicts(outcome string) {
	now := time.Now().UTC()
	for _, c := range d.current {
		id := uuid.New().String()
		d.publish(bus.Event{
			Kind:       bus.EventConflict,
			ID:         id,
			Severity:   string(c.Severity),
			Message:    c.Message,
			Suggestion: c.SuggestedFix,
			Timestamp:  now,
		})
		entry := audit.FromConflict(id, c, outcome)
		entry.CreatedAt = now
		d.ring.Append(entry)
		if d.logCh != nil {
			select {
			case d.logCh <- entry:
			default:
				log.Printf("[SYNC] audit queue full — conflict row dropped kind=%s", c.Kind)
			}
		}
	}
}

func (d *Dispatcher) publish(ev bus.Event) {
	if d.events == nil {
		return
	}
	d.events.Publish(ev)
}

// auditWriter persists surfaced conflicts off the synchronization path.
func (d *Dispatcher) auditWriter() {
	defer d.logWG.Done()
	for entry := range d.logCh {
		if err := audit.Log(d.ckpts.DB(), entry); err != nil {
			log.Printf("[SYNC] audit write: %v", err)
		}
	}
}

// #endregion notifications

// #region accessors

// State returns a copy of the authoritative parameter state.
func (d *Dispatcher) State() param.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Phase returns the current state-machine phase.
func (d *Dispatcher) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Conflicts returns the conflicts of the cycle awaiting a decision.
func (d *Dispatcher) Conflicts() []conflict.Conflict {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]conflict.Conflict, len(d.current))
	copy(out, d.current)
	return out
}

// Policy returns the active resolution policy.
func (d *Dispatcher) Policy() resolve.Policy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.policy
}

// Security returns the escalation machine snapshot.
func (d *Dispatcher) Security() security.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sec.Snapshot()
}

// AuditLog returns the retained in-memory conflict entries, oldest first.
func (d *Dispatcher) AuditLog() []audit.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ring.Entries()
}

// PendingLen reports how many commands are queued behind the current cycle.
func (d *Dispatcher) PendingLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// #endregion accessors
