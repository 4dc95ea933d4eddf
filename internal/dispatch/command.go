package dispatch

import (
	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region command

// Command is the closed union of everything the dispatcher accepts. Adding a
// command means adding a concrete type here and a case to the dispatcher's
// switch, so the set stays compile-time checked.
type Command interface {
	isCommand()
}

// #endregion command

// #region update-commands

// UpdateSubsystem merges a partial parameter patch into one subsystem.
type UpdateSubsystem struct {
	Subsystem param.Subsystem
	Params    param.Patch
}

// SaveCheckpoint snapshots the current state under an optional name.
type SaveCheckpoint struct {
	Name string
}

// RestoreCheckpoint restores a prior snapshot; an empty ID restores the most
// recent checkpoint.
type RestoreCheckpoint struct {
	ID string
}

// Rollback replaces the state with the most recent checkpoint. With no
// checkpoints available it is a no-op, not an error.
type Rollback struct{}

func (UpdateSubsystem) isCommand()   {}
func (SaveCheckpoint) isCommand()    {}
func (RestoreCheckpoint) isCommand() {}
func (Rollback) isCommand()          {}

// #endregion update-commands

// #region resolution-commands

// AutoResolve runs the automatic resolver against the pending conflicts.
// Only legal while a conflict is pending and auto-resolve is enabled.
type AutoResolve struct{}

// ManualResolve merges an explicit operator replacement patch; no validation
// pass runs in the same cycle.
type ManualResolve struct {
	Subsystem param.Subsystem
	Patch     param.Patch
}

// Ignore applies the conflicting state as-is, recording an operator override.
type Ignore struct{}

func (AutoResolve) isCommand()   {}
func (ManualResolve) isCommand() {}
func (Ignore) isCommand()        {}

// #endregion resolution-commands

// #region global-commands

// ToggleValidation flips the process-wide validation toggle. Applies
// immediately in any phase.
type ToggleValidation struct{}

// ToggleAutoResolve flips the process-wide auto-resolve toggle.
type ToggleAutoResolve struct{}

// ClearLogs empties the in-memory conflict ring.
type ClearLogs struct{}

func (ToggleValidation) isCommand()  {}
func (ToggleAutoResolve) isCommand() {}
func (ClearLogs) isCommand()         {}

// #endregion global-commands

// #region security-commands

// Activate starts the security escalation machine.
type Activate struct{}

// Deactivate fully resets the machine to its inactive state.
type Deactivate struct{}

// Escalate moves the security level one step up, clamped at lockdown.
type Escalate struct{}

// Deescalate moves the security level one step down, clamped at normal.
type Deescalate struct{}

// SetLevel jumps directly to the given level.
type SetLevel struct {
	Level security.Level
}

// ThreatDetected replaces the threat score and appends the given threats.
type ThreatDetected struct {
	Score   float32
	Threats []security.Threat
}

// ThreatCleared removes exactly the threat matching ID.
type ThreatCleared struct {
	ID string
}

// TriggerAlert appends an alert; a nil config uses the red-flash defaults.
type TriggerAlert struct {
	Pattern string
	Config  *security.AlertConfig
}

// StopAlerts clears all active alerts.
type StopAlerts struct{}

// PerformanceDegraded applies a frame-metrics sample.
type PerformanceDegraded struct {
	Metrics security.Metrics
}

// PerformanceRecovered resets the performance mode and closes the breaker.
type PerformanceRecovered struct{}

// BridgeConnect marks the named subsystem bridge as connected.
type BridgeConnect struct {
	System param.Subsystem
}

// BridgeDisconnect marks the named subsystem bridge as disconnected.
type BridgeDisconnect struct {
	System param.Subsystem
}

func (Activate) isCommand()             {}
func (Deactivate) isCommand()           {}
func (Escalate) isCommand()             {}
func (Deescalate) isCommand()           {}
func (SetLevel) isCommand()             {}
func (ThreatDetected) isCommand()       {}
func (ThreatCleared) isCommand()        {}
func (TriggerAlert) isCommand()         {}
func (StopAlerts) isCommand()           {}
func (PerformanceDegraded) isCommand()  {}
func (PerformanceRecovered) isCommand() {}
func (BridgeConnect) isCommand()        {}
func (BridgeDisconnect) isCommand()     {}

// #endregion security-commands
