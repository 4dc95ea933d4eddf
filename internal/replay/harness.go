package replay

import (
	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/resolve"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region types

// Step is a single recorded parameter update for replay.
type Step struct {
	Name      string
	Subsystem param.Subsystem
	Patch     param.Patch
}

// Config bundles the evaluator thresholds and policy for a replay run.
type Config struct {
	Rules  conflict.Config
	Policy resolve.Policy
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Rules:  conflict.DefaultConfig(),
		Policy: resolve.DefaultPolicy(),
	}
}

// Step actions.
const (
	ActionSynchronized = "synchronized"
	ActionResolved     = "resolved"
	ActionConflict     = "conflict"
)

// StepResult captures the outcome of replaying one step through the
// merge → evaluate → resolve pipeline.
type StepResult struct {
	Name      string
	Action    string
	Conflicts []conflict.Conflict
	Nudges    []resolve.AppliedNudge
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps int
	Clean      int
	Resolved   int
	Conflicted int
	FinalState param.State
}

// #endregion types

// #region replay

// Replay iterates through recorded steps, applying the full pipeline per
// step: merge → evaluate → auto-resolve or park. Operates entirely in-memory
// against a fixed security snapshot. A step that conflicts with auto-resolve
// disabled leaves the conflicted merge in place, exactly as the dispatcher
// would hold it for an operator decision.
func Replay(start param.State, sec security.Snapshot, steps []Step, cfg Config) ([]StepResult, param.State) {
	current := start
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		current.Apply(step.Subsystem, step.Patch)

		rules := cfg.Rules
		rules.Enabled = cfg.Policy.ValidationEnabled
		conflicts := conflict.Evaluate(current, sec, rules)
		if len(conflicts) == 0 {
			results = append(results, StepResult{Name: step.Name, Action: ActionSynchronized})
			continue
		}

		if !cfg.Policy.AutoResolve {
			results = append(results, StepResult{
				Name:      step.Name,
				Action:    ActionConflict,
				Conflicts: conflicts,
			})
			continue
		}

		res := resolve.Resolve(current, conflicts, cfg.Policy)
		current = res.NewState
		results = append(results, StepResult{
			Name:      step.Name,
			Action:    ActionResolved,
			Conflicts: conflicts,
			Nudges:    res.Nudges,
		})
	}

	return results, current
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult, finalState param.State) Summary {
	s := Summary{
		TotalSteps: len(results),
		FinalState: finalState,
	}
	for _, r := range results {
		switch r.Action {
		case ActionSynchronized:
			s.Clean++
		case ActionResolved:
			s.Resolved++
		case ActionConflict:
			s.Conflicted++
		}
	}
	return s
}

// #endregion replay
