package resolve

import (
	"fmt"

	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
)

// #region types

// Outcome is the result category of a resolution attempt.
type Outcome string

const (
	OutcomeResolved         Outcome = "resolved"
	OutcomeAwaitingDecision Outcome = "awaiting_decision"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeRolledBack       Outcome = "rolled_back"
	OutcomeStillConflicting Outcome = "still_conflicting"
)

// Policy holds the process-wide resolution toggles. Both are mutated only by
// explicit operator commands.
type Policy struct {
	ValidationEnabled bool
	AutoResolve       bool
}

// DefaultPolicy enables validation and automatic resolution.
func DefaultPolicy() Policy {
	return Policy{ValidationEnabled: true, AutoResolve: true}
}

// AppliedNudge records one corrective adjustment for audit.
type AppliedNudge struct {
	Kind  conflict.Kind
	Field string
	From  float32
	To    float32
}

// Result bundles the resolver output.
type Result struct {
	NewState param.State
	Outcome  Outcome
	Nudges   []AppliedNudge
	Reason   string
}

// #endregion types

// #region resolve

// metalnessFloor keeps the auto-resolve metalness reduction from zeroing the
// material entirely.
const metalnessFloor = 0.1

// Resolve applies the resolution policy to a conflicted state. With
// AutoResolve off the state is returned unchanged and the outcome is
// awaiting-decision. With AutoResolve on, one deterministic corrective nudge
// is applied per conflict kind, in detection order, each clamped to the
// parameter's valid range. A single pass only: the engine does not iterate to
// fixpoint, so the next external update re-validates whatever remains.
func Resolve(st param.State, conflicts []conflict.Conflict, policy Policy) Result {
	if len(conflicts) == 0 {
		return Result{NewState: st, Outcome: OutcomeResolved, Reason: "no conflicts"}
	}
	if !policy.AutoResolve {
		return Result{
			NewState: st,
			Outcome:  OutcomeAwaitingDecision,
			Reason:   fmt.Sprintf("%d conflict(s) await an operator decision", len(conflicts)),
		}
	}

	var nudges []AppliedNudge
	record := func(kind conflict.Kind, field string, from, to float32) {
		nudges = append(nudges, AppliedNudge{Kind: kind, Field: field, From: from, To: to})
	}

	for _, c := range conflicts {
		switch c.Kind {
		case conflict.KindBloomWashedOut, conflict.KindBloomAbsorbed:
			from := st.Bloom.Strength
			st.Bloom.Strength = param.Clamp(from*1.5, 0, 3)
			record(c.Kind, "bloom.strength", from, st.Bloom.Strength)

			from = st.Lighting.Exposure
			st.Lighting.Exposure = param.Clamp(from*1.2, 0, 4)
			record(c.Kind, "lighting.exposure", from, st.Lighting.Exposure)

		case conflict.KindPBRBloomClash:
			from := st.PBR.Metalness
			st.PBR.Metalness = param.Clamp(from*0.7, metalnessFloor, 1)
			record(c.Kind, "pbr.metalness", from, st.PBR.Metalness)

		case conflict.KindExposureLow:
			from := st.Lighting.Exposure
			if from < 0.5 {
				st.Lighting.Exposure = 0.5
				record(c.Kind, "lighting.exposure", from, st.Lighting.Exposure)
			}

		case conflict.KindExposureHigh:
			from := st.Lighting.Exposure
			if from > 2.5 {
				st.Lighting.Exposure = 2.5
				record(c.Kind, "lighting.exposure", from, st.Lighting.Exposure)
			}

		case conflict.KindDarkSceneUnderLit:
			from := st.PBR.AmbientMultiplier
			st.PBR.AmbientMultiplier = param.Clamp(from*1.3, 0, 2)
			record(c.Kind, "pbr.ambientMultiplier", from, st.PBR.AmbientMultiplier)

		case conflict.KindSecuredHDROverride:
			from := boolToFloat(st.Bloom.Enabled)
			st.Bloom.Enabled = false
			record(c.Kind, "bloom.enabled", from, 0)
		}
	}

	return Result{
		NewState: st,
		Outcome:  OutcomeResolved,
		Nudges:   nudges,
		Reason:   fmt.Sprintf("auto-resolved %d conflict(s) with %d nudge(s)", len(conflicts), len(nudges)),
	}
}

// #endregion resolve

// #region manual

// ApplyManual merges an explicit operator replacement patch directly into the
// state. No validation pass runs in the same cycle; the next triggering
// update re-validates.
func ApplyManual(st param.State, sub param.Subsystem, patch param.Patch) (param.State, param.ApplyReport) {
	rep := st.Apply(sub, patch)
	return st, rep
}

// #endregion manual

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
