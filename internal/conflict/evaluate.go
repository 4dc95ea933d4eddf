package conflict

import (
	"fmt"
	"sort"

	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region evaluate

// Evaluate derives the ordered conflict list from a parameter state and a
// security snapshot. It is pure, side-effect-free, and deterministic:
// identical input yields an identical, identically-ordered output. Each rule
// independently appends zero or one conflict, so a single call may surface
// several simultaneous conflicts across subsystem pairs. When cfg.Enabled is
// false the evaluator returns nil unconditionally.
func Evaluate(st param.State, sec security.Snapshot, cfg Config) []Conflict {
	if !cfg.Enabled {
		return nil
	}

	var found []Conflict

	// Bloom visibility: bright background under low exposure.
	if st.Background.Brightness >= cfg.WashedOutBrightness && st.Lighting.Exposure <= cfg.WashedOutExposure {
		found = append(found, Conflict{
			Kind:       KindBloomWashedOut,
			Severity:   SeverityHigh,
			Subsystems: []param.Subsystem{param.Bloom, param.Background, param.Lighting},
			Message: fmt.Sprintf("bloom is invisible: background brightness %.2f with exposure %.2f",
				st.Background.Brightness, st.Lighting.Exposure),
			SuggestedFix: "raise bloom strength and exposure, or darken the background",
		})
	}

	// Bloom visibility: metallic rough surfaces absorb the glow.
	if st.PBR.Metalness >= cfg.AbsorbedMetalness && st.PBR.Roughness >= cfg.AbsorbedRoughness {
		found = append(found, Conflict{
			Kind:       KindBloomAbsorbed,
			Severity:   SeverityHigh,
			Subsystems: []param.Subsystem{param.Bloom, param.PBR},
			Message: fmt.Sprintf("bloom is invisible: metalness %.2f with roughness %.2f absorbs the glow",
				st.PBR.Metalness, st.PBR.Roughness),
			SuggestedFix: "lower metalness or roughness, or raise bloom strength",
		})
	}

	// PBR/bloom incoherence.
	if st.PBR.Metalness >= cfg.ClashMetalness && st.Bloom.EmissiveIntensity >= cfg.ClashEmissive {
		found = append(found, Conflict{
			Kind:       KindPBRBloomClash,
			Severity:   SeverityMedium,
			Subsystems: []param.Subsystem{param.Bloom, param.PBR},
			Message: fmt.Sprintf("emissive bloom %.2f on metalness %.2f reads as incoherent",
				st.Bloom.EmissiveIntensity, st.PBR.Metalness),
			SuggestedFix: "reduce metalness or emissive intensity",
		})
	}

	// Exposure comfortable range.
	if st.Lighting.Exposure < cfg.ExposureFloor {
		found = append(found, Conflict{
			Kind:         KindExposureLow,
			Severity:     SeverityLow,
			Subsystems:   []param.Subsystem{param.Lighting},
			Message:      fmt.Sprintf("exposure %.2f loses shadow detail", st.Lighting.Exposure),
			SuggestedFix: "raise exposure to at least 0.5",
		})
	} else if st.Lighting.Exposure > cfg.ExposureCeiling {
		found = append(found, Conflict{
			Kind:         KindExposureHigh,
			Severity:     SeverityMedium,
			Subsystems:   []param.Subsystem{param.Lighting},
			Message:      fmt.Sprintf("exposure %.2f clips color", st.Lighting.Exposure),
			SuggestedFix: "cap exposure at 2.5",
		})
	}

	// Dark-scene under-lighting.
	ambientProduct := st.Lighting.AmbientIntensity * st.PBR.AmbientMultiplier
	if st.Background.Brightness < cfg.DarkBrightness && ambientProduct < cfg.DarkAmbientProduct {
		found = append(found, Conflict{
			Kind:       KindDarkSceneUnderLit,
			Severity:   SeverityLow,
			Subsystems: []param.Subsystem{param.Background, param.Lighting, param.PBR},
			Message: fmt.Sprintf("dark background %.2f with ambient product %.2f leaves the scene under-lit",
				st.Background.Brightness, ambientProduct),
			SuggestedFix: "raise the ambient multiplier",
		})
	}

	// Secured HDR override: bloom left on while lockdown's secured HDR mode is
	// active. Legitimate only as an explicit operator override.
	if sec.Active && sec.Level == security.LevelLockdown && sec.SecuredHDR && st.Bloom.Enabled {
		found = append(found, Conflict{
			Kind:         KindSecuredHDROverride,
			Severity:     SeverityMedium,
			Subsystems:   []param.Subsystem{param.Bloom, param.Security},
			Message:      "bloom enabled while secured HDR mode is active under lockdown",
			SuggestedFix: "disable bloom or record an operator override",
		})
	}

	// Canonical ordering: rule group first, then severity high-first. The sort
	// is stable, so rules within one group keep their detection order.
	sort.SliceStable(found, func(i, j int) bool {
		gi, gj := kindOrder[found[i].Kind], kindOrder[found[j].Kind]
		if gi != gj {
			return gi < gj
		}
		return found[i].Severity.Rank() > found[j].Severity.Rank()
	})
	return found
}

// #endregion evaluate

// #region highest

// Highest returns the most severe severity present, or "" for an empty list.
func Highest(conflicts []Conflict) Severity {
	var best Severity
	for _, c := range conflicts {
		if best == "" || c.Severity.Rank() > best.Rank() {
			best = c.Severity
		}
	}
	return best
}

// #endregion highest
