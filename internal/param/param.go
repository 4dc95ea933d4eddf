package param

import (
	"sort"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// #region apply

// Apply merges a partial patch into the state for one subsystem. Only the keys
// present in the patch are touched. Out-of-range numerics are clamped to the
// nearest valid bound, never rejected and never stored invalid. Unknown keys
// and derived keys are skipped and reported. Keys are processed in sorted
// order so the report is deterministic.
func (s *State) Apply(sub Subsystem, p Patch) ApplyReport {
	var rep ApplyReport
	for _, key := range patchKeys(p) {
		v := p[key]
		switch sub {
		case Bloom:
			s.applyBloom(key, v, &rep)
		case PBR:
			s.applyPBR(key, v, &rep)
		case Lighting:
			s.applyLighting(key, v, &rep)
		case Background:
			s.applyBackground(key, v, &rep)
		case Security:
			s.applySecurity(key, v, &rep)
		default:
			rep.Skipped = append(rep.Skipped, key)
		}
	}
	// Derived fields are recomputed on every apply, not only when their
	// primary field changed.
	s.Background.Brightness = DeriveBrightness(s.Background.Color)
	return rep
}

func (s *State) applyBloom(key string, v Value, rep *ApplyReport) {
	switch key {
	case "enabled":
		applyBool(&s.Bloom.Enabled, key, v, rep)
	case "strength":
		applyNum(&s.Bloom.Strength, key, v, 0, 3, rep)
	case "threshold":
		applyNum(&s.Bloom.Threshold, key, v, 0, 1, rep)
	case "radius":
		applyNum(&s.Bloom.Radius, key, v, 0, 1, rep)
	case "emissiveIntensity":
		applyNum(&s.Bloom.EmissiveIntensity, key, v, 0, 2, rep)
	default:
		rep.Skipped = append(rep.Skipped, key)
	}
}

func (s *State) applyPBR(key string, v Value, rep *ApplyReport) {
	switch key {
	case "metalness":
		applyNum(&s.PBR.Metalness, key, v, 0, 1, rep)
	case "roughness":
		applyNum(&s.PBR.Roughness, key, v, 0, 1, rep)
	case "ambientMultiplier":
		applyNum(&s.PBR.AmbientMultiplier, key, v, 0, 2, rep)
	default:
		rep.Skipped = append(rep.Skipped, key)
	}
}

func (s *State) applyLighting(key string, v Value, rep *ApplyReport) {
	switch key {
	case "exposure":
		applyNum(&s.Lighting.Exposure, key, v, 0, 4, rep)
	case "ambientIntensity":
		applyNum(&s.Lighting.AmbientIntensity, key, v, 0, 10, rep)
	default:
		rep.Skipped = append(rep.Skipped, key)
	}
}

func (s *State) applyBackground(key string, v Value, rep *ApplyReport) {
	switch key {
	case "color":
		applyColor(&s.Background.Color, key, v, rep)
	case "brightness":
		// Derived field: read-only.
		rep.Skipped = append(rep.Skipped, key)
	default:
		rep.Skipped = append(rep.Skipped, key)
	}
}

func (s *State) applySecurity(key string, v Value, rep *ApplyReport) {
	switch key {
	case "overlayEnabled":
		applyBool(&s.Security.OverlayEnabled, key, v, rep)
	case "overlayColor":
		applyColor(&s.Security.OverlayColor, key, v, rep)
	case "overlayOpacity":
		applyNum(&s.Security.OverlayOpacity, key, v, 0, 1, rep)
	case "pulseSpeed":
		applyNum(&s.Security.PulseSpeed, key, v, 0, 5, rep)
	default:
		rep.Skipped = append(rep.Skipped, key)
	}
}

// #endregion apply

// #region derive

// DeriveBrightness computes perceptual brightness in [0, 1] from a "#rrggbb"
// color using Rec.601 luma weights. Unparseable colors derive to 0.
func DeriveBrightness(hex string) float32 {
	r, g, b, ok := parseHexColor(hex)
	if !ok {
		return 0
	}
	luma := 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
	return clampf(luma/255.0, 0, 1)
}

func parseHexColor(s string) (r, g, b uint8, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	rv, err1 := strconv.ParseUint(s[1:3], 16, 8)
	gv, err2 := strconv.ParseUint(s[3:5], 16, 8)
	bv, err3 := strconv.ParseUint(s[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return uint8(rv), uint8(gv), uint8(bv), true
}

// #endregion derive

// #region helpers

// applyNum clamps a numeric patch value into [lo, hi] and assigns it.
// Non-numeric values for numeric keys are skipped without touching dst.
func applyNum(dst *float32, key string, v Value, lo, hi float32, rep *ApplyReport) {
	if v.Kind != KindNumber {
		rep.Skipped = append(rep.Skipped, key)
		return
	}
	clamped := clampf(v.Num, lo, hi)
	if clamped != v.Num {
		rep.Clamped = append(rep.Clamped, key)
	}
	*dst = clamped
	rep.Applied = append(rep.Applied, key)
}

func applyBool(dst *bool, key string, v Value, rep *ApplyReport) {
	if v.Kind != KindBoolean {
		rep.Skipped = append(rep.Skipped, key)
		return
	}
	*dst = v.Bool
	rep.Applied = append(rep.Applied, key)
}

func applyColor(dst *string, key string, v Value, rep *ApplyReport) {
	if v.Kind != KindText {
		rep.Skipped = append(rep.Skipped, key)
		return
	}
	if _, _, _, ok := parseHexColor(v.Text); !ok {
		rep.Skipped = append(rep.Skipped, key)
		return
	}
	*dst = strings.ToLower(v.Text)
	rep.Applied = append(rep.Applied, key)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

func clampf(v, lo, hi float32) float32 { return Clamp(v, lo, hi) }

func patchKeys(p Patch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion helpers
