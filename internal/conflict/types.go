package conflict

import "github.com/mjharwell/scenesync/internal/param"

// #region severity

// Severity grades how badly a conflict degrades the rendered frame.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for tie-breaking; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// #endregion severity

// #region kind

// Kind identifies a conflict rule.
type Kind string

const (
	// KindBloomWashedOut: a bright background under low exposure makes bloom
	// practically invisible.
	KindBloomWashedOut Kind = "bloom_washed_out"
	// KindBloomAbsorbed: highly metallic, rough surfaces absorb the glow.
	KindBloomAbsorbed Kind = "bloom_absorbed"
	// KindPBRBloomClash: strong emissive bloom on a metallic surface reads as
	// visually incoherent.
	KindPBRBloomClash Kind = "pbr_bloom_clash"
	// KindExposureLow: exposure below the comfortable range loses shadow detail.
	KindExposureLow Kind = "exposure_low"
	// KindExposureHigh: exposure above the comfortable range clips color.
	KindExposureHigh Kind = "exposure_high"
	// KindDarkSceneUnderLit: a dark background with too little ambient light.
	KindDarkSceneUnderLit Kind = "dark_scene_under_lit"
	// KindSecuredHDROverride: bloom left enabled while lockdown's secured HDR
	// mode is active; legitimate only as an explicit operator override.
	KindSecuredHDROverride Kind = "secured_hdr_override"
)

// kindOrder fixes the canonical output ordering: bloom-visibility conflicts,
// then pbr/bloom, then exposure range, then background/lighting balance, then
// security overrides.
var kindOrder = map[Kind]int{
	KindBloomWashedOut:     0,
	KindBloomAbsorbed:      0,
	KindPBRBloomClash:      1,
	KindExposureLow:        2,
	KindExposureHigh:       2,
	KindDarkSceneUnderLit:  3,
	KindSecuredHDROverride: 4,
}

// #endregion kind

// #region conflict

// Conflict is a derived finding. Conflicts are recomputed from the parameter
// state on every evaluation and never stored as primary state.
type Conflict struct {
	Kind         Kind
	Severity     Severity
	Subsystems   []param.Subsystem
	Message      string
	SuggestedFix string
}

// #endregion conflict

// #region config

// Config holds the rule thresholds. Enabled mirrors the process-wide
// validation toggle: a disabled evaluator returns nil unconditionally.
type Config struct {
	Enabled bool

	WashedOutBrightness float32 // background brightness at/above which bloom washes out
	WashedOutExposure   float32 // exposure at/below which bloom washes out
	AbsorbedMetalness   float32
	AbsorbedRoughness   float32
	ClashMetalness      float32
	ClashEmissive       float32
	ExposureFloor       float32
	ExposureCeiling     float32
	DarkBrightness      float32
	DarkAmbientProduct  float32
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		WashedOutBrightness: 0.8,
		WashedOutExposure:   0.5,
		AbsorbedMetalness:   0.9,
		AbsorbedRoughness:   0.8,
		ClashMetalness:      0.8,
		ClashEmissive:       0.5,
		ExposureFloor:       0.3,
		ExposureCeiling:     3.0,
		DarkBrightness:      0.2,
		DarkAmbientProduct:  2.0,
	}
}

// #endregion config
