package param

// #region subsystem

// Subsystem names one of the five rendering subsystems the engine synchronizes.
type Subsystem string

const (
	Bloom      Subsystem = "bloom"
	PBR        Subsystem = "pbr"
	Lighting   Subsystem = "lighting"
	Background Subsystem = "background"
	Security   Subsystem = "security"
)

// Subsystems lists every subsystem in canonical order.
var Subsystems = []Subsystem{Bloom, PBR, Lighting, Background, Security}

// ParseSubsystem validates a subsystem name.
func ParseSubsystem(s string) (Subsystem, bool) {
	switch Subsystem(s) {
	case Bloom, PBR, Lighting, Background, Security:
		return Subsystem(s), true
	}
	return "", false
}

// #endregion subsystem

// #region value

// ValueKind tags the payload carried by a Value.
type ValueKind string

const (
	KindNumber  ValueKind = "number"
	KindBoolean ValueKind = "boolean"
	KindText    ValueKind = "text"
)

// Value is a tagged parameter value. Exactly one payload field is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind
	Num  float32
	Bool bool
	Text string
}

// Number wraps a float32 parameter value.
func Number(v float32) Value { return Value{Kind: KindNumber, Num: v} }

// Boolean wraps a bool parameter value.
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Text wraps a string parameter value (hex colors, enum names).
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Patch is a partial parameter update for one subsystem. Only the keys present
// are merged; everything else retains its prior value.
type Patch map[string]Value

// #endregion value

// #region subsystem-params

// BloomParams controls the glow post-process.
type BloomParams struct {
	Enabled           bool    `json:"enabled"`
	Strength          float32 `json:"strength"`           // [0, 3]
	Threshold         float32 `json:"threshold"`          // [0, 1]
	Radius            float32 `json:"radius"`             // [0, 1]
	EmissiveIntensity float32 `json:"emissive_intensity"` // [0, 2]
}

// PBRParams controls physically-based material response.
type PBRParams struct {
	Metalness         float32 `json:"metalness"`          // [0, 1]
	Roughness         float32 `json:"roughness"`          // [0, 1]
	AmbientMultiplier float32 `json:"ambient_multiplier"` // [0, 2]
}

// LightingParams controls scene lighting and tone mapping.
type LightingParams struct {
	Exposure         float32 `json:"exposure"`          // [0, 4]
	AmbientIntensity float32 `json:"ambient_intensity"` // [0, 10]
}

// BackgroundParams controls the scene background. Brightness is derived from
// Color on every apply and can never be set directly.
type BackgroundParams struct {
	Color      string  `json:"color"`      // "#rrggbb"
	Brightness float32 `json:"brightness"` // derived, [0, 1]
}

// SecurityParams controls the security color-overlay subsystem.
type SecurityParams struct {
	OverlayEnabled bool    `json:"overlay_enabled"`
	OverlayColor   string  `json:"overlay_color"`   // "#rrggbb"
	OverlayOpacity float32 `json:"overlay_opacity"` // [0, 1]
	PulseSpeed     float32 `json:"pulse_speed"`     // [0, 5]
}

// #endregion subsystem-params

// #region state

// State is the authoritative parameter state for every subsystem. It is a pure
// value type: assignment produces an independent deep copy, which is how
// checkpoints snapshot it.
type State struct {
	Bloom      BloomParams      `json:"bloom"`
	PBR        PBRParams        `json:"pbr"`
	Lighting   LightingParams   `json:"lighting"`
	Background BackgroundParams `json:"background"`
	Security   SecurityParams   `json:"security"`
}

// DefaultState returns the subsystem defaults used at system start.
// The defaults are conflict-free.
func DefaultState() State {
	bg := BackgroundParams{Color: "#1a1a2e"}
	bg.Brightness = DeriveBrightness(bg.Color)
	return State{
		Bloom: BloomParams{
			Enabled:           true,
			Strength:          1.0,
			Threshold:         0.8,
			Radius:            0.5,
			EmissiveIntensity: 0.3,
		},
		PBR: PBRParams{
			Metalness:         0.5,
			Roughness:         0.5,
			AmbientMultiplier: 1.0,
		},
		Lighting: LightingParams{
			Exposure:         1.0,
			AmbientIntensity: 2.0,
		},
		Background: bg,
		Security: SecurityParams{
			OverlayEnabled: false,
			OverlayColor:   "#ff0000",
			OverlayOpacity: 0.8,
			PulseSpeed:     1.0,
		},
	}
}

// #endregion state

// #region apply-report

// ApplyReport records what a patch application did per key.
type ApplyReport struct {
	Applied []string // keys merged into the store
	Clamped []string // keys whose values were clamped to their range
	Skipped []string // unknown keys and derived/read-only keys
}

// #endregion apply-report
