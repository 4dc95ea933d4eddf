package security

import (
	"time"

	"github.com/mjharwell/scenesync/internal/param"
)

// #region level

// Level is a security escalation level. Levels form a strict total order:
// normal < scanning < alert < lockdown.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelScanning Level = "scanning"
	LevelAlert    Level = "alert"
	LevelLockdown Level = "lockdown"
)

// levelOrder maps each level to its position in the escalation ladder.
var levelOrder = map[Level]int{
	LevelNormal:   0,
	LevelScanning: 1,
	LevelAlert:    2,
	LevelLockdown: 3,
}

var levelByOrder = []Level{LevelNormal, LevelScanning, LevelAlert, LevelLockdown}

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, bool) {
	l := Level(s)
	_, ok := levelOrder[l]
	return l, ok
}

// #endregion level

// #region threat

// Threat is one entry in the accumulating threat set.
type Threat struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Score       float32   `json:"score"`
	DetectedAt  time.Time `json:"detected_at"`
}

// #endregion threat

// #region alert

// AlertConfig carries the visual configuration for a triggered alert.
type AlertConfig struct {
	Color     string  `json:"color"`
	Intensity float32 `json:"intensity"`
}

// DefaultAlertConfig returns the red-flash defaults used when a trigger
// supplies no config.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{Color: "#ff0000", Intensity: 0.8}
}

// Alert is an active alert in trigger order.
type Alert struct {
	ID        string      `json:"id"`
	Pattern   string      `json:"pattern"`
	Config    AlertConfig `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
}

// #endregion alert

// #region performance

// PerformanceMode tracks the degradation tier chosen from frame metrics.
type PerformanceMode string

const (
	PerfNormal  PerformanceMode = "normal"
	PerfReduced PerformanceMode = "reduced"
	PerfMinimal PerformanceMode = "minimal"
)

// Metrics is a raw frame-metrics sample. Values may be malformed (negative
// FPS, >100% CPU); the machine clamps or ignores them and never panics.
type Metrics struct {
	FPS        float32 `json:"fps"`
	MemoryMB   float32 `json:"memory_mb"`
	CPUPercent float32 `json:"cpu_percent"`
}

// #endregion performance

// #region config

// Config holds machine tunables.
type Config struct {
	// ThreatCap bounds the accumulating threat set; the oldest threat is
	// evicted when a detection would exceed it.
	ThreatCap int
}

// DefaultConfig returns the standard machine configuration.
func DefaultConfig() Config {
	return Config{ThreatCap: 64}
}

// #endregion config

// #region snapshot

// Snapshot is a read-only copy of the machine state. Other components
// (notably the conflict evaluator) consume snapshots, never the machine.
type Snapshot struct {
	Active      bool
	Level       Level
	ThreatScore float32
	Threats     []Threat
	Alerts      []Alert
	PerfMode    PerformanceMode
	BreakerOpen bool
	SecuredHDR  bool
	Bridges     map[param.Subsystem]bool
}

// #endregion snapshot
