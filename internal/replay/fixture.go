package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/resolve"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	StartState      *param.State            `json:"start_state,omitempty"` // nil = defaults
	Security        FixtureSecurity         `json:"security"`
	Policy          FixturePolicy           `json:"policy"`
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureSecurity is the JSON-serializable security snapshot a run evaluates
// against.
type FixtureSecurity struct {
	Active     bool   `json:"active"`
	Level      string `json:"level"`
	SecuredHDR bool   `json:"secured_hdr"`
}

// FixturePolicy mirrors resolve.Policy with JSON tags.
type FixturePolicy struct {
	ValidationEnabled bool `json:"validation_enabled"`
	AutoResolve       bool `json:"auto_resolve"`
}

// FixtureStep mirrors Step with JSON tags. Patch values are plain JSON
// scalars converted to tagged parameter values on load.
type FixtureStep struct {
	Name      string         `json:"name"`
	Subsystem string         `json:"subsystem"`
	Patch     map[string]any `json:"patch"`
}

// FixtureExpectedResult captures the expected action per step.
type FixtureExpectedResult struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// StartingState returns the fixture's start state, or the engine defaults.
func (f *Fixture) StartingState() param.State {
	if f.StartState != nil {
		return *f.StartState
	}
	return param.DefaultState()
}

// ToSnapshot converts the fixture security block to a domain snapshot.
func (fs FixtureSecurity) ToSnapshot() security.Snapshot {
	level := security.LevelNormal
	if l, ok := security.ParseLevel(fs.Level); ok {
		level = l
	}
	return security.Snapshot{
		Active:     fs.Active,
		Level:      level,
		SecuredHDR: fs.SecuredHDR,
		PerfMode:   security.PerfNormal,
	}
}

// ToConfig converts the fixture policy to a replay config with standard rule
// thresholds.
func (f *Fixture) ToConfig() Config {
	return Config{
		Rules: conflict.DefaultConfig(),
		Policy: resolve.Policy{
			ValidationEnabled: f.Policy.ValidationEnabled,
			AutoResolve:       f.Policy.AutoResolve,
		},
	}
}

// ToStep converts a fixture step to a domain step. Unknown subsystems and
// unconvertible patch values fail the load rather than silently replaying a
// different command than was recorded.
func (fs FixtureStep) ToStep() (Step, error) {
	sub, ok := param.ParseSubsystem(fs.Subsystem)
	if !ok {
		return Step{}, fmt.Errorf("step %s: unknown subsystem %q", fs.Name, fs.Subsystem)
	}
	patch := make(param.Patch, len(fs.Patch))
	for key, raw := range fs.Patch {
		switch v := raw.(type) {
		case float64:
			patch[key] = param.Number(float32(v))
		case bool:
			patch[key] = param.Boolean(v)
		case string:
			patch[key] = param.Text(v)
		default:
			return Step{}, fmt.Errorf("step %s: key %s has unsupported value %T", fs.Name, key, raw)
		}
	}
	return Step{Name: fs.Name, Subsystem: sub, Patch: patch}, nil
}

// Steps converts every fixture step.
func (f *Fixture) ToSteps() ([]Step, error) {
	steps := make([]Step, 0, len(f.Steps))
	for _, fs := range f.Steps {
		s, err := fs.ToStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// #endregion fixture-loader
