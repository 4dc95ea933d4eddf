package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mjharwell/scenesync/internal/bus"
	"github.com/mjharwell/scenesync/internal/checkpoint"
	"github.com/mjharwell/scenesync/internal/dispatch"
	"github.com/mjharwell/scenesync/internal/engcfg"
	"github.com/mjharwell/scenesync/internal/param"
	"github.com/mjharwell/scenesync/internal/security"
)

// #region main

func main() {
	_ = godotenv.Load()

	cfg, err := engcfg.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ckpts, err := checkpoint.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open checkpoint store: %v", err)
	}
	defer ckpts.Close()

	events := bus.New()
	go drainTap(events)

	sec := security.NewMachine(events, security.Config{ThreatCap: cfg.ThreatCap})

	dcfg := dispatch.DefaultConfig()
	dcfg.Policy.ValidationEnabled = cfg.Validation
	dcfg.Policy.AutoResolve = cfg.AutoResolve
	dcfg.AuditRingCap = cfg.AuditRingCap

	adapters := make([]dispatch.Adapter, 0, len(param.Subsystems))
	for _, sub := range param.Subsystems {
		adapters = append(adapters, logAdapter{sub: sub})
	}

	d := dispatch.New(param.DefaultState(), dcfg, sec, ckpts, events, adapters...)
	defer d.Close()

	fmt.Println("Scene sync engine ready.")
	fmt.Printf("  DB: %s | validation=%v auto-resolve=%v\n", cfg.DBPath, cfg.Validation, cfg.AutoResolve)
	fmt.Println("Type 'help' for commands, 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "help" {
			printHelp()
			continue
		}
		if line == "status" {
			printStatus(d)
			continue
		}
		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if err := d.Submit(cmd); err != nil {
			fmt.Printf("rejected: %v\n", err)
			continue
		}
		fmt.Printf("phase=%s\n", d.Phase())
	}
}

// #endregion main

// #region parse

func parseCommand(line string) (dispatch.Command, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "set":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: set <subsystem> key=value [key=value ...]")
		}
		sub, ok := param.ParseSubsystem(fields[1])
		if !ok {
			return nil, fmt.Errorf("unknown subsystem %q", fields[1])
		}
		patch, err := parsePatch(fields[2:])
		if err != nil {
			return nil, err
		}
		return dispatch.UpdateSubsystem{Subsystem: sub, Params: patch}, nil

	case "checkpoint":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: checkpoint save|restore [arg]")
		}
		switch fields[1] {
		case "save":
			name := ""
			if len(fields) > 2 {
				name = fields[2]
			}
			return dispatch.SaveCheckpoint{Name: name}, nil
		case "restore":
			id := ""
			if len(fields) > 2 {
				id = fields[2]
			}
			return dispatch.RestoreCheckpoint{ID: id}, nil
		}
		return nil, fmt.Errorf("unknown checkpoint action %q", fields[1])

	case "rollback":
		return dispatch.Rollback{}, nil

	case "resolve":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: resolve auto|ignore|manual <subsystem> key=value ...")
		}
		switch fields[1] {
		case "auto":
			return dispatch.AutoResolve{}, nil
		case "ignore":
			return dispatch.Ignore{}, nil
		case "manual":
			if len(fields) < 4 {
				return nil, fmt.Errorf("usage: resolve manual <subsystem> key=value ...")
			}
			sub, ok := param.ParseSubsystem(fields[2])
			if !ok {
				return nil, fmt.Errorf("unknown subsystem %q", fields[2])
			}
			patch, err := parsePatch(fields[3:])
			if err != nil {
				return nil, err
			}
			return dispatch.ManualResolve{Subsystem: sub, Patch: patch}, nil
		}
		return nil, fmt.Errorf("unknown resolve action %q", fields[1])

	case "toggle":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: toggle validation|autoresolve")
		}
		switch fields[1] {
		case "validation":
			return dispatch.ToggleValidation{}, nil
		case "autoresolve":
			return dispatch.ToggleAutoResolve{}, nil
		}
		return nil, fmt.Errorf("unknown toggle %q", fields[1])

	case "clearlogs":
		return dispatch.ClearLogs{}, nil

	case "sec":
		return parseSecurity(fields[1:])
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}

func parseSecurity(fields []string) (dispatch.Command, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("usage: sec <action> [args]")
	}
	switch fields[0] {
	case "activate":
		return dispatch.Activate{}, nil
	case "deactivate":
		return dispatch.Deactivate{}, nil
	case "escalate":
		return dispatch.Escalate{}, nil
	case "deescalate":
		return dispatch.Deescalate{}, nil
	case "level":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: sec level normal|scanning|alert|lockdown")
		}
		return dispatch.SetLevel{Level: security.Level(fields[1])}, nil
	case "threat":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: sec threat <score> <description>")
		}
		score, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return nil, fmt.Errorf("bad score %q", fields[1])
		}
		return dispatch.ThreatDetected{
			Score:   float32(score),
			Threats: []security.Threat{{Description: strings.Join(fields[2:], " "), Score: float32(score)}},
		}, nil
	case "clear":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: sec clear <threat-id>")
		}
		return dispatch.ThreatCleared{ID: fields[1]}, nil
	case "alert":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: sec alert <pattern>")
		}
		return dispatch.TriggerAlert{Pattern: fields[1]}, nil
	case "stopalerts":
		return dispatch.StopAlerts{}, nil
	case "perf":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: sec perf <fps>")
		}
		fps, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return nil, fmt.Errorf("bad fps %q", fields[1])
		}
		return dispatch.PerformanceDegraded{Metrics: security.Metrics{FPS: float32(fps)}}, nil
	case "recovered":
		return dispatch.PerformanceRecovered{}, nil
	case "bridge":
		if len(fields) < 3 {
			return nil, fmt.Errorf("usage: sec bridge <subsystem> on|off")
		}
		sub, ok := param.ParseSubsystem(fields[1])
		if !ok {
			return nil, fmt.Errorf("unknown subsystem %q", fields[1])
		}
		if fields[2] == "on" {
			return dispatch.BridgeConnect{System: sub}, nil
		}
		return dispatch.BridgeDisconnect{System: sub}, nil
	}
	return nil, fmt.Errorf("unknown sec action %q", fields[0])
}

// parsePatch turns key=value tokens into a typed patch. Values parse as bool,
// then number, then fall back to text (hex colors).
func parsePatch(tokens []string) (param.Patch, error) {
	patch := make(param.Patch, len(tokens))
	for _, tok := range tokens {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", tok)
		}
		switch {
		case val == "true" || val == "false":
			patch[key] = param.Boolean(val == "true")
		default:
			if f, err := strconv.ParseFloat(val, 32); err == nil {
				patch[key] = param.Number(float32(f))
			} else {
				patch[key] = param.Text(val)
			}
		}
	}
	return patch, nil
}

// #endregion parse

// #region output

func printStatus(d *dispatch.Dispatcher) {
	st := d.State()
	sec := d.Security()
	fmt.Printf("phase=%s\n", d.Phase())
	fmt.Printf("bloom: enabled=%v strength=%.2f threshold=%.2f emissive=%.2f\n",
		st.Bloom.Enabled, st.Bloom.Strength, st.Bloom.Threshold, st.Bloom.EmissiveIntensity)
	fmt.Printf("pbr: metalness=%.2f roughness=%.2f ambientMultiplier=%.2f\n",
		st.PBR.Metalness, st.PBR.Roughness, st.PBR.AmbientMultiplier)
	fmt.Printf("lighting: exposure=%.2f ambientIntensity=%.2f\n",
		st.Lighting.Exposure, st.Lighting.AmbientIntensity)
	fmt.Printf("background: color=%s brightness=%.2f\n",
		st.Background.Color, st.Background.Brightness)
	fmt.Printf("security: active=%v level=%s score=%.1f threats=%d alerts=%d perf=%s breaker=%v\n",
		sec.Active, sec.Level, sec.ThreatScore, len(sec.Threats), len(sec.Alerts), sec.PerfMode, sec.BreakerOpen)
	if conflicts := d.Conflicts(); len(conflicts) > 0 {
		fmt.Printf("pending conflicts:\n")
		for _, c := range conflicts {
			fmt.Printf("  [%s] %s: %s\n", c.Severity, c.Kind, c.Message)
		}
	}
}

func printHelp() {
	fmt.Print(`commands:
  set <subsystem> key=value ...      update parameters (bloom|pbr|lighting|background|security)
  checkpoint save [name]             snapshot current state
  checkpoint restore [id]            restore a snapshot (default: most recent)
  rollback                           restore the most recent checkpoint
  resolve auto|ignore                act on a pending conflict
  resolve manual <subsystem> k=v ... operator replacement patch
  toggle validation|autoresolve      flip process-wide policy toggles
  clearlogs                          empty the in-memory conflict ring
  sec <action>                       security machine (activate, escalate, level, threat, ...)
  status                             print engine state
`)
}

// drainTap consumes the bus tap so notifications are visible in the console.
func drainTap(events *bus.Bus) {
	for ev := range events.Tap() {
		if ev.Kind == bus.EventConflict {
			fmt.Printf("\n[notify] %s conflict: %s (fix: %s)\n> ", ev.Severity, ev.Message, ev.Suggestion)
			continue
		}
		fmt.Printf("\n[notify] %s: %s\n> ", ev.Kind, ev.Message)
	}
}

// #endregion output

// #region adapter

// logAdapter is the console stand-in for a real rendering adapter.
type logAdapter struct {
	sub param.Subsystem
}

func (a logAdapter) Subsystem() param.Subsystem { return a.sub }

func (a logAdapter) Apply(snapshot param.State) error {
	log.Printf("[ADAPT] %s applied", a.sub)
	return nil
}

// #endregion adapter
