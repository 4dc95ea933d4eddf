package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mjharwell/scenesync/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to replay fixture JSON")
	verbose := flag.Bool("v", false, "print per-step conflict and nudge detail")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		os.Exit(2)
	}

	if err := run(*fixturePath, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, verbose bool) error {
	fixture, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	steps, err := fixture.ToSteps()
	if err != nil {
		return err
	}

	if fixture.Description != "" {
		fmt.Printf("Fixture: %s\n", fixture.Description)
	}
	fmt.Printf("Steps: %d\n\n", len(steps))

	results, final := replay.Replay(
		fixture.StartingState(),
		fixture.Security.ToSnapshot(),
		steps,
		fixture.ToConfig(),
	)

	mismatches := 0
	for i, r := range results {
		marker := " "
		if i < len(fixture.ExpectedResults) {
			want := fixture.ExpectedResults[i]
			if want.Action != r.Action {
				marker = "✗"
				mismatches++
			} else {
				marker = "✓"
			}
		}
		fmt.Printf("%s %-30s %s\n", marker, r.Name, r.Action)
		if verbose {
			for _, c := range r.Conflicts {
				fmt.Printf("    conflict [%s] %s: %s\n", c.Severity, c.Kind, c.Message)
			}
			for _, n := range r.Nudges {
				fmt.Printf("    nudge %s: %s %.3f -> %.3f\n", n.Kind, n.Field, n.From, n.To)
			}
		}
	}
	if len(fixture.ExpectedResults) > len(results) {
		fmt.Printf("✗ fixture expects %d results, run produced %d\n",
			len(fixture.ExpectedResults), len(results))
		mismatches++
	}

	sum := replay.Summarize(results, final)
	fmt.Printf("\nSummary: %d steps, %d clean, %d auto-resolved, %d held for decision\n",
		sum.TotalSteps, sum.Clean, sum.Resolved, sum.Conflicted)
	fmt.Printf("Final: bloom=%.2f exposure=%.2f metalness=%.2f ambientMult=%.2f bg=%s\n",
		sum.FinalState.Bloom.Strength,
		sum.FinalState.Lighting.Exposure,
		sum.FinalState.PBR.Metalness,
		sum.FinalState.PBR.AmbientMultiplier,
		sum.FinalState.Background.Color,
	)

	if mismatches > 0 {
		return fmt.Errorf("%d expectation mismatch(es)", mismatches)
	}
	return nil
}

// #endregion main
