package pipeline

import (
	"context"
	"fmt"
)

// ConfigError reports an invalid stage configuration. It is raised before
// any external call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "pipeline: invalid configuration: " + e.Reason
}

// Stage is one node of the run graph. Deps are stage IDs that must finish
// first; their fingerprints feed into this stage's fingerprint.
type Stage struct {
	ID        string
	Deps      []string
	Mandatory bool
	// NoCache marks stages whose output lives outside the artifact store.
	NoCache bool
	// Config returns the fragment of run configuration that affects this
	// stage's output.
	Config func(p *Pipeline, st *runState) any
	// Ready reports whether the upstream data this stage needs is present.
	// A stage whose inputs are missing is skipped, not failed.
	Ready func(st *runState) bool
	// Run produces the stage artifact payload plus log metadata.
	Run func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error)
	// Decode restores run state from a cached artifact payload.
	Decode func(payload []byte, st *runState) error
}

// orderStages validates the graph and returns stages in execution order.
// Among stages whose dependencies are satisfied, declaration order wins, so
// the result is deterministic.
func orderStages(stages []Stage) ([]Stage, error) {
	byID := make(map[string]int, len(stages))
	for i, s := range stages {
		if _, dup := byID[s.ID]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate stage %q", s.ID)}
		}
		byID[s.ID] = i
	}

	indegree := make([]int, len(stages))
	for i, s := range stages {
		for _, dep := range s.Deps {
			if _, ok := byID[dep]; !ok {
				return nil, &ConfigError{Reason: fmt.Sprintf("stage %q depends on unknown stage %q", s.ID, dep)}
			}
			indegree[i]++
		}
	}

	done := make(map[string]bool, len(stages))
	ordered := make([]Stage, 0, len(stages))
	for len(ordered) < len(stages) {
		progressed := false
		for _, s := range stages {
			if done[s.ID] {
				continue
			}
			ready := true
			for _, dep := range s.Deps {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, s)
				done[s.ID] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, &ConfigError{Reason: "stage dependency cycle"}
		}
	}
	return ordered, nil
}

// enabledSet validates the enabled_stages list against the registry and
// returns the set of stages that should run. Mandatory stages cannot be
// disabled.
func enabledSet(stages []Stage, enabled []string) (map[string]bool, error) {
	known := make(map[string]Stage, len(stages))
	for _, s := range stages {
		known[s.ID] = s
	}

	set := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		if _, ok := known[name]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("unknown stage %q in enabled_stages", name)}
		}
		set[name] = true
	}

	for _, s := range stages {
		if s.Mandatory && !set[s.ID] {
			return nil, &ConfigError{Reason: fmt.Sprintf("mandatory stage %q cannot be disabled", s.ID)}
		}
	}
	return set, nil
}
