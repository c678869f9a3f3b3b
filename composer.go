package bootstrap

import (
	"fmt"
	"slices"

	"github.com/GoCodeAlone/bootstrap/typefinder"
)

// ComposerCapability is the typefinder capability composers are declared
// under.
const ComposerCapability typefinder.Capability = "composer"

// Composer registers services into the Composition. Each discovered
// composer is instantiated once and runs once per boot.
type Composer interface {
	Compose(c *Composition) error
}

// ComposeBeforer is implemented by composers that must run before the
// named composers.
type ComposeBeforer interface {
	ComposeBefore() []string
}

// ComposeAfterer is implemented by composers that must run after the named
// composers.
type ComposeAfterer interface {
	ComposeAfter() []string
}

// EnabledComposer is implemented by composers that only run in some
// states. It is consulted once the runtime level is known.
type EnabledComposer interface {
	Enabled(state *RuntimeState) bool
}

// TypeFinder enumerates the implementations declared for a capability.
type TypeFinder interface {
	Find(capability typefinder.Capability) []typefinder.Descriptor
}

type namedComposer struct {
	name     string
	composer Composer
}

// discoverComposers instantiates every declared composer and drops the
// disabled ones.
func discoverComposers(finder TypeFinder, state *RuntimeState, logger Logger) ([]namedComposer, error) {
	descriptors := finder.Find(ComposerCapability)
	composers := make([]namedComposer, 0, len(descriptors))
	for _, d := range descriptors {
		instance := d.New()
		composer, ok := instance.(Composer)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%T)", ErrNotAComposer, d.Name, instance)
		}
		if e, ok := composer.(EnabledComposer); ok && !e.Enabled(state) {
			logger.Debug("Composer disabled, skipping", "composer", d.Name)
			continue
		}
		composers = append(composers, namedComposer{name: d.Name, composer: composer})
	}
	return composers, nil
}

// orderComposers sorts composers so every run-before and run-after
// constraint holds. Among composers that are free to run, the one
// discovered first goes first. Constraints naming composers that are
// unknown or disabled are ignored.
func orderComposers(composers []namedComposer, logger Logger) ([]namedComposer, error) {
	index := make(map[string]int, len(composers))
	for i, c := range composers {
		index[c.name] = i
	}

	type edge struct{ from, to int }
	edges := make(map[edge]bool)
	successors := make([][]int, len(composers))
	inDegree := make([]int, len(composers))
	addEdge := func(from, to int) {
		e := edge{from, to}
		if edges[e] {
			return
		}
		edges[e] = true
		successors[from] = append(successors[from], to)
		inDegree[to]++
	}
	lookup := func(owner, target string) (int, bool) {
		j, ok := index[target]
		if !ok {
			logger.Debug("Ignoring ordering constraint on unknown composer", "composer", owner, "target", target)
		}
		return j, ok
	}

	for i, c := range composers {
		if b, ok := c.composer.(ComposeBeforer); ok {
			for _, target := range b.ComposeBefore() {
				if j, ok := lookup(c.name, target); ok {
					addEdge(i, j)
				}
			}
		}
		if a, ok := c.composer.(ComposeAfterer); ok {
			for _, target := range a.ComposeAfter() {
				if j, ok := lookup(c.name, target); ok {
					addEdge(j, i)
				}
			}
		}
	}

	ordered := make([]namedComposer, 0, len(composers))
	done := make([]bool, len(composers))
	for len(ordered) < len(composers) {
		next := -1
		for i := range composers {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var remaining []string
			for i, c := range composers {
				if !done[i] {
					remaining = append(remaining, c.name)
				}
			}
			return nil, fmt.Errorf("%w: %v", ErrComposerCycle, remaining)
		}
		done[next] = true
		ordered = append(ordered, composers[next])
		for _, j := range successors[next] {
			inDegree[j]--
		}
	}

	logger.Debug("Composer order", "order", composerNames(ordered))
	return ordered, nil
}

func composerNames(composers []namedComposer) []string {
	names := make([]string, len(composers))
	for i, c := range composers {
		names[i] = c.name
	}
	return names
}

func runComposers(composers []namedComposer, composition *Composition, logger Logger) error {
	for _, c := range composers {
		logger.Debug("Running composer", "composer", c.name)
		if err := c.composer.Compose(composition); err != nil {
			return fmt.Errorf("composer %s: %w", c.name, err)
		}
	}
	return nil
}

// ComposerNames returns the names of the composers the runtime would run
// for state, in order.
func ComposerNames(finder TypeFinder, state *RuntimeState, logger Logger) ([]string, error) {
	composers, err := discoverComposers(finder, state, logger)
	if err != nil {
		return nil, err
	}
	ordered, err := orderComposers(composers, logger)
	if err != nil {
		return nil, err
	}
	return slices.Clip(composerNames(ordered)), nil
}
