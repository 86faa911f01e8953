package sim

import (
	"fmt"
	"strings"
)

// ValidatePriorities checks that the priority relation restricted to the
// given kinds is a strict order. For every pair of distinct kinds exactly
// one must have priority over the other, and following "has priority over"
// must never lead back to where it started.
//
// Pairwise rules can make the relation intransitive even when every single
// pair looks fine, so models run this over the kinds they import.
func ValidatePriorities(kinds []*EventKind) error {
	kinds = uniqueKinds(kinds)

	for i := 0; i < len(kinds); i++ {
		for j := i + 1; j < len(kinds); j++ {
			if err := pairMustBeOrdered(kinds[i], kinds[j]); err != nil {
				return err
			}
		}
	}

	cycle := findPriorityCycle(kinds)
	if cycle != nil {
		names := make([]string, len(cycle))
		for i, k := range cycle {
			names[i] = k.name
		}

		return fmt.Errorf("%w: cycle %s",
			ErrPriorityConflict, strings.Join(names, " > "))
	}

	return nil
}

func uniqueKinds(kinds []*EventKind) []*EventKind {
	seen := make(map[*EventKind]bool, len(kinds))
	unique := make([]*EventKind, 0, len(kinds))

	for _, k := range kinds {
		if k == nil || seen[k] {
			continue
		}

		seen[k] = true
		unique = append(unique, k)
	}

	return unique
}

func pairMustBeOrdered(a, b *EventKind) error {
	aOverB := a.HasPriorityOverKind(b)
	bOverA := b.HasPriorityOverKind(a)

	switch {
	case aOverB && bOverA:
		return fmt.Errorf("%w: %s and %s both claim priority",
			ErrPriorityConflict, a.name, b.name)
	case !aOverB && !bOverA:
		return fmt.Errorf("%w: %s and %s are unordered",
			ErrPriorityConflict, a.name, b.name)
	}

	return nil
}

type visitState int

const (
	unvisited visitState = iota
	onPath
	done
)

// findPriorityCycle returns the kinds along a cycle of the relation, with
// the first kind repeated at the end, or nil if there is none.
func findPriorityCycle(kinds []*EventKind) []*EventKind {
	state := make(map[*EventKind]visitState, len(kinds))
	path := make([]*EventKind, 0, len(kinds))

	var visit func(k *EventKind) []*EventKind
	visit = func(k *EventKind) []*EventKind {
		state[k] = onPath
		path = append(path, k)

		for _, next := range kinds {
			if !k.HasPriorityOverKind(next) {
				continue
			}

			switch state[next] {
			case onPath:
				return closeCycle(path, next)
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		state[k] = done

		return nil
	}

	for _, k := range kinds {
		if state[k] != unvisited {
			continue
		}

		if cycle := visit(k); cycle != nil {
			return cycle
		}
	}

	return nil
}

func closeCycle(path []*EventKind, start *EventKind) []*EventKind {
	for i, k := range path {
		if k == start {
			cycle := make([]*EventKind, 0, len(path)-i+1)
			cycle = append(cycle, path[i:]...)

			return append(cycle, start)
		}
	}

	return nil
}
