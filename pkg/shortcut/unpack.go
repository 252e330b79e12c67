package shortcut

import (
	"errors"
	"fmt"

	"map_shortcuts/pkg/graph"
)

// maxUnpackDepth bounds the via-chain nesting of a single shortcut.
const maxUnpackDepth = 100_000

var (
	// ErrNotFound is returned when a pair on the via chain has no shortcut.
	ErrNotFound = errors.New("shortcut not found")
	// ErrUnpackDepth is returned when the via chain nests deeper than the
	// bound, which only happens for a corrupt (cyclic) table.
	ErrUnpackDepth = errors.New("via chain too deep")
)

// ViaLookup returns the via edge stored for a pair.
type ViaLookup interface {
	Via(from, to graph.EdgeID) (graph.EdgeID, bool)
}

// Unpack expands the shortcut from->to into the full edge sequence, starting
// with from and ending with to. Uses an explicit stack to avoid recursion.
func Unpack(lookup ViaLookup, from, to graph.EdgeID) ([]graph.EdgeID, error) {
	type item struct {
		from, to graph.EdgeID
		depth    int
	}

	stack := []item{{from, to, 0}}
	var result []graph.EdgeID

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.depth > maxUnpackDepth {
			return nil, fmt.Errorf("%d->%d: %w", from, to, ErrUnpackDepth)
		}

		via, ok := lookup.Via(it.from, it.to)
		if !ok {
			return nil, fmt.Errorf("%d->%d: %w", it.from, it.to, ErrNotFound)
		}
		if via == it.to {
			// Direct hop.
			if len(result) == 0 || result[len(result)-1] != it.from {
				result = append(result, it.from)
			}
			result = append(result, it.to)
			continue
		}
		if via == it.from {
			return nil, fmt.Errorf("%d->%d: via equals source: %w", it.from, it.to, ErrNotFound)
		}

		// Push right half first (via->to), then left half (from->via),
		// so left is processed first (LIFO).
		stack = append(stack, item{via, it.to, it.depth + 1})
		stack = append(stack, item{it.from, via, it.depth + 1})
	}

	return result, nil
}
