package merkle

import (
	"fmt"
	"strings"
)

// Render draws the tree level by level, root first. Meant for debugging output.
func (t *Tree) Render() string {
	var sb strings.Builder

	for level := len(t.levels) - 1; level >= 0; level-- {
		switch {
		case level == len(t.levels)-1:
			fmt.Fprintf(&sb, "root:\n")
		case level == 0:
			fmt.Fprintf(&sb, "leaves:\n")
		default:
			fmt.Fprintf(&sb, "level %d:\n", level)
		}
		for i, h := range t.levels[level] {
			if level == 0 {
				fmt.Fprintf(&sb, "  %d) %s %v\n", i, h.Hex(), []string(t.values[i]))
				continue
			}
			fmt.Fprintf(&sb, "  %d) %s\n", i, h.Hex())
		}
	}

	return sb.String()
}
