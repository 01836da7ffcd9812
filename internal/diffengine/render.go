package diffengine

import (
	"fmt"
	"strings"
)

// Render formats changes as a unified-diff-style text block suitable for
// printing to a terminal.
func Render(changes []FileChange) string {
	var sb strings.Builder
	for _, c := range changes {
		renderFile(&sb, c)
	}
	return sb.String()
}

func renderFile(sb *strings.Builder, c FileChange) {
	switch c.Status {
	case Added:
		fmt.Fprintf(sb, "--- /dev/null\n+++ b/%s\n", c.Path)
	case Removed:
		fmt.Fprintf(sb, "--- a/%s\n+++ /dev/null\n", c.Path)
	default:
		fmt.Fprintf(sb, "--- a/%s\n+++ b/%s\n", c.Path, c.Path)
	}

	if c.Binary {
		fmt.Fprintf(sb, "Binary files differ\n\n")
		return
	}

	for _, h := range c.Hunks {
		fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		for _, line := range h.Lines {
			switch line.Type {
			case OpEqual:
				sb.WriteString(" ")
			case OpInsert:
				sb.WriteString("+")
			case OpDelete:
				sb.WriteString("-")
			}
			sb.WriteString(line.Text)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}

// Stat is a one-line-per-file summary, like "git diff --stat".
type Stat struct {
	Path       string
	Status     Status
	Insertions int
	Deletions  int
	Binary     bool
}

func Summarize(changes []FileChange) []Stat {
	stats := make([]Stat, 0, len(changes))
	for _, c := range changes {
		s := Stat{Path: c.Path, Status: c.Status, Binary: c.Binary}
		for _, h := range c.Hunks {
			for _, l := range h.Lines {
				switch l.Type {
				case OpInsert:
					s.Insertions++
				case OpDelete:
					s.Deletions++
				}
			}
		}
		stats = append(stats, s)
	}
	return stats
}
