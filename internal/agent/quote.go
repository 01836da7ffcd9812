package agent

import "strings"

// shellQuote single-quotes s for safe interpolation into a `sh -c` string.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
