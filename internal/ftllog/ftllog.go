// Package ftllog is a thin wrapper around the standard logger that
// prefixes every line with the session trace id that produced it, so a
// single audit/log stream for a long-lived ftl process can be split back
// out per session.
package ftllog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	traceID string
)

// SetTraceID scopes subsequent log lines to a session, e.g. the short id
// minted for a project's current sandbox run. Pass "" to clear it.
func SetTraceID(id string) {
	mu.Lock()
	traceID = id
	mu.Unlock()
}

func prefix() string {
	mu.Lock()
	defer mu.Unlock()
	if traceID == "" {
		return ""
	}
	return "[" + traceID + "] "
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	log.Printf(prefix()+format, args...)
}

// Warnf logs a warning. FTL has no separate warning stream — this exists
// so call sites read clearly, not to change output routing.
func Warnf(format string, args ...any) {
	log.Printf(prefix()+"warning: "+format, args...)
}

// Errorf logs an error without exiting the process.
func Errorf(format string, args ...any) {
	log.Printf(prefix()+"error: "+format, args...)
}

// Fatalf logs and exits, for unrecoverable startup failures only — never
// call it from inside a running session.
func Fatalf(format string, args ...any) {
	log.Printf(prefix()+"fatal: "+format, args...)
	os.Exit(1)
}

// Errorw wraps err with a message for call sites that want the
// fmt.Errorf %w idiom alongside the shared log prefix.
func Errorw(msg string, err error) error {
	wrapped := fmt.Errorf("%s: %w", msg, err)
	Errorf("%s", wrapped)
	return wrapped
}
