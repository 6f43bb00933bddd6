// Package logging centralizes pepd's diagnostic-stream logger. Per-request
// policy/validation outcomes never go here — only transport and system
// failures (see the audit package for the former).
package logging

import (
	"log"
	"os"
)

// New returns a logger prefixed with the given subsystem tag, in the style
// of the teacher's scoped log.Printf call sites.
func New(subsystem string) *log.Logger {
	return log.New(os.Stderr, "pepd["+subsystem+"]: ", log.LstdFlags)
}
