// Package progress provides the plain status-line reporting used across the
// extract/repack pipeline. There is no third-party logging dependency in the
// reference stack for this concern, so this follows the teacher's own
// convention of writing directly to a stream.
package progress

import (
	"fmt"
	"io"
)

// Reporter emits human-readable status lines. A nil *Reporter is valid and
// discards everything, matching the CLI's "-silent" behavior.
type Reporter struct {
	w io.Writer
}

// New returns a Reporter that writes to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Printf writes a formatted status line followed by a newline.
func (r *Reporter) Printf(format string, args ...any) {
	if r == nil || r.w == nil {
		return
	}
	fmt.Fprintf(r.w, format+"\n", args...)
}

// Warnf writes a formatted warning line, prefixed so it stands out in logs.
func (r *Reporter) Warnf(format string, args ...any) {
	if r == nil || r.w == nil {
		return
	}
	fmt.Fprintf(r.w, "warning: "+format+"\n", args...)
}
