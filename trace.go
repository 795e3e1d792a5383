package spawn

import (
	"fmt"
	"runtime"
	"strings"
)

// traceBoundary separates the asynchronous completion frames from the
// frames captured synchronously at the Spawn call site.
const traceBoundary = "--- spawned from ---"

const maxTraceDepth = 32

// callSite is a program-counter snapshot taken synchronously inside Spawn,
// before any suspension. It lets a failure constructed after the process
// has terminated still point at the code that requested the spawn.
type callSite struct {
	pcs []uintptr
}

// captureCallSite records the caller's stack. skip counts frames above the
// caller of captureCallSite itself to drop (0 keeps the immediate caller).
func captureCallSite(skip int) *callSite {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip+2, pcs)
	return &callSite{pcs: pcs[:n]}
}

func formatFrames(pcs []uintptr, b *strings.Builder) {
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(b, "\t%s\n\t\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			return
		}
	}
}

// stitch merges the completion-point stack with the recorded call site,
// demarcated by traceBoundary. completion may be nil for failures surfaced
// synchronously (launch errors), in which case only the call site appears.
func (c *callSite) stitch(completion []uintptr) string {
	var b strings.Builder
	if len(completion) > 0 {
		formatFrames(completion, &b)
		b.WriteString(traceBoundary)
		b.WriteString("\n")
	}
	if c != nil {
		formatFrames(c.pcs, &b)
	}
	return strings.TrimRight(b.String(), "\n")
}

// currentStack snapshots the calling goroutine's stack for the completion
// half of a stitched trace.
func currentStack(skip int) []uintptr {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}
