package sdk

import "runtime/debug"

func init() {
	// Best-effort diagnostics for Go panics inside a gomobile app.
	// - "all" includes all goroutines in traceback output.
	// - panic-on-fault converts some SIGSEGV/SIGBUS into a panic so the
	//   logPanic guards can capture a stack.
	debug.SetTraceback("all")
	debug.SetPanicOnFault(true)
}
