package layered

import (
	"fmt"
	"os"
)

// trace mirrors the teacher's package-level debug switch (cznic-memory's
// `const trace = false` plus the `if trace { defer func(){...}() }` blocks
// wrapping every public method). Flip it on locally when debugging; it is
// never meant to ship on.
const trace = false

func traceEnter(format string, args ...interface{}) func(result string) {
	if !trace {
		return func(string) {}
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return func(result string) {
		fmt.Fprintf(os.Stderr, "  -> %s\n", result)
	}
}
