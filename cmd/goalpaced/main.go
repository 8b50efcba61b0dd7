// Command goalpaced runs the goal snapshot and recalculation schedulers and
// exposes one-shot maintenance commands over the same configuration.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
