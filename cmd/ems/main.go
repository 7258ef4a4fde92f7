// Command ems is an in-memory event management store: it scans a directory
// for `.jobs` files and runs each one against a fresh, per-process event
// registry, writing results to a matching `.out` file.
package main

import (
	"os"
	"strings"

	"github.com/scuffedwrldwide/ems/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	sigCh := cli.NotifySignals()

	exitCode := cli.Run(exe, os.Stdout, os.Stderr, os.Args, env, sigCh)

	os.Exit(exitCode)
}
