// Package dispatcher implements the process fan-out: it scans a directory
// for `.jobs` files, starts one child process per file under a concurrency
// cap, and reaps them, propagating each one's exit status. This is the only
// place parallelism across job files happens; inside a child, all EMS state
// is freshly constructed.
//
// Go has no fork(): the idiom here for "one process per unit of work" is
// os/exec, not a raw syscall fork, so a child here is the same binary
// re-invoked via exec.Command with a hidden flag identifying the single job
// file to process, rather than a forked copy of the running image.
package dispatcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// JobsExtension is the input file suffix; OutExtension replaces it.
const (
	JobsExtension = ".jobs"
	OutExtension  = ".out"
)

// Spawner starts the child process responsible for jobPath (an absolute or
// dir-relative path to a `.jobs` file) and returns a handle whose Wait
// blocks until the child exits.
type Spawner func(jobPath string) (Child, error)

// Child abstracts a running child process.
type Child interface {
	Wait() error
}

// Result reports one job file's outcome.
type Result struct {
	JobPath  string
	ExitCode int
	Signaled bool
	Signal   string
	Err      error // non-nil only on a dispatcher-side failure (e.g. spawn failed)
}

// ListJobFiles returns the `.jobs` file names directly under dir, skipping
// dotfiles, sorted for deterministic enumeration order - nothing requires
// a specific order, but sorting makes dispatcher behavior reproducible
// across runs.
func ListJobFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan directory %s: %w", dir, err)
	}

	var names []string

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		if strings.HasSuffix(name, JobsExtension) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}

// OutputPath derives the `.out` sibling of a `.jobs` file name.
func OutputPath(jobName string) string {
	return strings.TrimSuffix(jobName, JobsExtension) + OutExtension
}

// Run enumerates dir's `.jobs` files and spawns one child per file, never
// letting more than maxProc run concurrently: the semaphore channel below
// blocks a new spawn exactly when the cap would otherwise be exceeded,
// reaping a slot as soon as the next one would overflow it, without an
// explicit fork/wait loop. Results are returned once every child has been
// reaped, in completion order (not launch order - the same nondeterminism
// a real fork/wait loop has).
func Run(dir string, maxProc int, spawn Spawner) ([]Result, error) {
	names, err := ListJobFiles(dir)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, maxProc)

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)

	for _, name := range names {
		sem <- struct{}{}

		wg.Add(1)

		go func(jobPath string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := runOne(spawn, jobPath)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(filepath.Join(dir, name))
	}

	wg.Wait()

	return results, nil
}

func runOne(spawn Spawner, jobPath string) Result {
	child, err := spawn(jobPath)
	if err != nil {
		return Result{JobPath: jobPath, ExitCode: 1, Err: err}
	}

	waitErr := child.Wait()

	return decodeExit(jobPath, waitErr)
}

func decodeExit(jobPath string, waitErr error) Result {
	if waitErr == nil {
		return Result{JobPath: jobPath, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return Result{JobPath: jobPath, ExitCode: 1, Err: waitErr}
	}

	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return Result{JobPath: jobPath, ExitCode: exitErr.ExitCode()}
	}

	status := unix.WaitStatus(ws)

	if status.Signaled() {
		return Result{JobPath: jobPath, Signaled: true, Signal: status.Signal().String(), ExitCode: -1}
	}

	return Result{JobPath: jobPath, ExitCode: status.ExitStatus()}
}
