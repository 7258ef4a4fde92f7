// Package cli implements EMS's command line: flag parsing, the parent's
// directory-scan/fan-out path, and the child's single-job-file path, using
// a pflag.FlagSet with ContinueOnError, a hand-rolled usage printer, and
// fprintln-to-stderr diagnostics.
//
// EMS has no subcommands, so there is no Command/dispatch table here: one
// flag set covers both the parent invocation (`ems -d .. -p .. -m .. -t ..`)
// and the hidden re-exec invocation a child uses to process a single `.jobs`
// file, since Go has no fork() to give the child a running start.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/scuffedwrldwide/ems/internal/config"
	"github.com/scuffedwrldwide/ems/internal/dispatcher"
	"github.com/scuffedwrldwide/ems/internal/ems"
	"github.com/scuffedwrldwide/ems/internal/sink"
	"github.com/scuffedwrldwide/ems/internal/worker"
)

// childFlag is the hidden flag used to re-exec the binary as a single job's
// child process; it never appears in --help.
const childFlag = "run-job-file"

// Run is the process entry point. exe is the path of the running binary,
// used to re-exec children against it. Returns the process exit code.
func Run(exe string, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("ems", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagDelay := flags.UintP("d", "d", 0, "Artificial per-seat-access delay in `ms`")
	flagPath := flags.StringP("p", "p", "", "`directory` to scan for .jobs files")
	flagMaxProc := flags.IntP("m", "m", 0, "Max concurrent child `processes`")
	flagMaxThreads := flags.IntP("t", "t", 0, "Worker `threads` per child process")
	flagConfig := flags.String("config", "", "Use specified config `file`")
	flagChildJob := flags.String(childFlag, "", "")

	_ = flags.MarkHidden(childFlag)

	if err := flags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	if *flagChildJob != "" {
		return runChild(*flagChildJob, out, errOut, flagDelay, flagMaxThreads)
	}

	if *flagHelp {
		printUsage(out)

		return 0
	}

	overrides := config.Overrides{}
	if flags.Changed("d") {
		overrides.StateAccessDelayMS = flagDelay
	}

	if flags.Changed("p") {
		overrides.Path = flagPath
	}

	if flags.Changed("m") {
		overrides.MaxProc = flagMaxProc
	}

	if flags.Changed("t") {
		overrides.MaxThreads = flagMaxThreads
	}

	cfg, err := config.Load(config.LoadInput{ConfigPath: *flagConfig, Env: env, CLI: overrides})
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	dir := cfg.Path
	if dir == "" {
		dir = "."
	}

	if err := os.Chdir(dir); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return runParent(exe, cfg, out, errOut, sigCh)
}

// runParent scans the working directory (already chdir'd into) and fans out
// one re-exec'd child per .jobs file, reaping them under cfg.MaxProc.
func runParent(exe string, cfg config.Config, out, errOut io.Writer, sigCh <-chan os.Signal) int {
	done := make(chan []dispatcher.Result, 1)
	errCh := make(chan error, 1)

	go func() {
		results, err := dispatcher.Run(".", cfg.MaxProc, childSpawner(exe, cfg))
		if err != nil {
			errCh <- err
			return
		}

		done <- results
	}()

	select {
	case err := <-errCh:
		fprintln(errOut, "error:", err)

		return 1
	case results := <-done:
		reportResults(errOut, results)

		return 0
	case <-sigCh:
		// Children already started keep running to completion (they are
		// cooperating with EOC on their own input, not with us); we stop
		// waiting on new ones and exit on a forced shutdown.
		fprintln(errOut, "interrupted, not waiting for remaining children (130)")

		return 130
	}
}

func reportResults(errOut io.Writer, results []dispatcher.Result) {
	for _, r := range results {
		if r.Err != nil {
			fprintln(errOut, "error:", r.JobPath+":", r.Err)
			continue
		}

		if r.Signaled {
			fprintln(errOut, r.JobPath+": killed by", r.Signal)
			continue
		}

		if r.ExitCode != 0 {
			fprintln(errOut, r.JobPath+": exit", r.ExitCode)
		}
	}
}

// childSpawner re-execs exe against a single job file, passing along the
// resolved delay/thread knobs so the child does not need to reload config.
func childSpawner(exe string, cfg config.Config) dispatcher.Spawner {
	return func(jobPath string) (dispatcher.Child, error) {
		cmd := exec.Command(exe,
			"--"+childFlag, jobPath,
			"-d", strconv.FormatUint(uint64(cfg.StateAccessDelayMS), 10),
			"-t", strconv.Itoa(cfg.MaxThreads),
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return nil, err
		}

		return cmd, nil
	}
}

// runChild processes a single .jobs file end to end: fresh store, fresh
// sink, drive the worker pool, flush the sink atomically, exit.
func runChild(jobPath string, out, errOut io.Writer, flagDelay *uint, flagMaxThreads *int) int {
	maxThreads := *flagMaxThreads
	if maxThreads <= 0 {
		maxThreads = config.Default().MaxThreads
	}

	f, err := os.Open(jobPath) //nolint:gosec // jobPath comes from the parent's own directory scan
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}
	defer f.Close()

	store := ems.New()
	if err := store.Init(*flagDelay); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	snk := sink.New()

	worker.RunJob(f, store, snk, worker.Options{
		MaxThreads: maxThreads,
		Diag:       errOut,
		Out:        out,
	})

	outPath := dispatcher.OutputPath(jobPath)
	if err := snk.Flush(outPath); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return 0
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const usageText = `ems - in-memory event management store

Usage: ems -d <delay_ms> -p <path> -m <max_proc> -t <max_threads>

Flags:
  -h, --help             Show help
  -d <ms>                Artificial per-seat-access delay (default 0)
  -p <dir>               Directory to scan for .jobs files
  -m <n>                 Max concurrent child processes (default 20)
  -t <n>                 Worker threads per child process (default 2)
  --config <file>        Use specified config file`

func printUsage(w io.Writer) {
	fprintln(w, usageText)
}

// NotifySignals wires the OS signals the parent process reacts to; split
// out so tests can pass a plain channel instead of a real signal.Notify.
func NotifySignals() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	return sigCh
}
