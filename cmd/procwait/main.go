// Package main is the entry point for the procwait command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/procwait/internal/checks"
	"github.com/dshills/procwait/internal/config"
	"github.com/dshills/procwait/internal/logging"
	"github.com/dshills/procwait/internal/process"
	"github.com/dshills/procwait/internal/script"
	"github.com/dshills/procwait/internal/waitfor"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes. Scripts branch on these, so flag mistakes must not
// collide with process-failure codes.
const (
	exitOK       = 0
	exitFailure  = 1 // timeouts and other generic failures
	exitAbnormal = 2 // supervised process exited non-zero
	exitClean    = 3 // supervised process exited zero without matching
	exitUsage    = 4
)

func main() {
	os.Exit(run())
}

// run executes the command and returns an exit code.
func run() int {
	opts := parseFlags()

	cfg := config.New(config.WithPath(opts.configPath))
	if err := cfg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return exitFailure
	}

	level := cfg.LogLevel()
	if opts.logLevel != "" {
		level = logging.ParseLevel(opts.logLevel)
	}
	logger := logging.New(logging.Config{Level: level, Output: os.Stderr, Prefix: "procwait"})
	if opts.quiet {
		logger = logging.Null
	}
	logging.SetDefault(logger)

	if opts.checksPath != "" {
		return runChecks(cfg, logger, opts)
	}
	if len(opts.command) == 0 {
		if opts.port == 0 && opts.waitPath == "" {
			fmt.Fprintf(os.Stderr, "Error: nothing to wait for (use -- command [args...], -port, -path, or -checks)\n")
			return exitUsage
		}
		return runStandalone(opts)
	}
	return runWait(cfg, logger, opts)
}

// runWait starts the command under supervision and waits for its output
// to satisfy the expected parts and predicates.
func runWait(cfg *config.Config, logger *logging.Logger, opts *options) int {
	waitOpts := append(cfg.WaitOptions(), waitfor.WithLogger(logger))
	for _, field := range opts.jsonFields {
		path, want, ok := strings.Cut(field, "=")
		if !ok || path == "" {
			fmt.Fprintf(os.Stderr, "Error: invalid -json-field %q, expected path=value\n", field)
			return exitUsage
		}
		waitOpts = append(waitOpts, waitfor.WithJSONField(path, want))
	}
	if opts.matchScript != "" {
		m, err := script.Load(opts.matchScript, script.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load match script: %v\n", err)
			return exitFailure
		}
		defer m.Close()
		waitOpts = append(waitOpts, waitfor.WithPredicate(m.Name(), m.Match))
	}

	supOpts := append(cfg.SupervisorOptions(), process.WithLogger(logger))
	sup := process.NewSupervisor(supOpts...)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		sup.Shutdown(cfg.ShutdownTimeout())
	}()

	name := filepath.Base(opts.command[0])
	proc, err := sup.Start(name, exec.Command(opts.command[0], opts.command[1:]...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start %s: %v\n", name, err)
		return exitFailure
	}
	defer proc.Close()

	output, err := waitfor.Wait(proc, opts.parts, opts.timeout, waitOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, line := range proc.StderrTail() {
			fmt.Fprintf(os.Stderr, "  stderr: %s\n", line)
		}
		sup.Shutdown(cfg.ShutdownTimeout())
		return exitCode(err)
	}
	if !opts.quiet {
		fmt.Print(output)
	}

	if code := waitSecondary(opts); code != exitOK {
		sup.Shutdown(cfg.ShutdownTimeout())
		return code
	}

	if opts.keepRunning {
		return follow(proc, opts.quiet)
	}

	sup.Shutdown(cfg.ShutdownTimeout())
	return exitOK
}

// followDrainGrace bounds how long follow waits for the final output
// flush after the process exits.
const followDrainGrace = 200 * time.Millisecond

// follow streams the remaining output until the process exits and
// propagates its exit code. Draining continuously keeps the child from
// blocking on a full pipe.
func follow(proc *process.Process, quiet bool) int {
	dst := io.Writer(os.Stdout)
	if quiet {
		dst = io.Discard
	}

	copied := make(chan struct{})
	go func() {
		_, _ = io.Copy(dst, proc.Stdout())
		close(copied)
	}()

	<-proc.Done()

	// Let the copy flush what the child wrote on its way out, but do
	// not keep following a grandchild that inherited the pipe.
	select {
	case <-copied:
	case <-time.After(followDrainGrace):
	}

	if code := proc.ExitCode(); code > 0 {
		return code
	}
	return exitOK
}

// waitSecondary runs the port and path waits that follow an output match.
func waitSecondary(opts *options) int {
	if opts.port == 0 && opts.waitPath == "" {
		return exitOK
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if opts.waitPath != "" {
		if err := waitfor.WaitForPath(ctx, opts.waitPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	if opts.port > 0 {
		if err := waitfor.WaitForPort(ctx, "127.0.0.1", opts.port); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return exitOK
}

// runStandalone waits for a port or path without supervising a process.
func runStandalone(opts *options) int {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.waitPath != "" {
		if err := waitfor.WaitForPath(ctx, opts.waitPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	if opts.port > 0 {
		if err := waitfor.WaitForPort(ctx, "127.0.0.1", opts.port); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return exitOK
}

// runChecks loads a check suite and runs every check through the runner.
func runChecks(cfg *config.Config, logger *logging.Logger, opts *options) int {
	suite, err := checks.Load(opts.checksPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	supOpts := append(cfg.SupervisorOptions(), process.WithLogger(logger))
	sup := process.NewSupervisor(supOpts...)
	defer sup.Shutdown(cfg.ShutdownTimeout())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	failFast, err := cfg.GetBool("checks.failFast")
	if err != nil {
		failFast = true
	}
	runner := checks.NewRunner(sup,
		checks.WithLogger(logger),
		checks.WithFailFast(failFast),
		checks.WithWaitOptions(cfg.WaitOptions()...),
	)

	results, runErr := runner.Run(ctx, suite)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s (%v): %v\n", res.Name, res.Elapsed.Round(time.Millisecond), res.Err)
		} else if !opts.quiet {
			fmt.Printf("ok   %s (%v)\n", res.Name, res.Elapsed.Round(time.Millisecond))
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		for _, res := range results {
			if res.Err != nil {
				return exitCode(res.Err)
			}
		}
		return exitFailure
	}
	if !opts.quiet {
		fmt.Printf("%d checks passed\n", len(results))
	}
	return exitOK
}

// exitCode maps a wait failure to its documented exit code.
func exitCode(err error) int {
	switch {
	case errors.Is(err, waitfor.ErrAbnormalExit):
		return exitAbnormal
	case errors.Is(err, waitfor.ErrCleanExit):
		return exitClean
	default:
		return exitFailure
	}
}

// stringList collects values from a repeatable flag.
type stringList []string

// String returns the comma-joined values.
func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

// Set appends a value.
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// options holds parsed command-line options.
type options struct {
	parts       stringList
	jsonFields  stringList
	timeout     time.Duration
	configPath  string
	logLevel    string
	matchScript string
	port        int
	waitPath    string
	checksPath  string
	keepRunning bool
	quiet       bool
	showVersion bool
	command     []string
}

// parseFlags parses command-line flags and returns options.
func parseFlags() *options {
	opts := &options{}

	// A dedicated flag set keeps usage mistakes on exit code 4 instead
	// of the flag package's default 2.
	flags := flag.NewFlagSet("procwait", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	flags.Var(&opts.parts, "part", "substring the output must contain, repeatable")
	flags.Var(&opts.parts, "p", "substring the output must contain, repeatable (shorthand)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "how long to wait before giving up")
	flags.DurationVar(&opts.timeout, "t", 30*time.Second, "how long to wait before giving up (shorthand)")
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVar(&opts.configPath, "c", "", "path to configuration file (shorthand)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.Var(&opts.jsonFields, "json-field", "path=value a JSON output line must carry, repeatable")
	flags.StringVar(&opts.matchScript, "match-script", "", "Lua script whose match(buffer) decides readiness")
	flags.IntVar(&opts.port, "port", 0, "TCP port on 127.0.0.1 to wait for")
	flags.StringVar(&opts.waitPath, "path", "", "filesystem path to wait for")
	flags.StringVar(&opts.checksPath, "checks", "", "YAML check suite to run")
	flags.BoolVar(&opts.keepRunning, "keep-running", false, "leave the command running after a match and follow it to its exit")
	flags.BoolVar(&opts.quiet, "quiet", false, "suppress logs and matched output")
	flags.BoolVar(&opts.quiet, "q", false, "suppress logs and matched output (shorthand)")
	flags.BoolVar(&opts.showVersion, "version", false, "show version information")
	flags.BoolVar(&opts.showVersion, "v", false, "show version information (shorthand)")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "procwait - wait for process output patterns\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  procwait [options] -- command [args...]\n")
		fmt.Fprintf(os.Stderr, "  procwait -checks suite.yaml\n")
		fmt.Fprintf(os.Stderr, "  procwait -port 9000\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  procwait -p READY -p port= -t 30s -- ./server --listen :9000\n")
		fmt.Fprintf(os.Stderr, "  procwait -p READY -json-field status=ok -- ./api\n")
		fmt.Fprintf(os.Stderr, "  procwait -match-script ready.lua -port 9000 -- ./worker\n")
		fmt.Fprintf(os.Stderr, "  procwait -checks deploy.yaml -config procwait.toml\n")
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		os.Exit(exitUsage)
	}

	if opts.showVersion {
		fmt.Printf("procwait version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(exitOK)
	}

	if opts.logLevel != "" {
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (use debug, info, warn, or error)\n", opts.logLevel)
			os.Exit(exitUsage)
		}
	}
	if opts.port < 0 || opts.port > 65535 {
		fmt.Fprintf(os.Stderr, "Error: port %d out of range\n", opts.port)
		os.Exit(exitUsage)
	}

	opts.command = flags.Args()
	return opts
}
