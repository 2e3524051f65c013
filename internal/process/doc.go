// Package process provides child process management with output
// plumbing built for readiness waiting.
//
// The package implements a supervisor pattern for spawning and
// tracking child processes whose stdout is watched for expected
// output. Each supervised Process satisfies waitfor.Process.
//
// # Features
//
//   - Process lifecycle management (start, stop, kill)
//   - Bounded-time line reads of stdout with no lost output
//   - Post-exit access to output still sitting in the pipe
//   - Bounded stderr capture for diagnostics
//   - Graceful shutdown with configurable timeout
//   - Exit code and status tracking
//
// # Supervisor
//
// The Supervisor manages multiple child processes:
//
//	supervisor := process.NewSupervisor()
//	defer supervisor.Shutdown(5 * time.Second)
//
//	cmd := exec.Command("myserver", "--port", "9000")
//	proc, err := supervisor.Start("myserver", cmd)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := waitfor.Wait(proc, []string{"listening"}, 30*time.Second)
//
// # Output plumbing
//
// Stdout and stderr are connected through plain pipes whose read ends
// outlive the child. ReadLine serves stdout one line at a time with a
// per-call timeout; a read that outlives its timeout keeps running
// and is delivered to the next call. After exit, Stdout exposes
// everything the line reader has not delivered so the waiter can
// drain it. Stderr is scanned into a bounded ring readable through
// StderrTail.
//
// # Exit codes
//
// ExitCode returns -1 until the process exits. Signal deaths are
// reported as 128+signal, following shell convention.
//
// # Thread Safety
//
// Supervisor is safe for concurrent use, and Process state accessors
// are too. ReadLine and Stdout assume a single consumer per process.
package process
