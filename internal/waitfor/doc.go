// Package waitfor blocks until a supervised process produces expected
// output, becomes reachable, or gives up.
//
// The core entry point is Wait, which watches a process's stdout and
// returns once every expected part has appeared somewhere in the
// accumulated output. Parts are plain substrings with no ordering
// between them, which suits readiness banners like
// "READY|token=abc|port=9000" checked as ["READY", "token=", "port="].
//
// # Features
//
//   - Substring readiness matching over accumulated stdout
//   - Bounded line reads with a cooperative poll loop
//   - Exit reconciliation with a single grace retry after clean exits
//   - Post-exit drain of output still sitting in the pipe
//   - JSON field conditions and custom predicates layered on parts
//   - TCP port and filesystem path readiness helpers
//
// # Waiting
//
// Wait polls the process and reads stdout one line at a time:
//
//	out, err := waitfor.Wait(proc, []string{"listening on"}, 30*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out)
//
// On failure the error unwraps to ErrTimeout, ErrAbnormalExit, or
// ErrCleanExit, and errors.As yields a *WaitError carrying the missing
// parts, a bounded output excerpt, and the exit code.
//
// # Conditions
//
// Options extend the match beyond substrings:
//
//	out, err := waitfor.Wait(proc, nil, time.Minute,
//	    waitfor.WithJSONField("status", "ready"))
//
// # Thread Safety
//
// A Wait call is a single logical actor: it assumes exclusive read
// access to the process stdout and must not run concurrently with
// another waiter on the same process. The package-level helpers
// WaitForPort and WaitForPath are safe for concurrent use.
package waitfor
