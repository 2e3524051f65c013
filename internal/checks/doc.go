// Package checks runs declarative readiness check suites.
//
// A suite is a YAML file listing checks that are executed in order.
// Each check either starts a command and waits for expected output
// (optionally followed by a TCP port), or waits for a path to exist:
//
//	version: "1"
//	checks:
//	  - name: api
//	    command: ./bin/api
//	    args: ["--port", "9000"]
//	    parts: ["READY", "port="]
//	    timeout: 10s
//	    port: 9000
//	  - name: migration-marker
//	    path: /tmp/migrated
//	    timeout: 30s
//
// Processes started by a check are terminated when the check finishes,
// escalating to SIGKILL when they ignore SIGTERM. With fail-fast
// enabled (the default) the suite stops at the first failing check.
//
//	suite, err := checks.Load("suite.yaml")
//	if err != nil {
//	    return err
//	}
//	runner := checks.NewRunner(sup, checks.WithFailFast(true))
//	results, err := runner.Run(ctx, suite)
package checks
