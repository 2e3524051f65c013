package checks

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/procwait/internal/logging"
	"github.com/dshills/procwait/internal/process"
	"github.com/dshills/procwait/internal/waitfor"
)

// newTestRunner builds a runner over a fresh supervisor that is shut
// down when the test finishes.
func newTestRunner(t *testing.T, opts ...RunnerOption) (*Runner, *process.Supervisor) {
	t.Helper()

	sup := process.NewSupervisor(process.WithLogger(logging.Null))
	t.Cleanup(func() {
		sup.Shutdown(2 * time.Second)
	})

	opts = append([]RunnerOption{WithLogger(logging.Null)}, opts...)
	return NewRunner(sup, opts...), sup
}

func TestRunner_CommandCheckPasses(t *testing.T) {
	r, sup := newTestRunner(t)

	suite := &Suite{Checks: []Check{{
		Name:    "echo",
		Command: "sh",
		Args:    []string{"-c", "echo 'READY|port=9000'; sleep 5"},
		Parts:   []string{"READY", "port="},
		Timeout: Duration(5 * time.Second),
	}}}

	results, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("expected suite to pass, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Name != "echo" {
		t.Errorf("expected name echo, got %q", res.Name)
	}
	if res.Err != nil {
		t.Errorf("expected check to pass, got %v", res.Err)
	}
	if !strings.Contains(res.Output, "READY") {
		t.Errorf("expected output to contain READY, got %q", res.Output)
	}
	if res.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}

	// The check's process is torn down after the check completes
	deadline := time.Now().Add(2 * time.Second)
	for sup.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := sup.Count(); got != 0 {
		t.Errorf("expected no supervised processes after run, got %d", got)
	}
}

func TestRunner_FailFast(t *testing.T) {
	r, _ := newTestRunner(t)

	suite := &Suite{Checks: []Check{
		{
			Name:    "failing",
			Command: "sh",
			Args:    []string{"-c", "echo starting; exit 3"},
			Parts:   []string{"READY"},
			Timeout: Duration(5 * time.Second),
		},
		{
			Name:    "never-run",
			Command: "sh",
			Args:    []string{"-c", "echo READY; sleep 5"},
			Parts:   []string{"READY"},
			Timeout: Duration(5 * time.Second),
		},
	}}

	results, err := r.Run(context.Background(), suite)
	if !errors.Is(err, ErrSuiteFailed) {
		t.Errorf("expected ErrSuiteFailed, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected fail-fast to stop after 1 result, got %d", len(results))
	}
	if !errors.Is(results[0].Err, waitfor.ErrAbnormalExit) {
		t.Errorf("expected ErrAbnormalExit, got %v", results[0].Err)
	}
}

func TestRunner_ContinueOnFailure(t *testing.T) {
	r, _ := newTestRunner(t, WithFailFast(false))

	suite := &Suite{Checks: []Check{
		{
			Name:    "failing",
			Command: "sh",
			Args:    []string{"-c", "exit 3"},
			Parts:   []string{"READY"},
			Timeout: Duration(5 * time.Second),
		},
		{
			Name:    "passing",
			Command: "sh",
			Args:    []string{"-c", "echo READY; sleep 5"},
			Parts:   []string{"READY"},
			Timeout: Duration(5 * time.Second),
		},
	}}

	results, err := r.Run(context.Background(), suite)
	if !errors.Is(err, ErrSuiteFailed) {
		t.Errorf("expected ErrSuiteFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("expected failure count in error, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected first check to fail")
	}
	if results[1].Err != nil {
		t.Errorf("expected second check to pass, got %v", results[1].Err)
	}
}

func TestRunner_PathCheck(t *testing.T) {
	r, _ := newTestRunner(t)

	marker := filepath.Join(t.TempDir(), "migrated")
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(marker, []byte("done"), 0644)
	}()

	suite := &Suite{Checks: []Check{{
		Name:    "marker",
		Path:    marker,
		Timeout: Duration(2 * time.Second),
	}}}

	results, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("expected suite to pass, got %v", err)
	}
	if results[0].Err != nil {
		t.Errorf("expected path check to pass, got %v", results[0].Err)
	}
}

func TestRunner_PathCheckTimeout(t *testing.T) {
	r, _ := newTestRunner(t)

	suite := &Suite{Checks: []Check{{
		Name:    "marker",
		Path:    filepath.Join(t.TempDir(), "never-created"),
		Timeout: Duration(200 * time.Millisecond),
	}}}

	results, err := r.Run(context.Background(), suite)
	if !errors.Is(err, ErrSuiteFailed) {
		t.Errorf("expected ErrSuiteFailed, got %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected path check to time out")
	}
	if results[0].Elapsed < 200*time.Millisecond {
		t.Errorf("expected check to wait out its timeout, elapsed %v", results[0].Elapsed)
	}
}

func TestRunner_PortCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	r, _ := newTestRunner(t)

	suite := &Suite{Checks: []Check{{
		Name:    "server",
		Command: "sh",
		Args:    []string{"-c", "echo READY; sleep 5"},
		Parts:   []string{"READY"},
		Port:    port,
		Timeout: Duration(3 * time.Second),
	}}}

	results, err := r.Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("expected suite to pass, got %v", err)
	}
	if results[0].Err != nil {
		t.Errorf("expected port check to pass, got %v", results[0].Err)
	}
}

func TestRunner_OutputTimeout(t *testing.T) {
	r, _ := newTestRunner(t)

	suite := &Suite{Checks: []Check{{
		Name:    "silent",
		Command: "sh",
		Args:    []string{"-c", "sleep 5"},
		Parts:   []string{"NEVER"},
		Timeout: Duration(300 * time.Millisecond),
	}}}

	results, err := r.Run(context.Background(), suite)
	if !errors.Is(err, ErrSuiteFailed) {
		t.Errorf("expected ErrSuiteFailed, got %v", err)
	}
	if !errors.Is(results[0].Err, waitfor.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", results[0].Err)
	}
}

func TestRunner_StartError(t *testing.T) {
	r, _ := newTestRunner(t)

	suite := &Suite{Checks: []Check{{
		Name:    "missing",
		Command: "/no/such/binary",
		Parts:   []string{"READY"},
		Timeout: Duration(time.Second),
	}}}

	results, err := r.Run(context.Background(), suite)
	if !errors.Is(err, ErrSuiteFailed) {
		t.Errorf("expected ErrSuiteFailed, got %v", err)
	}
	if results[0].Err == nil || !strings.Contains(results[0].Err.Error(), "starting") {
		t.Errorf("expected start error, got %v", results[0].Err)
	}
}

func TestRunner_CanceledContext(t *testing.T) {
	r, _ := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := &Suite{Checks: []Check{{
		Name:    "echo",
		Command: "sh",
		Args:    []string{"-c", "echo READY"},
		Parts:   []string{"READY"},
	}}}

	results, err := r.Run(ctx, suite)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
