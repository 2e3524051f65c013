package waitfor

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestWaitForPort_AlreadyListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := WaitForPort(ctx, "127.0.0.1", port); err != nil {
		t.Fatalf("expected port to be reported ready, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("ready port should be detected immediately, took %v", elapsed)
	}
}

func TestWaitForPort_BecomesReady(t *testing.T) {
	// Reserve a port, free it, then start listening on it shortly
	// after the wait begins.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ready := make(chan net.Listener, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		late, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err != nil {
			return
		}
		ready <- late
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := WaitForPort(ctx, "127.0.0.1", port); err != nil {
		t.Fatalf("expected port to become ready, got %v", err)
	}

	select {
	case late := <-ready:
		late.Close()
	case <-time.After(time.Second):
		t.Fatal("late listener never started")
	}
}

func TestWaitForPort_Timeout(t *testing.T) {
	// Reserve a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err = WaitForPort(ctx, "127.0.0.1", port)
	if err == nil {
		t.Fatal("expected timeout error for closed port")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
}
