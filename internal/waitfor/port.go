package waitfor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Probe cadence for WaitForPort. The dial timeout is kept short so a
// firewalled host cannot stall a probe past the next tick.
const (
	portPollInterval = 100 * time.Millisecond
	portDialTimeout  = 50 * time.Millisecond
)

// WaitForPort blocks until a TCP listener on host:port accepts
// connections, or ctx is done. It returns nil as soon as a connection
// succeeds; the probe connection is closed immediately.
func WaitForPort(ctx context.Context, host string, port int) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	if dialPort(address) {
		return nil
	}

	ticker := time.NewTicker(portPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for port %d: %w", port, ctx.Err())
		case <-ticker.C:
			if dialPort(address) {
				return nil
			}
		}
	}
}

// dialPort makes a single probe attempt.
func dialPort(address string) bool {
	conn, err := net.DialTimeout("tcp", address, portDialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
