// Package script evaluates user-supplied Lua match conditions against
// accumulated process output.
//
// A match script defines a single function:
//
//	function match(buffer)
//	    return string.find(buffer, "READY") ~= nil
//	end
//
// The script runs sandboxed: file, process, and module loading access
// are removed, print is routed to the logger, and each evaluation is
// bounded by a timeout. Evaluation failures are logged once and
// treated as "no match", so a broken script degrades to a wait
// timeout rather than a false success.
package script

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/procwait/internal/logging"
)

// DefaultEvalTimeout bounds a single evaluation of the match function.
const DefaultEvalTimeout = 100 * time.Millisecond

// matchFunction is the global the script must define.
const matchFunction = "match"

// Matcher holds a loaded match script.
//
// gopher-lua's LState is NOT goroutine-safe, so every evaluation is
// serialized through a mutex. Matcher is safe for concurrent use.
type Matcher struct {
	// L is the Lua state owning the loaded script.
	L *lua.LState

	// fn is the script's match function.
	fn lua.LValue

	// path is the script file, used in names and messages.
	path string

	// evalTimeout bounds one evaluation.
	evalTimeout time.Duration

	// warned is set after the first evaluation failure is logged.
	warned bool

	// closed marks the state as released.
	closed bool

	logger *logging.Logger
	mu     sync.Mutex

	// closeOnce ensures Close is only called once
	closeOnce sync.Once
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithEvalTimeout bounds a single evaluation of the match function.
func WithEvalTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.evalTimeout = d
		}
	}
}

// WithLogger sets the logger for script diagnostics and print output.
func WithLogger(l *logging.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// Load reads and compiles a match script. The script's top level runs
// once here, inside the sandbox; it must leave a match function
// defined or Load fails with ErrNoMatchFunction.
func Load(path string, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		path:        path,
		evalTimeout: DefaultEvalTimeout,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("script")

	L := lua.NewState()
	sandbox(L, m.logger)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load match script %s: %w", path, err)
	}

	fn := L.GetGlobal(matchFunction)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoMatchFunction)
	}

	m.L = L
	m.fn = fn
	return m, nil
}

// Name returns a short description of the condition for error
// messages.
func (m *Matcher) Name() string {
	return "script " + filepath.Base(m.path)
}

// Match evaluates the script's match function against buffer. Any
// evaluation failure, including a timed-out script, counts as no
// match; the first failure is logged.
func (m *Matcher) Match(buffer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	ok, err := m.eval(buffer)
	if err != nil {
		if !m.warned {
			m.logger.Warn("match script %s failed: %v", m.path, err)
			m.warned = true
		}
		return false
	}
	return ok
}

// eval runs one call of the match function with panic recovery.
// Caller holds m.mu.
func (m *Matcher) eval(buffer string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("lua panic: %v", r)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.evalTimeout)
	defer cancel()
	m.L.SetContext(ctx)

	m.L.Push(m.fn)
	m.L.Push(lua.LString(buffer))
	if err := m.L.PCall(1, 1, nil); err != nil {
		return false, err
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state. The matcher reports no match after
// Close.
func (m *Matcher) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.closed = true
		m.L.Close()
	})
}

// sandbox removes the script's escape hatches to the filesystem and
// process, and routes print through the logger so scripts cannot
// write to the stdout the waiter may be reporting on.
func sandbox(L *lua.LState, logger *logging.Logger) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	// Clear package.path and package.cpath to prevent loading modules
	// from disk.
	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		logger.Debug("script: %s", strings.Join(parts, "\t"))
		return 0
	}))
}

// ErrNoMatchFunction is returned when a loaded script does not define
// a match function.
var ErrNoMatchFunction = errors.New("script does not define a match function")
