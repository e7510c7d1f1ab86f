package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/dshills/linebridge/internal/protocol"
	"github.com/dshills/linebridge/internal/rpc"
)

// Status indicates the current state of the engine process.
type Status int32

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config defines how to launch the engine process.
type Config struct {
	// Command is the engine executable.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory.
	WorkDir string

	// ConfigDir is reported to the engine in the handshake.
	ConfigDir string

	// CallTimeout bounds synchronous requests (default 10s).
	CallTimeout time.Duration
}

// Engine is a handle to one engine process and its transport.
type Engine struct {
	mu sync.Mutex

	config Config

	// instanceID names this launch in logs and the handshake.
	instanceID string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	transport *rpc.Transport
	handler   rpc.Handler

	status atomic.Int32
	exitCh chan error

	ctx    context.Context
	cancel context.CancelFunc

	log pslog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log pslog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine handle (not yet started).
func New(config Config, opts ...Option) *Engine {
	if config.CallTimeout == 0 {
		config.CallTimeout = 10 * time.Second
	}

	e := &Engine{
		config:     config,
		instanceID: uuid.New().String(),
		exitCh:     make(chan error, 1),
		log:        pslog.Ctx(context.Background()),
	}
	e.status.Store(int32(StatusStopped))
	e.log = e.log.With("engine", e.instanceID[:8])
	return e
}

// OnMessage sets the handler for inbound frames that are not responses
// to pending requests. Must be called before Start. The handler runs on
// the receive goroutine; it must not issue synchronous calls.
func (e *Engine) OnMessage(h rpc.Handler) {
	e.handler = h
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	return Status(e.status.Load())
}

// InstanceID returns the per-launch identifier.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// ExitChannel receives the process exit error once the engine dies.
func (e *Engine) ExitChannel() <-chan error {
	return e.exitCh
}

// Done returns a channel closed when the transport's receive loop stops.
func (e *Engine) Done() <-chan struct{} {
	if e.transport == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.transport.Done()
}

// Start launches the engine process, wires the transport, and performs
// the client_started handshake. A launch failure is fatal: the handle
// goes to StatusError and cannot be restarted.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status() != StatusStopped {
		return ErrAlreadyStarted
	}
	e.status.Store(int32(StatusStarting))

	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.startProcess(); err != nil {
		e.status.Store(int32(StatusError))
		return fmt.Errorf("launch engine: %w", err)
	}

	e.transport = rpc.NewTransport(e.stdout, e.stdin, nil, rpc.WithLogger(e.log))
	if e.handler != nil {
		e.transport.OnMessage(e.handler)
	}
	e.transport.Start(e.ctx)

	go e.monitorProcess()
	go e.drainStderr()

	e.status.Store(int32(StatusRunning))

	params := protocol.ClientStartedParams{
		ClientID:  e.instanceID,
		ConfigDir: e.config.ConfigDir,
	}
	if err := e.transport.Notify(protocol.MethodClientStarted, params); err != nil {
		e.log.Warn("client_started handshake failed", "err", err)
	}

	e.log.Info("engine started", "command", e.config.Command, "pid", e.cmd.Process.Pid)
	return nil
}

// startProcess starts the engine executable with piped streams.
func (e *Engine) startProcess() error {
	cmd := exec.CommandContext(e.ctx, e.config.Command, e.config.Args...)

	cmd.Env = os.Environ()
	for k, v := range e.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if e.config.WorkDir != "" {
		cmd.Dir = e.config.WorkDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("start process: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = stdout
	e.stderr = stderr
	return nil
}

// monitorProcess waits for the process and reports its exit.
func (e *Engine) monitorProcess() {
	if e.cmd == nil {
		return
	}

	err := e.cmd.Wait()
	if e.Status() == StatusRunning {
		// Not a requested shutdown: the session is dead.
		e.status.Store(int32(StatusError))
		e.log.Error("engine process exited", "err", err)
	}
	select {
	case e.exitCh <- err:
	default:
	}
}

// drainStderr forwards engine diagnostics to the log.
func (e *Engine) drainStderr() {
	scanner := bufio.NewScanner(e.stderr)
	for scanner.Scan() {
		e.log.Debug("engine stderr", "line", scanner.Text())
	}
}

// Shutdown stops the engine. Stdin closes first so a well-behaved engine
// exits on end of input; the process is killed if still present.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.Status()
	if st == StatusStopped || st == StatusStopping {
		return
	}
	e.status.Store(int32(StatusStopping))

	if e.transport != nil {
		e.transport.Close()
	}
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}

	e.status.Store(int32(StatusStopped))
	e.log.Info("engine stopped")
}
