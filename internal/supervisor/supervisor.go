package supervisor

//go:generate go tool mockgen -destination stopper_mock.go -package supervisor . Stopper

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/gameconfig"
	"github.com/kofuk/amcs/internal/system"
)

// Stopper asks a running server to shut itself down.
type Stopper interface {
	Stop(ctx context.Context) error
}

type Supervisor struct {
	executor         system.CommandExecutor
	paths            env.PathProvider
	javaPath         string
	stopper          Stopper
	stopTimeout      time.Duration
	restartOnFailure bool
	onExit           func(err error)
}

type Option func(s *Supervisor)

func WithJavaPath(path string) Option {
	return func(s *Supervisor) {
		s.javaPath = path
	}
}

func WithStopper(stopper Stopper) Option {
	return func(s *Supervisor) {
		s.stopper = stopper
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.stopTimeout = d
	}
}

func WithRestartOnFailure() Option {
	return func(s *Supervisor) {
		s.restartOnFailure = true
	}
}

// WithExitHandler registers fn to be called when the server exits for good.
func WithExitHandler(fn func(err error)) Option {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

func New(executor system.CommandExecutor, paths env.PathProvider, options ...Option) *Supervisor {
	s := &Supervisor{
		executor:    executor,
		paths:       paths,
		stopTimeout: 30 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Start launches the server in the background and returns immediately. The
// process is not bound to ctx; it runs until it exits or Stop is called on
// the returned handle.
func (s *Supervisor) Start(ctx context.Context, cfg *gameconfig.Config) (*Handle, error) {
	javaPath := s.javaPath
	if javaPath == "" && strings.HasSuffix(cfg.JarName, ".jar") {
		javaPath = FindJavaPath(ctx, s.executor)
	}

	commandLine, err := LaunchCommand(cfg, javaPath)
	if err != nil {
		return nil, err
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		cancel:      cancel,
		done:        make(chan struct{}),
		stopper:     s.stopper,
		stopTimeout: s.stopTimeout,
	}

	go s.run(procCtx, h, commandLine)

	return h, nil
}

func (s *Supervisor) cmdOptions() []system.CmdOption {
	return []system.CmdOption{
		system.WithWorkingDir(s.paths.GetBaseDir()),
		system.WithNewConsole(),
		system.WithGracefulCancel(s.stopTimeout),
	}
}

func (s *Supervisor) run(ctx context.Context, h *Handle, commandLine []string) {
	defer close(h.done)

	backOffWaitTime := 2 * time.Second
	for {
		err := s.executor.Run(ctx, commandLine[0], commandLine[1:], s.cmdOptions()...)
		if err == nil || !s.restartOnFailure || ctx.Err() != nil {
			h.err = err
			if s.onExit != nil {
				s.onExit(err)
			}
			return
		}

		slog.Warn("Server exited with error, restarting", slog.Any("error", err), slog.Duration("wait", backOffWaitTime))

		timer := time.NewTimer(backOffWaitTime + time.Duration(rand.Float64()*500.0)*time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			h.err = err
			if s.onExit != nil {
				s.onExit(err)
			}
			return
		case <-timer.C:
		}

		backOffWaitTime <<= 1
	}
}

// Handle tracks a server started by Supervisor.
type Handle struct {
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	stopper     Stopper
	stopTimeout time.Duration
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the server exits and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Err returns the exit error, or nil if the server is still running.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Stop shuts the server down. The stopper is tried first; if it fails or the
// server does not exit within the stop timeout, the process is cancelled.
func (h *Handle) Stop(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if h.stopper != nil {
		if err := h.stopper.Stop(ctx); err != nil {
			slog.Warn("Graceful stop failed", slog.Any("error", err))
		} else {
			timer := time.NewTimer(h.stopTimeout)
			defer timer.Stop()

			select {
			case <-h.done:
				return nil
			case <-timer.C:
				slog.Warn("Server did not exit in time", slog.Duration("timeout", h.stopTimeout))
			case <-ctx.Done():
			}
		}
	}

	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
