package system

//go:generate go tool mockgen -destination cmd_mock.go -package system . CommandExecutor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ScopeName = "github.com/kofuk/amcs/internal/system"

var logNum uint64

type CommandExecutor interface {
	Run(ctx context.Context, path string, args []string, options ...CmdOption) error
}

// Cmd is the command being prepared. Options may change the embedded
// exec.Cmd freely.
type Cmd struct {
	*exec.Cmd

	// Redacted hides the arguments from logs and traces.
	Redacted bool
}

type CmdOption func(cmd *Cmd)

func WithEnv(env string) CmdOption {
	return func(cmd *Cmd) {
		cmd.Env = append(cmd.Env, env)
	}
}

func WithWorkingDir(dir string) CmdOption {
	return func(cmd *Cmd) {
		cmd.Dir = dir
	}
}

func WithOutput(w io.Writer) CmdOption {
	return func(cmd *Cmd) {
		cmd.Stdout = w
		cmd.Stderr = w
	}
}

func WithRedactedArgs() CmdOption {
	return func(cmd *Cmd) {
		cmd.Redacted = true
	}
}

type SimpleExecutor struct {
	logDir string
}

var _ CommandExecutor = (*SimpleExecutor)(nil)

// NewSimpleExecutor creates an executor which stores output of each command
// in logDir. Output is discarded if logDir is empty.
func NewSimpleExecutor(logDir string) *SimpleExecutor {
	return &SimpleExecutor{
		logDir: logDir,
	}
}

func (e *SimpleExecutor) createLog() (io.Writer, string, error) {
	if e.logDir == "" {
		return io.Discard, "<discarded>", nil
	}
	if err := os.MkdirAll(e.logDir, 0755); err != nil {
		return io.Discard, "<error>", err
	}

	for {
		logPath := filepath.Join(e.logDir, fmt.Sprintf("command-%d.log", atomic.AddUint64(&logNum, 1)-1))
		log, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			slog.Error("Unable to create log file", slog.Any("error", err))
			return io.Discard, "<error>", err
		}
		return log, logPath, nil
	}
}

func (e *SimpleExecutor) Run(ctx context.Context, path string, args []string, options ...CmdOption) error {
	tracer := trace.SpanFromContext(ctx).TracerProvider().Tracer(ScopeName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("EXEC %s", filepath.Base(path)))
	defer span.End()

	log, logPath, err := e.createLog()
	if err != nil {
		return err
	}
	if closer, ok := log.(io.Closer); ok {
		defer closer.Close()
	}

	cmd := &Cmd{Cmd: exec.CommandContext(ctx, path, args...)}
	cmd.Stdout = log
	cmd.Stderr = log
	cmd.Env = cmd.Environ()
	for _, opt := range options {
		opt(cmd)
	}

	loggedArgs := args
	if cmd.Redacted {
		loggedArgs = []string{"<redacted>"}
	}

	slog.Info("Execute system command", slog.String("command", path), slog.Any("args", loggedArgs), slog.String("command_output", logPath))

	span.SetAttributes(
		attribute.String("command.name", path),
		attribute.StringSlice("command.args", loggedArgs),
	)

	if err := cmd.Run(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Command failed", slog.String("command", path), slog.Any("error", err))
		return err
	}
	return nil
}

func RunWithOutput(ctx context.Context, executor CommandExecutor, path string, args []string, options ...CmdOption) (string, error) {
	output := new(strings.Builder)
	err := executor.Run(ctx, path, args, append(options, WithOutput(output))...)
	return output.String(), err
}
