package ngrok

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/amcs/internal/tunnel"
)

const DefaultAPIAddr = "127.0.0.1:4040"

var ErrNotInstalled = errors.New("ngrok agent is not installed")

// Agent drives the ngrok agent executable through its CLI and local API.
type Agent struct {
	executor    system.CommandExecutor
	paths       env.PathProvider
	binaryPath  string
	apiAddr     string
	downloadURL string
	authtoken   string
	httpClient  *http.Client
	pollTimeout time.Duration
}

var _ tunnel.Manager = (*Agent)(nil)

type Option func(a *Agent)

// WithBinaryPath makes the agent use the given executable instead of
// looking one up.
func WithBinaryPath(path string) Option {
	return func(a *Agent) {
		a.binaryPath = path
	}
}

func WithAPIAddr(addr string) Option {
	return func(a *Agent) {
		a.apiAddr = addr
	}
}

func WithDownloadURL(url string) Option {
	return func(a *Agent) {
		a.downloadURL = url
	}
}

// WithAuthtoken passes token to every agent run, in addition to whatever is
// stored in the agent's own configuration.
func WithAuthtoken(token string) Option {
	return func(a *Agent) {
		a.authtoken = token
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Agent) {
		a.httpClient = client
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.pollTimeout = d
	}
}

func New(executor system.CommandExecutor, paths env.PathProvider, options ...Option) *Agent {
	a := &Agent{
		executor:    executor,
		paths:       paths,
		apiAddr:     DefaultAPIAddr,
		downloadURL: DefaultDownloadURL(runtime.GOOS, runtime.GOARCH),
		httpClient:  http.DefaultClient,
		pollTimeout: 30 * time.Second,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ngrok.exe"
	}
	return "ngrok"
}

// BundledPath is where a downloaded agent is installed.
func (a *Agent) BundledPath() string {
	return a.paths.GetDataPath("bin", binaryName())
}

func isExecutableFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func (a *Agent) findBinary() (string, error) {
	if a.binaryPath != "" {
		if !isExecutableFile(a.binaryPath) {
			return "", fmt.Errorf("%w: %s", ErrNotInstalled, a.binaryPath)
		}
		return a.binaryPath, nil
	}

	if bundled := a.BundledPath(); isExecutableFile(bundled) {
		return bundled, nil
	}

	path, err := exec.LookPath("ngrok")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotInstalled, err)
	}
	return path, nil
}

func (a *Agent) EnsureInstalled(ctx context.Context) error {
	if path, err := a.findBinary(); err == nil {
		slog.Debug("Found ngrok agent", slog.String("path", path))
		return nil
	} else if a.binaryPath != "" {
		return &tunnel.Error{Op: tunnel.OpInstall, Err: err}
	}

	slog.Info("Installing ngrok agent", slog.String("url", a.downloadURL), slog.String("dest", a.BundledPath()))

	if err := a.install(ctx); err != nil {
		return &tunnel.Error{Op: tunnel.OpInstall, Err: err}
	}
	return nil
}

// Authenticate records token in the agent's configuration file. Later runs
// of the agent pick it up without further action.
func (a *Agent) Authenticate(ctx context.Context, token string) error {
	if token == "" {
		return &tunnel.Error{Op: tunnel.OpAuthenticate, Err: errors.New("empty authtoken")}
	}

	path, err := a.findBinary()
	if err != nil {
		return &tunnel.Error{Op: tunnel.OpAuthenticate, Err: err}
	}

	output, err := system.RunWithOutput(ctx, a.executor, path, []string{"config", "add-authtoken", token}, system.WithRedactedArgs())
	if err != nil {
		if msg := strings.TrimSpace(output); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &tunnel.Error{Op: tunnel.OpAuthenticate, Err: err}
	}

	return nil
}
