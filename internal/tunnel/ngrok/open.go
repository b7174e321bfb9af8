package ngrok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kofuk/amcs/internal/retry"
	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/amcs/internal/tunnel"
)

var (
	errTunnelNotReady = errors.New("tunnel is not ready yet")
	errAgentExited    = errors.New("ngrok agent exited")
)

// logRecorder consumes the JSON log of the agent and remembers the last
// error it reported.
type logRecorder struct {
	mu      sync.Mutex
	buf     []byte
	lastErr string
}

type logLine struct {
	Level   string `json:"lvl"`
	Message string `json:"msg"`
	Err     string `json:"err"`
}

func (r *logRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, p...)
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}
		r.handleLine(bytes.TrimSpace(r.buf[:i]))
		r.buf = r.buf[i+1:]
	}

	return len(p), nil
}

func (r *logRecorder) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}

	var entry logLine
	if err := json.Unmarshal(line, &entry); err != nil {
		// Agents may print plain text before the logger is set up.
		r.lastErr = string(line)
		return
	}

	slog.Debug("ngrok", slog.String("lvl", entry.Level), slog.String("msg", entry.Message), slog.String("err", entry.Err))

	if entry.Level != "eror" && entry.Level != "crit" {
		return
	}
	if entry.Err != "" {
		r.lastErr = strings.TrimSpace(entry.Err)
	} else if entry.Message != "" {
		r.lastErr = entry.Message
	}
}

func (r *logRecorder) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) > 0 {
		r.handleLine(bytes.TrimSpace(r.buf))
		r.buf = nil
	}
	return r.lastErr
}

type apiTunnel struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
	Config    struct {
		Addr string `json:"addr"`
	} `json:"config"`
}

type apiTunnelList struct {
	Tunnels []apiTunnel `json:"tunnels"`
}

func (a *Agent) fetchTunnels(ctx context.Context) (*apiTunnelList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/tunnels", a.apiAddr), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status from agent API: %s", resp.Status)
	}

	var list apiTunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

func findTCPTunnel(list *apiTunnelList, localPort int) (string, bool) {
	suffix := ":" + strconv.Itoa(localPort)
	for _, t := range list.Tunnels {
		if t.Proto == "tcp" && strings.HasSuffix(t.Config.Addr, suffix) && t.PublicURL != "" {
			return t.PublicURL, true
		}
	}
	return "", false
}

// waitPublicURL polls the agent API until the tunnel shows up. The whole
// wait, including requests the API never answers, is bounded by pollTimeout.
func (a *Agent) waitPublicURL(ctx context.Context, localPort int, agentDone <-chan struct{}, exitErr func() error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.pollTimeout)
	defer cancel()

	url, err := retry.Retry(ctx, func() (string, error) {
		select {
		case <-agentDone:
			return "", retry.Permanent(exitErr())
		default:
		}

		list, err := a.fetchTunnels(ctx)
		if err != nil {
			return "", err
		}
		if url, ok := findTCPTunnel(list, localPort); ok {
			return url, nil
		}
		return "", errTunnelNotReady
	}, a.pollTimeout,
		retry.WithInitialInterval(250*time.Millisecond),
		retry.WithMaxInterval(2*time.Second),
		retry.WithMaxJitter(100*time.Millisecond),
	)
	if err != nil && ctx.Err() != nil {
		return "", fmt.Errorf("tunnel did not appear within %v: %w", a.pollTimeout, err)
	}
	return url, err
}

// Open starts a TCP tunnel to localPort and waits until the agent reports
// its public URL.
func (a *Agent) Open(ctx context.Context, localPort int) (*tunnel.Tunnel, error) {
	path, err := a.findBinary()
	if err != nil {
		return nil, &tunnel.Error{Op: tunnel.OpOpen, Err: err}
	}

	recorder := &logRecorder{}
	options := []system.CmdOption{
		system.WithOutput(recorder),
		system.WithGracefulCancel(5 * time.Second),
	}
	if a.authtoken != "" {
		options = append(options, system.WithEnv("NGROK_AUTHTOKEN="+a.authtoken))
	}

	agentCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	var runErr error

	go func() {
		defer close(done)
		runErr = a.executor.Run(agentCtx, path, []string{"tcp", strconv.Itoa(localPort), "--log", "stdout", "--log-format", "json"}, options...)
	}()

	exitErr := func() error {
		err := errAgentExited
		if runErr != nil {
			err = fmt.Errorf("%w: %w", errAgentExited, runErr)
		}
		if msg := recorder.LastError(); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}

	closeFn := func() error {
		cancel()
		<-done
		return nil
	}

	publicURL, err := a.waitPublicURL(ctx, localPort, done, exitErr)
	if err != nil {
		closeFn()
		return nil, &tunnel.Error{Op: tunnel.OpOpen, Err: err}
	}

	slog.Info("Tunnel opened", slog.String("public_url", publicURL), slog.Int("local_port", localPort))

	return tunnel.NewTunnel(publicURL, done, closeFn), nil
}
