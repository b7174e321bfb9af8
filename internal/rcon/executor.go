package rcon

//go:generate go tool mockgen -destination executor_mock.go -package rcon . Executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorcon/rcon"
	"github.com/kofuk/amcs/internal/retry"
)

type Executor interface {
	Exec(ctx context.Context, cmd string) (string, error)
}

type RconExecutor struct {
	addr        string
	password    string
	connectWait time.Duration
	mu          sync.Mutex
}

var _ Executor = (*RconExecutor)(nil)

func NewRconExecutor(addr, password string) *RconExecutor {
	return &RconExecutor{
		addr:        addr,
		password:    password,
		connectWait: 10 * time.Second,
	}
}

func (r *RconExecutor) connect() (*rcon.Conn, error) {
	conn, err := rcon.Dial(r.addr, r.password, rcon.SetDialTimeout(5*time.Second), rcon.SetDeadline(10*time.Second))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *RconExecutor) waitConnect(ctx context.Context) (*rcon.Conn, error) {
	return retry.Retry(ctx, func() (*rcon.Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, retry.Permanent(err)
		}
		return r.connect()
	}, r.connectWait, retry.WithMaxJitter(500*time.Millisecond))
}

func (r *RconExecutor) Exec(ctx context.Context, cmd string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.waitConnect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	slog.Debug("Executing rcon", slog.String("command", cmd))
	resp, err := conn.Execute(cmd)
	if err != nil {
		return "", err
	}
	slog.Debug("Rcon response received", slog.String("command", cmd), slog.String("response", resp))

	return resp, nil
}
