package tunnel

//go:generate go tool mockgen -destination tunnel_mock.go -package tunnel . Manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Manager exposes a local TCP port on a public address.
type Manager interface {
	EnsureInstalled(ctx context.Context) error
	Authenticate(ctx context.Context, token string) error
	Open(ctx context.Context, localPort int) (*Tunnel, error)
}

type Op string

const (
	OpInstall      Op = "install"
	OpAuthenticate Op = "authenticate"
	OpOpen         Op = "open"
)

type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tunnel %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StripScheme removes everything up to and including "://".
func StripScheme(url string) string {
	if _, rest, ok := strings.Cut(url, "://"); ok {
		return rest
	}
	return url
}

// Tunnel is an open tunnel. It stays open until Close is called or the
// agent maintaining it exits.
type Tunnel struct {
	PublicURL string

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
	done      <-chan struct{}
}

// NewTunnel creates a Tunnel. done is closed when the tunnel goes away, and
// closeFn tears it down.
func NewTunnel(publicURL string, done <-chan struct{}, closeFn func() error) *Tunnel {
	return &Tunnel{
		PublicURL: publicURL,
		closeFn:   closeFn,
		done:      done,
	}
}

// Address returns the host:port players connect to.
func (t *Tunnel) Address() string {
	return StripScheme(t.PublicURL)
}

func (t *Tunnel) Done() <-chan struct{} {
	return t.done
}

func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		if t.closeFn != nil {
			t.closeErr = t.closeFn()
		}
	})
	return t.closeErr
}
