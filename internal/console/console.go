package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

const clearScreen = "\033[H\033[2J"

type Severity int

const (
	SeverityLog Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) label() string {
	switch s {
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "LOG"
	}
}

func (s Severity) color() pterm.Color {
	switch s {
	case SeverityWarn:
		return pterm.FgYellow
	case SeverityError:
		return pterm.FgRed
	default:
		return pterm.FgGreen
	}
}

type Message struct {
	Time     time.Time
	Severity Severity
	Text     string
}

func (m Message) String() string {
	return fmt.Sprintf("[%s][%s]: %s", m.Time.Format(time.TimeOnly), m.Severity.label(), m.Text)
}

// Console is an append-only message log. Every append is followed by a
// repaint of the whole history.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	in    *bufio.Reader
	clear bool
	now   func() time.Time
	msgs  []Message
}

type Option func(c *Console)

func WithOutput(w io.Writer) Option {
	return func(c *Console) {
		c.out = w
	}
}

func WithInput(r io.Reader) Option {
	return func(c *Console) {
		c.in = bufio.NewReader(r)
	}
}

func WithoutClear() Option {
	return func(c *Console) {
		c.clear = false
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		c.now = now
	}
}

func New(options ...Option) *Console {
	c := &Console{
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
		clear: true,
		now:   time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Console) Log(format string, args ...any) {
	c.append(SeverityLog, fmt.Sprintf(format, args...))
}

func (c *Console) Warn(format string, args ...any) {
	c.append(SeverityWarn, fmt.Sprintf(format, args...))
}

func (c *Console) Error(format string, args ...any) {
	c.append(SeverityError, fmt.Sprintf(format, args...))
}

func (c *Console) append(severity Severity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, Message{
		Time:     c.now(),
		Severity: severity,
		Text:     text,
	})
	c.render()
}

// Render repaints the message history.
func (c *Console) Render() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.render()
}

func (c *Console) render() {
	if c.clear {
		fmt.Fprint(c.out, clearScreen)
	}
	for _, msg := range c.msgs {
		pterm.Fprintln(c.out, msg.Severity.color().Sprint(msg.String()))
	}
}

func (c *Console) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Message(nil), c.msgs...)
}

// WaitForAcknowledge shows prompt and blocks until a line is entered.
func (c *Console) WaitForAcknowledge(prompt string) {
	c.mu.Lock()
	fmt.Fprint(c.out, prompt)
	c.mu.Unlock()

	c.in.ReadString('\n')
}

func Highlight(s string) string {
	return pterm.NewStyle(pterm.FgBlack, pterm.BgWhite).Sprint(s)
}
