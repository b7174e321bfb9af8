package wizard

//go:generate go tool mockgen -destination answers_mock.go -package wizard . AnswerSource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

type Question struct {
	Key    string
	Prompt string
	Secret bool
}

type AnswerSource interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// TerminalAnswers asks questions with pterm's interactive text input.
type TerminalAnswers struct{}

var _ AnswerSource = TerminalAnswers{}

func (TerminalAnswers) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input := pterm.DefaultInteractiveTextInput.WithDefaultText(q.Prompt)
	if q.Secret {
		input = input.WithMask("*")
	}

	answer, err := input.Show()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// ReaderAnswers reads one line per question, for non-interactive stdin.
type ReaderAnswers struct {
	in  *bufio.Reader
	out io.Writer
}

var _ AnswerSource = (*ReaderAnswers)(nil)

func NewReaderAnswers(in io.Reader, out io.Writer) *ReaderAnswers {
	return &ReaderAnswers{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (a *ReaderAnswers) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(a.out, q.Prompt)

	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("no answer for %s: %w", q.Key, err)
	}
	return strings.TrimSpace(line), nil
}
