package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kofuk/amcs/internal/gameconfig"
	"github.com/kofuk/amcs/internal/serverprop"
)

var (
	QuestionMemory = Question{
		Key:    "max_mem_mb",
		Prompt: "Please specify in MB how much RAM you would like your server to use (1024 MB = 1 GB, default=2048): ",
	}
	QuestionGUI = Question{
		Key:    "gui",
		Prompt: "Run the server in a GUI (y/n, default=y): ",
	}
	QuestionServerFile = Question{
		Key:    "jar_name",
		Prompt: "Enter the name of your server JAR/BAT file (including the trailing .jar/.bat) (default=server.jar): ",
	}
	QuestionAuthtoken = Question{
		Key:    "authtoken",
		Prompt: "Paste your authtoken here: ",
		Secret: true,
	}
)

const signUpNotice = `In order to expose your server publicly, you need to sign up for Ngrok.
Sign up for free at: https://dashboard.ngrok.com/signup
If you have already signed up, make sure your authtoken is installed.
Your authtoken is available on your dashboard: https://dashboard.ngrok.com/get-started/your-authtoken`

type Reason int

const (
	MissingProperties Reason = iota
	InvalidPort
	InvalidMemory
	InvalidServerFile
	MissingToken
)

type InputError struct {
	Reason  Reason
	Missing []string
	Value   string
}

func (e *InputError) Error() string {
	switch e.Reason {
	case MissingProperties:
		return fmt.Sprintf("server.properties lacks required keys: %s", strings.Join(e.Missing, ", "))
	case InvalidPort:
		return fmt.Sprintf("invalid server-port in server.properties: %q", e.Value)
	case InvalidMemory:
		return fmt.Sprintf("invalid value passed for RAM: %q", e.Value)
	case InvalidServerFile:
		return fmt.Sprintf("unrecognized server file %q: it must be a JAR or BAT file", e.Value)
	case MissingToken:
		return "no authtoken was entered"
	default:
		return "invalid input"
	}
}

type Notifier interface {
	Warn(format string, args ...any)
}

type Wizard struct {
	answers     AnswerSource
	notifier    Notifier
	memoryProbe func() (uint64, error)
	authtoken   string
}

type Option func(w *Wizard)

// WithMemoryProbe enables a warning when the requested heap exceeds the
// machine's memory.
func WithMemoryProbe(probe func() (uint64, error)) Option {
	return func(w *Wizard) {
		w.memoryProbe = probe
	}
}

// WithAuthtoken supplies an authtoken that is already known, so the user is
// not asked for one.
func WithAuthtoken(token string) Option {
	return func(w *Wizard) {
		w.authtoken = token
	}
}

func New(answers AnswerSource, notifier Notifier, options ...Option) *Wizard {
	w := &Wizard{
		answers:  answers,
		notifier: notifier,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Run derives a Config from server.properties and the user's answers. It also
// returns the tunnel authtoken, which is not part of the Config.
func (w *Wizard) Run(ctx context.Context, props serverprop.Properties) (*gameconfig.Config, string, error) {
	if missing := props.Missing(serverprop.KeyServerIP, serverprop.KeyServerPort); len(missing) > 0 {
		return nil, "", &InputError{Reason: MissingProperties, Missing: missing}
	}

	cfg := gameconfig.Default()

	if ip := props[serverprop.KeyServerIP]; ip != "" {
		cfg.IP = ip
	}

	rawPort := props[serverprop.KeyServerPort]
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 1 || port > 65535 {
		return nil, "", &InputError{Reason: InvalidPort, Value: rawPort}
	}
	cfg.Port = port

	memAnswer, err := w.answers.Ask(ctx, QuestionMemory)
	if err != nil {
		return nil, "", err
	}
	if memAnswer != "" {
		mem, err := strconv.Atoi(memAnswer)
		if err != nil || mem <= 0 {
			return nil, "", &InputError{Reason: InvalidMemory, Value: memAnswer}
		}
		cfg.MaxMemMB = mem
	}
	w.checkMemory(cfg.MaxMemMB)

	guiAnswer, err := w.answers.Ask(ctx, QuestionGUI)
	if err != nil {
		return nil, "", err
	}
	cfg.NoGUI = strings.EqualFold(guiAnswer, "n")

	jarAnswer, err := w.answers.Ask(ctx, QuestionServerFile)
	if err != nil {
		return nil, "", err
	}
	if jarAnswer != "" {
		if !gameconfig.IsSupportedServerFile(jarAnswer) {
			return nil, "", &InputError{Reason: InvalidServerFile, Value: jarAnswer}
		}
		cfg.JarName = jarAnswer
	}

	token, err := w.askAuthtoken(ctx)
	if err != nil {
		return nil, "", err
	}

	return &cfg, token, nil
}

func (w *Wizard) askAuthtoken(ctx context.Context) (string, error) {
	if w.authtoken != "" {
		return w.authtoken, nil
	}

	w.notifier.Warn("%s", signUpNotice)
	token, err := w.answers.Ask(ctx, QuestionAuthtoken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &InputError{Reason: MissingToken}
	}
	return token, nil
}

func (w *Wizard) checkMemory(maxMemMB int) {
	if w.memoryProbe == nil {
		return
	}

	total, err := w.memoryProbe()
	if err != nil {
		slog.Warn("Unable to get total memory", slog.Any("error", err))
		return
	}

	totalMB := total / 1024 / 1024
	if uint64(maxMemMB) >= totalMB {
		w.notifier.Warn("The server is allowed to use %d MB, but this machine only has %d MB of memory.", maxMemMB, totalMB)
	}
}
