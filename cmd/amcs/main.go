package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kofuk/amcs/internal/commands/configcli"
	"github.com/kofuk/amcs/internal/commands/launch"
	"github.com/kofuk/amcs/internal/config"
	"github.com/kofuk/amcs/internal/console"
	"github.com/kofuk/amcs/internal/metadata"
	potel "github.com/kofuk/amcs/internal/otel"
	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/amcs/internal/tunnel/ngrok"
	"github.com/kofuk/amcs/internal/wizard"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/term"
)

const logFile = "amcs.log"

func setupLogging(settings *config.Settings) (func(), error) {
	f, err := os.OpenFile(settings.Paths().GetDataPath(logFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if settings.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})).With(slog.String("version", metadata.Version)))

	return func() { f.Close() }, nil
}

func ngrokOptions(settings *config.Settings) []ngrok.Option {
	options := []ngrok.Option{
		ngrok.WithAPIAddr(settings.NgrokAPIAddr),
	}
	if settings.NgrokPath != "" {
		options = append(options, ngrok.WithBinaryPath(settings.NgrokPath))
	}
	if settings.NgrokAuthtoken != "" {
		options = append(options, ngrok.WithAuthtoken(settings.NgrokAuthtoken))
	}
	if settings.NgrokDownloadURL != "" {
		options = append(options, ngrok.WithDownloadURL(settings.NgrokDownloadURL))
	}
	return options
}

func runLauncher(ctx context.Context, settings *config.Settings) int {
	closeLog, err := setupLogging(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	if tp, err := potel.InitializeTracer(ctx); err != nil {
		slog.Error("Failed to initialize tracer", slog.Any("error", err))
	} else if tp != nil {
		defer tp.Shutdown(context.Background())
	}

	ctx, span := otel.Tracer("github.com/kofuk/amcs/cmd/amcs").Start(ctx, "launch")
	defer span.End()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	var consoleOptions []console.Option
	if settings.NoClear || !term.IsTerminal(int(os.Stdout.Fd())) {
		consoleOptions = append(consoleOptions, console.WithoutClear())
	}
	con := console.New(consoleOptions...)

	var answers wizard.AnswerSource = wizard.TerminalAnswers{}
	if !interactive {
		answers = wizard.NewReaderAnswers(os.Stdin, os.Stdout)
	}

	paths := settings.Paths()
	executor := system.NewSimpleExecutor(paths.GetDataPath("logs"))
	agent := ngrok.New(executor, paths, ngrokOptions(settings)...)

	launcher := launch.New(settings, con, answers, agent, executor)
	if err := launcher.Run(ctx); err != nil {
		launcher.Report(err)
		if interactive {
			con.WaitForAcknowledge("Press Enter to exit. ")
		}
		return 1
	}

	slog.Info("Exiting")
	return 0
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), metadata.Version)
		},
	}
}

func main() {
	var (
		flags  config.Settings
		status int
	)

	cmd := &cobra.Command{
		Use:          "amcs",
		Short:        "Set up and launch a Minecraft server reachable through an ngrok tunnel",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(flags)
			if err != nil {
				return err
			}
			status = runLauncher(cmd.Context(), settings)
			return nil
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.StringVar(&flags.BaseDir, "base-dir", "", "Directory containing the server files (default: directory of this executable)")
	persistentFlags.BoolVar(&flags.Debug, "debug", false, "Write debug logs to "+logFile)
	persistentFlags.BoolVar(&flags.NoClear, "no-clear", false, "Do not clear the terminal when printing messages")

	cmd.AddCommand(configcli.NewConfigCommand(func() (*config.Settings, error) {
		return config.Load(flags)
	}))
	cmd.AddCommand(newVersionCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
	os.Exit(status)
}
