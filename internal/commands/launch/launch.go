package launch

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/kofuk/amcs/internal/config"
	"github.com/kofuk/amcs/internal/console"
	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/gameconfig"
	"github.com/kofuk/amcs/internal/metadata"
	"github.com/kofuk/amcs/internal/rcon"
	"github.com/kofuk/amcs/internal/serverprop"
	"github.com/kofuk/amcs/internal/supervisor"
	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/amcs/internal/tunnel"
	"github.com/kofuk/amcs/internal/wizard"
	"golang.org/x/sync/errgroup"
)

const eulaFile = "eula.txt"

type Launcher struct {
	settings    *config.Settings
	paths       env.PathProvider
	console     *console.Console
	answers     wizard.AnswerSource
	tunnels     tunnel.Manager
	executor    system.CommandExecutor
	store       *gameconfig.Store
	memoryProbe func() (uint64, error)
	newStopper  func(addr, password string) supervisor.Stopper
}

type Option func(l *Launcher)

func WithMemoryProbe(probe func() (uint64, error)) Option {
	return func(l *Launcher) {
		l.memoryProbe = probe
	}
}

// WithStopperFactory replaces how the RCON stopper is created from the
// address and password found in server.properties.
func WithStopperFactory(fn func(addr, password string) supervisor.Stopper) Option {
	return func(l *Launcher) {
		l.newStopper = fn
	}
}

func New(settings *config.Settings, c *console.Console, answers wizard.AnswerSource, tunnels tunnel.Manager, executor system.CommandExecutor, options ...Option) *Launcher {
	paths := settings.Paths()
	l := &Launcher{
		settings:    settings,
		paths:       paths,
		console:     c,
		answers:     answers,
		tunnels:     tunnels,
		executor:    executor,
		store:       gameconfig.NewStore(paths),
		memoryProbe: system.GetTotalMemory,
		newStopper: func(addr, password string) supervisor.Stopper {
			return rcon.New(rcon.NewRconExecutor(addr, password))
		},
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *Launcher) greet() {
	l.console.Log("Auto MC Server (AMCS) %s (CTRL+C to quit).", metadata.Version)
	if runtime.GOOS != "windows" {
		l.console.Warn("%s", console.Highlight("AMCS has been tested on Windows 10 - you may run into errors on this OS."))
	}
	l.console.Log("Ensure you have read https://minecraft.fandom.com/wiki/Tutorials/Setting_up_a_server, especially if your server is public!")
}

func (l *Launcher) setupConfig(ctx context.Context) (*gameconfig.Config, error) {
	l.console.Log("Setting up config. %s", console.Highlight("Leave manual values blank for default values."))
	l.console.Log("Detecting config values from 'server.properties' file..")

	props, err := serverprop.Parse(l.paths.GetDataPath(serverprop.FileName))
	if err != nil {
		return nil, err
	}

	options := []wizard.Option{wizard.WithMemoryProbe(l.memoryProbe)}
	if l.settings.NgrokAuthtoken != "" {
		options = append(options, wizard.WithAuthtoken(l.settings.NgrokAuthtoken))
	}
	cfg, token, err := wizard.New(l.answers, l.console, options...).Run(ctx, props)
	if err != nil {
		return nil, err
	}

	l.console.Log("Installing Ngrok agent..")
	if err := l.tunnels.EnsureInstalled(ctx); err != nil {
		return nil, err
	}

	l.console.Log("Saving authtoken to Ngrok configuration file..")
	if err := l.tunnels.Authenticate(ctx, token); err != nil {
		return nil, err
	}

	if err := l.store.Save(cfg); err != nil {
		return nil, err
	}
	slog.Info("Config saved", slog.String("path", l.store.Path()))

	return cfg, nil
}

func (l *Launcher) resolveConfig(ctx context.Context) (*gameconfig.Config, error) {
	if !l.store.Exists() {
		return l.setupConfig(ctx)
	}
	return l.store.Load()
}

func (l *Launcher) checkEULA() {
	props, err := serverprop.Parse(l.paths.GetDataPath(eulaFile))
	if err != nil {
		l.console.Warn("Could not read '%s'. The server will refuse to start until you agree to the Minecraft EULA.", eulaFile)
		return
	}
	if !props.Bool("eula") {
		l.console.Warn("You have not agreed to the Minecraft EULA yet. Set 'eula=true' in '%s' once you have read it.", eulaFile)
	}
}

func rconAddress(ip string, port int) string {
	if ip == "" || ip == "localhost" {
		ip = "127.0.0.1"
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

func (l *Launcher) stopper(cfg *gameconfig.Config) supervisor.Stopper {
	props, err := serverprop.Parse(l.paths.GetDataPath(serverprop.FileName))
	if err != nil {
		slog.Debug("Unable to read server.properties for rcon", slog.Any("error", err))
		return nil
	}

	settings, ok := props.Rcon()
	if !ok {
		return nil
	}
	return l.newStopper(rconAddress(cfg.IP, settings.Port), settings.Password)
}

func (l *Launcher) onServerExit(err error) {
	if err != nil {
		l.console.Warn("The server process exited: %v", err)
		return
	}
	l.console.Log("The server process exited.")
}

func (l *Launcher) startServer(ctx context.Context, cfg *gameconfig.Config) (*supervisor.Handle, error) {
	options := []supervisor.Option{
		supervisor.WithStopTimeout(l.settings.StopTimeout),
		supervisor.WithExitHandler(l.onServerExit),
	}
	if l.settings.JavaPath != "" {
		options = append(options, supervisor.WithJavaPath(l.settings.JavaPath))
	}
	if l.settings.RestartOnFailure {
		options = append(options, supervisor.WithRestartOnFailure())
	}
	if stopper := l.stopper(cfg); stopper != nil {
		options = append(options, supervisor.WithStopper(stopper))
	}

	return supervisor.New(l.executor, l.paths, options...).Start(ctx, cfg)
}

func (l *Launcher) shutdown(handle *supervisor.Handle, t *tunnel.Tunnel) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.settings.StopTimeout+10*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		return handle.Stop(ctx)
	})
	if t != nil {
		eg.Go(t.Close)
	}
	return eg.Wait()
}

// Run launches the server and the tunnel, then blocks until ctx is cancelled.
func (l *Launcher) Run(ctx context.Context) error {
	l.greet()

	cfg, err := l.resolveConfig(ctx)
	if err != nil {
		return err
	}
	l.console.Log("Loaded config successfully. Delete the config file to change it.")
	l.console.Log("Launching server JAR file..")

	if err := supervisor.CheckServerFile(l.paths, cfg); err != nil {
		return err
	}
	l.console.Log("Found JAR '%s'", cfg.JarName)
	l.checkEULA()

	l.console.Log("Starting MC Server process (a new terminal should appear).")
	handle, err := l.startServer(ctx, cfg)
	if err != nil {
		return err
	}

	l.console.Log("Starting Ngrok tunnel.")
	t, err := l.tunnels.Open(ctx, cfg.Port)
	if err != nil {
		if serr := l.shutdown(handle, nil); serr != nil {
			slog.Error("Error stopping server", slog.Any("error", serr))
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	l.console.Log("Public server address: %s", console.Highlight(t.Address()))
	l.console.Log("^ Send this address to your friends that will join, it is the server address.")
	l.console.Log("Let us know how we can improve! https://github.com/Kyrixty/AutoMCServer/issues")

	select {
	case <-ctx.Done():
	case <-t.Done():
		l.console.Warn("Ngrok tunnel closed. Players can no longer join from the public address.")
		<-ctx.Done()
	}

	l.console.Log("Shutting down..")
	return l.shutdown(handle, t)
}

// Report shows err to the user in the most helpful form available.
func (l *Launcher) Report(err error) {
	slog.Error("Fatal error", slog.Any("error", err))
	l.console.Error("%s", userMessage(err))
}

func userMessage(err error) string {
	var (
		propsErr       *serverprop.PropertiesError
		inputErr       *wizard.InputError
		unsupportedErr *supervisor.UnsupportedServerFileError
		tunnelErr      *tunnel.Error
	)

	switch {
	case errors.As(err, &propsErr):
		return "Could not find 'server.properties' file! Ensure this executable is in the same directory as your server's 'server.properties' file."

	case errors.As(err, &inputErr):
		switch inputErr.Reason {
		case wizard.MissingProperties:
			return "Could not find server IP or port based on 'server.properties' file. Please ensure these key-value pairs exist."
		case wizard.InvalidMemory:
			return "Invalid value passed for RAM. Please ensure it is an integer."
		case wizard.InvalidServerFile:
			return "Unrecognized server file, it must be a JAR or BAT file."
		case wizard.MissingToken:
			return "No authtoken was entered. Config setup failed!"
		}
		return "Config setup failed! " + inputErr.Error()

	case errors.Is(err, gameconfig.ErrConfig):
		return "Invalid Config! " + err.Error()

	case errors.Is(err, supervisor.ErrServerFileNotFound):
		return "Could not find your server's JAR file. Ensure that it is in the same directory as this executable. (" + err.Error() + ")"

	case errors.As(err, &unsupportedErr):
		return "Unrecognized server file, it must be a JAR or BAT file."

	case errors.As(err, &tunnelErr):
		if tunnelErr.Op == tunnel.OpOpen {
			return "Failed to start Ngrok tunnel. TCP tunnels are only available to registered users; make sure your authtoken is installed. (" + tunnelErr.Error() + ")"
		}
		return "Ngrok setup failed: " + tunnelErr.Error()
	}

	return err.Error()
}
