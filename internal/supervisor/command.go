package supervisor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/gameconfig"
)

// WrapperScript is launched for every .bat server file regardless of its
// configured name. Server packs ship their start script under this name.
const WrapperScript = "run.bat"

var ErrServerFileNotFound = errors.New("server file not found")

type UnsupportedServerFileError struct {
	Name string
}

func (e *UnsupportedServerFileError) Error() string {
	return fmt.Sprintf("unrecognized server file %q: it must be a JAR or BAT file", e.Name)
}

// LaunchCommand returns the command line that starts the server described by
// cfg. Nothing is executed.
func LaunchCommand(cfg *gameconfig.Config, javaPath string) ([]string, error) {
	switch {
	case strings.HasSuffix(cfg.JarName, ".bat"):
		return []string{"cmd", "/C", WrapperScript}, nil

	case strings.HasSuffix(cfg.JarName, ".jar"):
		commandLine := []string{
			javaPath,
			fmt.Sprintf("-Xmx%dM", cfg.MaxMemMB),
			fmt.Sprintf("-Xms%dM", cfg.MaxMemMB),
			"-jar",
			cfg.JarName,
		}
		if cfg.NoGUI {
			commandLine = append(commandLine, "nogui")
		}
		return commandLine, nil

	default:
		return nil, &UnsupportedServerFileError{Name: cfg.JarName}
	}
}

// CheckServerFile makes sure the configured server file is in the base directory.
func CheckServerFile(paths env.PathProvider, cfg *gameconfig.Config) error {
	path := paths.GetDataPath(cfg.JarName)
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrServerFileNotFound, path)
		}
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrServerFileNotFound, path)
	}
	return nil
}
