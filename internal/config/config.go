package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/kofuk/amcs/internal/env"
)

const (
	envPrefix  = "amcs"
	DotEnvFile = ".env"

	DefaultNgrokAPIAddr = "127.0.0.1:4040"
)

// Settings controls the launcher itself. Unlike the server config, it is
// never written back by the launcher.
type Settings struct {
	BaseDir          string        `envconfig:"BASE_DIR"`
	Debug            bool          `envconfig:"DEBUG"`
	NoClear          bool          `envconfig:"NO_CLEAR"`
	JavaPath         string        `envconfig:"JAVA_PATH"`
	NgrokPath        string        `envconfig:"NGROK_PATH"`
	NgrokAuthtoken   string        `envconfig:"NGROK_AUTHTOKEN"`
	NgrokAPIAddr     string        `envconfig:"NGROK_API_ADDR"`
	NgrokDownloadURL string        `envconfig:"NGROK_DOWNLOAD_URL"`
	RestartOnFailure bool          `envconfig:"RESTART_ON_FAILURE"`
	StopTimeout      time.Duration `envconfig:"STOP_TIMEOUT"`
}

func defaults(baseDir string) Settings {
	return Settings{
		BaseDir:      baseDir,
		NgrokAPIAddr: DefaultNgrokAPIAddr,
		StopTimeout:  30 * time.Second,
	}
}

func (s *Settings) Paths() *env.BaseDirProvider {
	return env.NewBaseDirProvider(s.BaseDir)
}

func (s *Settings) Validate() error {
	if s.BaseDir == "" {
		return errors.New("base directory is not set")
	}
	if s.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive: %v", s.StopTimeout)
	}
	return nil
}

func resolveBaseDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	if v := os.Getenv("AMCS_BASE_DIR"); v != "" {
		return filepath.Abs(v)
	}
	return env.ExecutableDir()
}

// Load builds the settings. Values in overrides, usually set from command
// line flags, take precedence over the environment, which in turn takes
// precedence over the .env file in the base directory.
func Load(overrides Settings) (*Settings, error) {
	baseDir, err := resolveBaseDir(overrides.BaseDir)
	if err != nil {
		return nil, err
	}
	overrides.BaseDir = baseDir

	if err := godotenv.Load(filepath.Join(baseDir, DotEnvFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load %s: %w", DotEnvFile, err)
	}

	var fromEnv Settings
	if err := envconfig.Process(envPrefix, &fromEnv); err != nil {
		return nil, err
	}

	result := overrides
	if err := mergo.Merge(&result, fromEnv); err != nil {
		return nil, err
	}
	if err := mergo.Merge(&result, defaults(baseDir)); err != nil {
		return nil, err
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}
