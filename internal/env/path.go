package env

import (
	"fmt"
	"os"
	"path/filepath"
)

type PathProvider interface {
	GetBaseDir() string
	GetDataPath(path ...string) string
}

type BaseDirProvider struct {
	baseDir string
}

var _ PathProvider = (*BaseDirProvider)(nil)

func NewBaseDirProvider(baseDir string) *BaseDirProvider {
	return &BaseDirProvider{
		baseDir: filepath.Clean(baseDir),
	}
}

func (p *BaseDirProvider) GetBaseDir() string {
	return p.baseDir
}

func (p *BaseDirProvider) GetDataPath(path ...string) string {
	return filepath.Join(p.baseDir, filepath.Join(path...))
}

// ExecutableDir returns the directory the running binary lives in, which is
// where the server files and the launcher config are expected to be.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("unable to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
