package gameconfig

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultIP       = "localhost"
	DefaultPort     = 25565
	DefaultMaxMemMB = 2048
	DefaultJarName  = "server.jar"
)

type Config struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	MaxMemMB int    `json:"max_mem_mb"`
	NoGUI    bool   `json:"nogui"`
	JarName  string `json:"jar_name"`
}

func Default() Config {
	return Config{
		IP:       DefaultIP,
		Port:     DefaultPort,
		MaxMemMB: DefaultMaxMemMB,
		NoGUI:    true,
		JarName:  DefaultJarName,
	}
}

var ErrConfig = errors.New("invalid config")

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError holds every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return fmt.Sprintf("%s: %s", ErrConfig.Error(), strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrConfig
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func IsSupportedServerFile(name string) bool {
	return strings.HasSuffix(name, ".jar") || strings.HasSuffix(name, ".bat")
}

func (c *Config) Validate() error {
	verr := &ValidationError{}

	if c.IP == "" {
		verr.add("ip", "must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		verr.add("port", "must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxMemMB <= 0 {
		verr.add("max_mem_mb", "must be positive, got %d", c.MaxMemMB)
	}
	if c.JarName == "" {
		verr.add("jar_name", "must not be empty")
	} else if !IsSupportedServerFile(c.JarName) {
		verr.add("jar_name", "must end with .jar or .bat, got %q", c.JarName)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
