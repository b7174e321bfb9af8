package serverprop

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	FileName = "server.properties"

	KeyServerIP     = "server-ip"
	KeyServerPort   = "server-port"
	KeyEnableRcon   = "enable-rcon"
	KeyRconPort     = "rcon.port"
	KeyRconPassword = "rcon.password"

	defaultRconPort = 25575
)

type Properties map[string]string

type PropertiesError struct {
	Path string
	Err  error
}

func (e *PropertiesError) Error() string {
	return fmt.Sprintf("unable to read properties file %s: %v", e.Path, e.Err)
}

func (e *PropertiesError) Unwrap() error {
	return e.Err
}

func Parse(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PropertiesError{Path: path, Err: err}
	}
	defer f.Close()

	props, err := ParseReader(f)
	if err != nil {
		return nil, &PropertiesError{Path: path, Err: err}
	}
	return props, nil
}

// ParseReader reads key=value lines. Lines starting with '#' are comments.
// Lines without '=' are skipped with a warning.
func ParseReader(r io.Reader) (Properties, error) {
	props := make(Properties)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			slog.Warn("Skipping malformed property line", slog.Int("line", lineNum), slog.String("content", line))
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return props, nil
}

func (p Properties) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Missing returns keys which are not present at all. Keys with an empty
// value are considered present.
func (p Properties) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if _, ok := p[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func (p Properties) Bool(key string) bool {
	v, err := strconv.ParseBool(p[key])
	return err == nil && v
}

type RconSettings struct {
	Port     int
	Password string
}

// Rcon returns the RCON settings if RCON is enabled and usable.
func (p Properties) Rcon() (RconSettings, bool) {
	if !p.Bool(KeyEnableRcon) {
		return RconSettings{}, false
	}

	password := p[KeyRconPassword]
	if password == "" {
		return RconSettings{}, false
	}

	port := defaultRconPort
	if v, ok := p[KeyRconPort]; ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 65535 {
			slog.Warn("Invalid rcon.port in server.properties", slog.String("value", v))
			return RconSettings{}, false
		}
		port = parsed
	}

	return RconSettings{
		Port:     port,
		Password: password,
	}, true
}
