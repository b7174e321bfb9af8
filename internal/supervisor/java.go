package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/go-queryalternatives"
)

func findNewestJavaCommand(ctx context.Context, executor system.CommandExecutor) (string, error) {
	output, err := system.RunWithOutput(ctx, executor, "update-alternatives", []string{"--query", "java"})
	if err != nil {
		return "", err
	}

	alternatives, err := queryalternatives.ParseString(output)
	if err != nil {
		return "", err
	} else if alternatives.Best == "" {
		return "", errors.New("no alternatives found")
	}

	return alternatives.Best, nil
}

// FindJavaPath picks the preferred Java installation on Debian-like systems,
// and falls back to the java found in PATH.
func FindJavaPath(ctx context.Context, executor system.CommandExecutor) string {
	if runtime.GOOS != "linux" {
		return "java"
	}

	path, err := findNewestJavaCommand(ctx, executor)
	if err != nil {
		slog.Warn("Error finding java installation. Using the system default", slog.Any("error", err))
		return "java"
	}

	return path
}
