package rcon

import (
	"context"
	"fmt"
)

type Rcon struct {
	executor Executor
}

func New(executor Executor) *Rcon {
	return &Rcon{
		executor: executor,
	}
}

func (r *Rcon) Say(ctx context.Context, message string) error {
	if _, err := r.executor.Exec(ctx, fmt.Sprintf("say %s", message)); err != nil {
		return err
	}
	return nil
}

// Stop notifies players, then asks the server to save the world and exit.
func (r *Rcon) Stop(ctx context.Context) error {
	if err := r.Say(ctx, "Server is shutting down."); err != nil {
		return fmt.Errorf("failed to stop server via rcon: %w", err)
	}
	if _, err := r.executor.Exec(ctx, "stop"); err != nil {
		return fmt.Errorf("failed to stop server via rcon: %w", err)
	}
	return nil
}
