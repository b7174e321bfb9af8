package configcli

import (
	"encoding/json"
	"fmt"

	"github.com/kofuk/amcs/internal/config"
	"github.com/kofuk/amcs/internal/gameconfig"
	"github.com/spf13/cobra"
)

type SettingsLoader func() (*config.Settings, error)

func openStore(load SettingsLoader) (*gameconfig.Store, error) {
	settings, err := load()
	if err != nil {
		return nil, err
	}
	return gameconfig.NewStore(settings.Paths()), nil
}

func NewConfigCommand(load SettingsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset the saved server config",
	}

	cmd.AddCommand(newShowCommand(load))
	cmd.AddCommand(newPathCommand(load))
	cmd.AddCommand(newResetCommand(load))

	return cmd
}

func newShowCommand(load SettingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}

			cfg, err := store.Load()
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newPathCommand(load SettingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the config is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			return nil
		},
	}
}

func newResetCommand(load SettingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved config so that the setup runs again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}

			if !store.Exists() {
				fmt.Fprintf(cmd.OutOrStdout(), "No config at %s\n", store.Path())
				return nil
			}

			if err := store.Remove(); err != nil {
				return fmt.Errorf("failed to remove config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path())
			return nil
		},
	}
}
