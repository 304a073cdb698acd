// Package command contains the CLI command constructors.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/observability"
)

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := filepath.Join(xdg.ConfigHome, "notebook.yaml")
	cmd := &cobra.Command{
		Use:          "notebook [command] [flags]",
		Short:        "The password gate and personal notes server",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadOrInitConfig(configFilePath)
			if err != nil {
				return fmt.Errorf("failed to load configuration file: %w", err)
			}
			logger := observability.InitSlog(cfg)
			logger.DebugContext(cmd.Context(), "configuration loaded", slog.String("path", configFilePath))
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the configuration file",
	)

	cmd.AddCommand(
		serveCommand(),
		gateCommand(),
		userCommand(),
		notesCommand(),
	)

	return cmd
}

func loadOrInitConfig(configFilePath string) (*config.Config, error) {
	cfg, err := config.Load(configFilePath)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	resp, initErr := prompt(fmt.Sprintf("Config not found at %s. Create one? [y|N] ", configFilePath), false)
	if initErr != nil || !bytes.Equal(resp, []byte("y")) {
		return nil, errors.Join(err, initErr)
	}

	cfg = config.Default()
	resp, err = prompt(fmt.Sprintf("Enter the public URL of the site [%s]: ", cfg.PublicURL), false)
	if err != nil {
		return nil, err
	}
	if url := string(bytes.TrimSpace(resp)); url != "" {
		cfg.PublicURL = url
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	data, err := config.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(configFilePath), 0o700); err != nil { //nolint:mnd // owner only
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err = os.WriteFile(configFilePath, data, 0o600); err != nil { //nolint:mnd // owner rw access
		return nil, fmt.Errorf("failed to write config file to %s: %w", configFilePath, err)
	}
	return cfg, nil
}
