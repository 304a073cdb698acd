package command

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands for the local backend",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userDeleteCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create user",
		Long: "Registers the email address ahead of its first magic link login. Existing\n" +
			"users are left untouched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			user, err := store.EnsureUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "created user",
				slog.String("email", user.Email),
				slog.String("id", user.ID),
			)
			return nil
		},
	}
}

func userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete user",
		Long: "Permanently deletes the user and all associated sessions and notes. " +
			"This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			logger = logger.With(slog.String("email", args[0]))
			user, err := store.GetUserByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user deletion")
				return err
			}
			if err = store.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user deleted")
			return nil
		},
	}
}
