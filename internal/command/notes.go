package command

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

func notesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Note commands for the local backend",
	}
	cmd.AddCommand(notesSeedCommand())
	return cmd
}

func notesSeedCommand() *cobra.Command {
	var (
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "seed EMAIL",
		Short: "Generate notes for a user",
		Long: "Inserts generated notes for the user, creating the user if needed. The same\n" +
			"seed always generates the same notes.",
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
			if err = store.SeedNotes(cmd.Context(), user.ID, count, seed); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "seeded notes",
				slog.String("email", user.Email),
				slog.Int("count", count),
				slog.Uint64("seed", seed),
			)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of notes to generate") //nolint:mnd // default
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	return cmd
}
