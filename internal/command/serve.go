package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/notebook/internal/app"
	"github.com/stolasapp/notebook/internal/app/devservice"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/backend/supabase"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/email"
	"github.com/stolasapp/notebook/internal/gate"
	"github.com/stolasapp/notebook/internal/observability"
	"github.com/stolasapp/notebook/internal/server"
	"github.com/stolasapp/notebook/internal/storage"
)

// devNotesPerUser notes are generated for each new user of the dev service.
const devNotesPerUser = 5

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the password gate and notes web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			grp, ctx := errgroup.WithContext(ctx)
			abort := func(err error) error {
				cancel()
				return errors.Join(err, grp.Wait())
			}

			secret, err := gate.New(cfg.Gate.ReferenceDigest)
			if err != nil {
				return err
			}
			metrics := observability.NewMetrics()

			notes, err := openBackend(ctx, grp, cfg, logger, metrics)
			if err != nil {
				return abort(err)
			}
			defer func() {
				if err := notes.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			appServer := app.New(cfg, logger, notes, secret, metrics)
			if _, err = server.Start(ctx, grp, logger, "app", cfg.WebAddress, appServer); err != nil {
				return abort(err)
			}
			if _, err = server.Start(ctx, grp, logger, "metrics", cfg.MetricsAddress, metrics.Handler()); err != nil {
				return abort(err)
			}
			return grp.Wait()
		},
	}
}

// openBackend constructs the configured backend. In dev mode, a supabase
// backend without a URL is pointed at an in-process fake project.
func openBackend(
	ctx context.Context,
	grp *errgroup.Group,
	cfg *config.Config,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendSupabase:
		if cfg.DevMode && cfg.Backend.Supabase.URL == "" {
			if err := serveDevService(ctx, grp, cfg, logger); err != nil {
				return nil, err
			}
		}
		client, err := supabase.New(cfg.Backend.Supabase, logger, metrics)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendLocal:
		store, err := storage.NewDB(ctx, cfg, logger, email.FromConfig(cfg.Email, logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

func serveDevService(
	ctx context.Context,
	grp *errgroup.Group,
	cfg *config.Config,
	logger *slog.Logger,
) error {
	seed := devservice.Seed()
	handler := devservice.New(devservice.Config{
		Seed:         seed,
		NotesPerUser: devNotesPerUser,
		Mailer:       email.LogSender{Logger: logger},
	})

	addr, err := server.Start(ctx, grp, logger, "dev supabase", "127.0.0.1:0", handler)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "using dev supabase project", slog.Uint64("seed", seed))

	cfg.Backend.Supabase.URL = "http://" + addr
	cfg.Backend.Supabase.AnonKey = devservice.AnonKey
	return nil
}
