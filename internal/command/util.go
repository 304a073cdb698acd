package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"golang.org/x/term"

	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/email"
	"github.com/stolasapp/notebook/internal/storage"
)

type configKey struct{}

func prompt(prompt string, mask bool) ([]byte, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if _, err := os.Stderr.WriteString(prompt); err != nil {
			return nil, err
		}
	}
	return readLine(os.Stdin, mask)
}

// cloned from term.readPasswordLine.
func readLine(stdin *os.File, mask bool) ([]byte, error) {
	if mask && term.IsTerminal(int(stdin.Fd())) {
		return term.ReadPassword(int(stdin.Fd()))
	}
	var buf [1]byte
	var ret []byte

	for {
		n, err := stdin.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\b':
				if len(ret) > 0 {
					ret = ret[:len(ret)-1]
				}
			case '\n':
				if runtime.GOOS != "windows" {
					return ret, nil
				}
				// otherwise ignore \n
			case '\r':
				if runtime.GOOS == "windows" {
					return ret, nil
				}
				// otherwise ignore \r
			default:
				ret = append(ret, buf[0]) //nolint:gosec // erroneous error
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(ret) > 0 {
				return ret, nil
			}
			return ret, err
		}
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}

func loadConfig(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, errors.New("config file resolution failed")
	}
	return cfg, slog.Default(), nil
}

// openStore opens the local database for the administrative commands, which
// have no equivalent on the hosted backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.DB, error) {
	if cfg.Backend.Kind != config.BackendLocal {
		return nil, fmt.Errorf("command requires the %s backend, configured backend is %s",
			config.BackendLocal, cfg.Backend.Kind)
	}
	return storage.NewDB(ctx, cfg, logger, email.FromConfig(cfg.Email, logger))
}
