package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stolasapp/notebook/internal/gate"
)

func gateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Password gate commands",
	}
	cmd.AddCommand(
		gateDigestCommand(),
		gateCheckCommand(),
	)
	return cmd
}

func gateDigestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Print the reference digest of a password",
		Long: "Prints the digest to use as gate.reference_digest for a password. Passwords\n" +
			"may be provided via stdin or through the interactive prompt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), gate.Digest(string(passwd)))
			return err
		},
	}
}

func gateCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check a password against the configured gate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			secret, err := gate.New(cfg.Gate.ReferenceDigest)
			if err != nil {
				return err
			}
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}
			if !secret.Verify(string(passwd)) {
				return gate.ErrDenied
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "granted")
			return err
		},
	}
}
