package cmd

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/webpconv/internal/check"
	"github.com/backmassage/webpconv/internal/display"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the codec self-test and print the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Close()

			display.PrintBanner(cmd.OutOrStdout())
			if !check.RunCheck(cfg, log) {
				return ErrFailed
			}
			return nil
		},
	}
}
