package cmd

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/webpconv/internal/check"
	"github.com/backmassage/webpconv/internal/display"
	"github.com/backmassage/webpconv/internal/pipeline"
)

func newConvertCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "convert [flags] <path>...",
		Short: "Convert WebP files or folders of WebP files",
		Long: `Convert each .webp file given, or every .webp file in each directory given
(add --recursive to descend into subdirectories). Output is written next to
the source with a .gif or .jpg extension.

Exits with status 1 if any file fails to convert.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runConvert,
	}
	addConvertFlags(c.Flags())
	c.Flags().String("report", "", "write a YAML run report to `file`")
	return c
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(cmd.OutOrStdout())
	if cfg.Convert.DryRun {
		log.Warn("DRY RUN: no files will be written or deleted")
	}

	// Fail fast if the codecs are broken on this platform.
	if err := check.CheckCodecs(); err != nil {
		log.Error("%v", err)
		return ErrFailed
	}

	ctx, stop := signalContext(cmd.Context(), log)
	defer stop()

	stats := pipeline.Run(ctx, cfg, log, args)
	if !stats.OK() {
		return ErrFailed
	}
	return nil
}
