package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/backmassage/webpconv/internal/check"
	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/display"
	"github.com/backmassage/webpconv/internal/naming"
	"github.com/backmassage/webpconv/internal/pipeline"
	"github.com/backmassage/webpconv/internal/watch"
)

func newWatchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "watch [flags] <dir>...",
		Short: "Convert WebP files as they appear in directories",
		Long: `Watch directories and convert each new .webp file once it has stopped
changing for the settle period. Files already present are left alone.
Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
	addConvertFlags(c.Flags())
	c.Flags().Duration("settle", config.DefaultConfig().Watch.Settle, "quiet period before a new file is converted")
	return c
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(cmd.OutOrStdout())
	if err := check.CheckCodecs(); err != nil {
		log.Error("%v", err)
		return ErrFailed
	}

	ex, err := naming.NewExcluder(cfg.Discovery.Exclude)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context(), log)
	defer stop()

	opts := watch.Options{
		Settle:    cfg.Watch.Settle,
		Recursive: cfg.Discovery.Recursive,
		Exclude:   ex,
		Log:       log,
	}
	w, err := watch.New(args, opts, func(ctx context.Context, paths []string) {
		pipeline.Run(ctx, cfg, log, paths)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
