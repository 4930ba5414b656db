package cmd

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/webpconv/internal/pipeline"
)

func newAnalyzeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze [flags] <path>...",
		Short: "Print dimensions, frames and density of WebP files",
		Long: `Probe WebP containers without decoding pixels and print a table of
dimensions, frame counts, alpha, codec, size and bytes per pixel. Files
whose density is far from the rest are flagged: [*] outlier, [!] extreme.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
	c.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	c.Flags().StringArrayP("exclude", "x", nil, "skip files whose name matches `glob` (repeatable)")
	return c
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	if pipeline.Analyze(cmd.Context(), cfg, log, args) == 0 {
		return ErrFailed
	}
	return nil
}
