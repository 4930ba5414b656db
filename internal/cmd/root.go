// Package cmd is the command tree of the webpconv CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/logging"
)

// ErrFailed is returned when a command has already logged its failure and
// only the exit status remains to be set.
var ErrFailed = errors.New("command failed")

// Build information, injected by main.
var (
	version = "dev"
	commit  = "unknown"
)

// SetVersion records the build version shown by the version command.
func SetVersion(v, c string) {
	version, commit = v, c
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webpconv",
		Short: "Batch-convert WebP images to GIF or JPEG",
		Long: `webpconv converts WebP images, still or animated, to GIF or JPEG.

Files are converted in parallel and written next to their source. Animated
WebP becomes animated GIF with a palette taken from the first frame; JPEG
output uses the first frame at 4:4:4 chroma.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}
	addGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newConvertCmd(),
		newWatchCmd(),
		newAnalyzeCmd(),
		newCheckCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with args from os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// initConfig wires viper: defaults, then the config file, then WEBPCONV_*
// environment variables, then flags of the running command.
func initConfig(cmd *cobra.Command, _ []string) error {
	viper.Reset()
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		if dir := config.ConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("WEBPCONV")
	// e.g. WEBPCONV_CONVERT_FORMAT for convert.format
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return bindFlags(cmd.Flags())
}

// setup loads the merged configuration and opens the logger. Call Close on
// the logger when done.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// signalContext cancels on SIGINT/SIGTERM so in-flight files can finish
// while queued ones are abandoned.
func signalContext(parent context.Context, log *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received interrupt, finishing files in progress…")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
