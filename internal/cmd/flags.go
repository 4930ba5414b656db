package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/backmassage/webpconv/internal/config"
)

// pflag.Value adapters so we can use enum types (OutputFormat, ColorMode) with Var.

type formatValue struct{ p *config.OutputFormat }

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f.p) }
func (f *formatValue) Type() string   { return "format" }
func (f *formatValue) Set(s string) error {
	v, err := config.ParseFormat(s)
	if err != nil {
		return err
	}
	*f.p = v
	return nil
}

type colorValue struct{ p *config.ColorMode }

var _ pflag.Value = (*colorValue)(nil)

func (c *colorValue) String() string { return string(*c.p) }
func (c *colorValue) Type() string   { return "mode" }
func (c *colorValue) Set(s string) error {
	v, err := config.ParseColorMode(s)
	if err != nil {
		return err
	}
	*c.p = v
	return nil
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"format":        "convert.format",
	"delete":        "convert.delete_original",
	"quality":       "convert.quality",
	"workers":       "convert.workers",
	"skip-existing": "convert.skip_existing",
	"dry-run":       "convert.dry_run",
	"report":        "convert.report",
	"recursive":     "discovery.recursive",
	"exclude":       "discovery.exclude",
	"settle":        "watch.settle",
	"log":           "logging.file",
	"log-level":     "logging.level",
	"color":         "logging.color",
	"verbose":       "logging.verbose",
}

// addGlobalFlags registers the flags shared by every command.
func addGlobalFlags(fs *pflag.FlagSet) {
	d := config.DefaultConfig()
	color := d.Logging.Color

	fs.StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/webpconv/config.yaml)")
	fs.String("log", "", "also write JSON log records to `file`")
	fs.String("log-level", d.Logging.Level, "minimum level: debug, info, warn or error")
	fs.Var(&colorValue{&color}, "color", "color output: auto, always or never")
	fs.BoolP("verbose", "v", false, "show debug output")
}

// addConvertFlags registers the conversion flags shared by convert and watch.
func addConvertFlags(fs *pflag.FlagSet) {
	d := config.DefaultConfig()
	format := d.Convert.Format

	fs.VarP(&formatValue{&format}, "format", "f", "output format: gif or jpeg")
	fs.BoolP("delete", "d", false, "delete each original after a successful conversion")
	fs.Int("quality", d.Convert.Quality, "JPEG quality (1-100)")
	fs.Bool("no-dither", false, "map animated GIF frames to the nearest palette color instead of dithering")
	fs.IntP("workers", "w", 0, "parallel conversions (0 = one per hardware thread)")
	fs.Bool("skip-existing", false, "leave files whose output already exists")
	fs.BoolP("dry-run", "n", false, "validate inputs without writing or deleting anything")
	fs.BoolP("recursive", "r", false, "descend into subdirectories")
	fs.StringArrayP("exclude", "x", nil, "skip files whose name matches `glob` (repeatable)")
}

// bindFlags points the config keys at the flags of the running command, so
// that a flag set on the command line overrides file and environment values.
func bindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	if f := fs.Lookup("no-dither"); f != nil && f.Changed {
		viper.Set("convert.dither", false)
	}
	return nil
}
