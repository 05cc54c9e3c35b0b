// Command ocparc browses and verifies archives the way the player sees
// them: nested archives, legacy name charsets and the metadata cache
// included.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
)

var version = "dev"

// app is the state bound to every command's Run method.
type app struct {
	*Globals

	out    io.Writer
	logger *slog.Logger
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, defaultCachePath()); err != nil {
		fmt.Fprintf(os.Stderr, "ocparc: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, cachePath string) error {
	var cli Cli
	parser, err := kong.New(&cli,
		kong.Name("ocparc"),
		kong.Description("Browse tracker music stored in zip, tar, gz, bz2, Z, pak and rpg archives."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars{
			"version":    version,
			"cache_path": cachePath,
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, cli.LogLevel, cli.LogJSON)
	if err != nil {
		return err
	}
	return ctx.Run(&app{Globals: &cli.Globals, out: stdout, logger: logger})
}

// defaultCachePath returns the per-user cache file, or "" when the
// platform has no cache directory.
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ocparc", "CPARCMETA.DAT")
}

func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
