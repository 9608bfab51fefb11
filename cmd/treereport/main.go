// Command treereport prints the tree count of every chunk folder under a
// directory, optionally hiding empty chunks and capping oversized counts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	internal "github.com/ZanzyTHEbar/chunk-tools/treereport"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/config"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/options"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/report"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, fsys afero.Fs, stdout, stderr io.Writer) int {
	flags := config.NewFlagSet(internal.DefaultAppName)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected argument %q\n", flags.Arg(0))
		fmt.Fprintf(stderr, "Usage of %s:\n", internal.DefaultAppName)
		flags.PrintDefaults()
		return exitUsage
	}

	if err := config.LoadDotEnv(internal.DefaultDotEnvFile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	runID := internal.NewRunID()
	logger, err := internal.GetLogger(stderr, cfg.Log.Level, runID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	reportOpts, err := cfg.ToReportOptions()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	renderer, err := report.NewRenderer(reportOpts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	scanner, err := filesystem.NewScanner(fsys, cfg.ToScanOptions(), logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	// Text lines go out as each chunk resolves; structured formats need the
	// whole report.
	var (
		stream  *report.TextStream
		handler filesystem.EntryHandler
	)
	if reportOpts.Format == options.FormatText {
		stream = report.NewTextStream(stdout, cfg.Scan.TreeFile, reportOpts.Summary)
		handler = stream
	}

	result, err := scanner.Scan(ctx, handler)
	if err != nil {
		logger.Error().Err(err).Msg("Scan failed")
		if result != nil && stream == nil {
			result.RunID = runID
			_ = renderer.Render(stdout, result)
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	result.RunID = runID

	if stream != nil {
		err = stream.Finish(result)
	} else {
		err = renderer.Render(stdout, result)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
		return exitError
	}

	if reportOpts.Strict && result.Summary.Errors > 0 {
		return exitError
	}
	return exitOK
}
