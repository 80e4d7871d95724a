// --- START OF FINAL REVISED FILE cmd/dicom-extractor/root.go ---
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvity/dicom-extractor/internal/cli"
	"github.com/stackvity/dicom-extractor/internal/cli/config"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Flags persistent across commands
	cfgFile     string
	profileName string
	verbose     bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dicom-extractor <rootDir>",
		Short: "Extracts DICOM header metadata from a directory tree into one CSV table.",
		Long: `dicom-extractor walks a directory tree, parses the header of every DICOM
file it finds and writes one CSV row per file with one column per metadata
field observed anywhere in the tree.

It features:
  - Parallel discovery and extraction with a per-file timeout.
  - Streaming, batched output with an atomic final rename.
  - An optional cache that skips unchanged files on re-runs.
  - Pluggable extraction through an external command.
  - An interactive Terminal UI (TUI) for monitoring progress.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runRoot,
	}
	registerFlags(cmd)
	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, logger, err := config.LoadAndValidate(args[0], cfgFile, profileName, version, verbose, cmd.Flags())
	if err != nil {
		return err
	}
	return cli.Run(ctx, opts, logger)
}

// Execute runs the root command and exits non-zero on any returned error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerFlags defines the flags read by config.LoadAndValidate. Names must
// stay in sync with its flag-to-key bindings.
func registerFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Configuration file path (default is search ., $HOME/.config/dicom-extractor/, $HOME/.dicom-extractor/)")
	pf.StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	f := cmd.Flags()
	f.StringP("output", "o", extractor.DefaultOutputPath, "Output CSV file path")
	f.Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	f.String("output-format", string(extractor.DefaultOutputFormat), `Final summary format on stdout ("text", "json")`)
	f.String("report-file", "", "Write the full run report to this file (.json, .yaml or .toml)")
	f.String("history-db", "", "Append the run summary and failures to this SQLite database")

	// Pipeline sizing
	f.Int("concurrency", extractor.DefaultConcurrency, "Number of extraction workers (0 for auto-detect CPU cores)")
	f.Int("discovery-concurrency", extractor.DefaultDiscoveryConcurrency, "Number of directories listed in parallel")
	f.Int("queue-size", 0, "Capacity of the path queue (0 for twice the worker count)")
	f.Int("batch-size", extractor.DefaultBatchSize, "Records per output batch")
	f.String("file-timeout", extractor.DefaultFileTimeoutString, "Maximum time spent extracting one file")

	// Discovery
	f.StringSlice("ext", extractor.DefaultExtensions, "File extensions treated as DICOM candidates")
	f.Bool("no-magic", false, "Do not probe extension-less files for the DICM marker")
	f.Bool("include-hidden", false, "Include hidden files and directories")
	f.StringArray("ignore", []string{}, "Glob patterns for files/directories to ignore (can be specified multiple times)")

	// Extraction
	f.StringSlice("tags", []string{}, `Keywords or tags to extract ("Modality", "0010,0010", "core"); empty extracts all`)
	f.String("extractor-command", "", "External command run per file instead of the built-in parser")
	f.Bool("keep-empty-columns", false, "Keep columns that are empty in every row")

	// Caching
	f.Bool("cache", extractor.DefaultCacheEnabled, "Reuse results for files unchanged since the last run")
	f.String("cache-format", string(extractor.DefaultCacheFormat), `Cache file encoding ("gob", "json")`)
	f.String("cache-file", "", "Cache file path (default next to the output)")
}

// --- END OF FINAL REVISED FILE cmd/dicom-extractor/root.go ---
