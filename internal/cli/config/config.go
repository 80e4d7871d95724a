// --- START OF FINAL REVISED FILE internal/cli/config/config.go ---
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stackvity/dicom-extractor/pkg/util"
)

const (
	EnvPrefix         = "DICOMEXTRACTOR"
	DefaultConfigName = "dicom-extractor"
)

// flagKeys maps flag names to config keys for flags that bind directly.
// Negated booleans (--no-tui, --no-magic, --include-hidden,
// --keep-empty-columns) and --extractor-command are applied by hand.
var flagKeys = map[string]string{
	"output":                "output",
	"concurrency":           "concurrency",
	"discovery-concurrency": "discoveryConcurrency",
	"queue-size":            "queueSize",
	"batch-size":            "batchSize",
	"file-timeout":          "fileTimeout",
	"ext":                   "extensions",
	"ignore":                "ignore",
	"tags":                  "tags",
	"cache":                 "cache",
	"cache-format":          "cacheFormat",
	"cache-file":            "cacheFile",
	"output-format":         "outputFormat",
	"report-file":           "reportFile",
	"history-db":            "historyDB",
}

// LoadAndValidate merges defaults, config file, profile, environment and
// flags (in increasing priority), validates the result and builds the
// logger. inputPath is the positional root directory.
// Validation failures wrap extractor.ErrConfigValidation.
func LoadAndValidate(inputPath, cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (extractor.Options, *slog.Logger, error) {
	var opts extractor.Options
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
			v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
		} else {
			tempLogger.Debug("No home directory, searching only the working directory for config", slog.String("error", err.Error()))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".{yaml,json,toml}"
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.String("error", err.Error()))
			return opts, tempLogger, fmt.Errorf("%w: error reading config file '%s': %w", extractor.ErrConfigValidation, used, err)
		}
		tempLogger.Debug("No configuration file found, using defaults/env/flags")
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
	}

	// --- Profile ---
	opts.ProfileName = profileName
	if profileName != "" {
		profile := v.Sub("profiles." + profileName)
		if profile == nil {
			where := v.ConfigFileUsed()
			if where == "" {
				where = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", extractor.ErrConfigValidation, profileName, where)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profile.AllSettings()); err != nil {
			return opts, tempLogger, fmt.Errorf("%w: error merging profile '%s': %w", extractor.ErrConfigValidation, profileName, err)
		}
	}

	// --- Environment ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags ---
	for flagName, key := range flagKeys {
		if f := flags.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
			}
		}
	}

	opts.AppVersion = appVersion
	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.String("error", err.Error()))
		return opts, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", extractor.ErrConfigValidation, err)
	}
	opts.InputPath = inputPath

	// Explicit flags win over everything for booleans viper cannot bind
	// through a negated name.
	if verbose || flags.Changed("verbose") {
		opts.Verbose = verbose
	}
	if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}
	if flags.Changed("no-magic") {
		if noMagic, _ := flags.GetBool("no-magic"); noMagic {
			opts.DetectByMagic = false
		}
	}
	if flags.Changed("include-hidden") {
		if include, _ := flags.GetBool("include-hidden"); include {
			opts.SkipHidden = false
		}
	}
	if flags.Changed("keep-empty-columns") {
		if keep, _ := flags.GetBool("keep-empty-columns"); keep {
			opts.DropEmptyColumns = false
		}
	}
	if flags.Changed("extractor-command") {
		cmdLine, _ := flags.GetString("extractor-command")
		opts.ExtractorCommand = strings.Fields(cmdLine)
	} else if len(opts.ExtractorCommand) == 1 {
		// A config value written as one string.
		opts.ExtractorCommand = strings.Fields(opts.ExtractorCommand[0])
	}

	// --- Logger ---
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	opts.Logger = handler

	if err := validateAndDeriveOptions(&opts, logger); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.String("input", opts.InputPath),
		slog.String("output", opts.OutputPath),
		slog.Int("concurrency", opts.Concurrency),
		slog.Int("batchSize", opts.BatchSize),
		slog.Duration("fileTimeout", opts.FileTimeout),
		slog.Bool("tuiEnabled", opts.TuiEnabled),
	)
	return opts, logger, nil
}

// setDefaults registers the library defaults with viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("output", extractor.DefaultOutputPath)
	v.SetDefault("verbose", extractor.DefaultVerbose)
	v.SetDefault("tuiEnabled", extractor.DefaultTuiEnabled)

	v.SetDefault("concurrency", extractor.DefaultConcurrency)
	v.SetDefault("discoveryConcurrency", extractor.DefaultDiscoveryConcurrency)
	v.SetDefault("queueSize", 0)
	v.SetDefault("batchSize", extractor.DefaultBatchSize)
	v.SetDefault("fileTimeout", extractor.DefaultFileTimeoutString)

	v.SetDefault("extensions", extractor.DefaultExtensions)
	v.SetDefault("detectByMagic", extractor.DefaultDetectByMagic)
	v.SetDefault("skipHidden", extractor.DefaultSkipHidden)
	v.SetDefault("ignore", []string{})

	v.SetDefault("tags", []string{})
	v.SetDefault("extractorCommand", []string{})
	v.SetDefault("dropEmptyColumns", extractor.DefaultDropEmptyColumns)
	v.SetDefault("outputFormat", string(extractor.DefaultOutputFormat))
	v.SetDefault("reportFile", "")
	v.SetDefault("historyDB", "")

	v.SetDefault("cache", extractor.DefaultCacheEnabled)
	v.SetDefault("cacheFormat", string(extractor.DefaultCacheFormat))
	v.SetDefault("cacheFile", "")
}

// validateAndDeriveOptions checks values that viper cannot, resolves paths
// and derives FileTimeout. Errors wrap extractor.ErrConfigValidation.
func validateAndDeriveOptions(opts *extractor.Options, logger *slog.Logger) error {
	fail := func(key string, format string, args ...any) error {
		err := fmt.Errorf("%w: "+format, append([]any{extractor.ErrConfigValidation}, args...)...)
		logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	// === Paths ===
	if opts.InputPath == "" {
		return fail("input", "root directory argument is required")
	}
	absInput, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return fail("input", "cannot resolve root directory '%s': %w", opts.InputPath, err)
	}
	opts.InputPath = absInput
	info, err := os.Stat(absInput)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail("input", "root directory '%s' does not exist", absInput)
	case err != nil:
		return fail("input", "cannot access root directory '%s': %w", absInput, err)
	case !info.IsDir():
		return fail("input", "root '%s' is not a directory", absInput)
	}

	if opts.OutputPath == "" {
		opts.OutputPath = extractor.DefaultOutputPath
	}
	if opts.OutputPath, err = filepath.Abs(opts.OutputPath); err != nil {
		return fail("output", "cannot resolve output path: %w", err)
	}
	if opts.CacheFilePath != "" {
		if opts.CacheFilePath, err = filepath.Abs(opts.CacheFilePath); err != nil {
			return fail("cacheFile", "cannot resolve cache file path: %w", err)
		}
	}

	// === Enums ===
	if !slices.Contains([]extractor.OutputFormat{extractor.OutputFormatText, extractor.OutputFormatJSON}, opts.OutputFormat) {
		return fail("outputFormat", "invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: [text json]", opts.OutputFormat)
	}
	if !slices.Contains([]extractor.CacheFormat{extractor.CacheFormatGob, extractor.CacheFormatJSON}, opts.CacheFormat) {
		return fail("cacheFormat", "invalid value '%s' for key 'cacheFormat' (flag --cache-format). Allowed: [gob json]", opts.CacheFormat)
	}

	// === Numbers ===
	for key, n := range map[string]int{
		"concurrency":          opts.Concurrency,
		"discoveryConcurrency": opts.DiscoveryConcurrency,
		"queueSize":            opts.QueueSize,
		"batchSize":            opts.BatchSize,
	} {
		if n < 0 {
			return fail(key, "invalid value '%d' for key '%s'. Must be >= 0", n, key)
		}
	}

	timeout, err := time.ParseDuration(opts.FileTimeoutString)
	if err != nil {
		return fail("fileTimeout", "invalid duration '%s' for key 'fileTimeout': %w", opts.FileTimeoutString, err)
	}
	if timeout <= 0 {
		return fail("fileTimeout", "fileTimeout must be positive, got '%s'", opts.FileTimeoutString)
	}
	opts.FileTimeout = timeout

	// === Discovery ===
	opts.Extensions = util.NormalizeExtensions(opts.Extensions)
	if len(opts.Extensions) == 0 && !opts.DetectByMagic {
		return fail("extensions", "no extensions configured and magic detection disabled: nothing would be discovered")
	}

	// === Extraction ===
	if len(opts.ExtractorCommand) > 0 && len(opts.Tags) > 0 {
		logger.Warn("Tag selection applies to the built-in extractor only; ignoring 'tags' with an extractor command",
			slog.String("command", strings.Join(opts.ExtractorCommand, " ")))
		opts.Tags = nil
	}

	// === Presentation ===
	if opts.Verbose {
		opts.TuiEnabled = false
	}
	return nil
}

// --- END OF FINAL REVISED FILE internal/cli/config/config.go ---
