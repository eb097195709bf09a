package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/dupescan/dupe"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MB is the unit of the size bounds in configuration
const MB uint64 = 1024 * 1024

// MaxBoundMB is the largest bound that still fits in bytes
const MaxBoundMB = math.MaxUint64 / MB

// Config stores all configuration of the application.
// The values are read by viper from a config file, environment variables and flags.
type Config struct {
	Scan   ScanConfig   `mapstructure:"scan"`
	Output OutputConfig `mapstructure:"output"`
	Delete DeleteConfig `mapstructure:"delete"`
	Log    LogConfig    `mapstructure:"log"`
}

// ScanConfig controls discovery and hashing
type ScanConfig struct {
	MinSizeMB     uint64   `mapstructure:"minSizeMB"`
	MaxSizeMB     uint64   `mapstructure:"maxSizeMB"`
	Quick         bool     `mapstructure:"quick"`
	MultiRegion   bool     `mapstructure:"multiRegion"`
	Workers       int      `mapstructure:"workers"`
	Exclude       []string `mapstructure:"exclude"`
	ExcludeDir    []string `mapstructure:"excludeDir"`
	ExcludeHidden bool     `mapstructure:"excludeHidden"`
	IgnoreFile    string   `mapstructure:"ignoreFile"`
}

// OutputConfig names optional export files
type OutputConfig struct {
	JSON string `mapstructure:"json"`
	CSV  string `mapstructure:"csv"`
}

// DeleteConfig controls duplicate removal
type DeleteConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	DryRun      bool `mapstructure:"dryRun"`
	Force       bool `mapstructure:"force"`
	Interactive bool `mapstructure:"interactive"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"minsize":        "scan.minSizeMB",
	"maxsize":        "scan.maxSizeMB",
	"quick":          "scan.quick",
	"multi-region":   "scan.multiRegion",
	"threads":        "scan.workers",
	"exclude":        "scan.exclude",
	"exclude-dir":    "scan.excludeDir",
	"exclude-hidden": "scan.excludeHidden",
	"ignore-file":    "scan.ignoreFile",
	"json-out":       "output.json",
	"csv-out":        "output.csv",
	"delete":         "delete.enabled",
	"dry-run":        "delete.dryRun",
	"force":          "delete.force",
	"interactive":    "delete.interactive",
	"loglevel":       "log.level",
	"logfile":        "log.file",
}

// RegisterFlags adds every configurable flag to fs with its default
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Uint64("minsize", internal.DefaultMinSizeMB, "Minimum file size in MB, exclusive")
	fs.Uint64("maxsize", internal.DefaultMaxSizeMB, "Maximum file size in MB, exclusive")
	fs.Bool("quick", false, "Group by a 4 KiB prefix hash only; faster but may report false duplicates")
	fs.Bool("multi-region", false, "Sample start, middle and end of large files in the first pass")
	fs.Int("threads", options.DefaultWorkerCount(), "Number of worker goroutines")
	fs.StringArray("exclude", nil, "Exclude files whose name matches this glob (repeatable)")
	fs.StringArray("exclude-dir", nil, "Exclude directories with this name (repeatable)")
	fs.Bool("exclude-hidden", false, "Skip hidden files and directories")
	fs.String("ignore-file", internal.DefaultIgnoreFile, "Gitignore-style file read from the scan root")
	fs.String("json-out", "", "Write duplicate groups to this JSON file")
	fs.String("csv-out", "", "Write duplicate groups to this CSV file")
	fs.Bool("delete", false, "Delete duplicates, keeping the first file of each group")
	fs.Bool("dry-run", false, "Report deletions without removing anything")
	fs.Bool("force", false, "Do not ask for confirmation before deleting")
	fs.Bool("interactive", false, "Choose which files to delete per group")
	fs.String("loglevel", internal.DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.String("logfile", "", "Append JSON logs to this file instead of stderr")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.minSizeMB", internal.DefaultMinSizeMB)
	v.SetDefault("scan.maxSizeMB", internal.DefaultMaxSizeMB)
	v.SetDefault("scan.quick", false)
	v.SetDefault("scan.multiRegion", false)
	v.SetDefault("scan.workers", options.DefaultWorkerCount())
	v.SetDefault("scan.exclude", []string{})
	v.SetDefault("scan.excludeDir", []string{})
	v.SetDefault("scan.excludeHidden", false)
	v.SetDefault("scan.ignoreFile", internal.DefaultIgnoreFile)
	v.SetDefault("output.json", "")
	v.SetDefault("output.csv", "")
	v.SetDefault("delete.enabled", false)
	v.SetDefault("delete.dryRun", false)
	v.SetDefault("delete.force", false)
	v.SetDefault("delete.interactive", false)
	v.SetDefault("log.level", internal.DefaultLogLevel)
	v.SetDefault("log.file", "")
}

// Load reads configuration. Precedence, highest first: flags set on the command
// line, DUPESCAN_* environment variables, the config file, defaults. An explicit
// configPath must exist; otherwise a missing file is not an error. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("/etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // scan.minSizeMB becomes DUPESCAN_SCAN_MINSIZEMB
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that cannot be checked by type alone
func (c *Config) Validate() error {
	if c.Scan.MinSizeMB > MaxBoundMB || c.Scan.MaxSizeMB > MaxBoundMB {
		return fmt.Errorf("%w: size bounds must not exceed %d MB", common.ErrInvalidSizeRange, MaxBoundMB)
	}
	vu := common.NewValidationUtils()
	if err := vu.ValidateSizeRange(c.Scan.MinSizeMB*MB, c.Scan.MaxSizeMB*MB); err != nil {
		return err
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Scan.Workers)
	}
	return nil
}

// DedupeOptions converts the scan section into engine options for root
func (c *Config) DedupeOptions(root string) options.DedupeOptions {
	opts := options.DefaultDedupeOptions(root)
	opts.MinSize = c.Scan.MinSizeMB * MB
	opts.MaxSize = c.Scan.MaxSizeMB * MB
	opts.QuickMode = c.Scan.Quick
	opts.MultiRegion = c.Scan.MultiRegion
	opts.Workers = c.Scan.Workers
	opts.ExcludeGlobs = c.Scan.Exclude
	opts.ExcludeDirs = c.Scan.ExcludeDir
	opts.ExcludeHidden = c.Scan.ExcludeHidden
	opts.IgnoreFile = c.Scan.IgnoreFile
	return opts
}
