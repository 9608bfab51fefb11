package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	internal "github.com/ZanzyTHEbar/chunk-tools/treereport"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/options"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from flags, environment variables, a config
// file and defaults, in that order of precedence.
type Config struct {
	Scan   ScanConfig   `mapstructure:"scan"`
	Report ReportConfig `mapstructure:"report"`
	Log    LogConfig    `mapstructure:"log"`
}

// ScanConfig stores what is scanned and how counts are transformed.
type ScanConfig struct {
	Root       string `mapstructure:"root"`
	Prefix     string `mapstructure:"prefix"`
	TreeFile   string `mapstructure:"treeFile"`
	IgnoreFile string `mapstructure:"ignoreFile"`
	HideZero   bool   `mapstructure:"hideZero"`
	Cap        bool   `mapstructure:"cap"`
	MaxTrees   int64  `mapstructure:"maxTrees"`
}

// ReportConfig stores output settings.
type ReportConfig struct {
	Format  string `mapstructure:"format"`
	Summary bool   `mapstructure:"summary"`
	Strict  bool   `mapstructure:"strict"`
}

// LogConfig stores diagnostic logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// flagKeys binds command-line flag names to config keys.
var flagKeys = map[string]string{
	"hide-zero":   "scan.hideZero",
	"cap":         "scan.cap",
	"max":         "scan.maxTrees",
	"dir":         "scan.root",
	"ignore-file": "scan.ignoreFile",
	"format":      "report.format",
	"summary":     "report.summary",
	"strict":      "report.strict",
	"log-level":   "log.level",
}

// NewFlagSet defines the command-line surface.
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.BoolP("hide-zero", "z", false, "Hide chunks with 0 trees")
	flags.BoolP("cap", "c", false, fmt.Sprintf("Cap tree counts at --max (default %d) and write back", internal.DefaultMaxTrees))
	flags.Int64("max", internal.DefaultMaxTrees, "Cap value used by --cap")
	flags.StringP("dir", "d", internal.DefaultScanRoot, "Directory whose chunk folders are scanned")
	flags.String("ignore-file", internal.DefaultIgnoreFile, "Gitignore-style file under --dir listing chunk folders to skip")
	flags.StringP("format", "o", string(options.FormatText), "Output format: text, json or yaml")
	flags.BoolP("summary", "s", false, "Print a totals line after the report")
	flags.Bool("strict", false, "Exit with status 1 when any chunk folder failed")
	flags.String("log-level", internal.DefaultLogLevel, "Diagnostic log level: debug, info, warn or error")
	flags.String("config", "", "Path to a config file")
	return flags
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.root", internal.DefaultScanRoot)
	v.SetDefault("scan.prefix", internal.DefaultChunkPrefix)
	v.SetDefault("scan.treeFile", internal.DefaultTreeFile)
	v.SetDefault("scan.ignoreFile", internal.DefaultIgnoreFile)
	v.SetDefault("scan.hideZero", false)
	v.SetDefault("scan.cap", false)
	v.SetDefault("scan.maxTrees", internal.DefaultMaxTrees)
	v.SetDefault("report.format", string(options.FormatText))
	v.SetDefault("report.summary", false)
	v.SetDefault("report.strict", false)
	v.SetDefault("log.level", internal.DefaultLogLevel)
}

// LoadConfig reads configuration from file, environment variables and the
// parsed flags. flags may be nil. An explicit configPath must exist; the
// search path is optional.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName(internal.DefaultConfigName)
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // scan.hideZero becomes TREEREPORT_SCAN_HIDEZERO
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that decoding alone cannot.
func (c *Config) Validate() error {
	if err := c.ToScanOptions().Validate(); err != nil {
		return err
	}
	if _, err := options.ParseFormat(c.Report.Format); err != nil {
		return err
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
		}
	}
	return nil
}

// ToScanOptions converts the scan section into scanner options.
func (c *Config) ToScanOptions() options.ScanOptions {
	return options.ScanOptions{
		Root:       c.Scan.Root,
		Prefix:     c.Scan.Prefix,
		TreeFile:   c.Scan.TreeFile,
		IgnoreFile: c.Scan.IgnoreFile,
		HideZero:   c.Scan.HideZero,
		Cap:        c.Scan.Cap,
		MaxTrees:   c.Scan.MaxTrees,
	}
}

// ToReportOptions converts the report section into renderer options.
func (c *Config) ToReportOptions() (options.ReportOptions, error) {
	format, err := options.ParseFormat(c.Report.Format)
	if err != nil {
		return options.ReportOptions{}, err
	}
	return options.ReportOptions{
		Format:  format,
		Summary: c.Report.Summary,
		Strict:  c.Report.Strict,
	}, nil
}
