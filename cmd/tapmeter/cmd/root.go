package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tapmeter/internal/config"
	"tapmeter/internal/logging"
)

// skipConfig marks commands that must run without a loadable config file.
const skipConfig = "skip-config"

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tapmeter",
	Short: "Two-key tapping speed and consistency meter",
	Long: "Capture Z/X key presses, report live BPM, unstable rate and Z/X balance,\n" +
		"and export CSV reports of the best windows of each run.",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: search ./tapmeter.toml and the config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath returns the config file in use, or "" for built-in defaults.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.FindConfigFile()
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		cfg = config.DefaultConfig()
	} else {
		if cfgFile != "" {
			if _, err := os.Stat(cfgFile); err != nil {
				return fmt.Errorf("config file: %w", err)
			}
		}
		path := configPath()
		if path == "" {
			path = config.ConfigPath()
		}
		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	l, err := newLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	logger = l
	logging.SetDefault(l)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}

// newLogger builds the process logger from the logging section.
func newLogger(lc *config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	lcfg := logging.DefaultConfig()
	lcfg.Level = level
	lcfg.Format = format
	lcfg.Output = lc.Output
	lcfg.FilePath = lc.FilePath
	lcfg.MaxSize = int64(lc.MaxSizeMB)
	lcfg.MaxAge = lc.MaxAgeDays
	lcfg.MaxBackups = lc.MaxBackups
	lcfg.Compress = lc.Compress
	l, err := logging.New(lcfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return l, nil
}
