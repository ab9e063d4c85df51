package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tapmeter/internal/config"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Prints the configuration after defaults, the config file and TAPMETER_* environment overrides.",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file in use",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:         "init [PATH]",
	Short:       "Write a default config file",
	Long:        "Writes the default configuration. The format follows the extension: .toml, .json, .yaml or .yml.",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:         "validate [PATH]",
	Short:       "Check a config file",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigValidate,
}

var configSchemaCmd = &cobra.Command{
	Use:         "schema",
	Short:       "Print the JSON schema of the config file",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(config.Schema())
		return err
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", config.FormatTOML, "output format: toml, json or yaml")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSchemaCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := config.Encode(cfg, configFormat)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if path := configPath(); path != "" {
		fmt.Fprintln(out, path)
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", config.ConfigPath(), gray("(not created, using defaults)"))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigPath()
	if len(args) > 0 {
		path = args[0]
	}
	if ext := filepath.Ext(path); config.FormatForExt(ext) == "" {
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓ wrote"), path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no config file found")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, err := config.Load(path)
	if err == nil {
		fmt.Fprintf(out, "%s %s\n", green("✓ valid"), path)
		return nil
	}

	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", red("✗ invalid"), path)
	for _, ve := range verrs {
		fmt.Fprintf(out, "  %s: %s\n", yellow(ve.Field), ve.Message)
	}
	return fmt.Errorf("%d problem(s) in %s", len(verrs), path)
}
