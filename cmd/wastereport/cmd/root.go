package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wastereport",
	Short: "Waste invoice extraction and expense reporting tool",
	Long: `Wastereport reads hauler invoices (PDF, OCR text, XLSX and CSV exports),
assigns them to the properties of a portfolio roster, validates them and
produces monthly waste expense reports.

Examples:
  wastereport extract --inputs invoices/ --format json
  wastereport validate --inputs invoices/ --roster portfolio.yaml --strict
  wastereport report --inputs invoices/ --roster portfolio.yaml --formats xlsx,html
  wastereport vendors`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")

	// Bind flags to viper
	viper.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads the config file and environment, then installs the
// global logger every package logs through.
func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := config.Load(v, cfgFile); err != nil {
		return err
	}

	logConfig, err := config.Logger(v)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryConfiguration, errors.CodeInvalidConfig, "failed to create logger")
	}
	logger.SetGlobalLogger(log)

	if v.GetBool(config.KeyVerbose) {
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", used)
		}
		log.Debugf("Effective settings:\n%s", config.Describe(v))
	}
	return nil
}

// commandContext returns the command's context, or a background context
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// bindFlags binds command flags to viper keys. Binding happens when the
// command runs so commands sharing a key do not override each other.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
