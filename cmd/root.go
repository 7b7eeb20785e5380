package cmd

import (
	"fmt"
	"os"

	"github.com/Ruscigno/marketsum/logging"
	"github.com/Ruscigno/marketsum/pkg/config"
	"github.com/Ruscigno/marketsum/pkg/fetch"
	"github.com/Ruscigno/marketsum/pkg/retry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

var (
	appConfig config.Config
	logger    = zap.NewNop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "marketsum",
	Short:         "Naver Finance market-sum crawler",
	Long:          `Crawls the market-sum listing of Naver Finance, derives equity ratios and exports the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appConfig = cfg
		logger = logging.SetupLoggerTo(cfg.LogFile, consoleSink(cmd))
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// consoleSink keeps stdout free for the tables and summaries crawl prints.
func consoleSink(cmd *cobra.Command) zapcore.WriteSyncer {
	if cmd.Name() == "crawl" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.Lock(os.Stdout)
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.String("log-level", "", "log level: debug, production or elk")
	flags.String("log-file", "", "rotated JSON log file (disabled when empty)")
	flags.String("base-url", "", "field-submit URL of the listing")
	flags.Duration("page-delay", 0, "pause between pages")
	flags.String("output-dir", "", "directory for exported files")
	flags.String("export-prefix", "", "prefix of generated export file names")

	mustBind(flags.Lookup, map[string]string{
		config.KeyLogLevel:     "log-level",
		config.KeyLogFile:      "log-file",
		config.KeyBaseURL:      "base-url",
		config.KeyPageDelay:    "page-delay",
		config.KeyOutputDir:    "output-dir",
		config.KeyExportPrefix: "export-prefix",
	})
}

// mustBind binds each viper key to the named flag.
func mustBind(lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// newFetchConfig maps the configuration onto a page-fetch session.
func newFetchConfig(cfg config.Config, log *zap.Logger) fetch.Config {
	fc := fetch.DefaultConfig()
	fc.BaseURL = cfg.BaseURL
	fc.UserAgent = cfg.UserAgent
	fc.Timeout = cfg.RequestTimeout
	fc.Logger = log
	fc.Retry = retry.RetryHTTPRequest()
	fc.Retry.MaxRetries = cfg.MaxRetries
	fc.Retry.InitialDelay = cfg.BackoffInitial
	fc.Retry.Logger = log
	return fc
}
