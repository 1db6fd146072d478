// Command tsaclient requests and validates RFC 3161 timestamps.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/digitorus/tsaclient"
	"github.com/digitorus/tsaclient/internal/config"
)

// Build-time variables
var (
	version = "dev"
	commit  = "none"
)

// Global flags
var (
	configPath string
	logLevel   string
)

// Set up by the root command before any subcommand runs.
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tsaclient",
	Short: "RFC 3161 time-stamp client",
	Long: `tsaclient requests timestamp tokens from an RFC 3161 time-stamp authority,
validates existing tokens and queries the remaining credit of vendor accounts.

The TSA is configured in a TOML or YAML file (--config) or through the
environment:
  TS_SERVER_HOST    TSA URL
  TS_USER_ID        HTTP Basic user, or customer id in vendor mode
  TS_USER_PASSWORD  password
  IS_TUBITAK_TSP    "true" to enable vendor identity authentication

Examples:
  # Timestamp a file, writing contract.pdf.tst
  tsaclient request contract.pdf

  # Validate the token against the document
  tsaclient validate contract.pdf.tst --data contract.pdf

  # Run the HTTP API
  tsaclient serve --config tsaclient.toml`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		l, err := newLogger(c.Logging)
		if err != nil {
			return err
		}
		l.SetOutput(cmd.ErrOrStderr())
		cfg, log = c, l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a TOML or YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(creditCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger(c config.LoggingConfig) (*logrus.Logger, error) {
	l := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	l.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", c.Format)
	}
	return l, nil
}

func clientOptions() []tsaclient.Option {
	return []tsaclient.Option{
		tsaclient.WithLogger(log),
		tsaclient.WithHTTPClient(&http.Client{Timeout: cfg.TSA.Timeout()}),
	}
}

func newService() *tsaclient.Service {
	opts := clientOptions()
	return tsaclient.NewService(tsaclient.NewSourceRegistry(cfg.TSA.Source(), opts...), opts...)
}

func newCreditClient() *tsaclient.CreditClient {
	return tsaclient.NewCreditClient(cfg.TSA.Source(), clientOptions()...)
}
