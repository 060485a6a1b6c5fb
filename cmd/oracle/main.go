// Package main is the delegation oracle CLI: eligibility scans, gap
// analysis, drift detection, and optimization from the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/delegation-oracle/internal/alert"
	"github.com/yourorg/delegation-oracle/internal/config"
	"github.com/yourorg/delegation-oracle/internal/history"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/scan"
)

const version = "0.2.0"

// global flags shared by every subcommand
var (
	flagConfig    string
	flagValidator string
	flagRPCURL    string
	flagPrograms  []string
	flagOutput    string
	flagVerbose   bool
)

// cliApp bundles the resolved dependencies for one command run
type cliApp struct {
	cfg     config.Config
	service *scan.Service
	store   *history.Store
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "oracle",
		Short:         "Multi-program delegation scanner for Solana validators",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if flagVerbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flagValidator, "validator", "", "validator vote account pubkey")
	root.PersistentFlags().StringVar(&flagRPCURL, "rpc", "", "Solana RPC endpoint")
	root.PersistentFlags().StringSliceVar(&flagPrograms, "programs", nil, "programs to scan (comma separated)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format: table, json, or csv")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newScanCommand(),
		newGapsCommand(),
		newArbitrageCommand(),
		newWhatIfCommand(),
		newVulnerableCommand(),
		newDriftCommand(),
		newHistoryCommand(),
		newOptimizeCommand(),
		newConflictsCommand(),
		newWatchCommand(),
		newProgramsCommand(),
		newInitConfigCommand(),
	)
	return root
}

// newApp loads configuration and wires the scan service. The store is
// opened lazily because some commands (programs, init-config) never
// touch it.
func newApp(withStore bool) (*cliApp, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	var store *history.Store
	if withStore {
		store, err = history.Open(cfg.ResolvedDBPath())
		if err != nil {
			return nil, err
		}
	}

	service := scan.NewService(cfg, programs.NewRegistry(), store)

	var sinks []alert.Sink
	if cfg.Alerts.EnableStdout {
		sinks = append(sinks, &alert.StdoutSink{})
	}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alerts.WebhookURL))
	}
	service.WithSinks(sinks...)

	return &cliApp{cfg: cfg, service: service, store: store}, nil
}

func (a *cliApp) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close history store")
		}
	}
}

func (a *cliApp) resolveContext() (scan.Context, error) {
	return a.service.ResolveContext(flagValidator, flagRPCURL, flagPrograms, nil)
}

func outputFormat() (string, error) {
	format := strings.ToLower(flagOutput)
	switch format {
	case "table", "json", "csv":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", flagOutput)
	}
}
