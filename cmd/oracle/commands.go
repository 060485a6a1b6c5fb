package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/delegation-oracle/internal/config"
	"github.com/yourorg/delegation-oracle/internal/optimize"
	"github.com/yourorg/delegation-oracle/internal/output"
	"github.com/yourorg/delegation-oracle/internal/scan"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func newScanCommand() *cobra.Command {
	var noPersist bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate the validator against every selected program",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(!noPersist)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			report, err := app.service.Status(cmd.Context(), sc, !noPersist)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return printJSON(cmd, report)
			case "csv":
				rendered, err := output.StatusCSV(report.Results)
				if err != nil {
					return err
				}
				cmd.Print(rendered)
			default:
				cmd.Printf("Validator: %s\n\n", report.Validator)
				cmd.Println(output.StatusTable(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip writing results to history")
	return cmd
}

func newGapsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gaps",
		Short: "Show every failed criterion with its gap and effort estimate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			report, err := app.service.Status(cmd.Context(), sc, false)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, report.Results)
			}
			cmd.Println(output.GapsTable(report.Results))
			return nil
		},
	}
}

func newArbitrageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "arbitrage",
		Short: "Rank ineligible programs by delegation gain per unit effort",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			opportunities, err := app.service.Arbitrage(cmd.Context(), sc)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return printJSON(cmd, opportunities)
			case "csv":
				rendered, err := output.ArbitrageCSV(opportunities)
				if err != nil {
					return err
				}
				cmd.Print(rendered)
			default:
				cmd.Println(output.ArbitrageTable(opportunities))
			}
			return nil
		},
	}
}

func newWhatIfCommand() *cobra.Command {
	var changes []string
	cmd := &cobra.Command{
		Use:   "whatif",
		Short: "Simulate hypothetical metric changes",
		Example: `  oracle whatif --set commission=5 --set skip_rate=1.5
  oracle whatif --set mev_commission=4 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			targets, err := parseMetricTargets(changes)
			if err != nil {
				return err
			}

			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			result, err := app.service.WhatIf(cmd.Context(), sc, targets)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, result)
			}
			cmd.Println(output.WhatIfTable(result))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&changes, "set", nil, "metric change as key=value (repeatable)")
	cmd.MarkFlagRequired("set")
	return cmd
}

func newVulnerableCommand() *cobra.Command {
	var programFlag string
	var margin float64
	cmd := &cobra.Command{
		Use:   "vulnerable",
		Short: "Find competitors whose eligibility standing is fragile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			var program types.ProgramID
			if programFlag != "" {
				program, err = types.ParseProgramID(programFlag)
				if err != nil {
					return err
				}
			}

			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			vulnerable, err := app.service.Vulnerable(cmd.Context(), sc, program, margin)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, vulnerable)
			}
			cmd.Println(output.VulnerabilityTable(vulnerable))
			return nil
		},
	}
	cmd.Flags().StringVar(&programFlag, "program", "", "restrict the scan to one program")
	cmd.Flags().Float64Var(&margin, "margin", 0, "at-risk margin percent (default from config)")
	return cmd
}

func newDriftCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Detect criteria changes since the last stored snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			drifts, err := app.service.Drift(cmd.Context(), sc)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, drifts)
			}
			if len(drifts) == 0 {
				cmd.Println("No criteria drift detected.")
				return nil
			}
			cmd.Println(output.DriftTable(drifts))
			return nil
		},
	}
}

func newHistoryCommand() *cobra.Command {
	var programFlag string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the validator's stored eligibility timeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			var program types.ProgramID
			if programFlag != "" {
				program, err = types.ParseProgramID(programFlag)
				if err != nil {
					return err
				}
			}

			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			summary, records, err := app.service.History(cmd.Context(), sc, program, limit)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, map[string]any{"summary": summary, "records": records})
			}
			cmd.Println(summary)
			if len(records) > 0 {
				cmd.Println()
				cmd.Println(output.HistoryTable(records))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&programFlag, "program", "", "restrict history to one program")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}

func newOptimizeCommand() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Build a prioritized action list from opportunities and conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			recommendations, err := app.service.Optimize(cmd.Context(), sc, top)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, recommendations)
			}
			cmd.Println(output.RecommendationsTable(recommendations))
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "maximum recommendations to show")
	return cmd
}

func newConflictsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Detect cross-program requirement collisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			app, err := newApp(false)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			conflicts, err := app.service.Conflicts(cmd.Context(), sc)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd, conflicts)
			}
			if len(conflicts) == 0 {
				cmd.Println("No cross-program conflicts detected.")
				return nil
			}
			for _, conflict := range conflicts {
				cmd.Printf("[%s] %s: %s (%s) vs %s (%s)\n  %s\n",
					conflict.ConflictType,
					conflict.Metric,
					conflict.ProgramA.DisplayName(), conflict.ProgramAWants.String(),
					conflict.ProgramB.DisplayName(), conflict.ProgramBWants.String(),
					conflict.Recommendation,
				)
			}
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	var opts scan.WatchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run repeated scan cycles with alerting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			sc, err := app.resolveContext()
			if err != nil {
				return err
			}
			opts.PersistHistory = true
			iterations, err := app.service.Watch(cmd.Context(), sc, opts)
			if err != nil {
				return err
			}

			for _, iteration := range iterations {
				cmd.Printf("--- iteration %d ---\n", iteration.Iteration)
				cmd.Println(output.StatusTable(iteration.Results))
				if len(iteration.Drifts) > 0 {
					cmd.Println(output.DriftTable(iteration.Drifts))
				}
				if len(iteration.Vulnerabilities) > 0 {
					cmd.Println(output.VulnerabilityTable(iteration.Vulnerabilities))
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "status scan interval (default 1m)")
	cmd.Flags().DurationVar(&opts.VulnerabilityInterval, "vulnerability-interval", 0, "vulnerability scan interval (default 5x interval)")
	cmd.Flags().DurationVar(&opts.DriftInterval, "drift-interval", 0, "drift scan interval (default from config)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 1, "number of cycles to run")
	return cmd
}

func newProgramsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "List supported delegation programs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("Supported programs:")
			for _, id := range types.AllPrograms() {
				cmd.Printf("  - %-11s: %s\n", id, id.DisplayName())
			}
			return nil
		},
	}
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flagConfig
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			cmd.Printf("Configuration template written to %s\n", path)
			return nil
		},
	}
}

// parseMetricTargets turns repeated key=value flags into targets
func parseMetricTargets(raw []string) ([]optimize.MetricTarget, error) {
	targets := make([]optimize.MetricTarget, 0, len(raw))
	for _, entry := range raw {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid metric change %q, expected key=value", entry)
		}
		metric, err := types.ParseMetricKey(key)
		if err != nil {
			return nil, err
		}
		to, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value in %q: %w", entry, err)
		}
		targets = append(targets, optimize.MetricTarget{Metric: metric, To: to})
	}
	return targets, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	rendered, err := output.JSON(value)
	if err != nil {
		return err
	}
	cmd.Println(rendered)
	return nil
}
