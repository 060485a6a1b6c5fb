package scan

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/alert"
	"github.com/yourorg/delegation-oracle/internal/drift"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/vulnerability"
)

// WatchOptions tunes the watch loop. Vulnerability and drift scans run
// on their own, slower cadence than the status evaluation.
type WatchOptions struct {
	Interval              time.Duration `json:"interval"`
	VulnerabilityInterval time.Duration `json:"vulnerability_interval"`
	DriftInterval         time.Duration `json:"drift_interval"`
	Iterations            int           `json:"iterations"`
	PersistHistory        bool          `json:"persist_history"`
}

// normalized fills unset fields with their derived defaults
func (o WatchOptions) normalized(cfg watchDefaults) WatchOptions {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.VulnerabilityInterval <= 0 {
		o.VulnerabilityInterval = 5 * o.Interval
	}
	if o.DriftInterval <= 0 {
		o.DriftInterval = cfg.driftInterval
		if o.DriftInterval < o.Interval {
			o.DriftInterval = o.Interval
		}
	}
	if o.Iterations <= 0 {
		o.Iterations = 1
	}
	if o.Iterations > 100 {
		o.Iterations = 100
	}
	return o
}

type watchDefaults struct {
	driftInterval time.Duration
}

// WatchIteration is one watch cycle's combined output
type WatchIteration struct {
	Iteration       int                                   `json:"iteration"`
	Results         []model.EligibilityResult             `json:"results"`
	Drifts          []drift.Report                        `json:"drifts"`
	Vulnerabilities []vulnerability.VulnerableValidator   `json:"vulnerabilities"`
	Alerts          []alert.Event                         `json:"alerts"`
}

// Watch runs repeated scan cycles, interleaving the slower
// vulnerability and drift checks, raising alerts on each cycle, and
// dispatching them to the configured sinks. Cancelling the context
// stops the loop after the current cycle.
func (s *Service) Watch(ctx context.Context, sc Context, opts WatchOptions) ([]WatchIteration, error) {
	opts = opts.normalized(watchDefaults{driftInterval: s.cfg.Analysis.DriftCheckInterval})
	rules := alert.Rules{
		CriteriaDrift:         s.cfg.Alerts.Rules.CriteriaDrift,
		VulnerabilityDetected: s.cfg.Alerts.Rules.VulnerabilityDetected,
		EligibilityLost:       s.cfg.Alerts.Rules.EligibilityLost,
		EligibilityGained:     s.cfg.Alerts.Rules.EligibilityGained,
	}

	var iterations []WatchIteration
	var previousResults []model.EligibilityResult
	var lastVulnerabilityScan, lastDriftScan time.Time

	for iteration := 1; iteration <= opts.Iterations; iteration++ {
		status, err := s.Status(ctx, sc, opts.PersistHistory && s.store != nil)
		if err != nil {
			return iterations, err
		}

		now := time.Now()
		var vulnerabilities []vulnerability.VulnerableValidator
		if lastVulnerabilityScan.IsZero() || now.Sub(lastVulnerabilityScan) >= opts.VulnerabilityInterval {
			lastVulnerabilityScan = now
			vulnerabilities, err = s.Vulnerable(ctx, sc, "", 0)
			if err != nil {
				return iterations, err
			}
		}

		var drifts []drift.Report
		if s.store != nil && (lastDriftScan.IsZero() || now.Sub(lastDriftScan) >= opts.DriftInterval) {
			lastDriftScan = now
			drifts, err = s.Drift(ctx, sc)
			if err != nil {
				return iterations, err
			}
		}

		events := alert.EvaluateAlerts(rules, previousResults, status.Results, drifts, vulnerabilities)
		if len(events) > 0 && len(s.sinks) > 0 {
			alert.Dispatch(ctx, s.sinks, events)
		}

		iterations = append(iterations, WatchIteration{
			Iteration:       iteration,
			Results:         status.Results,
			Drifts:          drifts,
			Vulnerabilities: vulnerabilities,
			Alerts:          events,
		})
		previousResults = status.Results

		logrus.WithFields(logrus.Fields{
			"iteration": iteration,
			"alerts":    len(events),
		}).Info("Watch cycle complete")

		if iteration < opts.Iterations {
			select {
			case <-ctx.Done():
				return iterations, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}
	}
	return iterations, nil
}
