// Package scan orchestrates the full analysis pipeline: metric
// collection, program evaluation, drift detection, vulnerability
// analysis, arbitrage ranking, and history persistence. The CLI and the
// HTTP API both drive this service rather than the engine packages
// directly.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/alert"
	"github.com/yourorg/delegation-oracle/internal/arbitrage"
	"github.com/yourorg/delegation-oracle/internal/config"
	"github.com/yourorg/delegation-oracle/internal/drift"
	"github.com/yourorg/delegation-oracle/internal/evaluate"
	"github.com/yourorg/delegation-oracle/internal/history"
	"github.com/yourorg/delegation-oracle/internal/metrics"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/optimize"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/types"
	"github.com/yourorg/delegation-oracle/internal/validation"
	"github.com/yourorg/delegation-oracle/internal/vulnerability"
)

// metricsCacheTTL bounds how long a collected snapshot is reused across
// operations in the same process.
const metricsCacheTTL = 30 * time.Second

// Service wires the engine packages together behind one API
type Service struct {
	cfg      config.Config
	registry *programs.Registry
	store    *history.Store
	cache    *metrics.Cache
	sinks    []alert.Sink
}

// NewService creates a scan service. The store may be nil for callers
// that never persist or read history.
func NewService(cfg config.Config, registry *programs.Registry, store *history.Store) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		store:    store,
		cache:    metrics.NewCache(metricsCacheTTL),
	}
}

// WithSinks sets the alert delivery channels used by Watch
func (s *Service) WithSinks(sinks ...alert.Sink) *Service {
	s.sinks = sinks
	return s
}

// Context is the resolved per-request scope: which validator, which
// RPC endpoint, which programs, and any pinned metrics.
type Context struct {
	VotePubkey string
	RPCURL     string
	Programs   []types.ProgramID
	Overrides  *metrics.Overrides
}

// ResolveContext merges request parameters with configured defaults.
// Empty parameters fall back to the configuration; an empty program
// list falls back to the configured set, then to every known program.
func (s *Service) ResolveContext(validator, rpcURL string, programNames []string, overrides *metrics.Overrides) (Context, error) {
	if validator == "" {
		validator = s.cfg.Validator.VotePubkey
	}
	if rpcURL == "" {
		rpcURL = s.cfg.RPC.URL
	}
	if len(programNames) == 0 {
		programNames = s.cfg.Programs.Enabled
	}

	var selected []types.ProgramID
	if len(programNames) == 0 {
		selected = types.AllPrograms()
	} else {
		seen := make(map[types.ProgramID]struct{}, len(programNames))
		for _, name := range programNames {
			id, err := types.ParseProgramID(name)
			if err != nil {
				return Context{}, err
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			selected = append(selected, id)
		}
	}

	return Context{
		VotePubkey: validator,
		RPCURL:     rpcURL,
		Programs:   selected,
		Overrides:  overrides,
	}, nil
}

// collectMetrics collects (or reuses) the validator's metric snapshot.
// Snapshots with operator overrides bypass the cache: pinned values
// must never leak into later unpinned requests.
func (s *Service) collectMetrics(ctx context.Context, sc Context) (model.ValidatorMetrics, error) {
	if sc.Overrides == nil {
		if cached, ok := s.cache.Get(sc.VotePubkey); ok {
			return cached.Metrics, nil
		}
	}

	collected, err := metrics.Collect(ctx, sc.VotePubkey, sc.RPCURL, sc.Overrides)
	if err != nil {
		return model.ValidatorMetrics{}, fmt.Errorf("collect metrics for %s: %w", sc.VotePubkey, err)
	}
	if sc.Overrides == nil {
		s.cache.Put(collected)
	}
	return collected, nil
}

// evaluateSelected fetches criteria for the selected programs and runs
// the evaluation plus delegation estimate for each. The three return
// slices/maps share registry order and program identity.
func (s *Service) evaluateSelected(
	ctx context.Context,
	sc Context,
	m *model.ValidatorMetrics,
) ([]model.EligibilityResult, []model.CriteriaSet, map[types.ProgramID]float64, error) {
	criteriaSets, err := programs.FetchAllCriteria(ctx, s.registry, sc.Programs)
	if err != nil {
		return nil, nil, nil, err
	}

	selected := s.registry.Filter(sc.Programs)
	results := make([]model.EligibilityResult, 0, len(selected))
	estimates := make(map[types.ProgramID]float64, len(selected))
	for i, program := range selected {
		criteria := &criteriaSets[i]
		results = append(results, program.Evaluate(m, criteria))
		if est := program.EstimateDelegation(m, criteria); est != nil {
			estimates[program.ID()] = *est
		}
	}
	return results, criteriaSets, estimates, nil
}

// StatusReport is the headline scan output: one evaluation per program
type StatusReport struct {
	ScanID    string                    `json:"scan_id"`
	Validator string                    `json:"validator"`
	ScannedAt time.Time                 `json:"scanned_at"`
	Results   []model.EligibilityResult `json:"results"`
}

// Status evaluates the validator against every selected program and
// optionally appends the outcome to history.
func (s *Service) Status(ctx context.Context, sc Context, persist bool) (*StatusReport, error) {
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	results, _, _, err := s.evaluateSelected(ctx, sc, &m)
	if err != nil {
		return nil, err
	}

	if persist && s.store != nil {
		if err := s.persistResults(m.VotePubkey, results); err != nil {
			return nil, err
		}
	}

	return &StatusReport{
		ScanID:    uuid.NewString(),
		Validator: m.VotePubkey,
		ScannedAt: time.Now().UTC(),
		Results:   results,
	}, nil
}

// Arbitrage ranks the currently ineligible programs by ROI
func (s *Service) Arbitrage(ctx context.Context, sc Context) ([]arbitrage.Opportunity, error) {
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	results, _, estimates, err := s.evaluateSelected(ctx, sc, &m)
	if err != nil {
		return nil, err
	}
	return arbitrage.BuildOpportunities(results, estimates), nil
}

// WhatIf simulates hypothetical metric changes across the selected
// programs.
func (s *Service) WhatIf(ctx context.Context, sc Context, targets []optimize.MetricTarget) (*optimize.WhatIfResult, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one metric change is required")
	}
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	return optimize.SimulateWhatIf(ctx, s.registry, &m, targets, sc.Programs)
}

// Vulnerable analyzes the competitor cohort for fragile eligibility.
// A zero margin falls back to the configured default; program narrows
// the scan to one program when non-empty.
func (s *Service) Vulnerable(ctx context.Context, sc Context, program types.ProgramID, marginPct float64) ([]vulnerability.VulnerableValidator, error) {
	if marginPct <= 0 {
		marginPct = s.cfg.Analysis.VulnerabilityMarginPct
	}
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}

	scope := sc.Programs
	if program != "" {
		scope = []types.ProgramID{program}
	}
	criteriaSets, err := programs.FetchAllCriteria(ctx, s.registry, scope)
	if err != nil {
		return nil, err
	}

	peers := validation.FilterImplausible(metrics.SamplePeers(&m))
	var out []vulnerability.VulnerableValidator
	for i := range criteriaSets {
		set := &criteriaSets[i]
		out = append(out, vulnerability.Analyze(set.Program, set, peers, marginPct)...)
	}
	return out, nil
}

// Drift fetches fresh criteria for every selected program, diffs each
// against the last stored snapshot, and stores the fresh set. Programs
// with no stored snapshot produce no report on their first scan.
func (s *Service) Drift(ctx context.Context, sc Context) ([]drift.Report, error) {
	if s.store == nil {
		return nil, fmt.Errorf("drift detection requires a history store")
	}
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}

	var reports []drift.Report
	for _, program := range s.registry.Filter(sc.Programs) {
		newSet, err := program.FetchCriteria(ctx)
		if err != nil {
			return nil, err
		}
		oldSet, err := s.store.LatestCriteria(program.ID())
		if err != nil {
			return nil, err
		}
		if oldSet != nil {
			before := evaluate.Validator(program.ID(), &m, oldSet, program.EstimateDelegation(&m, oldSet))
			after := evaluate.Validator(program.ID(), &m, newSet, program.EstimateDelegation(&m, newSet))
			if report := drift.BuildReport(oldSet, newSet, &before, &after); report != nil {
				reports = append(reports, *report)
			}
		}
		if err := s.store.PutCriteria(newSet); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// History loads stored eligibility records for the validator, newest
// first, with an optional program filter.
func (s *Service) History(ctx context.Context, sc Context, program types.ProgramID, limit int) (string, []model.EligibilityRecord, error) {
	if s.store == nil {
		return "", nil, fmt.Errorf("history requires a history store")
	}
	_ = ctx

	records, err := s.store.Records(sc.VotePubkey, program, limit)
	if err != nil {
		return "", nil, err
	}
	return history.SummarizeTimeline(records, program), records, nil
}

// Optimize builds the prioritized action list: ROI-ranked opportunities
// plus direct cross-program contradictions.
func (s *Service) Optimize(ctx context.Context, sc Context, top int) ([]optimize.Recommendation, error) {
	if top <= 0 {
		top = 5
	}
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	results, criteriaSets, estimates, err := s.evaluateSelected(ctx, sc, &m)
	if err != nil {
		return nil, err
	}

	opportunities := arbitrage.BuildOpportunities(results, estimates)
	conflicts := optimize.DetectConflicts(criteriaSets)
	revenue := optimize.RevenueModel{
		RevenuePerSOLPerEpoch: s.cfg.Optimizer.RevenuePerSOLPerEpoch,
		MonthlyInfraCostUSD:   s.cfg.Optimizer.MonthlyInfraCostUSD,
	}
	return optimize.BuildRecommendations(opportunities, conflicts, top, revenue), nil
}

// Conflicts detects cross-program requirement collisions over the
// selected programs' current criteria.
func (s *Service) Conflicts(ctx context.Context, sc Context) ([]optimize.Conflict, error) {
	criteriaSets, err := programs.FetchAllCriteria(ctx, s.registry, sc.Programs)
	if err != nil {
		return nil, err
	}
	return optimize.DetectConflicts(criteriaSets), nil
}

func (s *Service) persistResults(votePubkey string, results []model.EligibilityResult) error {
	epoch, err := s.store.NextEpochHint()
	if err != nil {
		return fmt.Errorf("resolve epoch hint: %w", err)
	}
	for i := range results {
		record := model.RecordFromResult(votePubkey, epoch, &results[i])
		if err := s.store.AppendRecord(&record); err != nil {
			return fmt.Errorf("append history record: %w", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"vote_pubkey": votePubkey,
		"epoch":       epoch,
		"records":     len(results),
	}).Debug("Persisted eligibility history")
	return nil
}
