package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/delegation-oracle/internal/metrics"
	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
	"github.com/yourorg/delegation-oracle/internal/validation"
	"github.com/yourorg/delegation-oracle/internal/vulnerability"
)

// ProgramThreat scores how exposed the validator is in one program
type ProgramThreat struct {
	Program        types.ProgramID `json:"program"`
	Eligible       bool            `json:"eligible"`
	FailedCriteria int             `json:"failed_criteria"`
	RiskScore      float64         `json:"risk_score"`
	ThreatLevel    string          `json:"threat_level"`
	StakeAtRisk    float64         `json:"estimated_stake_at_risk_sol"`
	Notes          []string        `json:"notes"`
}

// ThreatAssessment aggregates per-program threats for one validator
type ThreatAssessment struct {
	AssessmentID     string          `json:"assessment_id"`
	Validator        string          `json:"validator"`
	AssessedAt       time.Time       `json:"assessed_at"`
	OverallRiskScore float64         `json:"overall_risk_score"`
	Threats          []ProgramThreat `json:"threats"`
}

// Threats scores the validator's exposure across the selected programs.
// Ineligible programs score high and scale with the number of failed
// criteria; eligible programs with partial failures score moderate.
func (s *Service) Threats(ctx context.Context, sc Context) (*ThreatAssessment, error) {
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	results, _, estimates, err := s.evaluateSelected(ctx, sc, &m)
	if err != nil {
		return nil, err
	}

	threats := make([]ProgramThreat, 0, len(results))
	var totalRisk float64
	for i := range results {
		result := &results[i]
		failed := result.FailedCount()

		risk := 0.12
		switch {
		case !result.Eligible:
			risk = 0.70 + float64(failed)*0.08
			if risk > 1.0 {
				risk = 1.0
			}
		case failed > 0:
			risk = 0.45
		}

		level := "low"
		switch {
		case risk >= 0.7:
			level = "high"
		case risk >= 0.35:
			level = "moderate"
		}

		var notes []string
		for _, cr := range result.CriterionResults {
			if !cr.Passed {
				notes = append(notes, cr.CriterionName)
			}
		}

		stakeAtRisk := 0.0
		if !result.Eligible {
			stakeAtRisk = estimates[result.Program]
		}

		threats = append(threats, ProgramThreat{
			Program:        result.Program,
			Eligible:       result.Eligible,
			FailedCriteria: failed,
			RiskScore:      risk,
			ThreatLevel:    level,
			StakeAtRisk:    stakeAtRisk,
			Notes:          notes,
		})
		totalRisk += risk
	}

	overall := 0.0
	if len(threats) > 0 {
		overall = totalRisk / float64(len(threats))
	}

	return &ThreatAssessment{
		AssessmentID:     uuid.NewString(),
		Validator:        m.VotePubkey,
		AssessedAt:       time.Now().UTC(),
		OverallRiskScore: overall,
		Threats:          threats,
	}, nil
}

// DecayOpportunity is stake that could shift away from fragile peers in
// one program.
type DecayOpportunity struct {
	Program               types.ProgramID `json:"program"`
	VulnerableValidators  int             `json:"vulnerable_validators"`
	RedistributableStake  float64         `json:"redistributable_stake_sol"`
	TopTargets            []string        `json:"top_targets"`
}

// Opportunities finds programs where competitor cohorts have fragile
// eligibility, sorted by redistributable stake descending.
func (s *Service) Opportunities(ctx context.Context, sc Context) ([]DecayOpportunity, error) {
	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	_, criteriaSets, _, err := s.evaluateSelected(ctx, sc, &m)
	if err != nil {
		return nil, err
	}

	peers := validation.FilterImplausible(metrics.SamplePeers(&m))
	var opportunities []DecayOpportunity
	for i := range criteriaSets {
		set := &criteriaSets[i]
		vulnerable := vulnerability.Analyze(set.Program, set, peers, s.cfg.Analysis.VulnerabilityMarginPct)
		if len(vulnerable) == 0 {
			continue
		}

		var stake float64
		var targets []string
		for j, item := range vulnerable {
			stake += item.CurrentDelegation
			if j < 3 {
				targets = append(targets, item.VotePubkey)
			}
		}
		opportunities = append(opportunities, DecayOpportunity{
			Program:              set.Program,
			VulnerableValidators: len(vulnerable),
			RedistributableStake: stake,
			TopTargets:           targets,
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].RedistributableStake > opportunities[j].RedistributableStake
	})
	return opportunities, nil
}

// QueueReport locates the validator inside one program's published
// delegation set.
type QueueReport struct {
	Validator           string          `json:"validator"`
	Pool                types.ProgramID `json:"pool"`
	Position            *int            `json:"position,omitempty"`
	Total               int             `json:"total"`
	Percentile          *float64        `json:"percentile,omitempty"`
	Eligible            bool            `json:"eligible"`
	EstimatedDelegation *float64        `json:"estimated_delegation_sol,omitempty"`
}

// Queue ranks the program's published delegation set by delegated SOL
// (then score) and reports where the validator sits in it. A missing
// validator yields no position but still reports set size and the
// validator's own eligibility.
func (s *Service) Queue(ctx context.Context, sc Context, pool types.ProgramID) (*QueueReport, error) {
	program, ok := s.registry.ByID(pool)
	if !ok {
		return nil, fmt.Errorf("unknown pool identifier: %s", pool)
	}

	m, err := s.collectMetrics(ctx, sc)
	if err != nil {
		return nil, err
	}
	criteria, err := program.FetchCriteria(ctx)
	if err != nil {
		return nil, err
	}
	result := program.Evaluate(&m, criteria)

	eligibleSet, err := program.FetchEligibleSet(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(eligibleSet, func(i, j int) bool {
		di, dj := derefOrZero(eligibleSet[i].DelegatedSOL), derefOrZero(eligibleSet[j].DelegatedSOL)
		if di != dj {
			return di > dj
		}
		return derefOrZero(eligibleSet[i].Score) > derefOrZero(eligibleSet[j].Score)
	})

	report := &QueueReport{
		Validator:           m.VotePubkey,
		Pool:                pool,
		Total:               len(eligibleSet),
		Eligible:            result.Eligible,
		EstimatedDelegation: result.EstimatedDelegation,
	}
	for idx := range eligibleSet {
		if eligibleSet[idx].VotePubkey == m.VotePubkey {
			position := idx + 1
			report.Position = &position
			if len(eligibleSet) > 0 {
				percentile := 100.0 * float64(len(eligibleSet)-position+1) / float64(len(eligibleSet))
				report.Percentile = &percentile
			}
			break
		}
	}
	return report, nil
}

// ProgramCohortFlow summarizes one program's eligibility churn from
// stored history.
type ProgramCohortFlow struct {
	Program       types.ProgramID `json:"program"`
	Samples       int             `json:"samples"`
	EligibleRatio float64         `json:"eligible_ratio"`
	GainEvents    int             `json:"gain_events"`
	LossEvents    int             `json:"loss_events"`
	AvgDelegation float64         `json:"avg_delegation_sol"`
}

// CohortsReport groups historical records by program with per-program
// transition counts.
type CohortsReport struct {
	Validator       string              `json:"validator"`
	LookbackRecords int                 `json:"lookback_records"`
	Cohorts         []ProgramCohortFlow `json:"cohorts"`
}

// Cohorts analyzes eligibility churn per program from the validator's
// stored history, sorted by eligible ratio descending.
func (s *Service) Cohorts(ctx context.Context, sc Context, lookbackEpochs int) (*CohortsReport, error) {
	if s.store == nil {
		return nil, fmt.Errorf("cohort analysis requires a history store")
	}
	_ = ctx
	if lookbackEpochs <= 0 {
		lookbackEpochs = s.cfg.Analysis.LookbackEpochs
	}
	limit := lookbackEpochs * len(types.AllPrograms())
	if limit < 10 {
		limit = 10
	}

	records, err := s.store.Records(sc.VotePubkey, "", limit)
	if err != nil {
		return nil, err
	}

	grouped := make(map[types.ProgramID][]model.EligibilityRecord)
	for _, record := range records {
		grouped[record.Program] = append(grouped[record.Program], record)
	}

	var cohorts []ProgramCohortFlow
	for program, programRecords := range grouped {
		sort.Slice(programRecords, func(i, j int) bool {
			return programRecords[i].Epoch < programRecords[j].Epoch
		})

		samples := len(programRecords)
		eligibleCount := 0
		var delegationSum float64
		for _, record := range programRecords {
			if record.Eligible {
				eligibleCount++
			}
			if record.DelegationSOL != nil {
				delegationSum += *record.DelegationSOL
			}
		}

		gains, losses := 0, 0
		for i := 1; i < samples; i++ {
			prev, next := programRecords[i-1], programRecords[i]
			switch {
			case !prev.Eligible && next.Eligible:
				gains++
			case prev.Eligible && !next.Eligible:
				losses++
			}
		}

		cohorts = append(cohorts, ProgramCohortFlow{
			Program:       program,
			Samples:       samples,
			EligibleRatio: float64(eligibleCount) / float64(samples),
			GainEvents:    gains,
			LossEvents:    losses,
			AvgDelegation: delegationSum / float64(samples),
		})
	}
	sort.SliceStable(cohorts, func(i, j int) bool {
		return cohorts[i].EligibleRatio > cohorts[j].EligibleRatio
	})

	return &CohortsReport{
		Validator:       sc.VotePubkey,
		LookbackRecords: len(records),
		Cohorts:         cohorts,
	}, nil
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
