// Package programs provides adapters for the delegation programs a
// Solana validator can qualify for. Each adapter knows its program's
// published criteria, how to reach its public API, and how to estimate
// the delegation a qualifying validator would receive.
package programs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// EligibleValidator is one entry in a program's published delegation set
type EligibleValidator struct {
	VotePubkey   string   `json:"vote_pubkey"`
	Score        *float64 `json:"score,omitempty"`
	DelegatedSOL *float64 `json:"delegated_sol,omitempty"`
}

// Program defines the interface that all delegation program adapters
// must implement.
type Program interface {
	// ID returns the program's stable identifier
	ID() types.ProgramID

	// Name returns the program's display name
	Name() string

	// FetchCriteria returns the program's current criteria set
	FetchCriteria(ctx context.Context) (*model.CriteriaSet, error)

	// FetchEligibleSet retrieves the program's current delegation set
	FetchEligibleSet(ctx context.Context) ([]EligibleValidator, error)

	// Evaluate scores a validator against the given criteria set
	Evaluate(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) model.EligibilityResult

	// EstimateDelegation estimates the SOL this program would delegate
	// to a qualifying validator. Nil means the program publishes no
	// usable estimate.
	EstimateDelegation(metrics *model.ValidatorMetrics, criteria *model.CriteriaSet) *float64
}

// Registry holds the fixed set of supported program adapters
type Registry struct {
	programs []Program
}

// NewRegistry creates a registry with all supported program adapters
func NewRegistry() *Registry {
	client := newAPIClient()
	return &Registry{
		programs: []Program{
			&sfdpProgram{client: client},
			&marinadeProgram{client: client},
			&jpoolProgram{client: client},
			&blazeStakeProgram{client: client},
			&jitoProgram{client: client},
			&sanctumProgram{client: client},
		},
	}
}

// Programs returns all registered adapters in canonical order
func (r *Registry) Programs() []Program {
	return r.programs
}

// ByID looks up an adapter by program identifier
func (r *Registry) ByID(id types.ProgramID) (Program, bool) {
	for _, p := range r.programs {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Filter returns the adapters whose IDs appear in ids. An empty or nil
// filter selects every program.
func (r *Registry) Filter(ids []types.ProgramID) []Program {
	if len(ids) == 0 {
		return r.programs
	}
	var out []Program
	for _, p := range r.programs {
		for _, id := range ids {
			if p.ID() == id {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// fetchConcurrency bounds parallel outbound calls per scan
const fetchConcurrency = 4

// maxEligibleSetItems caps delegation-set parsing per program
const maxEligibleSetItems = 200

// solAmount builds an optional SOL amount for estimates and snapshots
func solAmount(v float64) *float64 { return &v }

// FetchAllCriteria fetches criteria sets for the filtered programs
// concurrently. Any fetch error cancels the rest and propagates.
// Results keep registry order.
func FetchAllCriteria(ctx context.Context, registry *Registry, filter []types.ProgramID) ([]model.CriteriaSet, error) {
	selected := registry.Filter(filter)
	out := make([]model.CriteriaSet, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, program := range selected {
		i, program := i, program
		g.Go(func() error {
			set, err := program.FetchCriteria(gctx)
			if err != nil {
				return err
			}
			out[i] = *set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateAll evaluates one validator against every filtered program,
// fetching each program's criteria first. Results keep registry order;
// the first fetch error aborts the whole evaluation.
func EvaluateAll(
	ctx context.Context,
	registry *Registry,
	metrics *model.ValidatorMetrics,
	filter []types.ProgramID,
) ([]model.EligibilityResult, error) {
	selected := registry.Filter(filter)
	out := make([]model.EligibilityResult, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, program := range selected {
		i, program := i, program
		g.Go(func() error {
			criteria, err := program.FetchCriteria(gctx)
			if err != nil {
				return err
			}
			out[i] = program.Evaluate(metrics, criteria)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
