package programs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/delegation-oracle/internal/model"
	"github.com/yourorg/delegation-oracle/internal/types"
)

func TestRegistryCoversAllPrograms(t *testing.T) {
	registry := NewRegistry()
	require.Len(t, registry.Programs(), len(types.AllPrograms()))

	for i, id := range types.AllPrograms() {
		assert.Equal(t, id, registry.Programs()[i].ID(), "registry must keep canonical order")
	}
}

func TestRegistryByID(t *testing.T) {
	registry := NewRegistry()

	program, ok := registry.ByID(types.ProgramJito)
	require.True(t, ok)
	assert.Equal(t, "Jito", program.Name())

	_, ok = registry.ByID(types.ProgramID("nonexistent"))
	assert.False(t, ok)
}

func TestRegistryFilter(t *testing.T) {
	registry := NewRegistry()

	assert.Len(t, registry.Filter(nil), len(types.AllPrograms()))

	filtered := registry.Filter([]types.ProgramID{types.ProgramMarinade, types.ProgramSanctum})
	require.Len(t, filtered, 2)
	assert.Equal(t, types.ProgramMarinade, filtered[0].ID())
	assert.Equal(t, types.ProgramSanctum, filtered[1].ID())
}

func TestFetchAllCriteriaKeepsOrder(t *testing.T) {
	registry := NewRegistry()

	sets, err := FetchAllCriteria(context.Background(), registry, nil)
	require.NoError(t, err)
	require.Len(t, sets, len(types.AllPrograms()))

	for i, id := range types.AllPrograms() {
		assert.Equal(t, id, sets[i].Program)
		assert.NotEmpty(t, sets[i].Criteria)
		assert.NotEmpty(t, sets[i].ContentHash)
		assert.NotEmpty(t, sets[i].SourceURL)
	}
}

func TestEvaluateAllProducesOneResultPerProgram(t *testing.T) {
	registry := NewRegistry()
	metrics := model.SampleMetrics("validator-1")

	results, err := EvaluateAll(context.Background(), registry, &metrics, nil)
	require.NoError(t, err)
	require.Len(t, results, len(types.AllPrograms()))

	for i, id := range types.AllPrograms() {
		assert.Equal(t, id, results[i].Program)
		assert.NotEmpty(t, results[i].CriterionResults)
	}
}

func TestEligibleResultsCarryDelegationEstimates(t *testing.T) {
	registry := NewRegistry()
	metrics := model.SampleMetrics("validator-1")

	results, err := EvaluateAll(context.Background(), registry, &metrics, nil)
	require.NoError(t, err)

	for _, result := range results {
		if !result.Eligible {
			assert.Nil(t, result.EstimatedDelegation, "%s: ineligible results must not carry an estimate", result.Program)
		}
	}
}

func TestParseEligibleValidators(t *testing.T) {
	payload := map[string]any{
		"validators": []any{
			map[string]any{
				"vote_account": "Validator1111",
				"score":        0.91,
				"active_stake": 42_000.0,
			},
			map[string]any{
				"vote_pubkey": "Validator2222",
			},
			map[string]any{
				// duplicate pubkey, must be dropped
				"vote_account": "Validator1111",
				"score":        0.5,
			},
			map[string]any{
				"unrelated": "field",
			},
		},
	}

	parsed := parseEligibleValidators(payload,
		[]string{"vote_account", "vote_pubkey"},
		[]string{"score"},
		[]string{"marinade_stake", "active_stake"},
		10,
	)

	require.Len(t, parsed, 2)
	assert.Equal(t, "Validator1111", parsed[0].VotePubkey)
	require.NotNil(t, parsed[0].Score)
	assert.Equal(t, 0.91, *parsed[0].Score)
	require.NotNil(t, parsed[0].DelegatedSOL)
	assert.Equal(t, 42_000.0, *parsed[0].DelegatedSOL)

	assert.Equal(t, "Validator2222", parsed[1].VotePubkey)
	assert.Nil(t, parsed[1].Score)
	assert.Nil(t, parsed[1].DelegatedSOL)
}

func TestParseEligibleValidatorsNestedContainers(t *testing.T) {
	payload := map[string]any{
		"data": map[string]any{
			"items": []any{
				map[string]any{"vote_pubkey": "Nested1111", "score": "0.77"},
			},
		},
	}

	parsed := parseEligibleValidators(payload, []string{"vote_pubkey"}, []string{"score"}, nil, 10)
	require.Len(t, parsed, 1)
	assert.Equal(t, "Nested1111", parsed[0].VotePubkey)
	require.NotNil(t, parsed[0].Score)
	assert.Equal(t, 0.77, *parsed[0].Score)
}

func TestParseEligibleValidatorsHonorsMaxItems(t *testing.T) {
	var entries []any
	for _, pubkey := range []string{"A", "B", "C", "D"} {
		entries = append(entries, map[string]any{"vote_pubkey": pubkey})
	}

	parsed := parseEligibleValidators([]any(entries), []string{"vote_pubkey"}, nil, nil, 2)
	assert.Len(t, parsed, 2)
}

func TestLamportsToSOLIfNeeded(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"plain SOL amount untouched", 42_000.0, 42_000.0},
		{"lamports converted", 42_000_000_000_000.0, 42_000.0},
		{"exactly one SOL of lamports", 1_000_000_000.0, 1.0},
		{"negative lamports converted", -2_000_000_000.0, -2.0},
		{"zero untouched", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lamportsToSOLIfNeeded(tt.value))
		})
	}
}

func TestBpsToPercentIfNeeded(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"percent untouched", 8.0, 8.0},
		{"boundary untouched", 100.0, 100.0},
		{"basis points converted", 800.0, 8.0},
		{"negative basis points converted", -800.0, -8.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bpsToPercentIfNeeded(tt.value))
		})
	}
}

func TestToFloat64StringShapes(t *testing.T) {
	tests := []struct {
		input  any
		want   float64
		wantOK bool
	}{
		{42.5, 42.5, true},
		{"1,234", 1234.0, true},
		{"8.5%", 8.5, true},
		{"1_000", 1000.0, true},
		{" 7 ", 7.0, true},
		{"not a number", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := toFloat64(tt.input)
		assert.Equal(t, tt.wantOK, ok, "input %v", tt.input)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "input %v", tt.input)
		}
	}
}

func TestStringFromPathsNumericFallback(t *testing.T) {
	object := map[string]any{"id": 42.0, "name": "  "}

	value, ok := stringFromPaths(object, []string{"name", "id"})
	require.True(t, ok)
	assert.Equal(t, "42", value)
}

func TestGetCaseInsensitive(t *testing.T) {
	object := map[string]any{"Validators": []any{}}

	_, ok := getCaseInsensitive(object, "validators")
	assert.True(t, ok)

	_, ok = getCaseInsensitive(object, "missing")
	assert.False(t, ok)
}
