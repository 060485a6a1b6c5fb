package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgramID(t *testing.T) {
	tests := []struct {
		input string
		want  ProgramID
	}{
		{"sfdp", ProgramSFDP},
		{"solana-foundation", ProgramSFDP},
		{"Marinade", ProgramMarinade},
		{" jpool ", ProgramJPool},
		{"j_pool", ProgramJPool},
		{"blaze", ProgramBlazeStake},
		{"BLAZESTAKE", ProgramBlazeStake},
		{"jito", ProgramJito},
		{"sanctum", ProgramSanctum},
	}
	for _, tt := range tests {
		got, err := ParseProgramID(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	_, err := ParseProgramID("lido")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown program id")
}

func TestAllProgramsIsFreshlyAllocated(t *testing.T) {
	first := AllPrograms()
	first[0] = ProgramJito
	assert.Equal(t, ProgramSFDP, AllPrograms()[0])
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "SFDP", ProgramSFDP.DisplayName())
	assert.Equal(t, "BlazeStake", ProgramBlazeStake.DisplayName())
	assert.Equal(t, "mystery", ProgramID("mystery").DisplayName())
}

func TestParseMetricKey(t *testing.T) {
	tests := []struct {
		input string
		want  MetricKey
	}{
		{"commission", MetricCommission},
		{"Skip-Rate", MetricSkipRate},
		{"stake", MetricActivatedStake},
		{"active_stake", MetricActivatedStake},
		{"credits", MetricVoteCredits},
		{"uptime", MetricUptimePercent},
		{"version", MetricSolanaVersion},
		{"dc_concentration", MetricDatacenterConcentration},
		{"superminority", MetricSuperminorityStatus},
		{"mev_commission", MetricMevCommission},
		{"infra_diversity", MetricInfrastructureDiversity},
	}
	for _, tt := range tests {
		got, err := ParseMetricKey(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestParseMetricKeyCustomAndEmpty(t *testing.T) {
	got, err := ParseMetricKey("Validator-Score")
	require.NoError(t, err)
	assert.Equal(t, MetricKey("validator_score"), got)
	assert.True(t, got.IsCustom())
	assert.False(t, MetricCommission.IsCustom())

	_, err = ParseMetricKey("  ")
	require.Error(t, err)
}
