package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carbmine/internal/types"
)

type mockRanker struct {
	mock.Mock
}

func (m *mockRanker) Rank(ctx context.Context, sector string, emission float64, region string) ([]RankedStrategy, error) {
	args := m.Called(ctx, sector, emission, region)
	if v := args.Get(0); v != nil {
		return v.([]RankedStrategy), args.Error(1)
	}
	return nil, args.Error(1)
}

var testCatalog = []Strategy{
	{Strategy: "Driver training", Category: "Policy/Behavioral", ImpactLevel: "Low", EstimatedReductionTCO2e: 0.02},
	{Strategy: "Solar PPA", Category: "Renewable Energy", ImpactLevel: "High", EstimatedReductionTCO2e: 0.2},
	{Strategy: "CCS pilot", Category: "Carbon Capture", ImpactLevel: "High", EstimatedReductionTCO2e: 120_000},
	{Strategy: "VFD retrofit", Category: "Energy Efficiency", ImpactLevel: "Medium", EstimatedReductionTCO2e: 0.1, Sector: "coal"},
	{Strategy: "Preventive maintenance", Category: "Maintenance", ImpactLevel: "Medium", EstimatedReductionTCO2e: -5},
}

func names(ranked []RankedStrategy) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Strategy
	}
	return out
}

func TestRuleRanker_HighBand(t *testing.T) {
	rr, err := NewRuleRanker(testCatalog, PrimaryRules)
	require.NoError(t, err)

	got, err := rr.Rank(context.Background(), "Coal Mining", 1_000_000, "odisha")
	require.NoError(t, err)

	// Solar 5, CCS 5, VFD 4.5, maintenance 1, training 0.
	assert.Equal(t, []string{"Solar PPA", "CCS pilot", "VFD retrofit", "Preventive maintenance", "Driver training"}, names(got))
	assert.InDelta(t, 200_000, got[0].EstimatedReductionTCO2e, 1e-9)
	assert.InDelta(t, 120_000, got[1].EstimatedReductionTCO2e, 1e-9)
	assert.Zero(t, got[3].EstimatedReductionTCO2e)
	require.NotNil(t, got[0].Region)
	assert.Equal(t, "odisha", *got[0].Region)
	assert.Equal(t, "Coal Mining", got[0].Sector)
}

func TestRuleRanker_FallbackRulesIgnoreCarbonCapture(t *testing.T) {
	rr, err := NewRuleRanker(testCatalog, FallbackRules)
	require.NoError(t, err)

	got, err := rr.Rank(context.Background(), "coal", 1_000_000, "")
	require.NoError(t, err)

	// Solar 5, VFD 4.5, CCS 2.
	assert.Equal(t, []string{"Solar PPA", "VFD retrofit", "CCS pilot"}, names(got)[:3])
	assert.Nil(t, got[0].Region)
}

func TestRuleRanker_LowBand(t *testing.T) {
	rr, err := NewRuleRanker(testCatalog, PrimaryRules)
	require.NoError(t, err)

	got, err := rr.Rank(context.Background(), "steel", 10_000, "")
	require.NoError(t, err)

	// maintenance 4, training 3, solar 2, CCS 2, VFD 1; ties keep catalog order.
	assert.Equal(t, []string{"Preventive maintenance", "Driver training", "Solar PPA", "CCS pilot", "VFD retrofit"}, names(got))
	assert.InDelta(t, 200, got[1].EstimatedReductionTCO2e, 1e-9)
}

func TestRuleRanker_MediumBandAndTopTen(t *testing.T) {
	var catalog []Strategy
	for i := 0; i < 15; i++ {
		catalog = append(catalog, Strategy{Strategy: string(rune('a' + i)), Category: "Offset Projects", ImpactLevel: "Low"})
	}
	catalog = append(catalog, Strategy{Strategy: "eff", Category: "Energy Efficiency"})

	rr, err := NewRuleRanker(catalog, PrimaryRules)
	require.NoError(t, err)

	got, err := rr.Rank(context.Background(), "coal", 100_000, "")
	require.NoError(t, err)

	require.Len(t, got, MaxResults)
	assert.Equal(t, "eff", got[0].Strategy)
	assert.Equal(t, "Medium", got[0].ImpactLevel)
	assert.Equal(t, "a", got[1].Strategy)
}

func TestNewRuleRanker_RejectsBadRules(t *testing.T) {
	_, err := NewRuleRanker(nil, []Rule{{Name: "syntax", Expression: "band =="}})
	assert.Error(t, err)

	_, err = NewRuleRanker(nil, []Rule{{Name: "bool", Expression: `band == "high"`}})
	assert.Error(t, err)
}

func TestRecommender_NegativeEmission(t *testing.T) {
	rec, err := NewCatalogRecommender(nil, nil)
	require.NoError(t, err)

	_, err = rec.Recommend(context.Background(), "coal", -1, "")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationNegativeValue, appErr.Code)
}

func TestRecommender_EmptyCatalogUsesBuiltin(t *testing.T) {
	rec, err := NewCatalogRecommender(nil, nil)
	require.NoError(t, err)

	got, err := rec.Recommend(context.Background(), "coal", 1_000_000, "jharkhand")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "Solar Power Integration", got[0].Strategy)
	assert.InDelta(t, 200_000, got[0].EstimatedReductionTCO2e, 1e-9)
}

func TestRecommender_PrimaryErrorFallsBack(t *testing.T) {
	primary := new(mockRanker)
	fallback := new(mockRanker)
	want := []RankedStrategy{{Strategy: "x"}}

	primary.On("Rank", mock.Anything, "coal", 10.0, "").Return(nil, errors.New("boom"))
	fallback.On("Rank", mock.Anything, "coal", 10.0, "").Return(want, nil)

	got, err := NewRecommender(primary, fallback, nil).Recommend(context.Background(), "coal", 10, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestRecommender_PrimaryResultWins(t *testing.T) {
	primary := new(mockRanker)
	fallback := new(mockRanker)
	want := []RankedStrategy{{Strategy: "p"}}
	primary.On("Rank", mock.Anything, "coal", 10.0, "").Return(want, nil)

	got, err := NewRecommender(primary, fallback, nil).Recommend(context.Background(), "coal", 10, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	fallback.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadCatalog(t *testing.T) {
	in := `strategy,category,impact_level,estimated_reduction_tco2e,description,sector
Solar,Renewable Energy,High,0.2,Panels,coal
Broken,Offset Projects,Low,n/a,Bad number,
Audit,Energy Efficiency,,0.1,Walkthrough,
`
	got, err := ReadCatalog(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "coal", got[0].Sector)
	assert.Equal(t, "Medium", got[1].ImpactLevel)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	got, err := LoadCatalog(filepath.Join(t.TempDir(), "strategies.csv"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.csv")
	require.NoError(t, os.WriteFile(path, []byte("strategy,category,estimated_reduction_tco2e\nA,Offset Projects,5000\n"), 0o600))

	got, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5000.0, got[0].EstimatedReductionTCO2e)
}

func TestStaticStrategies(t *testing.T) {
	got := StaticStrategies()
	require.Len(t, got, 4)
	assert.Equal(t, "Renewable Power Purchase", got[1].Name)
	assert.Equal(t, 18.0, got[1].EstimatedReductionPercent)
}
