package anomaly

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
)

// panelWithSpike builds n quiet sessions with a handful of violent moves at
// known positions.
func panelWithSpike(fund string, seed int64, n int, spikes ...int) domain.Panel {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0

	spikeSet := make(map[int]bool)
	for _, s := range spikes {
		spikeSet[s] = true
	}

	panel := make(domain.Panel, 0, n)
	for i := 0; i < n; i++ {
		move := rng.NormFloat64() * 0.005
		volume := 1000 + rng.Float64()*100
		if spikeSet[i] {
			move = -0.15
			volume = 8000
		}
		price *= 1 + move
		panel = append(panel, domain.Observation{
			Date: start.AddDate(0, 0, i), Fund: fund,
			Open: price, High: price * 1.005, Low: price * 0.995,
			Close: price, Volume: volume,
		})
	}
	return panel
}

func buildSeries(t *testing.T, panel domain.Panel) map[string]series.FundSeries {
	t.Helper()
	built, err := series.NewBuilder(20).Build(panel)
	require.NoError(t, err)
	return built
}

func TestDetectFlagsSpikes(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("VTI", 42, 200, 80, 150))

	det := NewDetector(0.05, 42)
	result := det.Detect(byFund)

	require.Equal(t, domain.StatusOK, result.Status)
	r := result.Funds["VTI"]
	require.Equal(t, domain.StatusOK, r.Status)
	require.NotEmpty(t, r.FlaggedIdx)

	// Both engineered crashes land among the flagged sessions.
	flagged := make(map[int]bool)
	for _, idx := range r.FlaggedIdx {
		flagged[idx] = true
	}
	assert.True(t, flagged[80], "crash at index 80 not flagged")
	assert.True(t, flagged[150], "crash at index 150 not flagged")
}

func TestDetectDeterministic(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("VTI", 42, 200, 80))
	det := NewDetector(0.1, 42)

	first := det.Detect(byFund)
	second := det.Detect(byFund)

	assert.Equal(t, first.Funds["VTI"].FlaggedIdx, second.Funds["VTI"].FlaggedIdx)
	assert.Equal(t, first.Funds["VTI"].AnomalyScore, second.Funds["VTI"].AnomalyScore)
}

func TestDetectSeedChangesForest(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("VTI", 42, 200, 80))

	a := NewDetector(0.1, 1).Detect(byFund)
	b := NewDetector(0.1, 2).Detect(byFund)

	// Different seeds may flag slightly different sessions, but both runs
	// stay close to the requested contamination.
	assert.InDelta(t, 0.1, a.Funds["VTI"].AnomalyScore, 0.06)
	assert.InDelta(t, 0.1, b.Funds["VTI"].AnomalyScore, 0.06)
}

func TestDetectContaminationControlsFraction(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("VTI", 42, 400))

	low := NewDetector(0.02, 42).Detect(byFund)
	high := NewDetector(0.2, 42).Detect(byFund)

	assert.Less(t, low.Funds["VTI"].AnomalyScore, high.Funds["VTI"].AnomalyScore)
	assert.InDelta(t, 0.02, low.Funds["VTI"].AnomalyScore, 0.02)
	assert.InDelta(t, 0.2, high.Funds["VTI"].AnomalyScore, 0.05)
}

func TestDetectShortSeriesInsufficient(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("BND", 7, 10))

	det := NewDetector(0.1, 42)
	result := det.Detect(byFund)

	r := result.Funds["BND"]
	assert.Equal(t, domain.StatusInsufficientData, r.Status)
	assert.Empty(t, r.FlaggedIdx)
	assert.Equal(t, domain.StatusInsufficientData, result.Status)
}

func TestDetectFundsIndependent(t *testing.T) {
	quiet := buildSeries(t, panelWithSpike("BND", 7, 200))
	noisy := buildSeries(t, panelWithSpike("VTI", 42, 200, 80))

	solo := NewDetector(0.1, 42).Detect(quiet)

	both := quiet
	for fund, s := range noisy {
		both[fund] = s
	}
	combined := NewDetector(0.1, 42).Detect(both)

	// BND's flags are identical whether or not VTI is present.
	assert.Equal(t, solo.Funds["BND"].FlaggedIdx, combined.Funds["BND"].FlaggedIdx)
}

func TestDetectManyFundsMatchSoloRuns(t *testing.T) {
	funds := []string{"BND", "GLD", "VNQ", "VTI", "VXUS"}

	combined := make(map[string]series.FundSeries)
	solo := make(map[string]domain.AnomalyResult)
	for i, fund := range funds {
		byFund := buildSeries(t, panelWithSpike(fund, int64(i+1), 200, 50+i*20))
		for f, s := range byFund {
			combined[f] = s
		}
		solo[fund] = NewDetector(0.1, 42).Detect(byFund).Funds[fund]
	}

	result := NewDetector(0.1, 42).Detect(combined)

	// The concurrent multi-fund run reproduces each fund's solo result.
	require.Equal(t, domain.StatusOK, result.Status)
	for _, fund := range funds {
		assert.Equal(t, solo[fund].FlaggedIdx, result.Funds[fund].FlaggedIdx, "fund %s", fund)
		assert.Equal(t, solo[fund].AnomalyScore, result.Funds[fund].AnomalyScore, "fund %s", fund)
	}
}

func TestDetectEmptyInput(t *testing.T) {
	result := NewDetector(0.1, 42).Detect(map[string]series.FundSeries{})
	assert.Equal(t, domain.StatusInsufficientData, result.Status)
}

func TestDetectCustomScorer(t *testing.T) {
	byFund := buildSeries(t, panelWithSpike("VTI", 42, 100))

	det := NewDetectorWithScorer(0.1, 42, func(seed int64) Scorer {
		return scoreByIndex{}
	})
	result := det.Detect(byFund)

	r := result.Funds["VTI"]
	require.Equal(t, domain.StatusOK, r.Status)
	// scoreByIndex ranks later rows higher, so flags cluster at the tail.
	for _, idx := range r.FlaggedIdx {
		assert.Greater(t, idx, 80)
	}
}

type scoreByIndex struct{}

func (scoreByIndex) Score(features [][]float64) []float64 {
	scores := make([]float64, len(features))
	for i := range scores {
		scores[i] = float64(i)
	}
	return scores
}
