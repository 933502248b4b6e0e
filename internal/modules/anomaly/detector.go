// Package anomaly flags unusual trading sessions per fund using an
// isolation-forest scorer over standardized market features.
package anomaly

import (
	"hash/fnv"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
	"github.com/fundpulse/fundpulse/pkg/formulas"
)

// minObservations is the smallest series worth scoring. Below this the
// empirical score distribution is too thin to pick a contamination cutoff.
const minObservations = 30

// Scorer assigns an anomaly score to each feature row. Higher means more
// anomalous. Implementations must be deterministic for a fixed construction.
type Scorer interface {
	Score(features [][]float64) []float64
}

// ScorerFactory builds a scorer for one fund. The seed is already derived
// from the detector seed and the fund identifier.
type ScorerFactory func(seed int64) Scorer

// Detector runs anomaly detection independently per fund.
type Detector struct {
	contamination float64
	seed          int64
	newScorer     ScorerFactory
	logger        zerolog.Logger
}

// NewDetector creates a detector flagging the given fraction of observations
// per fund, using isolation forests seeded deterministically from seed.
func NewDetector(contamination float64, seed int64) *Detector {
	return NewDetectorWithScorer(contamination, seed, func(s int64) Scorer {
		return NewIsolationForest(s)
	})
}

// NewDetectorWithScorer creates a detector with a custom scorer factory.
func NewDetectorWithScorer(contamination float64, seed int64, factory ScorerFactory) *Detector {
	return &Detector{
		contamination: contamination,
		seed:          seed,
		newScorer:     factory,
		logger:        log.With().Str("component", "anomaly_detector").Logger(),
	}
}

// Detect scores each fund independently: an unusual session in one fund
// never influences another fund's results. Funds are scored concurrently;
// each fund reads only its own series and derives its own seed, so the
// output is identical to a sequential run. Funds with fewer than
// minObservations sessions get an empty result flagged insufficient_data.
func (d *Detector) Detect(byFund map[string]series.FundSeries) domain.AnomalyDetectionResult {
	result := domain.AnomalyDetectionResult{
		Funds:  make(map[string]domain.AnomalyResult, len(byFund)),
		Status: domain.StatusOK,
	}
	if len(byFund) == 0 {
		result.Status = domain.StatusInsufficientData
		return result
	}

	funds := make([]string, 0, len(byFund))
	for fund := range byFund {
		funds = append(funds, fund)
	}
	sort.Strings(funds)

	perFund := make([]domain.AnomalyResult, len(funds))
	var g errgroup.Group
	for i, fund := range funds {
		i, fund := i, fund
		g.Go(func() error {
			perFund[i] = d.detectFund(fund, byFund[fund])
			return nil
		})
	}
	// Per-fund scoring reports problems through Status, never an error.
	_ = g.Wait()

	scored := 0
	for i, fund := range funds {
		result.Funds[fund] = perFund[i]
		if perFund[i].Status == domain.StatusOK {
			scored++
		}
	}
	if scored == 0 {
		result.Status = domain.StatusInsufficientData
	}
	return result
}

func (d *Detector) detectFund(fund string, s series.FundSeries) domain.AnomalyResult {
	r := domain.AnomalyResult{
		Fund:         fund,
		FlaggedIdx:   []int{},
		FlaggedDates: []time.Time{},
		Status:       domain.StatusOK,
	}

	features, offset := buildFeatures(s)
	if len(features) < minObservations {
		d.logger.Warn().Str("fund", fund).Int("observations", len(features)).
			Msg("Too few observations for anomaly scoring")
		r.Status = domain.StatusInsufficientData
		return r
	}

	standardize(features)
	scorer := d.newScorer(fundSeed(d.seed, fund))
	scores := scorer.Score(features)

	threshold := formulas.Quantile(scores, 1-d.contamination)
	for i, score := range scores {
		if score > threshold {
			idx := i + offset
			r.FlaggedIdx = append(r.FlaggedIdx, idx)
			r.FlaggedDates = append(r.FlaggedDates, s.Dates[idx])
		}
	}
	sort.Ints(r.FlaggedIdx)
	r.AnomalyScore = float64(len(r.FlaggedIdx)) / float64(len(features))
	return r
}

// buildFeatures assembles one row per session with a defined daily return:
// the return itself, trailing-window volatility, traded volume, and the
// intraday range relative to close. offset maps feature row 0 back to its
// index in the fund series.
func buildFeatures(s series.FundSeries) (features [][]float64, offset int) {
	if s.Empty() {
		return nil, 0
	}

	offset = 1 // row i corresponds to series index i+1
	features = make([][]float64, len(s.Returns))
	for i := range s.Returns {
		idx := i + offset
		features[i] = []float64{
			s.Returns[i],
			s.RollingVol[idx],
			s.Volumes[idx],
			s.Ranges[idx],
		}
	}
	return features, offset
}

// standardize z-scores each feature column in place. Constant columns are
// left at zero so they carry no isolation signal.
func standardize(features [][]float64) {
	if len(features) == 0 {
		return
	}
	dims := len(features[0])
	column := make([]float64, len(features))

	for j := 0; j < dims; j++ {
		for i := range features {
			column[i] = features[i][j]
		}
		mean := formulas.Mean(column)
		std := formulas.StdDev(column)
		for i := range features {
			if std > 0 {
				features[i][j] = (features[i][j] - mean) / std
			} else {
				features[i][j] = 0
			}
		}
	}
}

// fundSeed derives a per-fund seed so each fund's forest is independent yet
// reproducible for a fixed detector seed.
func fundSeed(seed int64, fund string) int64 {
	h := fnv.New64a()
	h.Write([]byte(fund))
	return seed ^ int64(h.Sum64())
}
