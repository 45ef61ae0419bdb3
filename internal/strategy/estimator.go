// Package strategy implements the pair-trading signal engine: baseline
// estimation, z-score computation, the baseline refresh loop, and the per-tick
// evaluation that drives the ledger.
package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/quantpair/pairtrader/internal/domain"
)

// DefaultMinPoints is the minimum number of aligned observations required
// for a stable baseline.
const DefaultMinPoints = 30

// Estimator computes pair baselines from aligned historical series. It is a
// pure computation; when and how often it runs is the refresher's concern.
type Estimator struct {
	mode      domain.BaselineMode
	minPoints int
}

// NewEstimator creates an Estimator. minPoints <= 0 selects DefaultMinPoints.
func NewEstimator(mode domain.BaselineMode, minPoints int) *Estimator {
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}
	return &Estimator{mode: mode, minPoints: minPoints}
}

// Estimate aligns the two series on common timestamps (inner join), fits the
// hedge ratio, and computes the spread's mean and standard deviation over the
// aligned window. It returns ErrInsufficientData when too few points align
// and ErrDegenerateVariance when the spread has no usable variance.
func (e *Estimator) Estimate(pair domain.Pair, seriesA, seriesB domain.PriceSeries, now time.Time) (domain.PairBaseline, error) {
	a, b := alignSeries(seriesA, seriesB)
	if len(a) < e.minPoints {
		return domain.PairBaseline{}, fmt.Errorf(
			"estimator: pair %s: %d aligned points, need %d: %w",
			pair.ID(), len(a), e.minPoints, domain.ErrInsufficientData,
		)
	}

	hedgeRatio := 1.0
	if e.mode == domain.BaselineModeOLS {
		slope, ok := olsSlope(a, b)
		if !ok {
			return domain.PairBaseline{}, fmt.Errorf(
				"estimator: pair %s: regressor variance is zero: %w",
				pair.ID(), domain.ErrDegenerateVariance,
			)
		}
		hedgeRatio = slope
	}

	mean, std := spreadStats(a, b, hedgeRatio)
	if std <= 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return domain.PairBaseline{}, fmt.Errorf(
			"estimator: pair %s: spread std %g: %w",
			pair.ID(), std, domain.ErrDegenerateVariance,
		)
	}

	return domain.PairBaseline{
		PairID:     pair.ID(),
		SymbolA:    pair.SymbolA,
		SymbolB:    pair.SymbolB,
		Mode:       e.mode,
		HedgeRatio: hedgeRatio,
		SpreadMean: mean,
		SpreadStd:  std,
		Points:     len(a),
		ComputedAt: now,
	}, nil
}

// alignSeries inner-joins two ascending series on timestamp, dropping points
// present in only one of them.
func alignSeries(sa, sb domain.PriceSeries) (a, b []float64) {
	i, j := 0, 0
	for i < len(sa) && j < len(sb) {
		switch {
		case sa[i].Time.Before(sb[j].Time):
			i++
		case sb[j].Time.Before(sa[i].Time):
			j++
		default:
			a = append(a, sa[i].Price)
			b = append(b, sb[j].Price)
			i++
			j++
		}
	}
	return a, b
}

// olsSlope fits a = slope*b + intercept by ordinary least squares and returns
// the slope. ok is false when b has zero variance.
func olsSlope(a, b []float64) (slope float64, ok bool) {
	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varB float64
	for i := range a {
		db := b[i] - meanB
		cov += db * (a[i] - meanA)
		varB += db * db
	}
	if varB == 0 {
		return 0, false
	}
	return cov / varB, true
}

// spreadStats returns the mean and population standard deviation of
// a[i] - hedgeRatio*b[i] over the aligned window.
func spreadStats(a, b []float64, hedgeRatio float64) (mean, std float64) {
	n := float64(len(a))
	for i := range a {
		mean += a[i] - hedgeRatio*b[i]
	}
	mean /= n

	var variance float64
	for i := range a {
		d := (a[i] - hedgeRatio*b[i]) - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}
