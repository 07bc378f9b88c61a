package model

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"carbmine/internal/types"
)

// FitOptions controls Fit. The zero value is not useful; start from
// DefaultFitOptions.
type FitOptions struct {
	TestFraction float64
	Seed         uint64
	// Ridge is the L2 penalty on standardized coefficients. A small value
	// keeps the normal equations solvable when a feature is constant.
	Ridge float64
}

// DefaultFitOptions is an 80/20 split with a fixed seed.
func DefaultFitOptions() FitOptions {
	return FitOptions{TestFraction: 0.2, Seed: 42, Ridge: 1e-8}
}

// ErrNoTarget is returned when a training record has no target value.
var ErrNoTarget = errors.New("training record has no target value")

// Fit trains a LinearModel on records, holding out a deterministic test
// split for scoring. With fewer than five records every record is used for
// both fitting and scoring.
func Fit(records []types.HistoricalRecord, opts FitOptions) (*LinearModel, error) {
	if len(records) < 2 {
		return nil, errors.New("need at least 2 records to fit")
	}
	for _, r := range records {
		if r.TotalEmissionsTCO2e == nil {
			return nil, ErrNoTarget
		}
	}

	train, test := split(records, opts)

	m, err := fitLeastSquares(train, opts.Ridge)
	if err != nil {
		return nil, err
	}
	metrics := score(m, test)
	metrics.TrainRows = len(train)
	metrics.TestRows = len(test)
	m.Metrics = &metrics
	m.TrainedAt = time.Now().UTC()
	return m, nil
}

func split(records []types.HistoricalRecord, opts FitOptions) (train, test []types.HistoricalRecord) {
	nTest := int(math.Round(float64(len(records)) * opts.TestFraction))
	if len(records) < 5 || nTest == 0 {
		return records, records
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	for n, i := range idx {
		if n < nTest {
			test = append(test, records[i])
		} else {
			train = append(train, records[i])
		}
	}
	return train, test
}

// fitLeastSquares solves the ridge normal equations on standardized
// features, then maps coefficients back to raw units.
func fitLeastSquares(records []types.HistoricalRecord, ridge float64) (*LinearModel, error) {
	n := len(records)
	p := len(types.FeatureColumns)

	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	y := make([]float64, n)
	for i, r := range records {
		for j, v := range r.Features() {
			cols[j][i] = v
		}
		y[i] = *r.TotalEmissionsTCO2e
	}

	means := make([]float64, p)
	scales := make([]float64, p)
	x := mat.NewDense(n, p, nil)
	for j, c := range cols {
		mean, sd := stat.MeanStdDev(c, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		means[j], scales[j] = mean, sd
		for i, v := range c {
			x.Set(i, j, (v-mean)/sd)
		}
	}
	yMean := stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, x.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+ridge*float64(n))
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.New("normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, err
	}

	m := &LinearModel{
		Coefficients: make([]float64, p),
		Features:     append([]string(nil), types.FeatureColumns...),
		Intercept:    yMean,
	}
	for j := 0; j < p; j++ {
		m.Coefficients[j] = beta.AtVec(j) / scales[j]
		m.Intercept -= m.Coefficients[j] * means[j]
	}
	return m, nil
}

func score(m *LinearModel, records []types.HistoricalRecord) Metrics {
	y := make([]float64, len(records))
	pred := make([]float64, len(records))
	for i, r := range records {
		y[i] = *r.TotalEmissionsTCO2e
		yi := m.Intercept
		for j, v := range r.Features() {
			yi += m.Coefficients[j] * v
		}
		pred[i] = yi
	}

	resid := floats.Distance(y, pred, 2)
	r2 := stat.RSquaredFrom(pred, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		// Constant target: R² is undefined, so report a perfect or a
		// worthless fit.
		r2 = 0
		if resid == 0 {
			r2 = 1
		}
	}
	return Metrics{R2: r2, RMSE: resid / math.Sqrt(float64(len(y)))}
}
