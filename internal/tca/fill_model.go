package tca

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"

	"credit-tca/internal/domain"
)

var errNonFiniteFit = errors.New("fit produced non-finite coefficients")

// probability returns the fill probability for a relative size and alignment.
func (f *FittedFillModel) probability(relSize, alignment float64) float64 {
	p := sigmoid(f.Intercept - f.SizeCoef*relSize - f.AlignmentCoef*alignment)
	return math.Min(1, math.Max(0, p))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1 + e^z) without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

type fillSample struct {
	relSize   float64
	alignment float64
	filled    float64
}

// fitFillModel fits an L2-regularized logistic regression of Filled on
// (1, relSize, alignment). The optimizer works on w = (b0, -b1, -b2) and the
// slopes are floored at 0 afterwards so probability never increases with size.
func fitFillModel(rows []*domain.MarketSnapshot, p Params) (FittedFillModel, error) {
	model := FittedFillModel{
		Intercept:     p.DefaultFillIntercept,
		SizeCoef:      p.DefaultFillSizeCoef,
		AlignmentCoef: p.DefaultFillAlignmentCoef,
	}

	var samples []fillSample
	for _, r := range rows {
		if !r.HasFillOutcome() {
			continue
		}
		s := fillSample{
			relSize:   *r.TradeSize / r.AvailableSize,
			alignment: r.Alignment(),
		}
		if *r.Filled {
			s.filled = 1
		}
		samples = append(samples, s)
	}
	model.OutcomeRows = len(samples)
	if len(samples) < p.MinOutcomeRows {
		return model, nil
	}

	n := float64(len(samples))
	lambda := p.FillRegularization

	loss := func(w []float64) float64 {
		total := 0.0
		for _, s := range samples {
			z := w[0] + w[1]*s.relSize + w[2]*s.alignment
			total += softplus(z) - s.filled*z
		}
		return total/n + lambda/2*(w[1]*w[1]+w[2]*w[2])
	}

	problem := optimize.Problem{
		Func: loss,
		Grad: func(grad, w []float64) {
			grad[0], grad[1], grad[2] = 0, 0, 0
			for _, s := range samples {
				z := w[0] + w[1]*s.relSize + w[2]*s.alignment
				r := sigmoid(z) - s.filled
				grad[0] += r
				grad[1] += r * s.relSize
				grad[2] += r * s.alignment
			}
			grad[0] /= n
			grad[1] = grad[1]/n + lambda*w[1]
			grad[2] = grad[2]/n + lambda*w[2]
		},
	}

	initial := []float64{0, 0, 0}
	settings := &optimize.Settings{
		GradientThreshold: 1e-8,
		MajorIterations:   500,
	}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if result == nil {
		return model, err
	}
	w := result.X
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model, errNonFiniteFit
		}
	}
	// Accept a partially converged optimum as long as it improved on the start.
	if err != nil && loss(w) >= loss(initial) {
		return model, err
	}

	model.Intercept = w[0]
	model.SizeCoef = math.Max(0, -w[1])
	model.AlignmentCoef = math.Max(0, -w[2])
	model.Fitted = true
	return model, nil
}
