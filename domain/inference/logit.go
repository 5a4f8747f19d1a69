package inference

import (
	"fmt"
	"math"
	"sort"

	lo "github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"roadside-stats/domain/incident"
)

const (
	logitMaxIter = 50
	logitTol     = 1e-8
	z975         = 1.959963984540054
)

// LogitTerm is one fitted coefficient with its odds ratio and Wald interval.
type LogitTerm struct {
	Name   string
	Coef   float64
	SE     float64
	OR     float64
	CILow  float64
	CIHigh float64
	P      float64
}

// Prediction is the fitted breach probability for one observation.
type Prediction struct {
	City       string
	DistanceKM float64
	Breach     int
	Prob       float64
}

// LogitResult is a fitted logistic model for the SLA-breach flag.
type LogitResult struct {
	RefCity    string
	Terms      []LogitTerm
	Preds      []Prediction
	LogLik     float64
	Converged  bool
	Iterations int
}

// FitBreachModel fits SLA_Incumplido ~ Distancia_km + C(Ciudad) by
// iteratively reweighted least squares. Response time is deliberately not a
// predictor: the breach flag is defined from it, so including it would leak
// the outcome into the model.
func FitBreachModel(incs []incident.Incident) (*LogitResult, error) {
	if len(incs) == 0 {
		return nil, fmt.Errorf("logit: no observations")
	}

	ones := lo.CountBy(incs, func(i incident.Incident) bool { return i.SLABreach == 1 })
	if ones == 0 || ones == len(incs) {
		return nil, fmt.Errorf("logit: response has no variation")
	}

	refCity := referenceCity(incs)
	cities := lo.Uniq(lo.Map(incs, func(i incident.Incident, _ int) string { return i.City }))
	sort.Strings(cities)
	dummies := lo.Filter(cities, func(c string, _ int) bool { return c != refCity })

	names := append([]string{"Intercept", "Distancia_km"},
		lo.Map(dummies, func(c string, _ int) string { return fmt.Sprintf("Ciudad[T.%s]", c) })...)
	p := len(names)
	n := len(incs)
	if n <= p {
		return nil, fmt.Errorf("logit: %d observations for %d parameters", n, p)
	}

	dummyIdx := lo.SliceToMap(dummies, func(c string) (string, int) { return c, lo.IndexOf(dummies, c) })
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i, inc := range incs {
		x.Set(i, 0, 1)
		x.Set(i, 1, inc.DistanceKM)
		if j, ok := dummyIdx[inc.City]; ok {
			x.Set(i, 2+j, 1)
		}
		y[i] = float64(inc.SLABreach)
	}

	beta := mat.NewVecDense(p, nil)
	var fisher mat.Dense
	converged := false
	iterations := 0

	eta := mat.NewVecDense(n, nil)
	mu := make([]float64, n)
	for iter := 0; iter < logitMaxIter; iter++ {
		iterations = iter + 1
		eta.MulVec(x, beta)
		wx := mat.NewDense(n, p, nil)
		wz := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			mu[i] = clampProb(sigmoid(eta.AtVec(i)))
			w := mu[i] * (1 - mu[i])
			z := eta.AtVec(i) + (y[i]-mu[i])/w
			wz.SetVec(i, w*z)
			for j := 0; j < p; j++ {
				wx.Set(i, j, w*x.At(i, j))
			}
		}

		fisher.Mul(x.T(), wx)
		var rhs mat.VecDense
		rhs.MulVec(x.T(), wz)

		next := mat.NewVecDense(p, nil)
		if err := next.SolveVec(&fisher, &rhs); err != nil {
			return nil, fmt.Errorf("logit: singular system at iteration %d: %w", iterations, err)
		}

		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if d := math.Abs(next.AtVec(j) - beta.AtVec(j)); d > maxDelta {
				maxDelta = d
			}
		}
		beta.CopyVec(next)
		if maxDelta < logitTol {
			converged = true
			break
		}
	}

	var cov mat.Dense
	if err := cov.Inverse(&fisher); err != nil {
		return nil, fmt.Errorf("logit: covariance not invertible: %w", err)
	}

	res := &LogitResult{RefCity: refCity, Converged: converged, Iterations: iterations}
	for j := 0; j < p; j++ {
		coef := beta.AtVec(j)
		se := math.Sqrt(cov.At(j, j))
		z := math.Abs(coef / se)
		res.Terms = append(res.Terms, LogitTerm{
			Name:   names[j],
			Coef:   coef,
			SE:     se,
			OR:     math.Exp(coef),
			CILow:  math.Exp(coef - z975*se),
			CIHigh: math.Exp(coef + z975*se),
			P:      2 * distuv.UnitNormal.Survival(z),
		})
	}

	eta.MulVec(x, beta)
	for i, inc := range incs {
		prob := clampProb(sigmoid(eta.AtVec(i)))
		res.LogLik += y[i]*math.Log(prob) + (1-y[i])*math.Log(1-prob)
		res.Preds = append(res.Preds, Prediction{
			City:       inc.City,
			DistanceKM: inc.DistanceKM,
			Breach:     inc.SLABreach,
			Prob:       prob,
		})
	}
	return res, nil
}

// referenceCity picks Madrid when present, else the modal city
// (alphabetical first on ties).
func referenceCity(incs []incident.Incident) string {
	counts := lo.CountValuesBy(incs, func(i incident.Incident) string { return i.City })
	if _, ok := counts["Madrid"]; ok {
		return "Madrid"
	}
	ref := ""
	best := -1
	for city, n := range counts {
		if n > best || (n == best && city < ref) {
			ref = city
			best = n
		}
	}
	return ref
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func clampProb(v float64) float64 {
	const eps = 1e-10
	return math.Min(1-eps, math.Max(eps, v))
}
