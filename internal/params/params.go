// Project: Latent Health Discretization and Filtration

// Package params maps a flat structural parameter vector onto the named
// coefficients used to build the discretized latent health process.
package params

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"latenthealth/internal/apperr"
	"latenthealth/internal/config"
)

// Fixed positions in the structural parameter vector. Everything after
// firstMixture depends on the specification.
const (
	iMort0         = 0
	iMortSex       = 1
	iMortHealth    = 2 // 2..5
	iMortAge       = 6 // 6..9
	iMortHealthAge = 10
	iMortSexAge    = 11
	iCorr0         = 12 // 12..16
	iHealth0       = 17
	iHealthSex     = 18
	iHealthAge     = 19 // 19..22
	iHealthAgeSex  = 23
	iInitMean      = 24
	iInitStd       = 25
	firstMixture   = 26
)

// Mortality holds the probit index for survival: a quartic in health, a
// quartic in age, a sex shifter and two interactions.
type Mortality struct {
	Health    Poly // Health[0] is always zero, the constant lives in Age[0]
	Age       Poly
	Sex       float64
	HealthAge float64
	SexAge    float64
}

// Index is the survival probit index for sex s (0 or 1), age and health x.
func (m Mortality) Index(s int, age, x float64) float64 {
	sex := float64(s)
	return m.Age.At(age) + m.Health.At(x) + m.Sex*sex + m.HealthAge*age*x + m.SexAge*sex*age
}

// Dynamics holds the age-varying persistence of health and the level it
// reverts toward.
type Dynamics struct {
	Corr   Poly // logit of the autocorrelation, quartic in age
	Level  Poly // baseline health, quartic in age
	Sex    float64
	AgeSex float64
}

// Persistence is the autocorrelation at age, bounded to (0,1).
func (d Dynamics) Persistence(age float64) float64 {
	return 1. / (1. + math.Exp(-d.Corr.At(age)))
}

// Baseline is the level that health reverts toward at age for sex s.
func (d Dynamics) Baseline(s int, age float64) float64 {
	sex := float64(s)
	return d.Level.At(age) + d.Sex*sex + d.AgeSex*sex*age
}

// Shocks is a (possibly single component) normal mixture for the health
// innovation, normalized to mean 0 and variance 1.
type Shocks struct {
	Avgs []float64
	Stds []float64
	Prbs []float64
}

// Reporting describes the categorical report measures and the unobserved
// reporting types.
type Reporting struct {
	Constants []float64   // per measure; the first is pinned at 0
	Coeffs    []float64   // per measure
	CutWidths [][]float64 // per measure, category_count-2 positive widths above the cut at 0
	Stds      []float64   // per reporting type, error std on the primary measure
	TypePrbs  []float64   // per reporting type, population share
}

// Cuts returns the interior cut points of measure m: 0 followed by the
// running sum of the widths.
func (r Reporting) Cuts(m int) []float64 {
	cuts := make([]float64, len(r.CutWidths[m])+1)
	floats.CumSum(cuts[1:], r.CutWidths[m])
	return cuts
}

// ParameterSet is the named form of a structural parameter vector.
type ParameterSet struct {
	AgeMin, AgeMax, AgeIncr float64

	Mortality Mortality
	Dynamics  Dynamics
	Shocks    Shocks
	Reporting Reporting

	InitMean float64
	InitStd  float64

	raw    []float64
	taylor taylorForms
}

type taylorForms struct {
	mortHealth, mortAge, corr, healthAge []float64
}

// Transform converts vec into a ParameterSet under spec. The vector length
// must match spec.ParamCount().
func Transform(spec *config.Specification, vec []float64) (*ParameterSet, error) {
	if len(vec) != spec.ParamCount() {
		return nil, apperr.Configf("transform parameters",
			"parameter vector has %d entries, specification %s requires %d", len(vec), spec.Name, spec.ParamCount())
	}

	// Taylor coefficients are stored scaled by powers of ten
	tf := taylorForms{
		mortHealth: []float64{0., vec[iMortHealth] * 1e-1, vec[iMortHealth+1] * 1e-2, vec[iMortHealth+2] * 1e-3, vec[iMortHealth+3] * 1e-4},
		mortAge:    []float64{vec[iMort0], vec[iMortAge] * 1e-2, vec[iMortAge+1] * 1e-4, vec[iMortAge+2] * 1e-6, vec[iMortAge+3] * 1e-8},
		corr:       []float64{vec[iCorr0], vec[iCorr0+1] * 1e-2, vec[iCorr0+2] * 1e-4, vec[iCorr0+3] * 1e-6, vec[iCorr0+4] * 1e-8},
		healthAge:  []float64{vec[iHealth0], vec[iHealthAge] * 1e-1, vec[iHealthAge+1] * 1e-2, vec[iHealthAge+2] * 1e-3, vec[iHealthAge+3] * 1e-4},
	}

	ps := &ParameterSet{
		AgeMin:  spec.AgeMin,
		AgeMax:  spec.AgeMax,
		AgeIncr: spec.AgeIncr,
		Mortality: Mortality{
			Health:    TaylorToPoly(tf.mortHealth, 0.),
			Age:       TaylorToPoly(tf.mortAge, spec.AgeMin),
			Sex:       vec[iMortSex],
			HealthAge: vec[iMortHealthAge] * 1e-4,
			SexAge:    vec[iMortSexAge] * 1e-3,
		},
		Dynamics: Dynamics{
			Corr:   TaylorToPoly(tf.corr, spec.AgeMin),
			Level:  TaylorToPoly(tf.healthAge, spec.AgeMin),
			Sex:    vec[iHealthSex],
			AgeSex: vec[iHealthAgeSex] * 1e-3,
		},
		InitMean: vec[iInitMean],
		InitStd:  vec[iInitStd],
		raw:      append([]float64(nil), vec...),
		taylor:   tf,
	}

	a := firstMixture
	if spec.MixedHealthShocks {
		shocks, err := MixedShocks(vec[a], vec[a+1], vec[a+2])
		if err != nil {
			return nil, err
		}
		ps.Shocks = shocks
		a += 3
	} else {
		ps.Shocks = Shocks{Avgs: []float64{0}, Stds: []float64{1}, Prbs: []float64{1}}
	}

	K := spec.ReportTypeCount
	M := spec.MeasureCount
	b := a + K - 1
	c := b + K - 1
	d := c + M - 1
	e := d + M

	if K > 1 {
		stds, prbs, err := ReportingTypes(vec[a:b], vec[b:c])
		if err != nil {
			return nil, err
		}
		ps.Reporting.Stds, ps.Reporting.TypePrbs = stds, prbs
	} else {
		ps.Reporting.Stds, ps.Reporting.TypePrbs = []float64{1}, []float64{1}
	}

	ps.Reporting.Constants = append([]float64{0}, vec[c:d]...)
	ps.Reporting.Coeffs = append([]float64(nil), vec[d:e]...)
	ps.Reporting.CutWidths = make([][]float64, M)
	pos := e
	for m := 0; m < M; m++ {
		n := spec.CategoryCounts[m] - 2
		ps.Reporting.CutWidths[m] = append([]float64(nil), vec[pos:pos+n]...)
		pos += n
	}
	return ps, nil
}

// MixedShocks builds a two component normal mixture from a free mean and
// log std for component 2 and the logit of its weight. Component 1 is solved
// so that the mixture has mean 0 and variance 1.
func MixedShocks(avg2, logStd2, logit2 float64) (Shocks, error) {
	prbs := []float64{0, logit2}
	softmax(prbs)
	if prbs[0] <= 0 {
		return Shocks{}, apperr.Domainf("mixed health shocks",
			"component 1 has zero weight (logit %v)", logit2)
	}

	avgs := make([]float64, 2)
	stds := make([]float64, 2)
	avgs[1] = avg2
	avgs[0] = -prbs[1] * avgs[1] / prbs[0]
	stds[1] = math.Exp(logStd2)

	radicand := (1. - prbs[0]*avgs[0]*avgs[0] - prbs[1]*(stds[1]*stds[1]+avgs[1]*avgs[1])) / prbs[0]
	if radicand <= 0 {
		return Shocks{}, apperr.Domainf("mixed health shocks",
			"component 1 variance solved to %v; component 2 (mean %v, std %v, weight %v) carries more than unit variance",
			radicand, avgs[1], stds[1], prbs[1])
	}
	stds[0] = math.Sqrt(radicand)
	return Shocks{Avgs: avgs, Stds: stds, Prbs: prbs}, nil
}

// ReportingTypes builds type shares from a multinomial logit with type 1 as
// the reference, and per-type error stds with type 1's variance solved so
// the population average variance is 1.
func ReportingTypes(logStds, logits []float64) (stds, prbs []float64, err error) {
	K := len(logits) + 1
	prbs = make([]float64, K)
	copy(prbs[1:], logits)
	softmax(prbs)

	vars := make([]float64, K)
	for k := 1; k < K; k++ {
		vars[k] = math.Exp(2 * logStds[k-1])
	}
	vars[0] = (1. - floats.Dot(vars[1:], prbs[1:])) / prbs[0]
	if vars[0] <= 0 {
		return nil, nil, apperr.Domainf("reporting types",
			"type 1 reporting variance solved to %v; types 2..%d (shares %v, stds %v) carry more than unit average variance",
			vars[0], K, prbs[1:], sqrtAll(vars[1:]))
	}
	return sqrtAll(vars), prbs, nil
}

// Structural returns the parameters in interpretable units: rescaled Taylor
// values, mixture moments, type stds and shares, and cumulative cut points
// in place of widths. This is the layout used for standard errors.
func (ps *ParameterSet) Structural() []float64 {
	v := ps.raw
	out := make([]float64, 0, 64)
	out = append(out, v[iMort0], v[iMortSex])
	out = append(out, ps.taylor.mortHealth[1:]...)
	out = append(out, ps.taylor.mortAge[1:]...)
	out = append(out, v[iMortHealthAge]*1e-4, v[iMortSexAge]*1e-3)
	out = append(out, ps.taylor.corr...)
	out = append(out, v[iHealth0], v[iHealthSex])
	out = append(out, ps.taylor.healthAge[1:]...)
	out = append(out, v[iHealthAgeSex]*1e-3)
	out = append(out, ps.Shocks.Avgs...)
	out = append(out, ps.Shocks.Stds...)
	out = append(out, ps.Shocks.Prbs...)
	out = append(out, ps.InitMean, ps.InitStd)
	out = append(out, ps.Reporting.Stds...)
	out = append(out, ps.Reporting.TypePrbs...)
	out = append(out, ps.Reporting.Constants...)
	out = append(out, ps.Reporting.Coeffs...)
	for m := range ps.Reporting.CutWidths {
		out = append(out, ps.Reporting.Cuts(m)[1:]...)
	}
	return out
}

// softmax replaces x with exp(x)/sum(exp(x)).
func softmax(x []float64) {
	mx := floats.Max(x)
	for i := range x {
		x[i] = math.Exp(x[i] - mx)
	}
	floats.Scale(1/floats.Sum(x), x)
}

func sqrtAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Sqrt(v)
	}
	return out
}
