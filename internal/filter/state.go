// Project: Latent Health Discretization and Filtration

package filter

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"latenthealth/internal/apperr"
	"latenthealth/internal/discretize"
)

// ExpandedState is a joint distribution over (reporting type, health node),
// stored as a TypeCount x NodeCount matrix. Type never changes over a life,
// so each row evolves through the same health transition on its own.
type ExpandedState struct {
	p    *mat.Dense
	next *mat.Dense
}

// NewExpandedState seeds the state with the unconditional health
// distribution at age j for sex s, split across types by population share.
func NewExpandedState(r *discretize.Result, s, j int) *ExpandedState {
	types, n := r.TypeCount(), r.NodeCount()
	p := mat.NewDense(types, n, nil)
	for k := 0; k < types; k++ {
		floats.ScaleTo(p.RawRowView(k), r.TypePrbs[k], r.Initial[s][j])
	}
	return &ExpandedState{p: p, next: mat.NewDense(types, n, nil)}
}

// Observe applies Bayes' rule for a report in category c (0-based).
func (e *ExpandedState) Observe(r *discretize.Result, c int) error {
	types, _ := e.p.Dims()
	for k := 0; k < types; k++ {
		floats.Mul(e.p.RawRowView(k), r.Emission[k].RawRowView(c))
	}
	return e.normalize(fmt.Sprintf("observe category %d", c+1))
}

// Survive conditions on surviving age j.
func (e *ExpandedState) Survive(r *discretize.Result, s, j int) error {
	types, _ := e.p.Dims()
	for k := 0; k < types; k++ {
		floats.Mul(e.p.RawRowView(k), r.Survival[s][j])
	}
	return e.normalize(fmt.Sprintf("survive age index %d", j))
}

// Advance pushes every type's health distribution one period forward.
func (e *ExpandedState) Advance(r *discretize.Result, s, j int) error {
	e.next.Mul(e.p, r.Transition[s][j])
	e.p, e.next = e.next, e.p
	return e.normalize(fmt.Sprintf("transition age index %d", j))
}

// HealthMarginal sums the joint distribution over reporting types.
func (e *ExpandedState) HealthMarginal() []float64 {
	types, n := e.p.Dims()
	out := make([]float64, n)
	for k := 0; k < types; k++ {
		floats.Add(out, e.p.RawRowView(k))
	}
	return out
}

// TypeMarginal sums the joint distribution over health nodes.
func (e *ExpandedState) TypeMarginal() []float64 {
	types, _ := e.p.Dims()
	out := make([]float64, types)
	for k := range out {
		out[k] = floats.Sum(e.p.RawRowView(k))
	}
	return out
}

func (e *ExpandedState) normalize(op string) error {
	raw := e.p.RawMatrix().Data
	sum := floats.Sum(raw)
	if !(sum > 0) {
		return apperr.Domainf(op, "posterior has total mass %v", sum)
	}
	floats.Scale(1/sum, raw)
	return nil
}
