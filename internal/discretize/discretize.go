// Project: Latent Health Discretization and Filtration

// Package discretize turns a ParameterSet into a finite Markov chain over a
// grid of latent health values, with survival and report probabilities.
package discretize

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"latenthealth/internal/apperr"
	"latenthealth/internal/config"
	"latenthealth/internal/params"
)

// Sexes is the number of sexes every array is indexed by (0 female, 1 male).
const Sexes = 2

// HealthGrid is NodeCount equally spaced midpoints of equal-width bins. The
// bins' edges are Cuts; the outer two are treated as -Inf and +Inf wherever
// probability mass is assigned to a bin.
type HealthGrid struct {
	Nodes []float64
	Cuts  []float64
}

// NewHealthGrid splits [xMin, xMax] into n equal bins.
func NewHealthGrid(xMin, xMax float64, n int) HealthGrid {
	cuts := floats.Span(make([]float64, n+1), xMin, xMax)
	nodes := make([]float64, n)
	for i := range nodes {
		nodes[i] = (cuts[i] + cuts[i+1]) / 2.
	}
	return HealthGrid{Nodes: nodes, Cuts: cuts}
}

// GridFromNodes rebuilds a grid from its midpoints, assuming equal spacing.
func GridFromNodes(nodes []float64) HealthGrid {
	n := len(nodes)
	if n < 2 {
		return HealthGrid{Nodes: nodes, Cuts: []float64{math.Inf(-1), math.Inf(1)}}
	}
	half := (nodes[1] - nodes[0]) / 2.
	return NewHealthGrid(nodes[0]-half, nodes[n-1]+half, n)
}

// Ages lists the model ages from ageMin to ageMax inclusive in steps of ageIncr.
func Ages(ageMin, ageMax, ageIncr float64) []float64 {
	n := int(math.Round((ageMax-ageMin)/ageIncr)) + 1
	if n < 2 {
		return []float64{ageMin}
	}
	return floats.Span(make([]float64, n), ageMin, ageMin+float64(n-1)*ageIncr)
}

// Result holds the four probability arrays of one discretization. Nothing
// mutates them after Build returns.
type Result struct {
	Grid           HealthGrid
	Ages           []float64
	CategoryCounts []int
	TypePrbs       []float64
	ReportStds     []float64

	// Survival[s][j][h]: probability of surviving age j at health node h.
	Survival [Sexes][][]float64
	// Transition[s][j]: NodeCount x NodeCount, row = current node.
	Transition [Sexes][]*mat.Dense
	// Emission[k]: CategoryCount x NodeCount for reporting type k.
	Emission []*mat.Dense
	// Initial[s][j][h]: health distribution at the start of age j among survivors.
	Initial [Sexes][][]float64
}

func (r *Result) NodeCount() int { return len(r.Grid.Nodes) }
func (r *Result) AgeCount() int  { return len(r.Ages) }
func (r *Result) TypeCount() int { return len(r.Emission) }

// CategoryCount is the number of report categories across all measures.
func (r *Result) CategoryCount() int {
	if len(r.Emission) == 0 {
		return 0
	}
	rows, _ := r.Emission[0].Dims()
	return rows
}

// Build computes the survival, transition and emission arrays concurrently,
// then propagates the initial distribution through them.
func Build(d *config.Discretization, ps *params.ParameterSet, log *zap.SugaredLogger) (*Result, error) {
	start := time.Now()
	grid := NewHealthGrid(d.XMin, d.XMax, d.NodeCount)
	ages := Ages(ps.AgeMin, ps.AgeMax, ps.AgeIncr)

	res := &Result{
		Grid:           grid,
		Ages:           ages,
		CategoryCounts: append([]int(nil), d.Spec.CategoryCounts...),
		TypePrbs:       ps.Reporting.TypePrbs,
		ReportStds:     ps.Reporting.Stds,
	}

	var g errgroup.Group
	for s := 0; s < Sexes; s++ {
		s := s
		g.Go(func() error {
			res.Survival[s] = SurvivalForSex(ps.Mortality, s, ages, grid)
			return nil
		})
		g.Go(func() error {
			trans, err := TransitionForSex(ps.Dynamics, ps.Shocks, s, ages, grid)
			if err != nil {
				return fmt.Errorf("transition array for sex %d: %w", s, err)
			}
			res.Transition[s] = trans
			return nil
		})
	}
	g.Go(func() error {
		res.Emission = EmissionArray(ps.Reporting, d.Spec.CategoryCounts, grid)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	initial, err := InitialDistribution(res.Survival, res.Transition, grid, ps.InitMean, ps.InitStd)
	if err != nil {
		return nil, err
	}
	res.Initial = initial

	log.Infow("built discretization",
		"nodes", res.NodeCount(),
		"ages", res.AgeCount(),
		"categories", res.CategoryCount(),
		"types", res.TypeCount(),
		"elapsed", time.Since(start))
	return res, nil
}

// normalize scales x to sum to one, failing when there is no mass to scale.
func normalize(x []float64, op string) error {
	sum := floats.Sum(x)
	if !(sum > 0) {
		return apperr.Domainf(op, "probability vector has total mass %v", sum)
	}
	floats.Scale(1/sum, x)
	return nil
}
