// Project: Latent Health Discretization and Filtration

package discretize

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"latenthealth/internal/params"
)

// EmissionArray returns, for each reporting type, a CategoryCount x NodeCount
// matrix with the probability of each categorical report given latent health.
// Categories of all measures are stacked in order. The first measure uses
// the type's own error std; the others use a unit std for every type.
func EmissionArray(rep params.Reporting, categoryCounts []int, grid HealthGrid) []*mat.Dense {
	total := 0
	for _, c := range categoryCounts {
		total += c
	}
	types := len(rep.Stds)
	out := make([]*mat.Dense, types)
	for k := range out {
		out[k] = mat.NewDense(total, len(grid.Nodes), nil)
	}

	pos := 0
	for m, count := range categoryCounts {
		// -Inf, 0, cumulative widths..., +Inf
		edges := append([]float64{math.Inf(-1)}, rep.Cuts(m)...)
		edges = append(edges, math.Inf(1))

		for h, x := range grid.Nodes {
			y := rep.Constants[m] + rep.Coeffs[m]*x
			for k := 0; k < types; k++ {
				std := 1.0
				if m == 0 {
					std = rep.Stds[k]
				}
				for c := 0; c < count; c++ {
					p := distuv.UnitNormal.CDF((edges[c+1]-y)/std) - distuv.UnitNormal.CDF((edges[c]-y)/std)
					out[k].Set(pos+c, h, p)
				}
			}
		}
		pos += count
	}
	return out
}
