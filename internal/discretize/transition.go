// Project: Latent Health Discretization and Filtration

package discretize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"latenthealth/internal/params"
)

// tailSwitch is the standardized distance above a bin's lower edge past
// which bin mass is taken from survival functions instead of CDFs.
const tailSwitch = 4.0

// TransitionForSex returns one NodeCount x NodeCount transition matrix per
// age for sex s. Row i is the distribution of next period health for a
// respondent now at node i.
//
// Next health is rho*x + (1-rho)*baseline plus a mixed normal shock. Mass
// is assigned to bins whose outer edges extend to -Inf and +Inf.
func TransitionForSex(dyn params.Dynamics, shocks params.Shocks, s int, ages []float64, grid HealthGrid) ([]*mat.Dense, error) {
	n := len(grid.Nodes)
	edges := openEdges(grid.Cuts)

	out := make([]*mat.Dense, len(ages))
	comp := make([]float64, n)
	for j, age := range ages {
		rho := dyn.Persistence(age)
		base := dyn.Baseline(s, age)
		trans := mat.NewDense(n, n, nil)

		for i, x := range grid.Nodes {
			expected := rho*x + (1.-rho)*base
			row := trans.RawRowView(i)

			for c := range shocks.Prbs {
				binMasses(comp, edges, expected+shocks.Avgs[c], shocks.Stds[c])
				if err := normalize(comp, fmt.Sprintf("transition age %v node %d shock %d", age, i, c)); err != nil {
					return nil, err
				}
				for h := range row {
					row[h] += shocks.Prbs[c] * comp[h]
				}
			}
			if err := normalize(row, fmt.Sprintf("transition age %v node %d", age, i)); err != nil {
				return nil, err
			}
		}
		out[j] = trans
	}
	return out, nil
}

// binMasses fills dst with the normal(mean, std) mass of each bin between
// consecutive edges. Bins far in the right tail use survival differences so
// two CDF values near 1 are never subtracted.
func binMasses(dst, edges []float64, mean, std float64) {
	for h := range dst {
		lo := (edges[h] - mean) / std
		hi := (edges[h+1] - mean) / std
		if lo < tailSwitch {
			dst[h] = distuv.UnitNormal.CDF(hi) - distuv.UnitNormal.CDF(lo)
		} else {
			dst[h] = distuv.UnitNormal.Survival(lo) - distuv.UnitNormal.Survival(hi)
		}
	}
}

// openEdges copies cuts with the outer two replaced by -Inf and +Inf.
func openEdges(cuts []float64) []float64 {
	edges := append([]float64(nil), cuts...)
	edges[0] = math.Inf(-1)
	edges[len(edges)-1] = math.Inf(1)
	return edges
}
