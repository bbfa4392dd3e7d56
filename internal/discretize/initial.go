// Project: Latent Health Discretization and Filtration

package discretize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// tailClip bounds the standardized outer edges of the starting distribution.
const tailClip = 20.

// StartingDistribution discretizes normal(mean, std) onto the grid's bins.
func StartingDistribution(grid HealthGrid, mean, std float64) ([]float64, error) {
	n := len(grid.Nodes)
	cdf := make([]float64, n+1)
	for i, cut := range grid.Cuts {
		z := (cut - mean) / std
		switch i {
		case 0:
			z = -tailClip
		case n:
			z = tailClip
		}
		cdf[i] = distuv.UnitNormal.CDF(z)
	}
	dstn := make([]float64, n)
	for h := range dstn {
		dstn[h] = cdf[h+1] - cdf[h]
	}
	if err := normalize(dstn, "starting health distribution"); err != nil {
		return nil, err
	}
	return dstn, nil
}

// InitialDistribution pushes the starting distribution forward through every
// age. Element j is the distribution at the start of age j among those alive
// then: survival and one transition are applied after it is recorded.
func InitialDistribution(surv [Sexes][][]float64, trans [Sexes][]*mat.Dense, grid HealthGrid, mean, std float64) ([Sexes][][]float64, error) {
	var out [Sexes][][]float64
	start, err := StartingDistribution(grid, mean, std)
	if err != nil {
		return out, err
	}

	n := len(grid.Nodes)
	for s := 0; s < Sexes; s++ {
		ages := len(surv[s])
		out[s] = make([][]float64, ages)
		now := mat.NewVecDense(n, append([]float64(nil), start...))
		next := mat.NewVecDense(n, nil)

		for j := 0; j < ages; j++ {
			out[s][j] = append([]float64(nil), now.RawVector().Data...)

			alive := now.RawVector().Data
			for h := range alive {
				alive[h] *= surv[s][j][h]
			}
			if err := normalize(alive, fmt.Sprintf("initial distribution sex %d age %d survival", s, j)); err != nil {
				return out, err
			}

			next.MulVec(trans[s][j].T(), now)
			if err := normalize(next.RawVector().Data, fmt.Sprintf("initial distribution sex %d age %d transition", s, j)); err != nil {
				return out, err
			}
			now, next = next, now
		}
	}
	return out, nil
}
