// Project: Latent Health Discretization and Filtration

package discretize

import (
	"gonum.org/v1/gonum/stat/distuv"

	"latenthealth/internal/params"
)

// SurvivalForSex returns survival probabilities by age and health node for
// sex s: the standard normal CDF of the mortality probit index.
func SurvivalForSex(m params.Mortality, s int, ages []float64, grid HealthGrid) [][]float64 {
	out := make([][]float64, len(ages))
	for j, age := range ages {
		row := make([]float64, len(grid.Nodes))
		for h, x := range grid.Nodes {
			row[h] = distuv.UnitNormal.CDF(m.Index(s, age, x))
		}
		out[j] = row
	}
	return out
}
