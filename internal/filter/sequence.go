// Project: Latent Health Discretization and Filtration

package filter

import (
	"gonum.org/v1/gonum/stat/combin"
)

// Missing marks a wave with no report.
const Missing = -1

// Sequences enumerates every report history of length T over categories
// 1..categories plus Missing, in lexicographic order with the most recent
// wave varying fastest.
func Sequences(T, categories int) [][]int {
	if T <= 0 {
		return [][]int{{}}
	}
	lens := make([]int, T)
	for i := range lens {
		lens[i] = categories + 1
	}
	seqs := combin.Cartesian(lens)
	for _, seq := range seqs {
		for i, v := range seq {
			if v == 0 {
				seq[i] = Missing
			}
		}
	}
	return seqs
}

// span describes how a history maps onto model periods.
type span struct {
	leadingMissing int // waves before the first report
	periods        int // model periods between the first report and the last wave
}

func spanOf(seq []int, waveLength int) span {
	var sp span
	for sp.leadingMissing < len(seq) && seq[sp.leadingMissing] == Missing {
		sp.leadingMissing++
	}
	if observed := len(seq) - sp.leadingMissing; observed > 1 {
		sp.periods = (observed - 1) * waveLength
	}
	return sp
}
