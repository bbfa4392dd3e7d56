// Project: Latent Health Discretization and Filtration

// Package filter computes the distribution of latent health and reporting
// type conditional on sex, age and a short history of categorical reports.
package filter

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"latenthealth/internal/apperr"
	"latenthealth/internal/discretize"
)

// Row is the filtration for one (sex, age, history) combination.
type Row struct {
	Sex      int
	Age      float64
	Sequence []int
	TypePrbs []float64
	Mean     float64
	Stdev    float64
	Skew     float64
	Kurt     float64
}

// Engine runs the discrete Bayesian filter over a discretization.
type Engine struct {
	res        *discretize.Result
	waveLength int
	workers    int
	log        *zap.SugaredLogger
}

// NewEngine prepares a filter over res. waveLength is the number of model
// periods between survey waves; workers <= 0 means one per CPU.
func NewEngine(res *discretize.Result, waveLength, workers int, log *zap.SugaredLogger) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{res: res, waveLength: waveLength, workers: workers, log: log}
}

// cell is one (sex, age) unit of work and everything it produced.
type cell struct {
	s, j    int
	rows    []Row
	skipped int
	err     error
}

// Run filters every history of length T at every sex and age. Rows come back
// ordered by sex, then age, then history.
func (e *Engine) Run(T int) ([]Row, error) {
	if T < 1 {
		return nil, apperr.Configf("filter", "waves to condition must be at least 1, got %d", T)
	}
	if e.waveLength < 1 {
		return nil, apperr.Configf("filter", "wave length must be at least 1, got %d", e.waveLength)
	}
	start := time.Now()
	seqs := Sequences(T, e.res.CategoryCount())
	ages := e.res.AgeCount()
	cells := discretize.Sexes * ages

	numWorkers := e.workers
	if numWorkers > cells {
		numWorkers = cells
	}

	jobs := make(chan int)
	done := make(chan cell, cells)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			done <- e.runCell(idx/ages, idx%ages, seqs)
		}
	}
	for w := 0; w < numWorkers; w++ {
		go worker()
	}
	for idx := 0; idx < cells; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(done)

	byCell := make([][]Row, cells)
	total, skipped := 0, 0
	for c := range done {
		if c.err != nil {
			return nil, c.err
		}
		byCell[c.s*ages+c.j] = c.rows
		total += len(c.rows)
		skipped += c.skipped
	}

	out := make([]Row, 0, total)
	for _, rows := range byCell {
		out = append(out, rows...)
	}
	e.log.Infow("filtered report histories",
		"waves", T,
		"sequences", len(seqs),
		"rows", len(out),
		"skipped", skipped,
		"workers", numWorkers,
		"elapsed", time.Since(start))
	return out, nil
}

func (e *Engine) runCell(s, j int, seqs [][]int) cell {
	c := cell{s: s, j: j, rows: make([]Row, 0, len(seqs))}
	for _, seq := range seqs {
		row, ok, err := e.Filter(s, j, seq)
		if err != nil {
			c.err = err
			return c
		}
		if !ok {
			c.skipped++
			continue
		}
		c.rows = append(c.rows, row)
	}
	if c.skipped > 0 {
		e.log.Debugw("skipped histories that start before the first model age",
			"sex", s, "age", e.res.Ages[j], "skipped", c.skipped)
	}
	return c
}

// Filter conditions on one history ending at age index j for sex s. The
// second return is false when the history's first report would fall before
// the first model age; such histories are not errors.
func (e *Engine) Filter(s, j int, seq []int) (Row, bool, error) {
	r := e.res
	sp := spanOf(seq, e.waveLength)
	j0 := j - sp.periods
	if j0 < 0 {
		return Row{}, false, nil
	}

	state := NewExpandedState(r, s, j0)
	untilWave := 0
	z := sp.leadingMissing
	for t := 0; t <= sp.periods; t++ {
		if untilWave == 0 {
			report := Missing
			if z < len(seq) {
				report = seq[z]
			}
			if report != Missing {
				if report < 1 || report > r.CategoryCount() {
					return Row{}, false, apperr.Configf("filter", "report %d outside categories 1..%d", report, r.CategoryCount())
				}
				if err := state.Observe(r, report-1); err != nil {
					return Row{}, false, e.wrap(err, s, j, seq)
				}
			}
			z++
			untilWave = e.waveLength
		}
		if t < sp.periods {
			if err := state.Survive(r, s, j0+t); err != nil {
				return Row{}, false, e.wrap(err, s, j, seq)
			}
			if err := state.Advance(r, s, j0+t); err != nil {
				return Row{}, false, e.wrap(err, s, j, seq)
			}
		}
		untilWave--
	}

	row := Row{
		Sex:      s,
		Age:      r.Ages[j],
		Sequence: append([]int(nil), seq...),
		TypePrbs: state.TypeMarginal(),
	}
	row.Mean, row.Stdev, row.Skew, row.Kurt = Moments(r.Grid.Nodes, state.HealthMarginal())
	return row, true, nil
}

func (e *Engine) wrap(err error, s, j int, seq []int) error {
	return fmt.Errorf("sex %d age %v history %v: %w", s, e.res.Ages[j], seq, err)
}

// Moments returns the mean, standard deviation, skewness and kurtosis of
// the discrete distribution w over x. A point mass has zero skewness and
// kurtosis.
func Moments(x, w []float64) (mean, stdev, skew, kurt float64) {
	mean = floats.Dot(x, w)
	var m2, m3, m4 float64
	for i, xi := range x {
		d := xi - mean
		d2 := d * d
		m2 += w[i] * d2
		m3 += w[i] * d2 * d
		m4 += w[i] * d2 * d2
	}
	stdev = math.Sqrt(m2)
	if m2 == 0 {
		return mean, 0, 0, 0
	}
	skew = m3 / (stdev * stdev * stdev)
	kurt = m4 / (m2 * m2)
	return mean, stdev, skew, kurt
}
