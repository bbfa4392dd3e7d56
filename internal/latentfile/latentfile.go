// Project: Latent Health Discretization and Filtration

// Package latentfile reads and writes the binary discretization file used by
// other projects that need an exogenous latent health process.
//
// Layout, all doubles big-endian:
//
//	node_count, age_count, category_count, type_count   1 byte each
//	health grid                                          node_count
//	survival        [sex][age][node]                     2*age_count*node_count
//	transition      [sex][age][from][to]                 2*age_count*node_count^2
//	report          [type][category][node]               type_count*category_count*node_count
//	initial health  [sex][age][node]                     2*age_count*node_count
package latentfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"latenthealth/internal/apperr"
	"latenthealth/internal/discretize"
	"latenthealth/internal/fileutil"
)

// Process is the content of a discretization file.
type Process struct {
	NodeCount     int
	AgeCount      int
	CategoryCount int
	TypeCount     int

	HealthGrid        []float64
	LivPrbArray       [discretize.Sexes][][]float64
	TransPrbArray     [discretize.Sexes][]*mat.Dense
	ReportPrbArray    []*mat.Dense
	InitialHealthDstn [discretize.Sexes][][]float64
}

// Write encodes r in the discretization file layout. It fails before writing
// anything if a size does not fit in one byte.
func Write(w io.Writer, r *discretize.Result) error {
	sizes := []struct {
		name string
		n    int
	}{
		{"node count", r.NodeCount()},
		{"age count", r.AgeCount()},
		{"category count", r.CategoryCount()},
		{"type count", r.TypeCount()},
	}
	header := make([]byte, len(sizes))
	for i, sz := range sizes {
		if sz.n < 0 || sz.n > math.MaxUint8 {
			return apperr.Configf("write discretization", "%s %d does not fit in one byte", sz.name, sz.n)
		}
		header[i] = byte(sz.n)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// 1. Health grid
	if err := writeDoubles(bw, r.Grid.Nodes); err != nil {
		return err
	}
	// 2. Survival
	for s := 0; s < discretize.Sexes; s++ {
		for _, row := range r.Survival[s] {
			if err := writeDoubles(bw, row); err != nil {
				return err
			}
		}
	}
	// 3. Transitions, row by row
	for s := 0; s < discretize.Sexes; s++ {
		for _, t := range r.Transition[s] {
			if err := writeDense(bw, t); err != nil {
				return err
			}
		}
	}
	// 4. Report probabilities
	for _, e := range r.Emission {
		if err := writeDense(bw, e); err != nil {
			return err
		}
	}
	// 5. Initial health distributions
	for s := 0; s < discretize.Sexes; s++ {
		for _, row := range r.Initial[s] {
			if err := writeDoubles(bw, row); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes r to path. Path either holds a complete file afterwards
// or is left as it was.
func WriteFile(path string, r *discretize.Result) error {
	return fileutil.AtomicWrite(path, func(w io.Writer) error {
		return Write(w, r)
	})
}

// Read decodes a discretization file.
func Read(r io.Reader) (*Process, error) {
	br := bufio.NewReader(r)
	header := make([]byte, 4)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	p := &Process{
		NodeCount:     int(header[0]),
		AgeCount:      int(header[1]),
		CategoryCount: int(header[2]),
		TypeCount:     int(header[3]),
	}
	n, ages := p.NodeCount, p.AgeCount

	var err error
	if p.HealthGrid, err = readDoubles(br, n); err != nil {
		return nil, fmt.Errorf("read health grid: %w", err)
	}
	for s := 0; s < discretize.Sexes; s++ {
		if p.LivPrbArray[s], err = readRows(br, ages, n); err != nil {
			return nil, fmt.Errorf("read survival probabilities: %w", err)
		}
	}
	for s := 0; s < discretize.Sexes; s++ {
		p.TransPrbArray[s] = make([]*mat.Dense, ages)
		for j := range p.TransPrbArray[s] {
			if p.TransPrbArray[s][j], err = readDense(br, n, n); err != nil {
				return nil, fmt.Errorf("read transition probabilities: %w", err)
			}
		}
	}
	p.ReportPrbArray = make([]*mat.Dense, p.TypeCount)
	for k := range p.ReportPrbArray {
		if p.ReportPrbArray[k], err = readDense(br, p.CategoryCount, n); err != nil {
			return nil, fmt.Errorf("read report probabilities: %w", err)
		}
	}
	for s := 0; s < discretize.Sexes; s++ {
		if p.InitialHealthDstn[s], err = readRows(br, ages, n); err != nil {
			return nil, fmt.Errorf("read initial health distribution: %w", err)
		}
	}
	return p, nil
}

// ReadFile opens and decodes the discretization file at path.
func ReadFile(path string) (*Process, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Result rebuilds an in-memory discretization from the file content, with
// ages starting at ageMin in steps of ageIncr. Type shares and report stds
// are not stored in the file and are supplied by the caller.
func (p *Process) Result(ageMin, ageIncr float64, categoryCounts []int, typePrbs, reportStds []float64) *discretize.Result {
	return &discretize.Result{
		Grid:           discretize.GridFromNodes(p.HealthGrid),
		Ages:           discretize.Ages(ageMin, ageMin+float64(p.AgeCount-1)*ageIncr, ageIncr),
		CategoryCounts: categoryCounts,
		TypePrbs:       typePrbs,
		ReportStds:     reportStds,
		Survival:       p.LivPrbArray,
		Transition:     p.TransPrbArray,
		Emission:       p.ReportPrbArray,
		Initial:        p.InitialHealthDstn,
	}
}

func writeDoubles(w io.Writer, x []float64) error {
	if err := binary.Write(w, binary.BigEndian, x); err != nil {
		return fmt.Errorf("write doubles: %w", err)
	}
	return nil
}

func writeDense(w io.Writer, m *mat.Dense) error {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		if err := writeDoubles(w, m.RawRowView(i)); err != nil {
			return err
		}
	}
	return nil
}

func readDoubles(r io.Reader, n int) ([]float64, error) {
	x := make([]float64, n)
	if err := binary.Read(r, binary.BigEndian, x); err != nil {
		return nil, err
	}
	return x, nil
}

func readRows(r io.Reader, rows, cols int) ([][]float64, error) {
	out := make([][]float64, rows)
	for i := range out {
		row, err := readDoubles(r, cols)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

func readDense(r io.Reader, rows, cols int) (*mat.Dense, error) {
	data, err := readDoubles(r, rows*cols)
	if err != nil {
		return nil, err
	}
	if rows == 0 || cols == 0 {
		return &mat.Dense{}, nil
	}
	return mat.NewDense(rows, cols, data), nil
}
