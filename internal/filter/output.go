// Project: Latent Health Discretization and Filtration

package filter

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"latenthealth/internal/fileutil"
)

// Header returns the column names for histories of length T and the given
// number of reporting types. The oldest wave comes first.
func Header(T, types int) []string {
	header := []string{"sex", "age"}
	for z := T - 1; z >= 1; z-- {
		header = append(header, "SRHStm"+strconv.Itoa(z))
	}
	header = append(header, "SRHSt")
	for k := 1; k <= types; k++ {
		header = append(header, "typeprob"+strconv.Itoa(k))
	}
	return append(header, "healthmean", "healthstdev", "healthskew", "healthkurt")
}

// Record formats a row as text fields, matching Header.
func (r Row) Record() []string {
	rec := make([]string, 0, 6+len(r.Sequence)+len(r.TypePrbs))
	rec = append(rec, strconv.Itoa(r.Sex), formatFloat(r.Age))
	for _, v := range r.Sequence {
		rec = append(rec, strconv.Itoa(v))
	}
	for _, p := range r.TypePrbs {
		rec = append(rec, formatFloat(p))
	}
	return append(rec, formatFloat(r.Mean), formatFloat(r.Stdev), formatFloat(r.Skew), formatFloat(r.Kurt))
}

// WriteTSV writes the header and one tab-delimited line per row.
func WriteTSV(w io.Writer, rows []Row, T, types int) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	if err := writer.Write(Header(T, types)); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.Record()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the same table to the first sheet of a workbook.
func WriteXLSX(w io.Writer, rows []Row, T, types int) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", sheet, err)
	}

	header := Header(T, types)
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return err
	}

	for i, row := range rows {
		cells := make([]interface{}, 0, len(header))
		cells = append(cells, row.Sex, row.Age)
		for _, v := range row.Sequence {
			cells = append(cells, v)
		}
		for _, p := range row.TypePrbs {
			cells = append(cells, p)
		}
		cells = append(cells, row.Mean, row.Stdev, row.Skew, row.Kurt)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// WriteFile writes the table to path, as a workbook when path ends in .xlsx
// and tab-delimited text otherwise. Nothing is left at path on failure.
func WriteFile(path string, rows []Row, T, types int) error {
	write := WriteTSV
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		write = WriteXLSX
	}
	return fileutil.AtomicWrite(path, func(w io.Writer) error {
		return write(w, rows, T, types)
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
