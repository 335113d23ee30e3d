// Package mvmr estimates the joint causal effects of multiple exposures
// on an outcome from GWAS summary statistics, using genetic variants as
// instruments. Exposure and outcome associations are first aligned onto
// a shared effect-allele convention and a shared SNP set, and the
// aligned matrix feeds a family of inverse-variance-weighted regression
// estimators, a LASSO feature selector, and instrument diagnostics.
package mvmr

import (
	"fmt"
	"sort"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Dataset is the aligned input to every estimator: one row per SNP, one
// column per exposure, with the outcome vectors matched row for row and
// every effect expressed on the anchor exposure's effect-allele
// convention. SNPs and ExposureIDs are sorted, so identical inputs build
// identical Datasets. Estimators never modify a Dataset; narrowing
// operations return new ones.
type Dataset struct {
	SNPs        []string
	ExposureIDs []string

	// ExposureNames maps exposure IDs to human-readable trait names.
	ExposureNames map[string]string
	OutcomeID     string
	OutcomeName   string

	ExposureBeta *mat.Dense
	ExposureSE   *mat.Dense
	ExposurePval *mat.Dense

	OutcomeBeta []float64
	OutcomeSE   []float64
	OutcomePval []float64
}

// NSNPs returns the number of aligned SNP rows.
func (d *Dataset) NSNPs() int {
	return len(d.SNPs)
}

// NExposures returns the number of exposure columns.
func (d *Dataset) NExposures() int {
	return len(d.ExposureIDs)
}

// SelectExposures returns a new Dataset narrowed to the named exposures,
// keeping the dataset's column order. Every requested ID must exist.
func (d *Dataset) SelectExposures(ids ...string) (*Dataset, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	cols := make([]int, 0, len(want))
	for j, id := range d.ExposureIDs {
		if _, ok := want[id]; ok {
			cols = append(cols, j)
			delete(want, id)
		}
	}
	for id := range want {
		return nil, pfx.Err(fmt.Errorf("Exposure %s is not in the dataset", id))
	}
	if len(cols) == 0 {
		return nil, pfx.Err(fmt.Errorf("No exposures selected"))
	}

	n := d.NSNPs()
	out := &Dataset{
		SNPs:          append([]string(nil), d.SNPs...),
		ExposureIDs:   make([]string, len(cols)),
		ExposureNames: make(map[string]string, len(cols)),
		OutcomeID:     d.OutcomeID,
		OutcomeName:   d.OutcomeName,
		ExposureBeta:  mat.NewDense(n, len(cols), nil),
		ExposureSE:    mat.NewDense(n, len(cols), nil),
		ExposurePval:  mat.NewDense(n, len(cols), nil),
		OutcomeBeta:   append([]float64(nil), d.OutcomeBeta...),
		OutcomeSE:     append([]float64(nil), d.OutcomeSE...),
		OutcomePval:   append([]float64(nil), d.OutcomePval...),
	}

	for cj, j := range cols {
		id := d.ExposureIDs[j]
		out.ExposureIDs[cj] = id
		out.ExposureNames[id] = d.ExposureNames[id]
		for i := 0; i < n; i++ {
			out.ExposureBeta.Set(i, cj, d.ExposureBeta.At(i, j))
			out.ExposureSE.Set(i, cj, d.ExposureSE.At(i, j))
			out.ExposurePval.Set(i, cj, d.ExposurePval.At(i, j))
		}
	}

	return out, nil
}

// selectRows returns a new Dataset restricted to the given row indices,
// which must be ascending.
func (d *Dataset) selectRows(rows []int) *Dataset {
	k := d.NExposures()
	out := &Dataset{
		SNPs:          make([]string, len(rows)),
		ExposureIDs:   append([]string(nil), d.ExposureIDs...),
		ExposureNames: d.ExposureNames,
		OutcomeID:     d.OutcomeID,
		OutcomeName:   d.OutcomeName,
		ExposureBeta:  mat.NewDense(len(rows), k, nil),
		ExposureSE:    mat.NewDense(len(rows), k, nil),
		ExposurePval:  mat.NewDense(len(rows), k, nil),
		OutcomeBeta:   make([]float64, len(rows)),
		OutcomeSE:     make([]float64, len(rows)),
		OutcomePval:   make([]float64, len(rows)),
	}

	for ri, i := range rows {
		out.SNPs[ri] = d.SNPs[i]
		for j := 0; j < k; j++ {
			out.ExposureBeta.Set(ri, j, d.ExposureBeta.At(i, j))
			out.ExposureSE.Set(ri, j, d.ExposureSE.At(i, j))
			out.ExposurePval.Set(ri, j, d.ExposurePval.At(i, j))
		}
		out.OutcomeBeta[ri] = d.OutcomeBeta[i]
		out.OutcomeSE[ri] = d.OutcomeSE[i]
		out.OutcomePval[ri] = d.OutcomePval[i]
	}

	return out
}

// instrumentRows returns the rows whose p-value for exposure column j
// passes the threshold.
func (d *Dataset) instrumentRows(j int, threshold float64) []int {
	rows := make([]int, 0, d.NSNPs())
	for i := 0; i < d.NSNPs(); i++ {
		if d.ExposurePval.At(i, j) < threshold {
			rows = append(rows, i)
		}
	}

	return rows
}

// anyInstrumentRows returns the rows instrumenting at least one exposure.
func (d *Dataset) anyInstrumentRows(threshold float64) []int {
	rows := make([]int, 0, d.NSNPs())
	for i := 0; i < d.NSNPs(); i++ {
		for j := 0; j < d.NExposures(); j++ {
			if d.ExposurePval.At(i, j) < threshold {
				rows = append(rows, i)
				break
			}
		}
	}

	return rows
}

// allRows returns every row index.
func (d *Dataset) allRows() []int {
	rows := make([]int, d.NSNPs())
	for i := range rows {
		rows[i] = i
	}

	return rows
}

// column extracts exposure column j over the given rows.
func column(m *mat.Dense, j int, rows []int) []float64 {
	out := make([]float64, len(rows))
	for ri, i := range rows {
		out[ri] = m.At(i, j)
	}

	return out
}

// values extracts a vector over the given rows.
func values(v []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for ri, i := range rows {
		out[ri] = v[i]
	}

	return out
}

// otherColumns builds the design of every exposure column except skip,
// over the given rows, preserving column order.
func (d *Dataset) otherColumns(skip int, rows []int) *mat.Dense {
	k := d.NExposures()
	out := mat.NewDense(len(rows), k-1, nil)
	for ri, i := range rows {
		cj := 0
		for j := 0; j < k; j++ {
			if j == skip {
				continue
			}
			out.Set(ri, cj, d.ExposureBeta.At(i, j))
			cj++
		}
	}

	return out
}

// validate checks the alignment invariant: consistent dimensions, sorted
// unique rows and columns. Builders call it before handing a Dataset out.
func (d *Dataset) validate() error {
	n, k := d.NSNPs(), d.NExposures()
	if n == 0 || k == 0 {
		return pfx.Err(fmt.Errorf("Dataset is empty (%d SNPs x %d exposures)", n, k))
	}

	for _, m := range []*mat.Dense{d.ExposureBeta, d.ExposureSE, d.ExposurePval} {
		r, c := m.Dims()
		if r != n || c != k {
			return pfx.Err(fmt.Errorf("Exposure matrix is %dx%d, expected %dx%d", r, c, n, k))
		}
	}
	if len(d.OutcomeBeta) != n || len(d.OutcomeSE) != n || len(d.OutcomePval) != n {
		return pfx.Err(fmt.Errorf("Outcome vectors do not cover all %d SNP rows", n))
	}

	if !sort.StringsAreSorted(d.SNPs) {
		return pfx.Err(fmt.Errorf("SNP rows are not sorted"))
	}
	if !sort.StringsAreSorted(d.ExposureIDs) {
		return pfx.Err(fmt.Errorf("Exposure columns are not sorted"))
	}
	for i := 1; i < n; i++ {
		if d.SNPs[i] == d.SNPs[i-1] {
			return pfx.Err(fmt.Errorf("Duplicate SNP row %s", d.SNPs[i]))
		}
	}
	for j := 1; j < k; j++ {
		if d.ExposureIDs[j] == d.ExposureIDs[j-1] {
			return pfx.Err(fmt.Errorf("Duplicate exposure column %s", d.ExposureIDs[j]))
		}
	}

	for _, id := range d.ExposureIDs {
		if _, ok := d.ExposureNames[id]; !ok {
			return pfx.Err(fmt.Errorf("Exposure %s has no name entry", id))
		}
	}

	return nil
}

// outcomeWeights returns the inverse-variance weights 1/se^2 over the
// given rows.
func (d *Dataset) outcomeWeights(rows []int) []float64 {
	w := make([]float64, len(rows))
	for ri, i := range rows {
		se := d.OutcomeSE[i]
		w[ri] = 1 / (se * se)
	}

	return w
}
