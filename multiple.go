package mvmr

import (
	"fmt"

	"github.com/carbocation/mvmr/regress"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Multiple estimates every exposure jointly by inverse-variance-weighted
// multivariable regression of the outcome associations on the exposure
// associations. Pooled mode fits once over every SNP and reads each
// exposure's coefficient from that single model; instrument-specific
// mode refits the full model per exposure over that exposure's
// instruments, reporting invalid effect fields for exposures whose
// refit would have no residual degrees of freedom. A rank-deficient or
// underdetermined pooled fit is an error. NSNP counts the exposure's
// own instruments even when the pooled fit used every row.
func Multiple(d *Dataset, opt Options) (*Result, error) {
	threshold := opt.pvalThreshold()
	k := d.NExposures()
	minRows := k
	if opt.Intercept {
		minRows++
	}

	res := &Result{
		Estimates: make([]Estimate, 0, k),
		Scatter:   make(map[string][]ScatterPoint, k),
	}

	var pooled *regress.Model
	if !opt.InstrumentSpecific {
		all := d.allRows()
		m, err := regress.Fit(d.exposureRows(all), d.OutcomeBeta, d.outcomeWeights(all), opt.Intercept)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Joint fit of %d exposures: %v", k, err))
		}
		pooled = m
	}

	for j := 0; j < k; j++ {
		if pooled != nil {
			all := d.allRows()
			est := d.newEstimate(j, len(d.instrumentRows(j, threshold)))

			slot := j
			if opt.Intercept {
				slot = j + 1
			}
			est.setFit(pooled.Coefficients[slot], pooled.StdErrs[slot])

			res.Scatter[est.ExposureID] = d.scatter(j, all, d.OutcomeBeta)
			res.Estimates = append(res.Estimates, est)
			continue
		}

		rows := d.instrumentRows(j, threshold)
		est := d.newEstimate(j, len(rows))
		res.Scatter[est.ExposureID] = d.scatter(j, rows, values(d.OutcomeBeta, rows))

		if len(rows) <= minRows {
			res.Estimates = append(res.Estimates, est)
			continue
		}

		m, err := regress.Fit(d.exposureRows(rows), values(d.OutcomeBeta, rows), d.outcomeWeights(rows), opt.Intercept)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Estimating %s: %v", est.ExposureID, err))
		}

		slot := j
		if opt.Intercept {
			slot = j + 1
		}
		est.setFit(m.Coefficients[slot], m.StdErrs[slot])
		res.Estimates = append(res.Estimates, est)
	}

	return res, nil
}

// IVW estimates each exposure separately: a weighted univariable
// regression with intercept of the raw outcome associations on the
// exposure associations, over that exposure's instruments. It ignores
// the other exposures entirely, so it carries their confounding; the
// multivariable estimators exist to fix exactly that. An exposure with
// fewer than 3 instruments cannot support the fit and is an error.
func IVW(d *Dataset, pvalThreshold float64) (*Result, error) {
	threshold := pvalThreshold
	if threshold <= 0 {
		threshold = DefaultPvalThreshold
	}
	k := d.NExposures()

	res := &Result{
		Estimates: make([]Estimate, 0, k),
		Scatter:   make(map[string][]ScatterPoint, k),
	}

	for j := 0; j < k; j++ {
		rows := d.instrumentRows(j, threshold)
		if len(rows) < 3 {
			return nil, pfx.Err(fmt.Errorf("Exposure %s has %d instruments below p=%g; at least 3 are needed", d.ExposureIDs[j], len(rows), threshold))
		}

		est := d.newEstimate(j, len(rows))

		design := mat.NewDense(len(rows), 1, column(d.ExposureBeta, j, rows))
		m, err := regress.Fit(design, values(d.OutcomeBeta, rows), d.outcomeWeights(rows), true)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Estimating %s: %v", est.ExposureID, err))
		}

		est.setFit(m.Coefficients[1], m.StdErrs[1])
		res.Scatter[est.ExposureID] = d.scatter(j, rows, values(d.OutcomeBeta, rows))
		res.Estimates = append(res.Estimates, est)
	}

	return res, nil
}

// exposureRows builds the full exposure design over the given rows.
func (d *Dataset) exposureRows(rows []int) *mat.Dense {
	k := d.NExposures()
	out := mat.NewDense(len(rows), k, nil)
	for ri, i := range rows {
		for j := 0; j < k; j++ {
			out.Set(ri, j, d.ExposureBeta.At(i, j))
		}
	}

	return out
}
