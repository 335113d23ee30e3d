package mvmr

import (
	"fmt"

	"github.com/carbocation/mvmr/regress"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Residual estimates each exposure's direct effect in two stages: the
// outcome associations are first residualized on every other exposure
// by ordinary least squares over every SNP, and the leftover outcome
// signal is then regressed on the exposure of interest over the
// exposure's own instruments. Neither stage weights by outcome
// precision, and the optional intercept applies to the final regression
// only; the instrument-specific option leaves this estimator unchanged.
// An exposure whose instruments do not outnumber the exposure count
// (plus intercept) reports invalid effect fields rather than failing
// the run.
func Residual(d *Dataset, opt Options) (*Result, error) {
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

	for j := 0; j < k; j++ {
		rows := d.instrumentRows(j, threshold)
		est := d.newEstimate(j, len(rows))

		if len(rows) <= minRows {
			// Not enough SNPs for a standard error.
			res.Estimates = append(res.Estimates, est)
			continue
		}

		// The residualizing stage pools every SNP even though the final
		// fit sees only the instruments.
		marginal, err := d.marginalOutcome(j)
		if err != nil {
			return nil, err
		}

		design := mat.NewDense(len(rows), 1, column(d.ExposureBeta, j, rows))
		m, err := regress.Fit(design, values(marginal, rows), nil, opt.Intercept)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Estimating %s: %v", est.ExposureID, err))
		}

		slot := 0
		if opt.Intercept {
			slot = 1
		}
		est.setFit(m.Coefficients[slot], m.StdErrs[slot])

		res.Scatter[est.ExposureID] = d.scatter(j, rows, values(marginal, rows))
		res.Estimates = append(res.Estimates, est)
	}

	return res, nil
}

// Basic estimates each exposure in the same two stages as Residual,
// fixed to an intercept in the final regression. Unlike Residual it
// reports effect-plot points even for exposures with too few
// instruments to estimate.
func Basic(d *Dataset, pvalThreshold float64) (*Result, error) {
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
		marginal, err := d.marginalOutcome(j)
		if err != nil {
			return nil, err
		}

		rows := d.instrumentRows(j, threshold)
		est := d.newEstimate(j, len(rows))
		res.Scatter[est.ExposureID] = d.scatter(j, rows, values(marginal, rows))

		if len(rows) <= k+1 {
			res.Estimates = append(res.Estimates, est)
			continue
		}

		design := mat.NewDense(len(rows), 1, column(d.ExposureBeta, j, rows))
		m, err := regress.Fit(design, values(marginal, rows), nil, true)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Estimating %s: %v", est.ExposureID, err))
		}

		est.setFit(m.Coefficients[1], m.StdErrs[1])
		res.Estimates = append(res.Estimates, est)
	}

	return res, nil
}

// marginalOutcome removes every other exposure's contribution from the
// outcome associations by ordinary least squares with no intercept,
// always over the full SNP set. With no other exposures there is
// nothing to remove and the outcome passes through unchanged.
func (d *Dataset) marginalOutcome(j int) ([]float64, error) {
	rows := d.allRows()
	y := values(d.OutcomeBeta, rows)

	if d.NExposures() == 1 {
		return y, nil
	}

	m, err := regress.Fit(d.otherColumns(j, rows), y, nil, false)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("Residualizing outcome against exposures other than %s: %v", d.ExposureIDs[j], err))
	}

	return m.Residuals, nil
}
