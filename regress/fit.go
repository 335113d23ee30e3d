// Package regress implements weighted least-squares regression and
// cross-validated LASSO estimation on dense matrices. The solvers are
// deliberately small: dense QR and cyclic coordinate descent cover the
// problem sizes that arise when regressing summary statistics on one
// another, where rows are genetic variants and columns are traits.
package regress

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Model is a fitted least-squares regression. When the model includes an
// intercept, it occupies position 0 of Coefficients and StdErrs and the
// slope for column j of the design sits at position j+1; without an
// intercept the positions match the design columns directly.
type Model struct {
	Coefficients []float64
	StdErrs      []float64
	// Residuals are on the response scale, observed minus fitted.
	Residuals []float64
	// DF is the residual degrees of freedom, rows minus coefficients.
	DF int
}

// Fit estimates y = x*b by weighted least squares. A nil weights slice
// means every observation counts equally; otherwise weights[i] scales the
// squared residual of row i, with 1/variance weights giving the usual
// inverse-variance fit. The system is solved by QR on the
// sqrt-weight-scaled design. An underdetermined or rank-deficient design
// is an error, as is a fit with no residual degrees of freedom, because
// no standard errors exist there.
func Fit(x mat.Matrix, y, weights []float64, intercept bool) (*Model, error) {
	n, k := x.Dims()
	if k == 0 {
		return nil, pfx.Err(fmt.Errorf("Design matrix has no columns"))
	}
	if len(y) != n {
		return nil, pfx.Err(fmt.Errorf("Design matrix has %d rows but the response has %d", n, len(y)))
	}
	if weights != nil && len(weights) != n {
		return nil, pfx.Err(fmt.Errorf("Design matrix has %d rows but weights has %d", n, len(weights)))
	}

	p := k
	if intercept {
		p++
	}
	if n <= p {
		return nil, pfx.Err(fmt.Errorf("Cannot estimate %d coefficients from %d observations", p, n))
	}

	// Scaling each row by the square root of its weight turns the weighted
	// problem into an ordinary one.
	design := mat.NewDense(n, p, nil)
	wy := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, pfx.Err(fmt.Errorf("Weight %g at row %d is not usable", w, i))
		}
		sw := math.Sqrt(w)

		j0 := 0
		if intercept {
			design.Set(i, 0, sw)
			j0 = 1
		}
		for j := 0; j < k; j++ {
			design.Set(i, j0+j, sw*x.At(i, j))
		}
		wy.Set(i, 0, sw*y[i])
	}

	// The inverted cross-product supplies the coefficient covariance, and
	// its failure detects a rank-deficient design before any solve.
	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, pfx.Err(fmt.Errorf("Design matrix is rank deficient: %v", err))
	}

	qr := &mat.QR{}
	qr.Factorize(design)

	var bhat mat.Dense
	if err := qr.SolveTo(&bhat, false, wy); err != nil {
		return nil, pfx.Err(err)
	}

	m := &Model{
		Coefficients: make([]float64, p),
		StdErrs:      make([]float64, p),
		Residuals:    make([]float64, n),
		DF:           n - p,
	}
	for j := 0; j < p; j++ {
		m.Coefficients[j] = bhat.At(j, 0)
	}

	// Weighted residual sum of squares feeds the variance estimate; the
	// residuals themselves are reported unweighted.
	rss := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		j0 := 0
		if intercept {
			fitted = m.Coefficients[0]
			j0 = 1
		}
		for j := 0; j < k; j++ {
			fitted += m.Coefficients[j0+j] * x.At(i, j)
		}

		resid := y[i] - fitted
		m.Residuals[i] = resid

		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		rss += w * resid * resid
	}

	sigma2 := rss / float64(m.DF)
	for j := 0; j < p; j++ {
		m.StdErrs[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}

	return m, nil
}
