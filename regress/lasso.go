package regress

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/mat"
)

// LassoOptions tunes the penalized fit. The zero value asks for the
// defaults noted on each field.
type LassoOptions struct {
	// Lambda is an explicit penalty path for LassoCV, largest first. When
	// nil, a log-spaced path of NLambda values is derived from the data,
	// from the smallest penalty that zeroes every coefficient down by a
	// factor of LambdaRatio.
	Lambda      []float64
	NLambda     int     // default 100
	LambdaRatio float64 // default 1e-4, or 1e-2 when columns outnumber rows

	// Folds is the number of cross-validation folds, default 10, capped
	// at the number of rows. Rows are dealt round robin so that fold
	// membership is a function of row order alone.
	Folds int

	// Standardize rescales each column to unit weighted mean square
	// internally, putting the penalty on comparable scales. Reported
	// coefficients are always on the original scale.
	Standardize bool

	Tol     float64 // coordinate descent stop threshold, default 1e-7
	MaxIter int     // default 100000 sweeps per penalty
}

func (o LassoOptions) nLambda() int {
	if o.NLambda > 0 {
		return o.NLambda
	}
	return 100
}

func (o LassoOptions) lambdaRatio(n, p int) float64 {
	if o.LambdaRatio > 0 {
		return o.LambdaRatio
	}
	if n < p {
		return 1e-2
	}
	return 1e-4
}

func (o LassoOptions) folds(n int) int {
	k := o.Folds
	if k <= 0 {
		k = 10
	}
	if k > n {
		k = n
	}
	return k
}

func (o LassoOptions) tol() float64 {
	if o.Tol > 0 {
		return o.Tol
	}
	return 1e-7
}

func (o LassoOptions) maxIter() int {
	if o.MaxIter > 0 {
		return o.MaxIter
	}
	return 100000
}

// CVResult is a cross-validated LASSO fit.
type CVResult struct {
	// Lambda is the penalty path, descending. CVMean[i] and CVSD[i] are
	// the mean held-out weighted squared error across folds at Lambda[i]
	// and its standard error.
	Lambda []float64
	CVMean []float64
	CVSD   []float64

	// LambdaMin is the penalty with the smallest CVMean; ties go to the
	// larger penalty. Coefficients is the full-data fit at LambdaMin, on
	// the original column scale.
	LambdaMin    float64
	Coefficients []float64
}

// Lasso minimizes
//
//	(1/2n) sum_i w_i (y_i - sum_j x_ij b_j)^2 + lambda sum_j |b_j|
//
// by cyclic coordinate descent, with no intercept. A nil weights slice
// means equal weights; internally the weights are normalized to sum to
// the number of rows, matching the 1/2n convention. The returned
// coefficients are on the original column scale.
func Lasso(x mat.Matrix, y, weights []float64, lambda float64, opt LassoOptions) ([]float64, error) {
	if lambda < 0 || math.IsNaN(lambda) {
		return nil, pfx.Err(fmt.Errorf("Penalty %g must be nonnegative", lambda))
	}

	pr, err := newLassoProblem(x, y, weights, opt)
	if err != nil {
		return nil, err
	}

	path := pr.fitPath([]float64{lambda})

	return pr.original(path[0]), nil
}

// LassoCV fits the penalty path on every cross-validation fold, scores
// each penalty by held-out weighted squared error, and returns the
// full-data coefficients at the best penalty along with the path summary.
// Fold assignment is deterministic, so identical inputs give identical
// results.
func LassoCV(x mat.Matrix, y, weights []float64, opt LassoOptions) (*CVResult, error) {
	pr, err := newLassoProblem(x, y, weights, opt)
	if err != nil {
		return nil, err
	}
	if pr.n < 2 {
		return nil, pfx.Err(fmt.Errorf("Cross-validation requires at least 2 rows, have %d", pr.n))
	}

	lambdas := opt.Lambda
	if lambdas == nil {
		lambdas, err = pr.lambdaPath(opt.nLambda(), opt.lambdaRatio(pr.n, pr.p))
		if err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(lambdas); i++ {
		if lambdas[i] > lambdas[i-1] {
			return nil, pfx.Err(fmt.Errorf("Penalty path must descend: lambda[%d]=%g > lambda[%d]=%g", i, lambdas[i], i-1, lambdas[i-1]))
		}
	}

	full := pr.fitPath(lambdas)

	k := opt.folds(pr.n)
	cv := make([]*runningvariance.RunningStat, len(lambdas))
	for i := range cv {
		cv[i] = runningvariance.NewRunningStat()
	}

	for fold := 0; fold < k; fold++ {
		sub, err := pr.without(fold, k, opt)
		if err != nil {
			return nil, err
		}

		path := sub.fitPath(lambdas)
		for li := range lambdas {
			b := sub.original(path[li])

			// Held-out weighted squared error on the original scale
			num, den := 0.0, 0.0
			for i := fold; i < pr.n; i += k {
				fitted := 0.0
				for j := 0; j < pr.p; j++ {
					fitted += b[j] * pr.orig.At(i, j)
				}
				d := pr.y[i] - fitted
				num += pr.rawW[i] * d * d
				den += pr.rawW[i]
			}
			if den > 0 {
				cv[li].Push(num / den)
			}
		}
	}

	res := &CVResult{
		Lambda: lambdas,
		CVMean: make([]float64, len(lambdas)),
		CVSD:   make([]float64, len(lambdas)),
	}
	best := 0
	for i, s := range cv {
		res.CVMean[i] = s.Mean()
		res.CVSD[i] = s.StandardDeviation() / math.Sqrt(float64(k))
		if res.CVMean[i] < res.CVMean[best] {
			best = i
		}
	}

	res.LambdaMin = lambdas[best]
	res.Coefficients = pr.original(full[best])

	return res, nil
}

// lassoProblem is one prepared design: weights normalized, columns
// optionally standardized, with the original design retained for
// held-out prediction.
type lassoProblem struct {
	x     *mat.Dense // working copy, possibly standardized
	orig  *mat.Dense
	y     []float64
	w     []float64 // normalized to sum n
	rawW  []float64
	scale []float64 // divisor applied per column, 1 when untouched
	colSS []float64 // (1/n) sum_i w_i x_ij^2 on the working copy
	n, p  int

	tol     float64
	maxIter int
}

func newLassoProblem(x mat.Matrix, y, weights []float64, opt LassoOptions) (*lassoProblem, error) {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, pfx.Err(fmt.Errorf("Empty design matrix (%d x %d)", n, p))
	}
	if len(y) != n {
		return nil, pfx.Err(fmt.Errorf("Design matrix has %d rows but the response has %d", n, len(y)))
	}
	if weights != nil && len(weights) != n {
		return nil, pfx.Err(fmt.Errorf("Design matrix has %d rows but weights has %d", n, len(weights)))
	}

	pr := &lassoProblem{
		x:       mat.DenseCopyOf(x),
		orig:    mat.DenseCopyOf(x),
		y:       append([]float64(nil), y...),
		w:       make([]float64, n),
		rawW:    make([]float64, n),
		scale:   make([]float64, p),
		colSS:   make([]float64, p),
		n:       n,
		p:       p,
		tol:     opt.tol(),
		maxIter: opt.maxIter(),
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, pfx.Err(fmt.Errorf("Weight %g at row %d is not usable", w, i))
		}
		pr.rawW[i] = w
		sum += w
	}
	if sum <= 0 {
		return nil, pfx.Err(fmt.Errorf("Weights sum to %g; nothing to fit", sum))
	}
	for i := 0; i < n; i++ {
		pr.w[i] = pr.rawW[i] * float64(n) / sum
	}

	for j := 0; j < p; j++ {
		pr.scale[j] = 1

		ss := 0.0
		for i := 0; i < n; i++ {
			v := pr.x.At(i, j)
			ss += pr.w[i] * v * v
		}
		ss /= float64(n)

		if opt.Standardize && ss > 0 {
			s := math.Sqrt(ss)
			pr.scale[j] = s
			for i := 0; i < n; i++ {
				pr.x.Set(i, j, pr.x.At(i, j)/s)
			}
			ss = 1
		}

		pr.colSS[j] = ss
	}

	return pr, nil
}

// without builds the training problem that excludes fold `fold` of k,
// re-deriving weight normalization and standardization from the training
// rows alone.
func (pr *lassoProblem) without(fold, k int, opt LassoOptions) (*lassoProblem, error) {
	rows := make([]int, 0, pr.n)
	for i := 0; i < pr.n; i++ {
		if i%k != fold {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, pfx.Err(fmt.Errorf("Fold %d of %d leaves no training rows", fold, k))
	}

	x := mat.NewDense(len(rows), pr.p, nil)
	y := make([]float64, len(rows))
	w := make([]float64, len(rows))
	for ri, i := range rows {
		for j := 0; j < pr.p; j++ {
			x.Set(ri, j, pr.orig.At(i, j))
		}
		y[ri] = pr.y[i]
		w[ri] = pr.rawW[i]
	}

	return newLassoProblem(x, y, w, opt)
}

// lambdaPath derives a descending log-spaced penalty path whose first
// entry just zeroes every coefficient.
func (pr *lassoProblem) lambdaPath(nLambda int, ratio float64) ([]float64, error) {
	max := 0.0
	for j := 0; j < pr.p; j++ {
		g := 0.0
		for i := 0; i < pr.n; i++ {
			g += pr.w[i] * pr.x.At(i, j) * pr.y[i]
		}
		if g = math.Abs(g) / float64(pr.n); g > max {
			max = g
		}
	}
	if max <= 0 || math.IsNaN(max) {
		return nil, pfx.Err(fmt.Errorf("Response is orthogonal to every column; no penalty path exists"))
	}

	if nLambda < 2 {
		return []float64{max}, nil
	}

	out := make([]float64, nLambda)
	step := math.Log(ratio) / float64(nLambda-1)
	for i := range out {
		out[i] = max * math.Exp(step*float64(i))
	}

	return out, nil
}

// fitPath runs coordinate descent at each penalty in order, warm-starting
// from the previous solution. Coefficients are on the working (possibly
// standardized) scale.
func (pr *lassoProblem) fitPath(lambdas []float64) [][]float64 {
	b := make([]float64, pr.p)
	r := append([]float64(nil), pr.y...)

	out := make([][]float64, len(lambdas))
	for li, lambda := range lambdas {
		pr.descend(b, r, lambda)
		out[li] = append([]float64(nil), b...)
	}

	return out
}

func (pr *lassoProblem) descend(b, r []float64, lambda float64) {
	for iter := 0; iter < pr.maxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < pr.p; j++ {
			if pr.colSS[j] == 0 {
				continue
			}

			g := 0.0
			for i := 0; i < pr.n; i++ {
				g += pr.w[i] * pr.x.At(i, j) * r[i]
			}
			g = g/float64(pr.n) + pr.colSS[j]*b[j]

			bNew := softThreshold(g, lambda) / pr.colSS[j]
			if d := bNew - b[j]; d != 0 {
				for i := 0; i < pr.n; i++ {
					r[i] -= d * pr.x.At(i, j)
				}
				if ad := math.Abs(d); ad > maxDelta {
					maxDelta = ad
				}
				b[j] = bNew
			}
		}

		if maxDelta < pr.tol {
			break
		}
	}
}

// original maps working-scale coefficients back to the input column
// scale.
func (pr *lassoProblem) original(b []float64) []float64 {
	out := make([]float64, pr.p)
	for j := range b {
		out[j] = b[j] / pr.scale[j]
	}

	return out
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	}

	return 0
}
