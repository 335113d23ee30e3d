package mvmr

import (
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/guregu/null.v3"
)

// DefaultPvalThreshold is the genome-wide significance level that
// decides which SNPs instrument an exposure when no threshold is given.
const DefaultPvalThreshold = 5e-8

// Options configures the Residual and Multiple estimators.
type Options struct {
	// Intercept adds an intercept to each estimating regression.
	Intercept bool

	// InstrumentSpecific restricts each exposure's estimate to the SNPs
	// instrumenting that exposure, instead of pooling every SNP.
	InstrumentSpecific bool

	// PvalThreshold marks a SNP as an instrument for an exposure when
	// the exposure association p-value falls below it. Zero means
	// DefaultPvalThreshold.
	PvalThreshold float64
}

func (o Options) pvalThreshold() float64 {
	if o.PvalThreshold > 0 {
		return o.PvalThreshold
	}
	return DefaultPvalThreshold
}

// Estimate is one exposure's estimated causal effect on the outcome. B,
// SE, and Pval are invalid when too few instruments back the exposure
// for a standard error to exist; such rows write as empty CSV cells.
type Estimate struct {
	ExposureID string     `csv:"id.exposure"`
	Exposure   string     `csv:"exposure"`
	OutcomeID  string     `csv:"id.outcome"`
	Outcome    string     `csv:"outcome"`
	NSNP       int        `csv:"nsnp"`
	B          null.Float `csv:"b"`
	SE         null.Float `csv:"se"`
	Pval       null.Float `csv:"pval"`
}

// ScatterPoint pairs one SNP's exposure effect with the outcome effect
// the estimator regressed against it, on whatever outcome scale the
// estimator used: raw associations for Multiple and IVW, marginal
// associations for the residual family. Points are sign-normalised for
// plotting: a SNP with a negative exposure effect has both effects
// flipped, so Exposure is always non-negative.
type ScatterPoint struct {
	SNP      string
	Exposure float64
	Outcome  float64
}

// Result is one estimator run: an Estimate per exposure column, plus the
// per-exposure points behind the corresponding effect plot, keyed by
// exposure ID.
type Result struct {
	Estimates []Estimate
	Scatter   map[string][]ScatterPoint
}

// WriteCSV writes the estimates as CSV, one row per exposure.
func (r *Result) WriteCSV(w io.Writer) error {
	return pfx.Err(gocsv.Marshal(&r.Estimates, w))
}

// normalPval is the two-sided p-value of b/se against the standard
// normal, the usual convention for summary-data MR estimates.
func normalPval(b, se float64) float64 {
	return 2 * distuv.UnitNormal.Survival(math.Abs(b/se))
}

// newEstimate fills the identity columns for exposure j. The effect
// fields stay invalid until setFit.
func (d *Dataset) newEstimate(j, nsnp int) Estimate {
	id := d.ExposureIDs[j]

	return Estimate{
		ExposureID: id,
		Exposure:   d.ExposureNames[id],
		OutcomeID:  d.OutcomeID,
		Outcome:    d.OutcomeName,
		NSNP:       nsnp,
	}
}

func (e *Estimate) setFit(b, se float64) {
	e.B = null.FloatFrom(b)
	e.SE = null.FloatFrom(se)
	e.Pval = null.FloatFrom(normalPval(b, se))
}

// scatter collects the effect-plot points for exposure j over the given
// rows, against the supplied outcome values (indexed like rows).
func (d *Dataset) scatter(j int, rows []int, outcome []float64) []ScatterPoint {
	pts := make([]ScatterPoint, len(rows))
	for ri, i := range rows {
		e, o := d.ExposureBeta.At(i, j), outcome[ri]
		if e < 0 {
			e, o = -e, -o
		}

		pts[ri] = ScatterPoint{
			SNP:      d.SNPs[i],
			Exposure: e,
			Outcome:  o,
		}
	}

	return pts
}
