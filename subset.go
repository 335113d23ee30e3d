package mvmr

import (
	"fmt"

	"github.com/carbocation/pfx"
)

// Subset narrows the dataset to the chosen exposures and to the SNPs
// instrumenting at least one of them, then runs the Multiple estimator
// on what remains. A nil features slice asks LassoSelect to choose the
// exposures. The narrowed data must keep more instrumenting SNPs than
// exposures, or no joint fit can exist.
func Subset(d *Dataset, features []Feature, opt Options) (*Result, error) {
	if features == nil {
		var err error
		if features, err = LassoSelect(d); err != nil {
			return nil, err
		}
	}
	if len(features) == 0 {
		return nil, pfx.Err(fmt.Errorf("No exposures were selected"))
	}

	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ExposureID)
	}

	sub, err := d.SelectExposures(ids...)
	if err != nil {
		return nil, err
	}

	rows := sub.anyInstrumentRows(opt.pvalThreshold())
	if len(rows) <= sub.NExposures() {
		return nil, pfx.Err(fmt.Errorf("Only %d SNPs instrument the %d selected exposures; need more SNPs than exposures", len(rows), sub.NExposures()))
	}

	return Multiple(sub.selectRows(rows), opt)
}
