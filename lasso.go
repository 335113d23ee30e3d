package mvmr

import (
	"log"

	"github.com/carbocation/mvmr/regress"
	"github.com/carbocation/pfx"
)

// Feature is one exposure retained by LASSO feature selection, with its
// penalized coefficient.
type Feature struct {
	ExposureID string
	Exposure   string
	Beta       float64
}

// LassoSelect runs cross-validated LASSO of the outcome associations on
// the exposure associations, weighted by inverse outcome variance, and
// returns the exposures whose coefficients survive at the best penalty,
// in dataset column order. Selection is deterministic for a given
// Dataset.
func LassoSelect(d *Dataset) ([]Feature, error) {
	log.Println("Performing feature selection")

	cv, err := regress.LassoCV(d.ExposureBeta, d.OutcomeBeta, d.outcomeWeights(d.allRows()), regress.LassoOptions{Standardize: true})
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := []Feature{}
	for j, id := range d.ExposureIDs {
		if cv.Coefficients[j] == 0 {
			continue
		}

		out = append(out, Feature{
			ExposureID: id,
			Exposure:   d.ExposureNames[id],
			Beta:       cv.Coefficients[j],
		})
	}

	return out, nil
}
