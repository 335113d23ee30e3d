package mvmr

import (
	"math"

	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
)

// StrengthSummary describes the instruments backing one exposure. Each
// SNP's F statistic is approximated from its exposure association as
// (beta/se)^2; a mean below about 10 warns of weak-instrument bias.
type StrengthSummary struct {
	ExposureID   string  `csv:"id.exposure"`
	Exposure     string  `csv:"exposure"`
	NInstruments int     `csv:"n_instruments"`
	MeanF        float64 `csv:"mean_f"`
	MedianF      float64 `csv:"median_f"`
	MinF         float64 `csv:"min_f"`
	MaxF         float64 `csv:"max_f"`
}

// InstrumentStrength summarizes per-SNP instrument strength for every
// exposure at the given p-value threshold (0 means
// DefaultPvalThreshold). An exposure without instruments reports NaN
// summaries.
func InstrumentStrength(d *Dataset, pvalThreshold float64) ([]StrengthSummary, error) {
	threshold := pvalThreshold
	if threshold <= 0 {
		threshold = DefaultPvalThreshold
	}

	out := make([]StrengthSummary, 0, d.NExposures())
	for j, id := range d.ExposureIDs {
		rows := d.instrumentRows(j, threshold)

		s := StrengthSummary{
			ExposureID:   id,
			Exposure:     d.ExposureNames[id],
			NInstruments: len(rows),
			MeanF:        math.NaN(),
			MedianF:      math.NaN(),
			MinF:         math.NaN(),
			MaxF:         math.NaN(),
		}

		if len(rows) > 0 {
			f := make(stats.Float64Data, len(rows))
			for ri, i := range rows {
				z := d.ExposureBeta.At(i, j) / d.ExposureSE.At(i, j)
				f[ri] = z * z
			}

			var err error
			if s.MeanF, err = stats.Mean(f); err != nil {
				return nil, pfx.Err(err)
			}
			if s.MedianF, err = stats.Median(f); err != nil {
				return nil, pfx.Err(err)
			}
			if s.MinF, err = stats.Min(f); err != nil {
				return nil, pfx.Err(err)
			}
			if s.MaxF, err = stats.Max(f); err != nil {
				return nil, pfx.Err(err)
			}
		}

		out = append(out, s)
	}

	return out, nil
}
