package mvmr

import (
	"fmt"
	"sort"

	"github.com/carbocation/mvmr/harmonise"
	"github.com/carbocation/mvmr/sumstats"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// AlignOptions tunes how the aligned Dataset is built.
type AlignOptions struct {
	// Action controls palindromic SNP handling during each harmonisation.
	// The zero value means harmonise.ActionInfer.
	Action harmonise.Action
}

func (o AlignOptions) action() harmonise.Action {
	if o.Action == 0 {
		return harmonise.ActionInfer
	}
	return o.Action
}

// Harmonise aligns two or more exposure tables and one outcome table
// into a Dataset, using the exposure identified by anchor as the
// effect-allele reference. Every other exposure is harmonised against
// the anchor, a SNP is retained only when it aligns for all exposures,
// and the outcome is then harmonised once against the anchor convention
// on the surviving SNPs. SNP identifiers must already agree across
// tables; sumstats normalizes them to lower case at parse time.
//
// A duplicated SNP within any single table is an error. A SNP missing
// from a table, or unalignable under the chosen Action, silently drops
// from the Dataset; ending up with no SNPs at all is an error.
func Harmonise(anchor string, exposures []sumstats.Table, outcome sumstats.Table, opt AlignOptions) (*Dataset, error) {
	if len(exposures) < 2 {
		return nil, pfx.Err(fmt.Errorf("Multivariable analysis needs at least 2 exposures, have %d", len(exposures)))
	}

	var anchorTable *sumstats.Table
	seen := make(map[string]struct{}, len(exposures))
	for i := range exposures {
		t := &exposures[i]
		if t.ID == "" {
			return nil, pfx.Err(fmt.Errorf("Exposure %d has an empty ID", i))
		}
		if _, exists := seen[t.ID]; exists {
			return nil, pfx.Err(fmt.Errorf("Duplicate exposure ID %s", t.ID))
		}
		seen[t.ID] = struct{}{}

		if snp, dup := t.DuplicateSNP(); dup {
			return nil, pfx.Err(fmt.Errorf("Duplicate SNP %s within exposure %s", snp, t.ID))
		}

		if t.ID == anchor {
			anchorTable = t
		}
	}
	if anchorTable == nil {
		return nil, pfx.Err(fmt.Errorf("Anchor %q is not among the exposure IDs", anchor))
	}
	if snp, dup := outcome.DuplicateSNP(); dup {
		return nil, pfx.Err(fmt.Errorf("Duplicate SNP %s within outcome %s", snp, outcome.ID))
	}

	// Express every non-anchor exposure on the anchor's allele
	// convention, dropping pairs the harmonisation could not resolve.
	action := opt.action()
	aligned := make(map[string]map[string]sumstats.Association, len(exposures)-1)
	counts := make(map[string]int)
	for i := range exposures {
		t := &exposures[i]
		if t.ID == anchor {
			continue
		}

		pairs, err := harmonise.Harmonise(anchorTable.Records, t.Records, action)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("Harmonising exposure %s against anchor %s: %v", t.ID, anchor, err))
		}

		m := make(map[string]sumstats.Association, len(pairs))
		for _, p := range pairs {
			if !p.Keep {
				continue
			}
			m[p.SNP] = sumstats.Association{
				SNP:          p.SNP,
				EffectAllele: p.EffectAllele,
				OtherAllele:  p.OtherAllele,
				EAF:          p.TargetEAF,
				Beta:         p.TargetBeta,
				SE:           p.TargetSE,
				Pval:         p.TargetPval,
			}
			counts[p.SNP]++
		}
		aligned[t.ID] = m
	}

	// A SNP survives only when every non-anchor exposure aligned it.
	anchorBySNP := make(map[string]sumstats.Association, len(anchorTable.Records))
	reference := make([]sumstats.Association, 0, len(counts))
	for _, r := range anchorTable.Records {
		anchorBySNP[r.SNP] = r
		if counts[r.SNP] == len(exposures)-1 {
			reference = append(reference, r)
		}
	}
	if len(reference) == 0 {
		return nil, pfx.Err(fmt.Errorf("No SNPs align across all %d exposures", len(exposures)))
	}

	// One outcome harmonisation against the anchor convention settles
	// the orientation for every exposure at once.
	pairs, err := harmonise.Harmonise(reference, outcome.Records, action)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("Harmonising outcome %s against anchor %s: %v", outcome.ID, anchor, err))
	}

	outcomeBySNP := make(map[string]harmonise.Pair, len(pairs))
	snps := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if !p.Keep {
			continue
		}
		outcomeBySNP[p.SNP] = p
		snps = append(snps, p.SNP)
	}
	if len(snps) == 0 {
		return nil, pfx.Err(fmt.Errorf("No SNPs survive harmonisation with outcome %s", outcome.ID))
	}
	sort.Strings(snps)

	ids := make([]string, 0, len(exposures))
	names := make(map[string]string, len(exposures))
	for _, t := range exposures {
		ids = append(ids, t.ID)
		names[t.ID] = t.Name
	}
	sort.Strings(ids)

	d := &Dataset{
		SNPs:          snps,
		ExposureIDs:   ids,
		ExposureNames: names,
		OutcomeID:     outcome.ID,
		OutcomeName:   outcome.Name,
		ExposureBeta:  mat.NewDense(len(snps), len(ids), nil),
		ExposureSE:    mat.NewDense(len(snps), len(ids), nil),
		ExposurePval:  mat.NewDense(len(snps), len(ids), nil),
		OutcomeBeta:   make([]float64, len(snps)),
		OutcomeSE:     make([]float64, len(snps)),
		OutcomePval:   make([]float64, len(snps)),
	}

	for i, snp := range snps {
		for j, id := range ids {
			a, ok := anchorBySNP[snp], true
			if id != anchor {
				a, ok = aligned[id][snp]
			}
			if !ok {
				return nil, pfx.Err(fmt.Errorf("SNP %s lost for exposure %s during alignment", snp, id))
			}

			d.ExposureBeta.Set(i, j, a.Beta)
			d.ExposureSE.Set(i, j, a.SE)
			d.ExposurePval.Set(i, j, a.Pval)
		}

		p := outcomeBySNP[snp]
		d.OutcomeBeta[i] = p.TargetBeta
		d.OutcomeSE[i] = p.TargetSE
		d.OutcomePval[i] = p.TargetPval
	}

	if err := d.validate(); err != nil {
		return nil, err
	}

	return d, nil
}
