// Package harmonise reconciles the effect-allele convention of two
// independently measured association datasets so that their effect signs
// are directly comparable. GWAS tools report each variant against an
// arbitrary allele on an arbitrary strand; before two datasets can be
// analyzed jointly, one side's effects have to be re-expressed on the
// other side's convention, flipping signs and frequencies where the
// labels disagree and complementing where the strands do.
package harmonise

import (
	"fmt"
	"math"
	"strings"

	"github.com/carbocation/mvmr/sumstats"
	"github.com/carbocation/pfx"
)

// Action selects how aggressively palindromic SNPs (A/T and C/G variants,
// whose strand cannot be read from the allele labels) are resolved.
type Action int

const (
	// ActionAssume trusts that both datasets report alleles on the same
	// strand, aligning palindromic SNPs by their labels alone.
	ActionAssume Action = 1
	// ActionInfer resolves palindromic SNPs by comparing effect allele
	// frequencies, and drops those whose frequency is too close to 0.5
	// to call. This is the usual choice.
	ActionInfer Action = 2
	// ActionDrop excludes every palindromic SNP.
	ActionDrop Action = 3
)

// ambiguityWindow is the band around 0.5 within which an allele frequency
// cannot place a palindromic SNP on one strand or the other.
const ambiguityWindow = 0.08

// Pair is one SNP shared by the two datasets, with the target-side
// statistics re-expressed on the exposure side's effect-allele
// convention. Keep is false when the SNP could not be aligned (alleles
// incompatible, or palindromic and unresolvable under the Action); such
// rows carry their original target values and must not be analyzed.
type Pair struct {
	SNP          string
	EffectAllele sumstats.Allele
	OtherAllele  sumstats.Allele

	ExposureBeta float64
	ExposureSE   float64
	ExposurePval float64
	ExposureEAF  float64

	TargetBeta float64
	TargetSE   float64
	TargetPval float64
	TargetEAF  float64

	Palindromic   bool
	StrandFlipped bool
	SignFlipped   bool
	Keep          bool
}

// Harmonise expresses target's records on exposure's effect-allele
// convention, one output row per SNP present in both inputs, in the
// exposure's record order. SNPs absent from either side are simply not
// emitted. Duplicate SNPs within either input are a data error.
func Harmonise(exposure, target []sumstats.Association, action Action) ([]Pair, error) {
	if action < ActionAssume || action > ActionDrop {
		return nil, pfx.Err(fmt.Errorf("Unknown harmonisation action %d", action))
	}

	targets := make(map[string]sumstats.Association, len(target))
	for _, t := range target {
		if _, exists := targets[t.SNP]; exists {
			return nil, pfx.Err(fmt.Errorf("Duplicate SNP %s in target records", t.SNP))
		}
		targets[t.SNP] = t
	}

	seen := make(map[string]struct{}, len(exposure))
	out := make([]Pair, 0, len(exposure))
	for _, e := range exposure {
		if _, exists := seen[e.SNP]; exists {
			return nil, pfx.Err(fmt.Errorf("Duplicate SNP %s in exposure records", e.SNP))
		}
		seen[e.SNP] = struct{}{}

		t, exists := targets[e.SNP]
		if !exists {
			continue
		}

		out = append(out, align(e, t, action))
	}

	return out, nil
}

func align(e, t sumstats.Association, action Action) Pair {
	a1 := upper(e.EffectAllele)
	a2 := upper(e.OtherAllele)
	b1 := upper(t.EffectAllele)
	b2 := upper(t.OtherAllele)

	p := Pair{
		SNP:          e.SNP,
		EffectAllele: a1,
		OtherAllele:  a2,
		ExposureBeta: e.Beta,
		ExposureSE:   e.SE,
		ExposurePval: e.Pval,
		ExposureEAF:  e.EAF,
		TargetBeta:   t.Beta,
		TargetSE:     t.SE,
		TargetPval:   t.Pval,
		TargetEAF:    t.EAF,
		Palindromic:  palindromic(a1, a2),
		Keep:         true,
	}

	if a1 == "" || a2 == "" || b1 == "" || b2 == "" {
		p.Keep = false
		return p
	}

	if p.Palindromic {
		alignPalindromic(&p, b1, b2, action)
		return p
	}

	switch {
	case b1 == a1 && b2 == a2:
		// Already on the same convention
	case b1 == a2 && b2 == a1:
		p.flipSign()
	case !a1.IsBase() || !a2.IsBase() || !b1.IsBase() || !b2.IsBase():
		// Strand inference needs single bases on both sides; indels that
		// match neither directly nor swapped cannot be reconciled
		p.Keep = false
	default:
		f1, f2 := b1.Complement(), b2.Complement()
		switch {
		case f1 == a1 && f2 == a2:
			p.StrandFlipped = true
		case f1 == a2 && f2 == a1:
			p.StrandFlipped = true
			p.flipSign()
		default:
			p.Keep = false
		}
	}

	return p
}

// alignPalindromic handles A/T and C/G variants, whose labels are
// identical on both strands. The labels can still verify that the two
// datasets describe the same variant, but only the Action decides the
// orientation.
func alignPalindromic(p *Pair, b1, b2 sumstats.Allele, action Action) {
	if !(b1 == p.EffectAllele && b2 == p.OtherAllele) && !(b1 == p.OtherAllele && b2 == p.EffectAllele) {
		p.Keep = false
		return
	}

	switch action {
	case ActionAssume:
		if b1 == p.OtherAllele {
			p.flipSign()
		}
	case ActionInfer:
		if ambiguousFreq(p.ExposureEAF) || ambiguousFreq(p.TargetEAF) {
			p.Keep = false
			return
		}
		// Frequencies on opposite sides of 0.5 mean the two datasets
		// counted different physical alleles
		if (p.ExposureEAF < 0.5) != (p.TargetEAF < 0.5) {
			p.flipSign()
		}
	case ActionDrop:
		p.Keep = false
	}
}

// flipSign re-expresses the target effect for the opposite allele.
func (p *Pair) flipSign() {
	p.TargetBeta *= -1
	p.TargetEAF = 1 - p.TargetEAF
	p.SignFlipped = !p.SignFlipped
}

// palindromic reports whether the allele pair reads the same on both
// strands, making strand assignment ambiguous.
func palindromic(a1, a2 sumstats.Allele) bool {
	return a1.IsBase() && a2.IsBase() && a1.Complement() == a2
}

// ambiguousFreq reports whether the frequency is missing or too close to
// 0.5 to identify the strand of a palindromic SNP.
func ambiguousFreq(eaf float64) bool {
	if math.IsNaN(eaf) {
		return true
	}

	return eaf > 0.5-ambiguityWindow && eaf < 0.5+ambiguityWindow
}

func upper(a sumstats.Allele) sumstats.Allele {
	return sumstats.Allele(strings.ToUpper(strings.TrimSpace(string(a))))
}
