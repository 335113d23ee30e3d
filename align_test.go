package mvmr

import (
	"fmt"
	"math"
	"testing"

	"github.com/carbocation/mvmr/sumstats"
)

func assoc(snp, ea, oa string, eaf, beta, se, pval float64) sumstats.Association {
	return sumstats.Association{
		SNP:          snp,
		EffectAllele: sumstats.Allele(ea),
		OtherAllele:  sumstats.Allele(oa),
		EAF:          eaf,
		Beta:         beta,
		SE:           se,
		Pval:         pval,
	}
}

// alignFixture exercises every alignment path at once: rs1 matches
// as-is everywhere, rs2 arrives allele-swapped in exp2 and the outcome,
// rs3 is palindromic and resolved by frequency, rs4 is missing from
// exp2, and rs5 carries an incompatible outcome allele.
func alignFixture() ([]sumstats.Table, sumstats.Table) {
	exp1 := sumstats.Table{ID: "exp1", Name: "LDL cholesterol", Records: []sumstats.Association{
		assoc("rs1", "A", "G", 0.2, 0.5, 0.01, 1e-10),
		assoc("rs2", "C", "T", 0.3, 0.4, 0.02, 1e-9),
		assoc("rs3", "A", "T", 0.3, 0.3, 0.03, 1e-8),
		assoc("rs4", "A", "G", 0.25, 0.2, 0.02, 1e-7),
		assoc("rs5", "A", "G", 0.3, 0.1, 0.02, 1e-6),
	}}

	exp2 := sumstats.Table{ID: "exp2", Name: "HDL cholesterol", Records: []sumstats.Association{
		assoc("rs1", "G", "A", 0.8, -0.1, 0.011, 1e-5),
		assoc("rs2", "G", "A", 0.3, 0.15, 0.021, 2e-5),
		assoc("rs3", "A", "T", 0.9, 0.2, 0.031, 3e-5),
		assoc("rs5", "A", "G", 0.3, 0.12, 0.02, 1e-4),
	}}

	exp3 := sumstats.Table{ID: "exp3", Name: "triglycerides", Records: []sumstats.Association{
		assoc("rs1", "A", "G", 0.21, 0.7, 0.012, 1e-6),
		assoc("rs2", "C", "T", 0.31, 0.6, 0.022, 2e-6),
		assoc("rs3", "A", "T", 0.12, 0.05, 0.032, 3e-6),
		assoc("rs4", "A", "G", 0.26, 0.9, 0.02, 1e-5),
		assoc("rs5", "A", "G", 0.31, 0.2, 0.02, 2e-5),
	}}

	outcome := sumstats.Table{ID: "out1", Name: "coronary artery disease", Records: []sumstats.Association{
		assoc("rs1", "A", "G", 0.2, 0.03, 0.01, 0.001),
		assoc("rs2", "T", "C", 0.7, -0.02, 0.012, 0.002),
		assoc("rs3", "A", "T", 0.85, 0.04, 0.015, 0.003),
		assoc("rs4", "A", "G", 0.25, 0.05, 0.01, 0.004),
		assoc("rs5", "A", "C", 0.3, 0.06, 0.01, 0.005),
	}}

	return []sumstats.Table{exp1, exp2, exp3}, outcome
}

func TestHarmonise(t *testing.T) {
	exposures, outcome := alignFixture()

	d, err := Harmonise("exp1", exposures, outcome, AlignOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// rs4 is missing from exp2 and the rs5 outcome alleles cannot be
	// reconciled, so three SNPs remain.
	wantSNPs := []string{"rs1", "rs2", "rs3"}
	if len(d.SNPs) != len(wantSNPs) {
		t.Fatalf("SNPs = %v, expected %v", d.SNPs, wantSNPs)
	}
	for i, snp := range wantSNPs {
		if d.SNPs[i] != snp {
			t.Fatalf("SNPs = %v, expected %v", d.SNPs, wantSNPs)
		}
	}
	if d.NExposures() != 3 || d.ExposureIDs[0] != "exp1" || d.ExposureIDs[1] != "exp2" || d.ExposureIDs[2] != "exp3" {
		t.Fatalf("ExposureIDs = %v", d.ExposureIDs)
	}

	// exp2's rs1 arrives with swapped alleles (sign flip), rs2 on the
	// opposite strand (no flip), and rs3 palindromic with an effect
	// allele frequency on the far side of 0.5 (sign flip).
	wantBeta := [][]float64{
		{0.5, 0.1, 0.7},
		{0.4, 0.15, 0.6},
		{0.3, -0.2, 0.05},
	}
	wantSE := [][]float64{
		{0.01, 0.011, 0.012},
		{0.02, 0.021, 0.022},
		{0.03, 0.031, 0.032},
	}
	for i := range wantBeta {
		for j := range wantBeta[i] {
			if got := d.ExposureBeta.At(i, j); !almostEqual(got, wantBeta[i][j], 1e-12) {
				t.Errorf("beta[%s][%s] = %g, expected %g", d.SNPs[i], d.ExposureIDs[j], got, wantBeta[i][j])
			}
			if got := d.ExposureSE.At(i, j); !almostEqual(got, wantSE[i][j], 1e-12) {
				t.Errorf("se[%s][%s] = %g, expected %g", d.SNPs[i], d.ExposureIDs[j], got, wantSE[i][j])
			}
		}
	}

	// Outcome rs2 arrives allele-swapped, rs3 palindromic and flipped.
	wantOut := []float64{0.03, 0.02, -0.04}
	wantOutSE := []float64{0.01, 0.012, 0.015}
	wantOutPval := []float64{0.001, 0.002, 0.003}
	for i := range wantOut {
		if !almostEqual(d.OutcomeBeta[i], wantOut[i], 1e-12) {
			t.Errorf("outcome beta[%s] = %g, expected %g", d.SNPs[i], d.OutcomeBeta[i], wantOut[i])
		}
		if !almostEqual(d.OutcomeSE[i], wantOutSE[i], 1e-12) {
			t.Errorf("outcome se[%s] = %g, expected %g", d.SNPs[i], d.OutcomeSE[i], wantOutSE[i])
		}
		if !almostEqual(d.OutcomePval[i], wantOutPval[i], 1e-12) {
			t.Errorf("outcome pval[%s] = %g, expected %g", d.SNPs[i], d.OutcomePval[i], wantOutPval[i])
		}
	}

	if d.OutcomeID != "out1" || d.OutcomeName != "coronary artery disease" {
		t.Errorf("outcome identity = %s/%s", d.OutcomeID, d.OutcomeName)
	}
	if d.ExposureNames["exp2"] != "HDL cholesterol" {
		t.Errorf("exposure names = %v", d.ExposureNames)
	}
}

func TestHarmoniseErrors(t *testing.T) {
	exposures, outcome := alignFixture()

	if _, err := Harmonise("exp9", exposures, outcome, AlignOptions{}); err == nil {
		t.Error("expected an error for an unknown anchor")
	}
	if _, err := Harmonise("exp1", exposures[:1], outcome, AlignOptions{}); err == nil {
		t.Error("expected an error for a single exposure")
	}

	dup := append([]sumstats.Table(nil), exposures...)
	dup[1].ID = "exp1"
	if _, err := Harmonise("exp1", dup, outcome, AlignOptions{}); err == nil {
		t.Error("expected an error for a duplicate exposure ID")
	}

	dupSNP := append([]sumstats.Table(nil), exposures...)
	dupSNP[2] = sumstats.Table{ID: "exp3", Name: "triglycerides", Records: []sumstats.Association{
		assoc("rs1", "A", "G", 0.2, 0.1, 0.01, 1e-8),
		assoc("rs1", "A", "G", 0.2, 0.1, 0.01, 1e-8),
	}}
	if _, err := Harmonise("exp1", dupSNP, outcome, AlignOptions{}); err == nil {
		t.Error("expected an error for a duplicated SNP")
	}

	strangers := sumstats.Table{ID: "out2", Name: "unrelated", Records: []sumstats.Association{
		assoc("rs99", "A", "G", 0.2, 0.01, 0.01, 0.5),
	}}
	if _, err := Harmonise("exp1", exposures, strangers, AlignOptions{}); err == nil {
		t.Error("expected an error when no SNPs survive")
	}
}

// TestEndToEnd drives 20 shared SNPs across three exposures through
// harmonisation and the joint estimator. The outcome is three times the
// second exposure's effect plus a wiggle orthogonal to every column, so
// the pooled fit recovers exactly [0, 3, 0].
func TestEndToEnd(t *testing.T) {
	n := 20
	ids := []string{"exp1", "exp2", "exp3"}
	names := map[string]string{"exp1": "LDL cholesterol", "exp2": "HDL cholesterol", "exp3": "triglycerides"}

	pattern := func(i, j int) float64 {
		on := []bool{i%2 == 1, (i / 2 % 2) == 1, (i / 4 % 2) == 1}[j]
		if on {
			return -0.1
		}
		return 0.1
	}
	hPattern := []float64{1, -1, -1, 1}

	exposures := make([]sumstats.Table, 3)
	for j, id := range ids {
		tab := sumstats.Table{ID: id, Name: names[id]}
		for i := 0; i < n; i++ {
			snp := fmt.Sprintf("rs%02d", i)
			tab.Records = append(tab.Records, assoc(snp, "A", "G", 0.2, pattern(i, j), 0.05, 1e-10))
		}
		exposures[j] = tab
	}

	outcome := sumstats.Table{ID: "out1", Name: "coronary artery disease"}
	for i := 0; i < n; i++ {
		snp := fmt.Sprintf("rs%02d", i)
		y := 3*pattern(i, 1) + 0.05*hPattern[i%4]
		outcome.Records = append(outcome.Records, assoc(snp, "A", "G", 0.2, y, 0.01, 0.001))
	}

	d, err := Harmonise("exp1", exposures, outcome, AlignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if d.NSNPs() != n {
		t.Fatalf("aligned %d SNPs, expected %d", d.NSNPs(), n)
	}

	res, err := Multiple(d, Options{})
	if err != nil {
		t.Fatal(err)
	}

	wantB := []float64{0, 3, 0}
	wantSE := math.Sqrt(0.25 / 17) // df = 20 - 3
	for j, est := range res.Estimates {
		if !almostEqual(est.B.Float64, wantB[j], 1e-9) {
			t.Errorf("%s: b = %v, expected %g", est.ExposureID, est.B, wantB[j])
		}
		if !almostEqual(est.SE.Float64, wantSE, 1e-9) {
			t.Errorf("%s: se = %v, expected %g", est.ExposureID, est.SE, wantSE)
		}
	}
	if res.Estimates[1].Pval.Float64 > 0.05 {
		t.Errorf("exp2 pval = %v, expected well under 0.05", res.Estimates[1].Pval)
	}
}
