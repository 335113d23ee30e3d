package mvmr

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestInstrumentStrength(t *testing.T) {
	// exp1's three instruments have F = (beta/se)^2 of 25, 100, and 400;
	// exp2 has no instrument at genome-wide significance.
	d := &Dataset{
		SNPs:          []string{"rs1", "rs2", "rs3"},
		ExposureIDs:   []string{"exp1", "exp2"},
		ExposureNames: map[string]string{"exp1": "LDL cholesterol", "exp2": "HDL cholesterol"},
		OutcomeID:     "out1",
		OutcomeName:   "coronary artery disease",
		ExposureBeta: mat.NewDense(3, 2, []float64{
			0.05, 0.05,
			0.10, 0.10,
			0.20, 0.20,
		}),
		ExposureSE: mat.NewDense(3, 2, []float64{
			0.01, 0.01,
			0.01, 0.01,
			0.01, 0.01,
		}),
		ExposurePval: mat.NewDense(3, 2, []float64{
			1e-10, 0.5,
			1e-12, 0.5,
			1e-20, 0.5,
		}),
		OutcomeBeta: []float64{0.01, 0.02, 0.03},
		OutcomeSE:   []float64{0.01, 0.01, 0.01},
		OutcomePval: []float64{0.1, 0.2, 0.3},
	}

	out, err := InstrumentStrength(d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}

	s := out[0]
	if s.ExposureID != "exp1" || s.NInstruments != 3 {
		t.Fatalf("exp1 summary = %+v", s)
	}
	for _, c := range []struct {
		name string
		got  float64
		want float64
	}{
		{"mean", s.MeanF, 175},
		{"median", s.MedianF, 100},
		{"min", s.MinF, 25},
		{"max", s.MaxF, 400},
	} {
		if !almostEqual(c.got, c.want, 1e-9) {
			t.Errorf("exp1 %s F = %g, expected %g", c.name, c.got, c.want)
		}
	}

	weak := out[1]
	if weak.NInstruments != 0 {
		t.Errorf("exp2 should have no instruments, got %d", weak.NInstruments)
	}
	if !math.IsNaN(weak.MeanF) || !math.IsNaN(weak.MedianF) || !math.IsNaN(weak.MinF) || !math.IsNaN(weak.MaxF) {
		t.Errorf("exp2 summaries should be NaN, got %+v", weak)
	}
}

func TestInstrumentStrengthThreshold(t *testing.T) {
	d := testDataset()

	// A permissive threshold admits every SNP for every exposure, and
	// the uniform beta/se ratio collapses the summaries to a point.
	out, err := InstrumentStrength(d, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range out {
		if s.NInstruments != 16 {
			t.Errorf("%s: NInstruments = %d, expected 16", s.ExposureID, s.NInstruments)
		}
		if !almostEqual(s.MeanF, 4, 1e-9) || !almostEqual(s.MaxF, 4, 1e-9) {
			t.Errorf("%s: F summaries = %+v, expected all 4", s.ExposureID, s)
		}
	}
}
