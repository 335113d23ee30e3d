package sumstats

import (
	"compress/gzip"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGWASLayout(t *testing.T) {
	input := "SNP\teffect_allele\tother_allele\teaf\tbeta\tse\tpval\n" +
		"rs1\tA\tG\t0.2\t0.5\t0.1\t1e-9\n" +
		"RS2\tc\tt\tNA\t-0.3\t0.05\t2e-8\n"

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	table, err := p.Read(strings.NewReader(input), "exp1", "LDL cholesterol")
	if err != nil {
		t.Fatal(err)
	}

	if table.ID != "exp1" || table.Name != "LDL cholesterol" {
		t.Error("Mismatch")
	}
	if len(table.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(table.Records))
	}

	r := table.Records[0]
	if r.SNP != "rs1" ||
		r.EffectAllele != Allele("A") ||
		r.OtherAllele != Allele("G") ||
		math.Abs(r.EAF-0.2) > 1e-9 ||
		math.Abs(r.Beta-0.5) > 1e-9 ||
		math.Abs(r.SE-0.1) > 1e-9 ||
		math.Abs(r.Pval-1e-9) > 1e-18 {
		t.Error("Mismatch")
	}

	// Identifiers and alleles are normalized; a missing frequency is NaN
	r = table.Records[1]
	if r.SNP != "rs2" ||
		r.EffectAllele != Allele("C") ||
		r.OtherAllele != Allele("T") ||
		!math.IsNaN(r.EAF) {
		t.Error("Mismatch")
	}
}

func TestMETALLayout(t *testing.T) {
	input := "MarkerName\tAllele1\tAllele2\tFreq1\tEffect\tStdErr\tP-value\n" +
		"rs123\ta\tg\t0.331\t0.021\t0.004\t6.7e-8\n"

	p, err := New("METAL")
	if err != nil {
		t.Fatal(err)
	}

	table, err := p.Read(strings.NewReader(input), "metal", "height")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(table.Records))
	}

	r := table.Records[0]
	if r.SNP != "rs123" ||
		r.EffectAllele != Allele("A") ||
		r.OtherAllele != Allele("G") ||
		math.Abs(r.EAF-0.331) > 1e-9 ||
		math.Abs(r.Beta-0.021) > 1e-9 ||
		math.Abs(r.SE-0.004) > 1e-9 ||
		math.Abs(r.Pval-6.7e-8) > 1e-15 {
		t.Error("Mismatch")
	}
}

func TestSkipsIncompleteRows(t *testing.T) {
	input := "SNP\teffect_allele\tother_allele\teaf\tbeta\tse\tpval\n" +
		"rs1\tA\tG\t0.2\tNA\t0.1\t0.5\n" +
		"rs2\tA\tG\t0.2\t0.1\t.\t0.5\n" +
		"rs3\tA\tG\n" +
		"\tA\tG\t0.2\t0.1\t0.05\t0.5\n" +
		"rs4\tA\tG\t0.2\t0.1\t0.05\t0.5\n"

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	table, err := p.Read(strings.NewReader(input), "exp1", "trait")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(table.Records))
	}
	if table.Records[0].SNP != "rs4" {
		t.Errorf("expected rs4, got %s", table.Records[0].SNP)
	}
}

func TestUnparseableValue(t *testing.T) {
	input := "SNP\teffect_allele\tother_allele\teaf\tbeta\tse\tpval\n" +
		"rs1\tA\tG\t0.2\tnot-a-number\t0.1\t0.5\n"

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Read(strings.NewReader(input), "exp1", "trait"); err == nil {
		t.Error("expected an error for a non-numeric beta")
	}
}

func TestCommentLines(t *testing.T) {
	input := "# exported 2021-06-01\n" +
		"SNP\teffect_allele\tother_allele\teaf\tbeta\tse\tpval\n" +
		"# genome-wide significant subset\n" +
		"rs1\tA\tG\t0.2\t0.5\t0.1\t1e-9\n"

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	table, err := p.Read(strings.NewReader(input), "exp1", "trait")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 1 || table.Records[0].SNP != "rs1" {
		t.Error("Mismatch")
	}
}

func TestDelimiterDetection(t *testing.T) {
	l := Layouts["GWAS"]
	l.Delimiter = 0

	p, err := NewWithLayout(l)
	if err != nil {
		t.Fatal(err)
	}

	input := "SNP,effect_allele,other_allele,eaf,beta,se,pval\n" +
		"rs1,A,G,0.2,0.5,0.1,1e-9\n" +
		"rs2,C,T,0.3,0.4,0.1,1e-9\n" +
		"rs3,G,A,0.4,0.3,0.1,1e-9\n"

	table, err := p.Read(strings.NewReader(input), "exp1", "trait")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(table.Records))
	}
	if table.Records[2].SNP != "rs3" || table.Records[2].EffectAllele != Allele("G") {
		t.Error("Mismatch")
	}
}

func TestMissingColumn(t *testing.T) {
	input := "SNP\teffect_allele\tother_allele\teaf\tbeta\tse\n" +
		"rs1\tA\tG\t0.2\t0.5\t0.1\n"

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Read(strings.NewReader(input), "exp1", "trait"); err == nil {
		t.Error("expected an error when the pval column is absent")
	}
}

func TestLayoutWithoutEAF(t *testing.T) {
	l := Layouts["GWAS"]
	l.EAF = ""

	p, err := NewWithLayout(l)
	if err != nil {
		t.Fatal(err)
	}

	input := "SNP\teffect_allele\tother_allele\tbeta\tse\tpval\n" +
		"rs1\tA\tG\t0.5\t0.1\t1e-9\n"

	table, err := p.Read(strings.NewReader(input), "exp1", "trait")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 1 || !math.IsNaN(table.Records[0].EAF) {
		t.Error("Mismatch")
	}
}

func TestUnknownLayout(t *testing.T) {
	if _, err := New("NOT_A_LAYOUT"); err == nil {
		t.Error("expected an error for an unknown layout name")
	}
}

func TestGzippedFile(t *testing.T) {
	input := "SNP\teffect_allele\tother_allele\teaf\tbeta\tse\tpval\n" +
		"rs1\tA\tG\t0.2\t0.5\t0.1\t1e-9\n"

	path := filepath.Join(t.TempDir(), "stats.tsv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(input)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	p, err := New("GWAS")
	if err != nil {
		t.Fatal(err)
	}

	table, err := p.ReadFile(path, "exp1", "trait")
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Records) != 1 || table.Records[0].SNP != "rs1" {
		t.Error("Mismatch")
	}
}
