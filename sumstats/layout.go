package sumstats

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/pfx"
)

// Layout maps the header names of a summary statistics file onto the
// fields of an Association. Matching is by column name rather than
// position, because the same quantities appear under different names (and
// in different orders) across association-testing tools.
type Layout struct {
	Delimiter    rune // 0 means detect the delimiter from the file itself
	Comment      rune
	SNP          string
	EffectAllele string
	OtherAllele  string
	EAF          string // optional; "" means the file carries no frequency column
	Beta         string
	SE           string
	Pval         string
}

var Layouts = map[string]Layout{
	// Column names used by the IEU GWAS pipeline exports and most tooling
	// downstream of them.
	"GWAS": {
		Delimiter:    '\t',
		Comment:      '#',
		SNP:          "SNP",
		EffectAllele: "effect_allele",
		OtherAllele:  "other_allele",
		EAF:          "eaf",
		Beta:         "beta",
		SE:           "se",
		Pval:         "pval",
	},
	// METAL meta-analysis output.
	"METAL": {
		Delimiter:    '\t',
		Comment:      '#',
		SNP:          "MarkerName",
		EffectAllele: "Allele1",
		OtherAllele:  "Allele2",
		EAF:          "Freq1",
		Beta:         "Effect",
		SE:           "StdErr",
		Pval:         "P-value",
	},
	// BOLT-LMM output. ALLELE1 is the effect allele.
	"BOLT": {
		Delimiter:    '\t',
		Comment:      '#',
		SNP:          "SNP",
		EffectAllele: "ALLELE1",
		OtherAllele:  "ALLELE0",
		EAF:          "A1FREQ",
		Beta:         "BETA",
		SE:           "SE",
		Pval:         "P_BOLT_LMM",
	},
}

func LayoutNames() string {
	b := strings.Builder{}
	i := 0
	for m := range Layouts {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(m)
		i++
	}

	return b.String()
}

// jsonLayout is the on-disk representation of a custom Layout. Delimiter
// and comment are strings so that a literal tab can be written as "\t" in
// the JSON itself.
type jsonLayout struct {
	Delimiter    string `json:"delimiter"`
	Comment      string `json:"comment"`
	SNP          string `json:"snp"`
	EffectAllele string `json:"effect_allele"`
	OtherAllele  string `json:"other_allele"`
	EAF          string `json:"eaf"`
	Beta         string `json:"beta"`
	SE           string `json:"se"`
	Pval         string `json:"pval"`
}

// LoadLayout reads a custom column layout from a JSON file, for summary
// statistics whose columns match none of the named Layouts.
func LoadLayout(path string) (Layout, error) {
	out := Layout{}

	f, err := os.Open(path)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	jl := jsonLayout{}
	if err := json.NewDecoder(f).Decode(&jl); err != nil {
		return out, pfx.Err(err)
	}

	out = Layout{
		SNP:          jl.SNP,
		EffectAllele: jl.EffectAllele,
		OtherAllele:  jl.OtherAllele,
		EAF:          jl.EAF,
		Beta:         jl.Beta,
		SE:           jl.SE,
		Pval:         jl.Pval,
	}
	for _, r := range jl.Delimiter {
		out.Delimiter = r
		break
	}
	for _, r := range jl.Comment {
		out.Comment = r
		break
	}

	if _, err := NewWithLayout(out); err != nil {
		return out, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	return out, nil
}
