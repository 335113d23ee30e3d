// Package sumstats models GWAS summary statistics: per-SNP effect
// estimates for a single trait, read from the delimited text files that
// association-testing tools emit.
package sumstats

// Allele is one allele of a variant as labeled in a summary statistics
// file: a single base for a SNP, or a longer sequence for an indel.
type Allele string

// Complement returns the reverse-strand base for a single-base allele, or
// the empty Allele when the input is not one of A, C, G, or T.
func (a Allele) Complement() Allele {
	switch a {
	case "A":
		return "T"
	case "T":
		return "A"
	case "C":
		return "G"
	case "G":
		return "C"
	}

	return ""
}

// IsBase reports whether the allele is a single unambiguous nucleotide.
func (a Allele) IsBase() bool {
	switch a {
	case "A", "C", "G", "T":
		return true
	}

	return false
}

// Association is one SNP's estimated effect on one trait. EAF is the
// frequency of the effect allele and is NaN when the file reports none;
// everything else is required.
type Association struct {
	SNP          string
	EffectAllele Allele
	OtherAllele  Allele
	EAF          float64
	Beta         float64
	SE           float64
	Pval         float64
}

// Table is the ordered collection of associations measured for one trait.
// ID is the study or dataset identifier and Name the human-readable trait
// name; both travel with every downstream result row.
type Table struct {
	ID      string
	Name    string
	Records []Association
}

// SNPs returns the SNP identifiers in record order.
func (t Table) SNPs() []string {
	out := make([]string, 0, len(t.Records))
	for _, r := range t.Records {
		out = append(out, r.SNP)
	}

	return out
}

// DuplicateSNP returns the first SNP identifier that occurs more than once
// in the table. A duplicate makes the table unusable for matrix pivoting,
// so callers treat this as a data error rather than deduplicating.
func (t Table) DuplicateSNP() (string, bool) {
	seen := make(map[string]struct{}, len(t.Records))
	for _, r := range t.Records {
		if _, exists := seen[r.SNP]; exists {
			return r.SNP, true
		}
		seen[r.SNP] = struct{}{}
	}

	return "", false
}
