package sumstats

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
)

// Parser reads summary statistics files under a given column Layout.
type Parser struct {
	Layout Layout
}

// New returns a Parser for the named layout.
func New(layout string) (*Parser, error) {
	l, exists := Layouts[layout]
	if !exists {
		return nil, fmt.Errorf("Layout %s is not found. Valid layout names include: %s", layout, LayoutNames())
	}

	return NewWithLayout(l)
}

func NewWithLayout(l Layout) (*Parser, error) {
	if l.SNP == "" || l.EffectAllele == "" || l.OtherAllele == "" || l.Beta == "" || l.SE == "" || l.Pval == "" {
		return nil, fmt.Errorf("Layout must name the SNP, effect_allele, other_allele, beta, se, and pval columns")
	}

	return &Parser{Layout: l}, nil
}

// ReadFile parses the summary statistics file at path, which may be
// gzip-compressed, into a Table for the trait identified by id and name.
func (p *Parser) ReadFile(path, id, name string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{ID: id, Name: name}, pfx.Err(err)
	}
	defer f.Close()

	r, err := maybeDecompress(f)
	if err != nil {
		return Table{ID: id, Name: name}, pfx.Err(err)
	}

	return p.Read(r, id, name)
}

// Read parses summary statistics from r into a Table. The first
// non-comment line must be a header naming, at minimum, every required
// column of the Layout. SNP identifiers are lowercased and alleles
// uppercased so that tables from different sources join cleanly. Rows
// whose beta, SE, or p-value is missing (empty, NA, or .) are skipped:
// they cannot contribute to estimation. A missing or unparseable
// frequency yields EAF = NaN.
func (p *Parser) Read(r io.Reader, id, name string) (Table, error) {
	t := Table{ID: id, Name: name}

	raw, err := io.ReadAll(r)
	if err != nil {
		return t, pfx.Err(err)
	}

	delim := p.Layout.Delimiter
	if delim == 0 {
		delim = DetermineDelimiter(bytes.NewReader(raw))
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = delim
	cr.Comment = p.Layout.Comment
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return t, pfx.Err(fmt.Errorf("Header parsing error: %v", err))
	}

	cols, err := p.Layout.resolve(header)
	if err != nil {
		return t, pfx.Err(err)
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, pfx.Err(err)
		}

		// Jagged trailing rows cannot hold the columns we need
		if len(row) <= cols.max {
			continue
		}

		rec, ok, err := cols.parse(row)
		if err != nil {
			return t, pfx.Err(err)
		}
		if !ok {
			continue
		}

		t.Records = append(t.Records, rec)
	}

	return t, nil
}

// DetermineDelimiter returns the single most likely rune that would
// delimit the values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return '\t'
}

var gzipMagic = []byte{0x1f, 0x8b}

// maybeDecompress wraps f in a gzip reader when the file starts with the
// gzip signature, and returns it unwrapped otherwise.
func maybeDecompress(f *os.File) (io.Reader, error) {
	buff := make([]byte, 2)
	if _, err := io.ReadFull(f, buff); err != nil {
		// Too short to be compressed; re-read it as-is
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return f, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if bytes.Equal(buff, gzipMagic) {
		return gzip.NewReader(f)
	}

	return f, nil
}

// columns holds the resolved positions of each needed field within one
// file's header. eaf is -1 when the file has no frequency column.
type columns struct {
	snp, ea, oa, beta, se, pval int
	eaf                         int
	max                         int
}

func (l Layout) resolve(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	c := columns{eaf: -1}
	for _, want := range []struct {
		name string
		dst  *int
	}{
		{l.SNP, &c.snp},
		{l.EffectAllele, &c.ea},
		{l.OtherAllele, &c.oa},
		{l.Beta, &c.beta},
		{l.SE, &c.se},
		{l.Pval, &c.pval},
	} {
		pos, ok := idx[want.name]
		if !ok {
			return c, fmt.Errorf("Column %q not found in header %v", want.name, header)
		}
		*want.dst = pos
		if pos > c.max {
			c.max = pos
		}
	}

	if l.EAF != "" {
		if pos, ok := idx[l.EAF]; ok {
			c.eaf = pos
			if pos > c.max {
				c.max = pos
			}
		}
	}

	return c, nil
}

func (c columns) parse(row []string) (Association, bool, error) {
	a := Association{
		SNP:          strings.ToLower(strings.TrimSpace(row[c.snp])),
		EffectAllele: Allele(strings.ToUpper(strings.TrimSpace(row[c.ea]))),
		OtherAllele:  Allele(strings.ToUpper(strings.TrimSpace(row[c.oa]))),
		EAF:          math.NaN(),
	}
	if a.SNP == "" {
		return a, false, nil
	}

	beta, ok, err := parseStat(row[c.beta])
	if err != nil || !ok {
		return a, false, err
	}
	a.Beta = beta

	se, ok, err := parseStat(row[c.se])
	if err != nil || !ok {
		return a, false, err
	}
	a.SE = se

	pval, ok, err := parseStat(row[c.pval])
	if err != nil || !ok {
		return a, false, err
	}
	a.Pval = pval

	if c.eaf >= 0 {
		if eaf, ok, err := parseStat(row[c.eaf]); err != nil {
			return a, false, err
		} else if ok {
			a.EAF = eaf
		}
	}

	return a, true, nil
}

// parseStat parses one numeric cell. The empty string and the usual
// missing-value markers report ok=false rather than an error, because
// real summary files are full of them.
func parseStat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", ".", "NA", "na", "NaN", "nan":
		return 0, false, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, pfx.Err(fmt.Errorf("Unparseable numeric value %q", s))
	}

	return v, true, nil
}
