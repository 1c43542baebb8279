package table

// loader.go turns a delimited source into a Table.
//
// The reader pipeline is:
//  1. gzip decompression when the source starts with the gzip magic bytes
//  2. character set decoding to UTF-8 (BOM stripped, invalid bytes replaced)
//  3. encoding/csv parsing with the header fixing the field count
//  4. per-cell normalization (trim, formula wrappers, null tokens)

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
)

// CommonNullTokens are spellings of "no value" that spreadsheet exports and
// dataframe tools commonly write. Pass them to WithNullTokens to load them as
// empty cells.
var CommonNullTokens = []string{
	"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// PandasNulls stands for CommonNullTokens in a token list.
const PandasNulls = "pandas"

// ExpandNullTokens trims tokens, drops empty ones and replaces PandasNulls
// with CommonNullTokens.
func ExpandNullTokens(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
		case strings.EqualFold(tok, PandasNulls):
			out = append(out, CommonNullTokens...)
		default:
			out = append(out, tok)
		}
	}
	return out
}

// ParseNullTokens splits a comma-separated token list and expands it.
func ParseNullTokens(s string) []string {
	return ExpandNullTokens(strings.Split(s, ","))
}

var gzipMagic = []byte{0x1f, 0x8b}

// Option configures Load.
type Option func(*options)

type options struct {
	delimiter    rune
	encoding     string
	nullTokens   map[string]struct{}
	trimSpace    bool
	stripFormula bool
	maxRows      int
}

func defaultOptions() options {
	return options{delimiter: ','}
}

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(r rune) Option {
	return func(o *options) { o.delimiter = r }
}

// WithEncoding sets the source character set (default UTF-8).
func WithEncoding(name string) Option {
	return func(o *options) { o.encoding = name }
}

// WithNullTokens adds literal cell values that are loaded as empty cells.
func WithNullTokens(tokens ...string) Option {
	return func(o *options) {
		if o.nullTokens == nil {
			o.nullTokens = make(map[string]struct{}, len(tokens))
		}
		for _, tok := range tokens {
			o.nullTokens[tok] = struct{}{}
		}
	}
}

// WithTrimSpace trims surrounding whitespace from headers and cells.
func WithTrimSpace(trim bool) Option {
	return func(o *options) { o.trimSpace = trim }
}

// WithStripFormula unwraps Excel text formulas (="00123") to their literal.
func WithStripFormula(strip bool) Option {
	return func(o *options) { o.stripFormula = strip }
}

// WithMaxRows rejects sources with more than n data rows. Zero means no limit.
func WithMaxRows(n int) Option {
	return func(o *options) { o.maxRows = n }
}

// LoadFile opens path and loads it. The table is named after the file.
func LoadFile(path string, opts ...Option) (*Table, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, loadErr(name, KindUnreadable, 0, err)
	}
	defer f.Close()

	return Load(f, name, opts...)
}

// Load parses a delimited source. The first record is the header.
// Missing and null cells become the empty string; row order is preserved.
func Load(r io.Reader, name string, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if !validDelimiter(o.delimiter) {
		return nil, loadErr(name, KindUnreadable, 0, fmt.Errorf("invalid delimiter %q", o.delimiter))
	}

	src, err := maybeGunzip(r)
	if err != nil {
		return nil, loadErr(name, KindUnreadable, 0, err)
	}

	text, err := decode(src, o.encoding)
	if err != nil {
		return nil, loadErr(name, KindUnreadable, 0, err)
	}

	cr := csv.NewReader(text)
	cr.Comma = o.delimiter
	cr.FieldsPerRecord = 0 // fixed by the header

	header, err := cr.Read()
	if err == io.EOF {
		return nil, loadErr(name, KindNoColumns, 0, errors.New("source is empty"))
	}
	if err != nil {
		return nil, readErr(name, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if o.trimSpace {
			h = strings.TrimSpace(h)
		}
		columns[i] = h
	}
	if len(columns) == 1 && columns[0] == "" {
		return nil, loadErr(name, KindNoColumns, 1, errors.New("header has no column names"))
	}

	t, err := newTable(name, columns)
	if err != nil {
		return nil, loadErr(name, KindMalformed, 1, err)
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readErr(name, err)
		}

		if o.maxRows > 0 && len(t.records) >= o.maxRows {
			line, _ := cr.FieldPos(0)
			return nil, loadErr(name, KindTooLarge, line, fmt.Errorf("more than %d rows", o.maxRows))
		}

		for i, cell := range row {
			row[i] = o.normalize(cell)
		}
		t.records = append(t.records, t.makeRecord(row))
	}

	return t, nil
}

// normalize canonicalizes a raw cell to its comparison form.
func (o *options) normalize(cell string) string {
	if o.trimSpace {
		cell = strings.TrimSpace(cell)
	}
	if o.stripFormula && strings.HasPrefix(cell, `="`) && strings.HasSuffix(cell, `"`) && len(cell) >= 3 {
		cell = cell[2 : len(cell)-1]
	}
	if _, isNull := o.nullTokens[cell]; isNull {
		return ""
	}
	return cell
}

// readErr classifies an error returned by csv.Reader.
func readErr(name string, err error) *LoadError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return loadErr(name, KindMalformed, pe.Line, pe.Err)
	}
	return loadErr(name, KindUnreadable, 0, err)
}

// maybeGunzip transparently decompresses gzip sources.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// ParseDelimiter converts a flag or form value into a delimiter rune.
// The names "tab", "comma", "semicolon" and "pipe" and the escape `\t` are
// accepted alongside a single literal character. Empty selects the comma.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || !validDelimiter(r) {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", s)
	}
	return r, nil
}
