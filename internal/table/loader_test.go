package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestLoad_Basic(t *testing.T) {
	src := "id,name,status\n1,A,open\n2,B,\n"

	tbl, err := Load(strings.NewReader(src), "before.csv")
	require.NoError(t, err)

	assert.Equal(t, "before.csv", tbl.Name())
	assert.Equal(t, []string{"id", "name", "status"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, Record{"id": "1", "name": "A", "status": "open"}, tbl.Record(0))
	assert.Equal(t, "", tbl.Record(1).Get("status"))
	assert.Equal(t, Record{"id": "2", "name": "B", "status": ""}, tbl.Record(1))
}

func TestLoad_PreservesRowOrder(t *testing.T) {
	src := "k\nc\na\nb\n"

	tbl, err := Load(strings.NewReader(src), "t")
	require.NoError(t, err)

	var got []string
	for i := 0; i < tbl.Len(); i++ {
		got = append(got, tbl.Record(i).Get("k"))
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		opts     []Option
		wantKind ErrorKind
		wantLine int
	}{
		{
			name:     "empty source",
			src:      "",
			wantKind: KindNoColumns,
		},
		{
			name:     "blank header",
			src:      "\"\"\n",
			wantKind: KindNoColumns,
			wantLine: 1,
		},
		{
			name:     "inconsistent field count",
			src:      "a,b\n1,2\n3,4,5\n",
			wantKind: KindMalformed,
			wantLine: 3,
		},
		{
			name:     "duplicate header",
			src:      "a,b,a\n1,2,3\n",
			wantKind: KindMalformed,
			wantLine: 1,
		},
		{
			name:     "empty column name",
			src:      "a,,b\n1,2,3\n",
			wantKind: KindMalformed,
			wantLine: 1,
		},
		{
			name:     "bare quote",
			src:      "a,b\n1,x\"y\n",
			wantKind: KindMalformed,
			wantLine: 2,
		},
		{
			name:     "too many rows",
			src:      "a\n1\n2\n3\n",
			opts:     []Option{WithMaxRows(2)},
			wantKind: KindTooLarge,
			wantLine: 4,
		},
		{
			name:     "bad delimiter",
			src:      "a\n1\n",
			opts:     []Option{WithDelimiter('"')},
			wantKind: KindUnreadable,
		},
		{
			name:     "unknown encoding",
			src:      "a\n1\n",
			opts:     []Option{WithEncoding("ebcdic")},
			wantKind: KindUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src), "src.csv", tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoad))

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.wantKind, le.Kind)
			assert.Equal(t, "src.csv", le.Source)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, le.Line)
			}
		})
	}
}

func TestLoad_NullTokens(t *testing.T) {
	src := "id,v\n1,NA\n2,null\n3,NAN\n"

	tbl, err := Load(strings.NewReader(src), "t", WithNullTokens(CommonNullTokens...))
	require.NoError(t, err)

	assert.Equal(t, "", tbl.Record(0).Get("v"))
	assert.Equal(t, "", tbl.Record(1).Get("v"))
	// Token matching is exact; NAN is not in the list.
	assert.Equal(t, "NAN", tbl.Record(2).Get("v"))
}

func TestParseNullTokens(t *testing.T) {
	assert.Nil(t, ParseNullTokens(""))
	assert.Equal(t, []string{"NA", "-"}, ParseNullTokens(" NA , ,-"))

	got := ParseNullTokens("Pandas,--")
	assert.Equal(t, append(append([]string{}, CommonNullTokens...), "--"), got)

	tbl, err := Load(strings.NewReader("id,v\n1,n/a\n2,--\n"), "t", WithNullTokens(got...))
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Record(0).Get("v"))
	assert.Equal(t, "", tbl.Record(1).Get("v"))
}

func TestLoad_TrimAndFormula(t *testing.T) {
	src := " id , v \n 1 ,\"=\"\"007\"\"\"\n"

	raw, err := Load(strings.NewReader(src), "t")
	require.NoError(t, err)
	assert.Equal(t, []string{" id ", " v "}, raw.Columns())

	tbl, err := Load(strings.NewReader(src), "t", WithTrimSpace(true), WithStripFormula(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "v"}, tbl.Columns())
	assert.Equal(t, "1", tbl.Record(0).Get("id"))
	assert.Equal(t, "007", tbl.Record(0).Get("v"))
}

func TestLoad_Delimiter(t *testing.T) {
	tbl, err := Load(strings.NewReader("a;b\n1;2\n"), "t", WithDelimiter(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	assert.Equal(t, "2", tbl.Record(0).Get("b"))
}

func TestLoad_Encodings(t *testing.T) {
	t.Run("utf-8 BOM is stripped", func(t *testing.T) {
		src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,x\n")...)
		tbl, err := Load(bytes.NewReader(src), "t")
		require.NoError(t, err)
		assert.True(t, tbl.HasColumn("id"))
	})

	t.Run("invalid utf-8 is replaced", func(t *testing.T) {
		src := []byte("id,name\n1,a\xffb\n")
		tbl, err := Load(bytes.NewReader(src), "t")
		require.NoError(t, err)
		assert.Equal(t, "a\ufffdb", tbl.Record(0).Get("name"))
	})

	t.Run("windows-1252", func(t *testing.T) {
		enc, err := charmap.Windows1252.NewEncoder().String("id,name\n1,café\n")
		require.NoError(t, err)
		tbl, err := Load(strings.NewReader(enc), "t", WithEncoding("windows-1252"))
		require.NoError(t, err)
		assert.Equal(t, "café", tbl.Record(0).Get("name"))
	})

	t.Run("utf-16 with BOM", func(t *testing.T) {
		enc, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String("id,name\n1,ü\n")
		require.NoError(t, err)
		tbl, err := Load(strings.NewReader(enc), "t", WithEncoding("utf-16"))
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, tbl.Columns())
		assert.Equal(t, "ü", tbl.Record(0).Get("name"))
	})
}

func TestLoad_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("id,v\n1,x\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tbl, err := Load(&buf, "t.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "x", tbl.Record(0).Get("v"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "after.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0o644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after.csv", tbl.Name())

	_, err = LoadFile(filepath.Join(dir, "missing.csv"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindUnreadable, le.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNew(t *testing.T) {
	tbl, err := New("t", []string{"a", "b"}, [][]string{{"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	assert.True(t, tbl.HasColumn("b"))
	assert.Equal(t, "2", tbl.Record(0).Get("b"))

	_, err = New("t", []string{"a", "b"}, [][]string{{"1"}})
	assert.Error(t, err)

	_, err = New("t", nil, nil)
	assert.Error(t, err)
}

func TestTable_ColumnsIsCopy(t *testing.T) {
	tbl, err := New("t", []string{"a"}, nil)
	require.NoError(t, err)

	cols := tbl.Columns()
	cols[0] = "mutated"
	assert.Equal(t, []string{"a"}, tbl.Columns())
}

func TestParseDelimiter(t *testing.T) {
	tests := map[string]rune{
		"":          ',',
		",":         ',',
		";":         ';',
		"tab":       '\t',
		`\t`:        '\t',
		"\t":        '\t',
		"Semicolon": ';',
		"pipe":      '|',
	}
	for in, want := range tests {
		got, err := ParseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{";;", `"`, "\n"} {
		_, err := ParseDelimiter(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckEncoding(t *testing.T) {
	assert.NoError(t, CheckEncoding("UTF-8"))
	assert.NoError(t, CheckEncoding("latin1"))
	assert.Error(t, CheckEncoding("ebcdic"))
}
