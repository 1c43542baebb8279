package table

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// SupportedEncodings lists the character set names accepted by WithEncoding.
var SupportedEncodings = []string{"utf-8", "utf-16", "utf-16le", "utf-16be", "windows-1252", "latin1"}

// decoderFor returns the decoder for a character set name.
//
// The UTF-8 decoder strips a leading byte order mark and replaces invalid
// byte sequences with U+FFFD, which covers the files Excel writes on Windows.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (supported: %s)", name, strings.Join(SupportedEncodings, ", "))
	}
}

// decode wraps r so that it yields UTF-8 text.
func decode(r io.Reader, name string) (io.Reader, error) {
	dec, err := decoderFor(name)
	if err != nil {
		return nil, err
	}
	return dec.Reader(r), nil
}

// CheckEncoding reports whether name is a supported character set.
func CheckEncoding(name string) error {
	_, err := decoderFor(name)
	return err
}
