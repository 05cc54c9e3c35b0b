package archive

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrUnknownCharset is returned for charset names that cannot be resolved.
var ErrUnknownCharset = errors.New("archive: unknown charset")

// NameMode is a driver's default rule for decoding raw member names.
type NameMode int

const (
	// NamesCP437 decodes names as IBM code page 437 unless the entry is
	// flagged as UTF-8. Used by ZIP, PAK and RPG.
	NamesCP437 NameMode = iota

	// NamesUTF8OrCP437 uses UTF-8 for names that are valid UTF-8 and code
	// page 437 for the rest. Used by TAR.
	NamesUTF8OrCP437
)

// DOS code page names that the WHATWG index behind htmlindex does not
// carry.
var charsetAliases = map[string]encoding.Encoding{
	"cp437":   charmap.CodePage437,
	"ibm437":  charmap.CodePage437,
	"437":     charmap.CodePage437,
	"ibm-437": charmap.CodePage437,
	"cp850":   charmap.CodePage850,
	"ibm850":  charmap.CodePage850,
	"850":     charmap.CodePage850,
	"cp852":   charmap.CodePage852,
	"ibm852":  charmap.CodePage852,
	"cp865":   charmap.CodePage865,
	"ibm865":  charmap.CodePage865,
	"cp866":   charmap.CodePage866,
}

// LookupCharset resolves a charset label such as "cp437", "Shift_JIS" or
// "windows-1252".
func LookupCharset(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := charsetAliases[key]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	return enc, nil
}

// namer turns raw names into display names.
type namer struct {
	mode     NameMode
	override encoding.Encoding
}

func (n namer) name(raw string, isUTF8 bool) string {
	switch {
	case n.override != nil && !isUTF8:
		return decodeWith(n.override, raw)
	case isUTF8:
		return strings.ToValidUTF8(raw, "\uFFFD")
	case n.mode == NamesUTF8OrCP437 && utf8.ValidString(raw):
		return raw
	default:
		return decodeWith(charmap.CodePage437, raw)
	}
}

func decodeWith(enc encoding.Encoding, raw string) string {
	s, err := enc.NewDecoder().String(raw)
	if err != nil {
		return strings.ToValidUTF8(raw, "\uFFFD")
	}
	return s
}
