package record

import (
	"fmt"
	"strings"
)

var wktKeywords = []string{
	// longest first so MULTIPOINT is not read as POINT
	"GEOMETRYCOLLECTION",
	"MULTILINESTRING",
	"MULTIPOLYGON",
	"MULTIPOINT",
	"LINESTRING",
	"POLYGON",
	"POINT",
}

// ValidateWKT performs a structural check of a well-known-text geometry:
// a known geometry keyword, an optional Z/M/ZM modifier, then EMPTY or a
// balanced parenthesised body. Coordinates are not parsed.
func ValidateWKT(s string) error {
	rest := strings.ToUpper(strings.TrimSpace(s))

	kw := ""
	for _, k := range wktKeywords {
		if strings.HasPrefix(rest, k) {
			kw = k
			break
		}
	}
	if kw == "" {
		return fmt.Errorf("%w: %q is not a WKT geometry", ErrEncoding, s)
	}
	rest = strings.TrimSpace(rest[len(kw):])
	for _, mod := range []string{"ZM", "Z", "M"} {
		if strings.HasPrefix(rest, mod+" ") || strings.HasPrefix(rest, mod+"(") {
			rest = strings.TrimSpace(rest[len(mod):])
			break
		}
	}

	if rest == "EMPTY" {
		return nil
	}
	if !strings.HasPrefix(rest, "(") {
		return fmt.Errorf("%w: %s geometry must be EMPTY or start with '('", ErrEncoding, kw)
	}

	depth := 0
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced ')' in WKT", ErrEncoding)
			}
			if depth == 0 && i != len(rest)-1 {
				return fmt.Errorf("%w: trailing text after WKT body", ErrEncoding)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced '(' in WKT", ErrEncoding)
	}
	return nil
}
