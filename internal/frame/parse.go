package frame

import (
	"strconv"
	"strings"
)

// ParseNumber parses a numeric cell as exported by spreadsheets, auto-detecting
// the decimal separator. "1.234,5", "1,234.5", "0,25" and "12%" are accepted;
// a lone comma is always the decimal separator and a percent sign is stripped
// without rescaling.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)

	var dec rune
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			dec = ','
		} else {
			dec = '.'
		}
	case cpos >= 0:
		dec = ','
	default:
		dec = '.'
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
