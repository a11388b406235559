package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Tried in order, first match wins.
var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*(?:packs?|count|ct|pcs|pieces?|pouches|cans|tins|sachets|trays)\b`),
	regexp.MustCompile(`(?i)\b(\d+)\s?[x×](?:\s|\d)`),
	regexp.MustCompile(`(?i)\bpack\s+of\s+(\d+)\b`),
}

// ParseQuantity returns the pack quantity in s: "12 pack", "24 count",
// "12 x 400g" and "Pack of 6".
func ParseQuantity(s string) (int, bool) {
	for _, pattern := range quantityPatterns {
		m := pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

var barcodeLengths = map[int]bool{8: true, 12: true, 13: true, 14: true}

// NormalizeBarcode strips non-digits and accepts EAN-8, UPC-A, EAN-13 and
// GTIN-14 lengths only.
func NormalizeBarcode(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if !barcodeLengths[len(digits)] {
		return "", false
	}
	return digits, true
}
