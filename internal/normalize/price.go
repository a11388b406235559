// Package normalize converts raw retailer text into typed values.
//
// Every function here is total: unparseable input produces ok == false and a
// zero value, never a panic or an error.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var pricePattern = regexp.MustCompile(`(£|\$|€|gbp|eur|usd)?\s*(\d[\d.,]*)\s*(pence|p\b)?`)

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// ParsePrice returns the first price in s as integer minor units.
//
// "£12.99" and "12.99" give 1299, "12,99" gives 1299, "1,299.00" gives 129900
// and "99p" gives 99: a pence suffix is already in minor units.
func ParsePrice(s string) (int64, bool) {
	t := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " ")))
	if t == "" {
		return 0, false
	}

	m := pricePattern.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	num := strings.TrimRight(m[2], ".,")
	if num == "" {
		return 0, false
	}

	value, ok := parseDecimal(num)
	if !ok || value < 0 {
		return 0, false
	}

	if m[3] != "" && m[1] == "" {
		return roundInt64(value)
	}
	return MinorUnits(value)
}

// MinorUnits converts a major-unit amount to minor units. Negative, NaN and
// out-of-range amounts are not ok.
func MinorUnits(major float64) (int64, bool) {
	if major < 0 || math.IsNaN(major) {
		return 0, false
	}
	return roundInt64(major * 100)
}

// roundInt64 rounds v, rejecting values that do not fit an int64
func roundInt64(v float64) (int64, bool) {
	r := math.Round(v)
	if math.IsNaN(r) || r >= math.MaxInt64 || r <= math.MinInt64 {
		return 0, false
	}
	return int64(r), true
}

// FormatPrice renders minor units the way ParsePrice reads them back.
func FormatPrice(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return sign + currencySymbols[strings.ToUpper(currency)] +
		strconv.FormatInt(minor/100, 10) + "." + leftPad2(minor%100)
}

// CurrencyFromSymbol maps a symbol or ISO code found in s to an ISO code.
func CurrencyFromSymbol(s string) (string, bool) {
	t := strings.ToUpper(s)
	switch {
	case strings.Contains(t, "£"), strings.Contains(t, "GBP"):
		return "GBP", true
	case strings.Contains(t, "€"), strings.Contains(t, "EUR"):
		return "EUR", true
	case strings.Contains(t, "$"), strings.Contains(t, "USD"):
		return "USD", true
	}
	return "", false
}

func leftPad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// parseDecimal reads a number written with either '.' or ',' as the decimal
// separator. When both appear the right-most one is the decimal separator; a
// lone comma followed by exactly three digits is a thousands separator.
func parseDecimal(num string) (float64, bool) {
	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(num, ",") > 1 || len(num)-lastComma-1 == 3 {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			num = strings.Replace(num, ",", ".", 1)
		}
	case strings.Count(num, ".") > 1:
		num = strings.ReplaceAll(num, ".", "")
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
