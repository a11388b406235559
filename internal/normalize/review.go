package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ratingScalePattern   = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:out\s+of|/|of)\s*(\d+(?:[.,]\d+)?)`)
	ratingPercentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	ratingPlainPattern   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
	countPattern         = regexp.MustCompile(`(\d[\d,]*)`)
	ordinalPattern       = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
)

// ParseRating reads "4.5 out of 5 stars", "4/5", "8/10", "80%" or "4" and
// returns a rating on a five-point scale. Results outside (0, 5] are rejected.
func ParseRating(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}

	if m := ratingScalePattern.FindStringSubmatch(t); m != nil {
		v, ok1 := parseDecimal(m[1])
		best, ok2 := parseDecimal(m[2])
		if ok1 && ok2 {
			return RatingOnScale(v, best)
		}
	}

	if m := ratingPercentPattern.FindStringSubmatch(t); m != nil {
		if v, ok := parseDecimal(m[1]); ok {
			return validRating(v / 20)
		}
	}

	if m := ratingPlainPattern.FindStringSubmatch(t); m != nil {
		if v, ok := parseDecimal(m[1]); ok {
			return validRating(v)
		}
	}
	return 0, false
}

// RatingOnScale rescales value from a 0..best scale to 0..5.
func RatingOnScale(value, best float64) (float64, bool) {
	if best <= 0 {
		best = 5
	}
	return validRating(value / best * 5)
}

func validRating(v float64) (float64, bool) {
	v = math.Round(v*100) / 100
	if v <= 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// ParseCount returns the first integer in s, treating "one person" as 1.
func ParseCount(s string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	if m := countPattern.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && n >= 0 {
			return n, true
		}
	}
	if strings.HasPrefix(t, "one ") || strings.Contains(t, " one person") {
		return 1, true
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"January 2006",
}

// ParseDate reads ISO-8601 and common UK date layouts, including prefixes
// such as "Reviewed in the United Kingdom on 3rd March 2024".
func ParseDate(s string) (time.Time, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return time.Time{}, false
	}
	if i := strings.LastIndex(strings.ToLower(t), " on "); i >= 0 {
		t = t[i+4:]
	}
	t = ordinalPattern.ReplaceAllString(t, "$1")
	t = strings.TrimSpace(strings.TrimPrefix(t, "Posted"))

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, t); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// StockWords classifies free-text stock indicators.
type StockWords struct {
	InStock    []string
	OutOfStock []string
}

// DefaultStockWords covers schema.org availability values and common basket
// button labels.
var DefaultStockWords = StockWords{
	InStock: []string{
		"instock", "in stock", "limitedavailability", "preorder", "pre-order",
		"add to basket", "add to cart", "add to trolley", "add to bag", "available",
	},
	OutOfStock: []string{
		"outofstock", "out of stock", "soldout", "sold out", "discontinued",
		"unavailable", "no longer available", "notify me", "email me when",
	},
}

// Classify reports whether s says in stock; known is false when no word
// matched. Out-of-stock words are checked first since "unavailable" contains
// "available".
func (w StockWords) Classify(s string) (inStock bool, known bool) {
	t := strings.ToLower(s)
	if t == "" {
		return false, false
	}
	for _, word := range w.OutOfStock {
		if strings.Contains(t, word) {
			return false, true
		}
	}
	for _, word := range w.InStock {
		if strings.Contains(t, word) {
			return true, true
		}
	}
	return false, false
}

// ParseAvailability classifies s with DefaultStockWords.
func ParseAvailability(s string) (inStock bool, known bool) {
	return DefaultStockWords.Classify(s)
}
