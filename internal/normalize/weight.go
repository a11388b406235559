package normalize

import (
	"math"
	"regexp"
	"strings"
)

// Volume units are treated as mass-equivalent grams so that wet and dry
// products compare on one axis.
var weightPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kilogrammes|kilogramme|kilograms|kilogram|kgs|kg|grammes|gramme|grams|gram|gr|g|pounds|pound|lbs|lb|ounces|ounce|oz|millilitres|millilitre|milliliters|milliliter|ml|litres|litre|liters|liter|ltrs|ltr|l)\b`)

var gramsPerUnit = map[string]float64{
	"kg": 1000,
	"g":  1,
	"lb": 454,
	"oz": 28.35,
	"l":  1000,
	"ml": 1,
}

var unitAliases = map[string]string{
	"kilogrammes": "kg", "kilogramme": "kg", "kilograms": "kg", "kilogram": "kg", "kgs": "kg", "kg": "kg",
	"grammes": "g", "gramme": "g", "grams": "g", "gram": "g", "gr": "g", "g": "g",
	"pounds": "lb", "pound": "lb", "lbs": "lb", "lb": "lb",
	"ounces": "oz", "ounce": "oz", "oz": "oz",
	"millilitres": "ml", "millilitre": "ml", "milliliters": "ml", "milliliter": "ml", "ml": "ml",
	"litres": "l", "litre": "l", "liters": "l", "liter": "l", "ltrs": "l", "ltr": "l", "l": "l",
}

// unit codes used by schema.org QuantitativeValue
var unitCodes = map[string]string{
	"KGM": "kg",
	"GRM": "g",
	"LBR": "lb",
	"ONZ": "oz",
	"LTR": "l",
	"MLT": "ml",
}

// ParseWeight finds the first weight or volume token in s and returns grams.
// "5 lb" gives 2270, "1l" gives 1000 and "Adult Dog Food 2.6kg" gives 2600.
func ParseWeight(s string) (int, bool) {
	m := weightPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	value, ok := parseDecimal(m[1])
	if !ok {
		return 0, false
	}

	return toGrams(value, unitAliases[strings.ToLower(m[2])])
}

// WeightFromUnitCode converts a value expressed in a UN/CEFACT unit code or a
// plain unit name.
func WeightFromUnitCode(value float64, code string) (int, bool) {
	unit, ok := unitCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		unit, ok = unitAliases[strings.ToLower(strings.TrimSpace(code))]
		if !ok {
			return 0, false
		}
	}
	return toGrams(value, unit)
}

func toGrams(value float64, unit string) (int, bool) {
	factor, ok := gramsPerUnit[unit]
	if !ok || value <= 0 {
		return 0, false
	}
	grams := math.Round(value * factor)
	if math.IsNaN(grams) || grams >= math.MaxInt32 {
		return 0, false
	}
	return int(grams), true
}
