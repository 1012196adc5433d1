package importer

import (
	"regexp"
	"sort"
	"strings"
)

// 單位 → 標準縮寫；所有縮寫也映射到自己
var unitTable = map[string]string{
	"cups": "cup", "cup": "cup",
	"tablespoons": "tbsp", "tablespoon": "tbsp", "tbsps": "tbsp", "tbsp": "tbsp", "tbs": "tbsp",
	"teaspoons": "tsp", "teaspoon": "tsp", "tsps": "tsp", "tsp": "tsp",
	"ounces": "oz", "ounce": "oz", "oz": "oz",
	"pounds": "lb", "pound": "lb", "lbs": "lb", "lb": "lb",
	"grams": "g", "gram": "g", "gr": "g", "g": "g",
	"kilograms": "kg", "kilogram": "kg", "kgs": "kg", "kg": "kg",
	"milliliters": "ml", "milliliter": "ml", "millilitres": "ml", "millilitre": "ml", "mls": "ml", "ml": "ml",
	"liters": "l", "liter": "l", "litres": "l", "litre": "l", "l": "l",
	"pieces": "pcs", "piece": "pcs", "pcs": "pcs", "pc": "pcs",
	"cloves": "clove", "clove": "clove",
	"pinches": "pinch", "pinch": "pinch",
	"cans": "can", "can": "can",
	"slices": "slice", "slice": "slice",
	"sticks": "stick", "stick": "stick",
	"dashes": "dash", "dash": "dash",
}

// NormalizeUnit 將單位轉為標準縮寫；未知單位只轉小寫
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if abbr, ok := unitTable[u]; ok {
		return abbr
	}
	return u
}

// unitAlternation 依長度由長到短排列，避免 "g" 搶先匹配 "grams"
func unitAlternation() string {
	units := make([]string, 0, len(unitTable))
	for u := range unitTable {
		units = append(units, regexp.QuoteMeta(u))
	}
	sort.Slice(units, func(i, j int) bool {
		if len(units[i]) != len(units[j]) {
			return len(units[i]) > len(units[j])
		}
		return units[i] < units[j]
	})
	return strings.Join(units, "|")
}
