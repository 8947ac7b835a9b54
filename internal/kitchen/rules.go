package kitchen

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/shaiso/Liveboard/internal/domain"
)

// DefaultDrinks — названия напитков, которые никогда не идут на кухню.
var DefaultDrinks = []string{
	"Cola", "Coca-Cola", "Cola Zero", "Fanta", "Sprite", "Pepsi", "Mezzo Mix",
	"Wasser", "Water", "Mineral Water", "Sparkling Water",
	"Apfelschorle", "Orange Juice", "Apple Juice", "Juice",
	"Ayran", "Ice Tea", "Eistee", "Red Bull", "Beer", "Bier", "Lemonade",
}

// Rules — правила исключения позиций из кухонного процесса.
//
// Rules неизменяемы после создания и безопасны для одновременного чтения.
type Rules struct {
	excludedIDs        map[string]struct{}
	excludedCategories map[string]struct{}
	drinkNames         map[string]struct{}
}

// NewRules строит правила из настроек кухни и списка напитков.
func NewRules(settings domain.ExclusionSettings, drinks []string) *Rules {
	r := &Rules{
		excludedIDs:        make(map[string]struct{}, len(settings.ExcludedItems)),
		excludedCategories: make(map[string]struct{}, len(settings.ExcludedCategories)),
		drinkNames:         make(map[string]struct{}, len(drinks)),
	}

	for _, id := range settings.ExcludedItems {
		if key := id.Normalized(); key != "" {
			r.excludedIDs[key] = struct{}{}
		}
	}
	for _, c := range settings.ExcludedCategories {
		if key := NormalizeCategory(c); key != "" {
			r.excludedCategories[key] = struct{}{}
		}
	}
	for _, d := range drinks {
		if key := NormalizeName(d); key != "" {
			r.drinkNames[key] = struct{}{}
		}
	}

	return r
}

// IsExcluded определяет, исключена ли позиция из кухонного процесса.
//
// Порядок правил:
//  1. сервер явно пометил позицию (excluded / kitchen_excluded);
//  2. категория входит в исключённые;
//  3. id продукта входит в исключённые;
//  4. название совпадает с известным напитком.
func (r *Rules) IsExcluded(item domain.OrderItem) bool {
	if item.Excluded || item.KitchenExcluded {
		return true
	}
	if r == nil {
		return false
	}

	if len(r.excludedCategories) > 0 {
		if _, ok := r.excludedCategories[NormalizeCategory(item.Category)]; ok {
			return true
		}
	}

	if id := item.ProductID.Normalized(); id != "" {
		if _, ok := r.excludedIDs[id]; ok {
			return true
		}
	}

	if name := NormalizeName(item.Name); name != "" {
		if _, ok := r.drinkNames[name]; ok {
			return true
		}
	}

	return false
}

// NormalizeCategory приводит категорию к нижнему регистру и схлопывает пробелы.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(fold(s)), " ")
}

// NormalizeName убирает пробелы и дефисы и приводит название к единому регистру:
// "Coca-Cola", "coca cola" и "COCACOLA" дают одно и то же.
func NormalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '‐' || r == '–' {
			return -1
		}
		return r
	}, fold(s))
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}
