package search

import (
	"regexp"
	"sort"
	"strings"
)

const (
	vulgarFractions = `¼½¾⅓⅔⅛⅜⅝⅞`
	numberPattern   = `(?:\d+(?:[.,/]\d+)?(?:\s+\d+/\d+)?\s*[` + vulgarFractions + `]?|[` + vulgarFractions + `])`
	unitPattern     = `tablespoons?|teaspoons?|tbsps?|tsps?|tbs|cups?|grams?|gr|kilograms?|kg|g|millilit(?:er|re)s?|ml|lit(?:er|re)s?|l|ounces?|oz|pounds?|lbs?|pinch(?:es)?|dash(?:es)?|cloves?|cans?|tins?|slices?|pieces?|handfuls?|bunch(?:es)?|sprigs?|sticks?|packages?|packets?|stalks?|heads?|quarts?|pints?`
)

var (
	// 數量（含範圍與 unicode 分數）+ 可選單位 + 可選尺寸 + 可選 of
	quantityPrefix = regexp.MustCompile(`(?i)^\s*(?:about\s+|approx\.?\s+)?` +
		numberPattern + `(?:\s*(?:-|–|to)\s*` + numberPattern + `)?` +
		`\s*(?:(?:` + unitPattern + `)(?:\.|\b)\s*)?` +
		`(?:(?:large|medium|small)\s+)?` +
		`(?:of\s+)?`)

	parenthetical = regexp.MustCompile(`\([^)]*\)`)

	synonymPattern = buildSynonymPattern()
)

// buildSynonymPattern 依長度由長到短組成整詞比對的正規表示式
func buildSynonymPattern() *regexp.Regexp {
	aliases := make([]string, 0, len(ingredientSynonyms))
	for alias := range ingredientSynonyms {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	for i, a := range aliases {
		aliases[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(aliases, "|") + `)\b`)
}

// CanonicalIngredient 套用同義詞表，單次替換不會連鎖
func CanonicalIngredient(ingredient string) string {
	return synonymPattern.ReplaceAllStringFunc(ingredient, func(m string) string {
		return ingredientSynonyms[m]
	})
}

// NormalizeIngredientsList 去除數量與單位、收斂同義詞並移除空項目
func NormalizeIngredientsList(ingredients []string) []string {
	out := make([]string, 0, len(ingredients))
	for _, raw := range ingredients {
		s := strings.ToLower(strings.TrimSpace(raw))
		s = parenthetical.ReplaceAllString(s, " ")
		// ", chopped" 之類的備註不影響食材本身
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[:idx]
		}
		s = quantityPrefix.ReplaceAllString(s, "")
		s = strings.Join(strings.Fields(s), " ")
		s = CanonicalIngredient(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
