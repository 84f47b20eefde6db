package search

import (
	"strings"
	"unicode"

	"recipe-autofind/internal/pkg/common"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinSpecificTokens 少於此 token 數的查詢視為含糊
const DefaultMinSpecificTokens = 2

// StripDiacritics NFD 分解後移除組合記號
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize 小寫、去除變音符號、標點轉空白後切詞
func tokenize(raw string) []string {
	folded := StripDiacritics(strings.ToLower(raw))
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Fields(cleaned)
}

// Normalize 將原始查詢轉為正規化查詢，純函數
func Normalize(raw string) common.NormalizedQuery {
	tokens := tokenize(raw)
	searchTerms := strings.Join(tokens, " ")

	nq := common.NormalizedQuery{
		OriginalText:        raw,
		CanonicalForm:       strings.Join(tokens, "_"),
		SearchTerms:         searchTerms,
		Tokens:              tokens,
		DetectedIngredients: []string{},
	}
	if searchTerms == "" {
		return nq
	}

	for _, country := range countryList {
		if strings.Contains(searchTerms, country) {
			nq.DetectedCountry = country
			break
		}
	}

	for _, ingredient := range ingredientList {
		if strings.Contains(searchTerms, ingredient) {
			nq.DetectedIngredients = append(nq.DetectedIngredients, ingredient)
		}
	}

	return nq
}

// Structure 由正規化查詢推導結構化查詢
func Structure(nq common.NormalizedQuery, minSpecificTokens int) common.StructuredQuery {
	if minSpecificTokens <= 0 {
		minSpecificTokens = DefaultMinSpecificTokens
	}

	vague := len(nq.Tokens) < minSpecificTokens
	for _, tok := range nq.Tokens {
		if hedgingWords[tok] {
			vague = true
			break
		}
	}

	ingredients := make([]string, len(nq.DetectedIngredients))
	copy(ingredients, nq.DetectedIngredients)

	return common.StructuredQuery{
		DishName:    nq.SearchTerms,
		Country:     nq.DetectedCountry,
		Ingredients: ingredients,
		IsVague:     vague,
	}
}
