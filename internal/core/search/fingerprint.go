package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const ingredientsHashDelimiter = "|"

// ComputeFingerprint 對菜名正規化形式做 SHA-256
func ComputeFingerprint(title string) string {
	sum := sha256.Sum256([]byte(Normalize(title).CanonicalForm))
	return hex.EncodeToString(sum[:])
}

// ingredientKey 小寫、去除變音符號，只保留 [A-Za-z0-9_]
func ingredientKey(ingredient string) string {
	folded := StripDiacritics(strings.ToLower(ingredient))
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func ingredientKeys(ingredients []string) []string {
	keys := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if k := ingredientKey(ing); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// ComputeIngredientsHash 排序後計算食材雜湊，與輸入順序無關
func ComputeIngredientsHash(ingredients []string) string {
	keys := ingredientKeys(ingredients)
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, ingredientsHashDelimiter)))
	return hex.EncodeToString(sum[:])
}
