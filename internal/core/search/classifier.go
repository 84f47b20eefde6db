package search

import (
	"strings"

	"recipe-autofind/internal/pkg/common"
)

// Classify 判斷查詢為知名菜餚或含糊描述。
//
// 白名單雙向包含即為 known_recipe；含糊且帶有食材才是 vague_description；
// 其餘一律視為 known_recipe，讓生成端當作真實菜名處理。
func Classify(sq common.StructuredQuery) common.Classification {
	name := strings.TrimSpace(sq.DishName)
	if name != "" {
		for _, known := range knownRecipeList {
			if strings.Contains(name, known) || strings.Contains(known, name) {
				return common.ClassKnownRecipe
			}
		}
	}

	if sq.IsVague && len(sq.Ingredients) > 0 {
		return common.ClassVagueDescription
	}

	return common.ClassKnownRecipe
}
