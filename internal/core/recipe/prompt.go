package recipe

import (
	"fmt"

	"recipe-autofind/internal/pkg/common"
)

const systemPrompt = `You are a culinary historian and recipe writer. You only use the reference material you are given, you credit the cultures a dish comes from, and you reply with a single JSON object and nothing else.`

// buildPrompt 依結構化查詢與來源建立生成提示
func buildPrompt(sq common.StructuredQuery, nq common.NormalizedQuery, sources []common.FetchedSource) string {
	country := sq.Country
	if country == "" {
		country = "unknown"
	}
	mode := "a specific, well-known dish"
	if sq.IsVague {
		mode = "a vague description; choose the single traditional dish the sources best support"
	}

	return fmt.Sprintf(`Write one authentic recipe for the request below using ONLY the numbered reference sources.

Request: %q
Interpreted as: %s
Normalized terms: %s
Country hint: %s
Ingredient hints: %s

Sources:
%s
Rules:
1. Do not invent history that the sources do not support; say so in extraction_notes when they are thin.
2. ingredients: plain strings with quantity and unit, at most 40 entries.
3. steps: ordered plain strings, one action each, at most 30 entries, no leading numbers.
4. cooking_time_minutes: total integer minutes between 1 and 1440.
5. difficulty: exactly one of "Easy", "Medium", "Hard".
6. history_text: a short, culturally respectful origin narrative that cites sources inline as [n].
7. citations: source_index values refer to the numbers above; used_for is "history", "ingredients" or "technique".
8. confidence: number between 0 and 1 reflecting how well the sources support the recipe.
9. All keys and string values in double quotes. No markdown, no code fences.

Return JSON exactly in this shape:
{"title":"","ingredients":[""],"steps":[""],"cooking_time_minutes":0,"difficulty":"Medium","history_text":"","plating_style":"","origin_country":"","origin_region":"","confidence":0.0,"citations":[{"source_index":0,"used_for":"history"}],"extraction_notes":""}`,
		nq.OriginalText,
		mode,
		nq.SearchTerms,
		country,
		common.FormatList(sq.Ingredients),
		common.FormatSources(sources),
	)
}
