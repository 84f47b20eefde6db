package common

import (
	"fmt"
	"strings"
	"time"
)

// NormalizedQuery 使用者原始查詢經正規化後的結果
type NormalizedQuery struct {
	OriginalText        string   `json:"original_text"`
	CanonicalForm       string   `json:"canonical_form"`
	SearchTerms         string   `json:"search_terms"`
	Tokens              []string `json:"tokens"`
	DetectedCountry     string   `json:"detected_country,omitempty"`
	DetectedIngredients []string `json:"detected_ingredients"`
}

// IsEmpty 查詢是否沒有任何可用的 token
func (q NormalizedQuery) IsEmpty() bool {
	return len(q.Tokens) == 0
}

// StructuredQuery 供分類與來源擷取使用的結構化查詢
type StructuredQuery struct {
	DishName    string   `json:"dish_name"`
	Country     string   `json:"country,omitempty"`
	Ingredients []string `json:"ingredients"`
	IsVague     bool     `json:"is_vague"`
}

// Classification 查詢分類
type Classification string

const (
	ClassKnownRecipe      Classification = "known_recipe"
	ClassVagueDescription Classification = "vague_description"
)

// FetchedSource 從信任來源取得的參考資料
type FetchedSource struct {
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Domain       string  `json:"domain"`
	ExcerptText  string  `json:"excerpt_text"`
	TrustScore   float64 `json:"trust_score"`
	SnapshotText string  `json:"snapshot_text,omitempty"`
}

// Difficulty 難度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// SourceCitation 生成內容引用的來源
type SourceCitation struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Domain     string  `json:"domain"`
	TrustScore float64 `json:"trust_score"`
	UsedFor    string  `json:"used_for,omitempty"`
}

// AIMetadata 生成過程的中繼資料
type AIMetadata struct {
	ModelVersion         string           `json:"model_version"`
	GeneratedAt          time.Time        `json:"generated_at"`
	Confidence           float64          `json:"confidence"`
	Sources              []SourceCitation `json:"sources"`
	NormalizationDetails NormalizedQuery  `json:"normalization_details"`
	ExtractionNotes      string           `json:"extraction_notes,omitempty"`
}

// GeneratedRecipe AI 生成的結構化食譜草稿
type GeneratedRecipe struct {
	Title              string     `json:"title"`
	Ingredients        []string   `json:"ingredients"`
	Steps              []string   `json:"steps"`
	CookingTimeMinutes int        `json:"cooking_time_minutes"`
	Difficulty         Difficulty `json:"difficulty"`
	HistoryText        string     `json:"history_text"`
	PlatingStyle       string     `json:"plating_style,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	OriginCountry      string     `json:"origin_country,omitempty"`
	OriginRegion       string     `json:"origin_region,omitempty"`
	AIMetadata         AIMetadata `json:"ai_metadata"`
}

// MatchType 重複比對類型
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchName        MatchType = "name"
	MatchIngredients MatchType = "ingredients"
	MatchCombined    MatchType = "combined"
)

// DedupeMatch 重複檢查命中的結果，僅在流程中使用不落地
type DedupeMatch struct {
	MatchedRecipeID string    `json:"matched_recipe_id"`
	SimilarityScore float64   `json:"similarity_score"`
	MatchType       MatchType `json:"match_type"`
}

// ValidationResult 結構驗證結果
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// Error 將所有錯誤訊息合併成一個字串
func (r ValidationResult) Error() string {
	return strings.Join(r.Errors, "; ")
}

// JobInput 排入佇列的 auto-find 任務內容
type JobInput struct {
	UserQuery       string    `json:"user_query"`
	NormalizedQuery string    `json:"normalized_query"`
	SearchTerms     string    `json:"search_terms"`
	ClientIP        string    `json:"client_ip"`
	Timestamp       time.Time `json:"timestamp"`
}

// JobResult auto-find 任務的輸出
type JobResult struct {
	Success      bool    `json:"success"`
	RecipeID     string  `json:"recipe_id"`
	Title        string  `json:"title,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	SourcesCount int     `json:"sources_count,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	IsDuplicate  bool    `json:"is_duplicate,omitempty"`
}

// FormatSources 格式化來源列表，供 prompt 使用
func FormatSources(sources []FetchedSource) string {
	var sb strings.Builder
	for i, src := range sources {
		sb.WriteString(fmt.Sprintf("[%d] %s (%s, trust %.2f)\n%s\n\n",
			i, src.Title, src.Domain, src.TrustScore, src.ExcerptText))
	}
	return sb.String()
}

// FormatList 格式化字串列表
func FormatList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
