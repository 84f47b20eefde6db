package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"recipe-autofind/internal/core/ai/provider"
	"recipe-autofind/internal/pkg/common"

	"go.uber.org/zap"
)

// Config 生成設定
type Config struct {
	MaxSources      int
	MaxCitations    int
	MaxExcerptChars int
	MaxTokens       int
	Temperature     float64
}

// Generator 以信任來源為依據呼叫模型生成食譜
type Generator struct {
	provider provider.Provider
	config   Config
	now      func() time.Time
}

// NewGenerator 創建食譜生成器
func NewGenerator(p provider.Provider, cfg Config) *Generator {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 5
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = 3
	}
	if cfg.MaxExcerptChars <= 0 {
		cfg.MaxExcerptChars = 1500
	}
	return &Generator{
		provider: p,
		config:   cfg,
		now:      time.Now,
	}
}

// modelCitation 模型回傳的引用
type modelCitation struct {
	SourceIndex int    `json:"source_index"`
	UsedFor     string `json:"used_for"`
}

// flexInt 接受數字或數字字串
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(int(v))
	return nil
}

// modelRecipe 模型輸出的 JSON 結構
type modelRecipe struct {
	Title              string          `json:"title"`
	Ingredients        []string        `json:"ingredients"`
	Steps              []string        `json:"steps"`
	CookingTimeMinutes flexInt         `json:"cooking_time_minutes"`
	Difficulty         string          `json:"difficulty"`
	HistoryText        string          `json:"history_text"`
	PlatingStyle       string          `json:"plating_style"`
	OriginCountry      string          `json:"origin_country"`
	OriginRegion       string          `json:"origin_region"`
	Confidence         float64         `json:"confidence"`
	Citations          []modelCitation `json:"citations"`
	ExtractionNotes    string          `json:"extraction_notes"`
}

// Generate 生成食譜；模型錯誤或輸出無法解析時直接回傳錯誤，不做修補
func (g *Generator) Generate(ctx context.Context, sq common.StructuredQuery, sources []common.FetchedSource, nq common.NormalizedQuery) (*common.GeneratedRecipe, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources to ground generation", common.ErrGenerationFailed)
	}

	ranked := rankSources(sources, g.config.MaxSources, g.config.MaxExcerptChars)
	prompt := buildPrompt(sq, nq, ranked)

	resp, err := g.provider.Generate(ctx, &provider.Request{
		Messages: []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty AI response", common.ErrGenerationFailed)
	}

	common.LogDebug("AI 回應內容 (autofind/generate)",
		zap.Int("ai_response_length", len(resp.Content)),
		zap.String("ai_response_preview", common.Truncate(resp.Content, 300)),
	)

	parsed, err := parseModelRecipe(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(parsed.Title) == "" {
		return nil, fmt.Errorf("%w: model returned an empty title", common.ErrGenerationFailed)
	}

	model := resp.Model
	if model == "" {
		model = g.provider.GetModel()
	}

	return &common.GeneratedRecipe{
		Title:              strings.TrimSpace(parsed.Title),
		Ingredients:        trimAll(parsed.Ingredients),
		Steps:              trimAll(parsed.Steps),
		CookingTimeMinutes: int(parsed.CookingTimeMinutes),
		Difficulty:         normalizeDifficulty(parsed.Difficulty),
		HistoryText:        strings.TrimSpace(parsed.HistoryText),
		PlatingStyle:       strings.TrimSpace(parsed.PlatingStyle),
		OriginCountry:      strings.TrimSpace(parsed.OriginCountry),
		OriginRegion:       strings.TrimSpace(parsed.OriginRegion),
		AIMetadata: common.AIMetadata{
			ModelVersion:         model,
			GeneratedAt:          g.now().UTC(),
			Confidence:           common.ClampUnit(parsed.Confidence),
			Sources:              resolveCitations(parsed.Citations, ranked, g.config.MaxCitations),
			NormalizationDetails: nq,
			ExtractionNotes:      strings.TrimSpace(parsed.ExtractionNotes),
		},
	}, nil
}

// parseModelRecipe 擷取 JSON 物件後解析，鍵未加引號時補上再試一次
func parseModelRecipe(content string) (*modelRecipe, error) {
	raw, err := common.ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}

	var out modelRecipe
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if retryErr := json.Unmarshal([]byte(common.QuoteJSONKeys(raw)), &out); retryErr != nil {
			return nil, fmt.Errorf("failed to parse AI response: %w", err)
		}
	}
	return &out, nil
}

// rankSources 依信任分數排序並截斷摘錄
func rankSources(sources []common.FetchedSource, max, maxExcerpt int) []common.FetchedSource {
	ranked := make([]common.FetchedSource, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TrustScore > ranked[j].TrustScore
	})
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	for i := range ranked {
		ranked[i].ExcerptText = common.Truncate(ranked[i].ExcerptText, maxExcerpt)
	}
	return ranked
}

// resolveCitations 將模型的來源索引轉成引用；無有效引用時取信任度最高的來源
func resolveCitations(citations []modelCitation, ranked []common.FetchedSource, max int) []common.SourceCitation {
	out := make([]common.SourceCitation, 0, max)
	seen := make(map[int]bool)
	for _, c := range citations {
		if c.SourceIndex < 0 || c.SourceIndex >= len(ranked) || seen[c.SourceIndex] {
			continue
		}
		seen[c.SourceIndex] = true
		out = append(out, toCitation(ranked[c.SourceIndex], c.UsedFor))
		if len(out) == max {
			return out
		}
	}
	if len(out) > 0 {
		return out
	}

	for i := 0; i < len(ranked) && i < max; i++ {
		out = append(out, toCitation(ranked[i], "reference"))
	}
	return out
}

func toCitation(src common.FetchedSource, usedFor string) common.SourceCitation {
	return common.SourceCitation{
		URL:        src.URL,
		Title:      src.Title,
		Domain:     src.Domain,
		TrustScore: src.TrustScore,
		UsedFor:    strings.TrimSpace(usedFor),
	}
}

func normalizeDifficulty(d string) common.Difficulty {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "easy":
		return common.DifficultyEasy
	case "medium", "moderate", "intermediate":
		return common.DifficultyMedium
	case "hard", "difficult", "advanced":
		return common.DifficultyHard
	default:
		return common.Difficulty(strings.TrimSpace(d))
	}
}

func trimAll(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
