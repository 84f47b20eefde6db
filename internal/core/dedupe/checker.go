package dedupe

import (
	"context"
	"fmt"

	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/pkg/common"
	"recipe-autofind/internal/storage"

	"go.uber.org/zap"
)

// 候選比對策略
const (
	StrategyFirst = "first"
	StrategyBest  = "best"
)

// RecipeStore 去重需要的查詢能力
type RecipeStore interface {
	FindByNameFingerprint(ctx context.Context, fingerprint string) (*storage.Recipe, error)
	ListDedupeCandidates(ctx context.Context, limit int) ([]storage.Recipe, error)
}

// Config 去重設定
type Config struct {
	Threshold      float64
	CandidateLimit int
	Strategy       string
	FailOpen       bool
	Weights        search.ScoreWeights
}

// DefaultConfig 門檻 0.75、候選上限 50、先命中先贏、失敗放行
func DefaultConfig() Config {
	return Config{
		Threshold:      0.75,
		CandidateLimit: 50,
		Strategy:       StrategyFirst,
		FailOpen:       true,
		Weights:        search.DefaultScoreWeights(),
	}
}

// Checker 重複食譜檢查
type Checker struct {
	store  RecipeStore
	scorer *search.Scorer
	config Config
}

// NewChecker 創建去重檢查器
func NewChecker(store RecipeStore, cfg Config) *Checker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	return &Checker{
		store:  store,
		scorer: search.NewScorer(cfg.Weights),
		config: cfg,
	}
}

// Check 回傳命中的重複食譜；新食譜回傳 nil, nil。
// 內部錯誤在 FailOpen 時視為新食譜。
func (c *Checker) Check(ctx context.Context, recipe *common.GeneratedRecipe) (*common.DedupeMatch, error) {
	match, err := c.check(ctx, recipe)
	if err != nil {
		if c.config.FailOpen {
			common.LogWarn("去重檢查失敗，視為新食譜",
				zap.Error(err),
				zap.String("title", recipe.Title),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("dedupe check failed: %w", err)
	}
	return match, nil
}

func (c *Checker) check(ctx context.Context, recipe *common.GeneratedRecipe) (*common.DedupeMatch, error) {
	fingerprint := search.ComputeFingerprint(recipe.Title)
	existing, err := c.store.FindByNameFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &common.DedupeMatch{
			MatchedRecipeID: existing.ID.String(),
			SimilarityScore: 1.0,
			MatchType:       common.MatchExact,
		}, nil
	}

	candidates, err := c.store.ListDedupeCandidates(ctx, c.config.CandidateLimit)
	if err != nil {
		return nil, err
	}

	title := search.Normalize(recipe.Title).SearchTerms
	ingredients := search.NormalizeIngredientsList(recipe.Ingredients)

	var best *common.DedupeMatch
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate := &candidates[i]

		distance := search.LevenshteinDistance(title, search.Normalize(candidate.Title).SearchTerms)
		jaccard := search.IngredientsSimilarity(ingredients, search.NormalizeIngredientsList(candidate.IngredientList()))
		score := c.scorer.CalculateDedupeScore(distance, jaccard)
		if score < c.config.Threshold {
			continue
		}

		match := &common.DedupeMatch{
			MatchedRecipeID: candidate.ID.String(),
			SimilarityScore: score,
			MatchType:       matchType(distance, jaccard),
		}
		common.LogDebug("去重候選命中",
			zap.String("candidate_id", match.MatchedRecipeID),
			zap.Int("title_distance", distance),
			zap.Float64("jaccard", jaccard),
			zap.Float64("score", score),
		)
		if c.config.Strategy != StrategyBest {
			return match, nil
		}
		if best == nil || match.SimilarityScore > best.SimilarityScore {
			best = match
		}
	}
	return best, nil
}

func matchType(distance int, jaccard float64) common.MatchType {
	switch {
	case distance == 0:
		return common.MatchName
	case jaccard >= 1:
		return common.MatchIngredients
	default:
		return common.MatchCombined
	}
}
