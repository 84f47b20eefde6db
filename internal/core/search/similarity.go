package search

import "math"

// LevenshteinDistance 經典動態規劃編輯距離，以 rune 為單位
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			dp[i][j] = min(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}
	return dp[len(ra)][len(rb)]
}

// IngredientsSimilarity 食材集合的 Jaccard 相似度，聯集為空時回傳 0
func IngredientsSimilarity(a, b []string) float64 {
	setA := make(map[string]struct{})
	for _, k := range ingredientKeys(a) {
		setA[k] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, k := range ingredientKeys(b) {
		setB[k] = struct{}{}
	}

	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ScoreWeights 去重分數的權重設定
type ScoreWeights struct {
	TitleWeight      float64
	IngredientWeight float64
	TitleDistanceCap float64
}

// DefaultScoreWeights 預設 0.4 / 0.6，標題距離上限 10
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		TitleWeight:      0.4,
		IngredientWeight: 0.6,
		TitleDistanceCap: 10,
	}
}

// Scorer 計算去重混合分數
type Scorer struct {
	weights ScoreWeights
}

// NewScorer 建立 Scorer，未設定的欄位使用預設值
func NewScorer(w ScoreWeights) *Scorer {
	def := DefaultScoreWeights()
	if w.TitleDistanceCap <= 0 {
		w.TitleDistanceCap = def.TitleDistanceCap
	}
	if w.TitleWeight == 0 && w.IngredientWeight == 0 {
		w.TitleWeight = def.TitleWeight
		w.IngredientWeight = def.IngredientWeight
	}
	return &Scorer{weights: w}
}

// Weights 目前使用的權重
func (s *Scorer) Weights() ScoreWeights {
	return s.weights
}

// CalculateDedupeScore titleWeight*max(0,1-d/cap) + ingredientWeight*jaccard，結果落在 [0,1]
func (s *Scorer) CalculateDedupeScore(titleDistance int, ingredientJaccard float64) float64 {
	titleScore := math.Max(0, 1-float64(titleDistance)/s.weights.TitleDistanceCap)
	score := s.weights.TitleWeight*titleScore + s.weights.IngredientWeight*ingredientJaccard
	return math.Min(1, math.Max(0, score))
}
