package search

import (
	"testing"

	"recipe-autofind/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	nq := Normalize("  Crème Brûlée, from FRANCE!  ")

	assert.Equal(t, []string{"creme", "brulee", "from", "france"}, nq.Tokens)
	assert.Equal(t, "creme_brulee_from_france", nq.CanonicalForm)
	assert.Equal(t, "creme brulee from france", nq.SearchTerms)
	assert.Equal(t, "france", nq.DetectedCountry)
	assert.Equal(t, "  Crème Brûlée, from FRANCE!  ", nq.OriginalText)
}

func TestNormalizeEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n", "!!! ---"} {
		nq := Normalize(raw)
		assert.True(t, nq.IsEmpty(), "input %q", raw)
		assert.Empty(t, nq.CanonicalForm)
		assert.Empty(t, nq.DetectedCountry)
		assert.Empty(t, nq.DetectedIngredients)
	}
}

func TestNormalizeDetection(t *testing.T) {
	nq := Normalize("spicy chicken and rice from south korea or korea")
	assert.Equal(t, "south korea", nq.DetectedCountry, "first list entry wins")
	assert.Contains(t, nq.DetectedIngredients, "chicken")
	assert.Contains(t, nq.DetectedIngredients, "rice")
}

func TestStructureVagueness(t *testing.T) {
	tests := []struct {
		raw   string
		vague bool
	}{
		{"biryani", true},
		{"chicken biryani", false},
		{"something with chicken and rice", true},
		{"maybe a lentil stew", true},
		{"ethiopian injera", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sq := Structure(Normalize(tt.raw), DefaultMinSpecificTokens)
			assert.Equal(t, tt.vague, sq.IsVague)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sq   common.StructuredQuery
		want common.Classification
	}{
		{"whitelist contains query", common.StructuredQuery{DishName: "pho"}, common.ClassKnownRecipe},
		{"query contains whitelist", common.StructuredQuery{DishName: "chicken biryani", IsVague: true, Ingredients: []string{"chicken"}}, common.ClassKnownRecipe},
		{"vague with ingredients", common.StructuredQuery{DishName: "something with lentil", IsVague: true, Ingredients: []string{"lentil"}}, common.ClassVagueDescription},
		{"vague without ingredients", common.StructuredQuery{DishName: "something warm", IsVague: true}, common.ClassKnownRecipe},
		{"specific but unknown", common.StructuredQuery{DishName: "grandma special casserole"}, common.ClassKnownRecipe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sq))
		})
	}
}

func TestComputeFingerprint(t *testing.T) {
	a := ComputeFingerprint("Pasta Carbonara")
	assert.Equal(t, a, ComputeFingerprint("Pasta Carbonara"))
	assert.Equal(t, a, ComputeFingerprint("pasta   carbonara"))
	assert.Equal(t, a, ComputeFingerprint("PASTA-CARBONARA!"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, ComputeFingerprint("Pasta Amatriciana"))
}

func TestComputeIngredientsHashOrderIndependent(t *testing.T) {
	list := []string{"Chicken", "Basmati Rice", "Yogurt", "Saffron", "Onion"}
	want := ComputeIngredientsHash(list)

	permutations := [][]string{
		{"Onion", "Saffron", "Yogurt", "Basmati Rice", "Chicken"},
		{"yogurt", "chicken", "onion", "basmati rice", "saffron"},
		{"Saffron", "Onion", "Chicken", "Yogurt", "Basmati Rice"},
	}
	for _, p := range permutations {
		assert.Equal(t, want, ComputeIngredientsHash(p))
	}

	assert.Equal(t, ComputeIngredientsHash([]string{"jalapeño"}), ComputeIngredientsHash([]string{"Jalapeno"}))
	assert.Equal(t, ComputeIngredientsHash([]string{"a", ""}), ComputeIngredientsHash([]string{"a", "!!"}))
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 0, LevenshteinDistance("", ""))
	assert.Equal(t, 5, LevenshteinDistance("", "hello"))
	assert.Equal(t, 1, LevenshteinDistance("café", "cafe"))

	words := []string{"", "a", "biryani", "biriyani", "injera", "pad thai", "phở"}
	for _, a := range words {
		assert.Equal(t, 0, LevenshteinDistance(a, a))
		for _, b := range words {
			assert.Equal(t, LevenshteinDistance(a, b), LevenshteinDistance(b, a), "%q vs %q", a, b)
		}
	}
}

func TestIngredientsSimilarity(t *testing.T) {
	a := []string{"chicken", "rice", "onion"}
	b := []string{"chicken", "rice", "garlic", "ginger"}

	assert.Equal(t, 1.0, IngredientsSimilarity(a, a))
	assert.Equal(t, 0.0, IngredientsSimilarity(nil, nil))
	assert.Equal(t, 0.0, IngredientsSimilarity([]string{}, []string{}))
	assert.InDelta(t, 2.0/5.0, IngredientsSimilarity(a, b), 1e-9)
	assert.Equal(t, 1.0, IngredientsSimilarity([]string{"Chicken!"}, []string{"chicken"}))

	lists := [][]string{nil, a, b, {"x"}, {"rice"}}
	for _, x := range lists {
		for _, y := range lists {
			s := IngredientsSimilarity(x, y)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestCalculateDedupeScore(t *testing.T) {
	s := NewScorer(DefaultScoreWeights())

	assert.InDelta(t, 1.0, s.CalculateDedupeScore(0, 1), 1e-9)
	assert.InDelta(t, 0.0, s.CalculateDedupeScore(10, 0), 1e-9)
	assert.InDelta(t, 0.4*0.8+0.6*0.9, s.CalculateDedupeScore(2, 0.9), 1e-9)
	assert.GreaterOrEqual(t, s.CalculateDedupeScore(2, 0.9), 0.75)

	for _, j := range []float64{0, 0.3, 0.9, 1} {
		prev := s.CalculateDedupeScore(0, j)
		for d := 1; d <= 20; d++ {
			cur := s.CalculateDedupeScore(d, j)
			assert.LessOrEqual(t, cur, prev, "distance %d jaccard %.1f", d, j)
			prev = cur
		}
	}
}

func TestNewScorerDefaults(t *testing.T) {
	s := NewScorer(ScoreWeights{})
	assert.Equal(t, DefaultScoreWeights(), s.Weights())

	custom := NewScorer(ScoreWeights{TitleWeight: 0.5, IngredientWeight: 0.5, TitleDistanceCap: 4})
	assert.InDelta(t, 0.5*0.5+0.5*1, custom.CalculateDedupeScore(2, 1), 1e-9)
}

func TestNormalizeIngredientsList(t *testing.T) {
	got := NormalizeIngredientsList([]string{
		"2 cups of basmati rice",
		"1 1/2 tbsp. olive oil",
		"½ tsp salt",
		"200g chicken thighs",
		"2-3 garbanzo beans",
		"3 large eggs",
		"1 onion, finely chopped",
		"Chillies (optional)",
		"   ",
		"4",
	})

	require.Len(t, got, 8)
	assert.Equal(t, []string{
		"basmati rice",
		"olive oil",
		"salt",
		"chicken thighs",
		"chickpeas",
		"egg",
		"onion",
		"chili",
	}, got)
}

func TestCanonicalIngredientIsIdempotent(t *testing.T) {
	for alias, canonical := range ingredientSynonyms {
		once := CanonicalIngredient(alias)
		assert.Equal(t, canonical, once, alias)
		assert.Equal(t, once, CanonicalIngredient(once), alias)
	}
}

func TestNormalizedListsHashTogether(t *testing.T) {
	a := NormalizeIngredientsList([]string{"1 can garbanzo beans", "2 cloves garlic", "Tahini"})
	b := NormalizeIngredientsList([]string{"tahini", "3 garlic cloves", "400g chickpeas"})
	assert.Equal(t, ComputeIngredientsHash(a), ComputeIngredientsHash(b))
}
