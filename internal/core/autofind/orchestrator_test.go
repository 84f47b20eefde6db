package autofind

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/core/dedupe"
	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/infrastructure/database"
	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"
	"recipe-autofind/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeFetcher struct {
	sources   []common.FetchedSource
	calls     int
	lastClass common.Classification
}

func (f *fakeFetcher) FetchTrustedSources(_ context.Context, _ common.StructuredQuery, class common.Classification) []common.FetchedSource {
	f.calls++
	f.lastClass = class
	return f.sources
}

type fakeGenerator struct {
	recipe *common.GeneratedRecipe
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, _ common.StructuredQuery, _ []common.FetchedSource, _ common.NormalizedQuery) (*common.GeneratedRecipe, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	copied := *g.recipe
	return &copied, nil
}

type stubChecker struct {
	match *common.DedupeMatch
	err   error
}

func (c stubChecker) Check(context.Context, *common.GeneratedRecipe) (*common.DedupeMatch, error) {
	return c.match, c.err
}

type recordingReporter struct {
	mu       sync.Mutex
	stages   []string
	progress []int
}

func (r *recordingReporter) Report(_ context.Context, _ string, stage string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.progress = append(r.progress, progress)
}

func (r *recordingReporter) last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[len(r.stages)-1], r.progress[len(r.progress)-1]
}

func newTestStore(t *testing.T) *storage.Repository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.Migrate(db, storage.Models()...))
	return storage.NewRepository(db)
}

func seedRecipe(t *testing.T, repo *storage.Repository, title, status string, ingredients []string) storage.Recipe {
	t.Helper()
	data, err := common.ToJSON(ingredients)
	require.NoError(t, err)
	now := time.Now().UTC()
	row := storage.Recipe{
		ID:                 uuid.New(),
		Title:              title,
		CanonicalName:      search.Normalize(title).CanonicalForm,
		NameFingerprint:    search.ComputeFingerprint(title),
		Ingredients:        datatypes.JSON(data),
		Steps:              datatypes.JSON(`["cook"]`),
		AuthenticityStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.DB().Create(&row).Error)
	return row
}

func countRows(t *testing.T, repo *storage.Repository, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repo.DB().Model(model).Count(&n).Error)
	return n
}

var trustedSources = []common.FetchedSource{
	{URL: "https://www.britannica.com/topic/injera", Title: "Injera", Domain: "www.britannica.com", TrustScore: 0.95, ExcerptText: "Injera is a flatbread", SnapshotText: "Injera is a sour flatbread from Ethiopia."},
	{URL: "https://en.wikipedia.org/wiki/Injera", Title: "Injera", Domain: "en.wikipedia.org", TrustScore: 0.9, ExcerptText: "Injera"},
}

func generatedRecipe(title string, ingredients []string) *common.GeneratedRecipe {
	return &common.GeneratedRecipe{
		Title:              title,
		Ingredients:        ingredients,
		Steps:              []string{"Prepare", "Cook", "Serve"},
		CookingTimeMinutes: 60,
		Difficulty:         common.DifficultyMedium,
		HistoryText:        "A dish with a long history [0].",
		AIMetadata:         common.AIMetadata{ModelVersion: "test/model", Confidence: 0.82},
	}
}

type harness struct {
	repo      *storage.Repository
	fetcher   *fakeFetcher
	generator *fakeGenerator
	reporter  *recordingReporter
	orch      *Orchestrator
}

func newHarness(t *testing.T, checker DuplicateChecker) *harness {
	repo := newTestStore(t)
	h := &harness{
		repo:      repo,
		fetcher:   &fakeFetcher{sources: trustedSources},
		generator: &fakeGenerator{},
		reporter:  &recordingReporter{},
	}
	if checker == nil {
		checker = dedupe.NewChecker(repo, dedupe.DefaultConfig())
	}
	h.orch = NewOrchestrator(Deps{
		Fetcher:   h.fetcher,
		Generator: h.generator,
		Checker:   checker,
		Store:     repo,
		Reporter:  h.reporter,
		Metrics:   metrics.New(prometheus.NewRegistry()),
	}, Config{})
	return h
}

func newJob(query string) *queue.Job {
	job := queue.NewJob(common.JobInput{UserQuery: query, Timestamp: time.Now()}, 3)
	job.Attempt = 1
	return job
}

func (h *harness) execution(t *testing.T, jobID string) *storage.JobExecutionLog {
	t.Helper()
	entry, err := h.repo.GetLatestExecution(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	return entry
}

func TestExactDuplicateReturnsExistingRecipe(t *testing.T) {
	h := newHarness(t, nil)
	existing := seedRecipe(t, h.repo, "Chicken Biryani", storage.StatusVerified, []string{"basmati rice", "chicken"})
	h.generator.recipe = generatedRecipe("Chicken Biryani", []string{"rice", "chicken", "yogurt"})

	job := newJob("chicken biryani")
	result, err := h.orch.Process(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, existing.ID.String(), result.RecipeID)
	assert.Equal(t, "Existing recipe found", result.Reason)
	assert.Equal(t, int64(1), countRows(t, h.repo, &storage.Recipe{}), "no new row is inserted")
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.ReviewTask{}))

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionCompleted, entry.Status)
	assert.True(t, entry.IsDuplicate)
	require.NotNil(t, entry.RecipeID)
	assert.Equal(t, existing.ID, *entry.RecipeID)

	stage, progress := h.reporter.last()
	assert.Equal(t, string(StageDuplicateResolved), stage)
	assert.Equal(t, 100, progress)
	assert.NotContains(t, h.reporter.stages, string(StagePersisting))
}

func TestNovelRecipePersistsWithProvenance(t *testing.T) {
	h := newHarness(t, nil)
	seedRecipe(t, h.repo, "Beef Stroganoff", storage.StatusVerified, []string{"beef", "mushroom", "sour cream"})
	h.generator.recipe = generatedRecipe("Ethiopian Injera", []string{"2 cups teff flour", "3 cups water", "1/2 tsp salt"})

	job := newJob("Ethiopian Injera")
	result, err := h.orch.Process(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, "Ethiopian Injera", result.Title)
	assert.Equal(t, 0.82, result.Confidence)
	assert.Equal(t, 2, result.SourcesCount)
	assert.Equal(t, common.ClassKnownRecipe, h.fetcher.lastClass)

	id, err := uuid.Parse(result.RecipeID)
	require.NoError(t, err)
	saved, err := h.repo.GetRecipe(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAIPending, saved.AuthenticityStatus)
	assert.True(t, saved.ReviewRequested)
	assert.Equal(t, "ethiopian_injera", saved.CanonicalName)
	assert.Equal(t, search.ComputeFingerprint("Ethiopian Injera"), saved.NameFingerprint)
	assert.Equal(t, search.ComputeIngredientsHash([]string{"teff flour", "water", "salt"}), saved.IngredientsHash)

	var tasks []storage.ReviewTask
	require.NoError(t, h.repo.DB().Where("recipe_id = ?", id).Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, storage.ReviewStatusPending, tasks[0].Status)

	var revisions []storage.RevisionEntry
	require.NoError(t, h.repo.DB().Where("recipe_id = ?", id).Find(&revisions).Error)
	require.Len(t, revisions, 1)
	assert.Equal(t, storage.RevisionAIGenerated, revisions[0].Action)
	assert.Equal(t, "Ethiopian Injera", revisions[0].UserQuery)

	var snapshots []storage.SourceSnapshot
	require.NoError(t, h.repo.DB().Where("recipe_id = ?", id).Find(&snapshots).Error)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "www.britannica.com", snapshots[0].Domain)

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionCompleted, entry.Status)
	assert.False(t, entry.IsDuplicate)
	assert.Nil(t, entry.ErrorMessage)
	require.NotNil(t, entry.CompletedAt)

	assert.Equal(t, []string{
		"normalizing", "fetching_sources", "generating", "validating", "deduping",
		"persisting", "provenance_written", "review_task_created", "revision_logged", "completed",
	}, h.reporter.stages)
	assert.IsNonDecreasing(t, h.reporter.progress)
	assert.Equal(t, 100, h.reporter.progress[len(h.reporter.progress)-1])
}

func TestNoTrustedSourcesFailsJob(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.sources = nil
	h.generator.recipe = generatedRecipe("Ethiopian Injera", []string{"teff"})

	job := newJob("zzqx flurb")
	result, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, common.ErrNoTrustedSources))
	assert.Zero(t, h.generator.calls)

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionFailed, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "no trusted sources")
	require.NotNil(t, entry.CompletedAt)
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.Recipe{}))

	stage, progress := h.reporter.last()
	assert.Equal(t, string(StageFailed), stage)
	assert.Equal(t, 20, progress, "failure keeps the last reached percentage")
}

func TestNearDuplicateByIngredients(t *testing.T) {
	h := newHarness(t, nil)
	biryani := []string{
		"basmati rice", "chicken", "yogurt", "onion", "garlic",
		"ginger", "saffron", "ghee", "mint", "garam masala",
	}
	existing := seedRecipe(t, h.repo, "Chicken Biriyanii", storage.StatusCommunity, biryani)
	h.generator.recipe = generatedRecipe("Chicken Biryani", biryani[:9])

	result, err := h.orch.Process(context.Background(), newJob("chicken biryani"))
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, existing.ID.String(), result.RecipeID)
	assert.Equal(t, int64(1), countRows(t, h.repo, &storage.Recipe{}))
}

func TestValidationFailureReportsAllDefects(t *testing.T) {
	h := newHarness(t, nil)
	bad := generatedRecipe("Injera", nil)
	bad.Difficulty = "Extreme"
	h.generator.recipe = bad

	job := newJob("injera")
	_, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidationFailed))
	assert.Contains(t, err.Error(), "ingredients are required; difficulty must be one of Easy, Medium, Hard")

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionFailed, entry.Status)
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.Recipe{}))
}

func TestGenerationFailurePreservesProviderError(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.err = errors.New("openrouter returned status 503")

	job := newJob("injera")
	_, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrGenerationFailed))

	entry := h.execution(t, job.ID)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "openrouter returned status 503")
}

func TestPersistenceFailureLeavesNoRecipe(t *testing.T) {
	h := newHarness(t, stubChecker{})
	h.generator.recipe = generatedRecipe("Ethiopian Injera", []string{"teff flour", "water"})
	require.NoError(t, h.repo.DB().Migrator().DropTable(&storage.ReviewTask{}))

	job := newJob("ethiopian injera")
	_, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistenceFailed))

	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.Recipe{}))
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.SourceSnapshot{}))

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionFailed, entry.Status)
	assert.Nil(t, entry.RecipeID)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "insert review task")

	assert.Contains(t, h.reporter.stages, string(StagePersisting))
	assert.NotContains(t, h.reporter.stages, string(StageProvenanceWritten))
	stage, _ := h.reporter.last()
	assert.Equal(t, string(StageFailed), stage)
}

func TestFingerprintConflictResolvesAsDuplicate(t *testing.T) {
	// 去重時尚未看到的同名食譜，在寫入時才撞到唯一鍵
	h := newHarness(t, stubChecker{})
	existing := seedRecipe(t, h.repo, "Ethiopian Injera", storage.StatusAIPending, []string{"teff"})
	h.generator.recipe = generatedRecipe("Ethiopian  injera", []string{"teff flour", "water"})

	job := newJob("ethiopian injera")
	result, err := h.orch.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, existing.ID.String(), result.RecipeID)
	assert.Equal(t, int64(1), countRows(t, h.repo, &storage.Recipe{}))
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.ReviewTask{}), "rolled back transaction leaves no review task")

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionCompleted, entry.Status)
	assert.True(t, entry.IsDuplicate)
}

func TestDedupeErrorFailsJob(t *testing.T) {
	h := newHarness(t, stubChecker{err: errors.New("dedupe check failed: connection reset")})
	h.generator.recipe = generatedRecipe("Ethiopian Injera", []string{"teff"})

	job := newJob("injera")
	_, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)

	entry := h.execution(t, job.ID)
	assert.Equal(t, storage.ExecutionFailed, entry.Status)
	assert.Equal(t, int64(0), countRows(t, h.repo, &storage.Recipe{}))
}

func TestEmptyQueryFails(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Process(context.Background(), newJob("   ?! "))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEmptyQuery))
	assert.Zero(t, h.fetcher.calls)
}

func TestVagueQueryIsClassified(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.recipe = generatedRecipe("Moroccan Lamb Tagine", []string{"lamb", "apricot"})

	_, err := h.orch.Process(context.Background(), newJob("something with lamb from morocco"))
	require.NoError(t, err)
	assert.Equal(t, common.ClassVagueDescription, h.fetcher.lastClass)
}

func TestRetryAttemptsGetSeparateExecutionLogs(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.sources = nil

	job := newJob("injera")
	_, err := h.orch.Process(context.Background(), job)
	require.Error(t, err)

	job.Attempt = 2
	h.fetcher.sources = trustedSources
	h.generator.recipe = generatedRecipe("Ethiopian Injera", []string{"teff"})
	_, err = h.orch.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, int64(2), countRows(t, h.repo, &storage.JobExecutionLog{}))
	entry := h.execution(t, job.ID)
	assert.Equal(t, 2, entry.Attempt)
	assert.Equal(t, storage.ExecutionCompleted, entry.Status)
}
