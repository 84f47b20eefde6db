package autofind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-autofind/internal/core/ai/queue"
	"recipe-autofind/internal/core/recipe"
	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"
	"recipe-autofind/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const duplicateReason = "Existing recipe found"

// 任務結果標籤
const (
	OutcomeCompleted = "completed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// SourceFetcher 信任來源擷取
type SourceFetcher interface {
	FetchTrustedSources(ctx context.Context, sq common.StructuredQuery, class common.Classification) []common.FetchedSource
}

// RecipeGenerator 依來源生成食譜
type RecipeGenerator interface {
	Generate(ctx context.Context, sq common.StructuredQuery, sources []common.FetchedSource, nq common.NormalizedQuery) (*common.GeneratedRecipe, error)
}

// DuplicateChecker 重複檢查，新食譜回傳 nil
type DuplicateChecker interface {
	Check(ctx context.Context, recipe *common.GeneratedRecipe) (*common.DedupeMatch, error)
}

// Store 流程需要的持久化能力
type Store interface {
	FindByNameFingerprint(ctx context.Context, fingerprint string) (*storage.Recipe, error)
	PersistGenerated(ctx context.Context, rec storage.GeneratedRecord, onStep func(step string)) (*storage.Recipe, error)
	StartExecution(ctx context.Context, jobID string, attempt int) (*storage.JobExecutionLog, error)
	FinishExecution(ctx context.Context, id uuid.UUID, outcome storage.ExecutionOutcome) error
}

// ProgressReporter 回報階段與進度
type ProgressReporter interface {
	Report(ctx context.Context, jobID, stage string, progress int)
}

// Config 流程設定
type Config struct {
	MinSpecificTokens int
}

// Deps 流程依賴，Reporter 與 Metrics 可為 nil
type Deps struct {
	Fetcher   SourceFetcher
	Generator RecipeGenerator
	Checker   DuplicateChecker
	Store     Store
	Reporter  ProgressReporter
	Metrics   *metrics.Metrics
}

// Orchestrator 依序執行正規化、擷取、生成、驗證、去重與寫入
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// NewOrchestrator 建立流程協調器
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.MinSpecificTokens <= 0 {
		cfg.MinSpecificTokens = search.DefaultMinSpecificTokens
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Process 執行單次任務嘗試。失敗時寫入 failed 執行紀錄並回傳錯誤，由佇列決定是否重試
func (o *Orchestrator) Process(ctx context.Context, job *queue.Job) (*common.JobResult, error) {
	run, err := o.begin(ctx, job)
	if err != nil {
		return nil, err
	}

	// normalizing
	run.enter(StageNormalizing)
	nq := search.Normalize(job.Input.UserQuery)
	if nq.IsEmpty() {
		return nil, run.fail(common.ErrEmptyQuery)
	}
	sq := search.Structure(nq, o.cfg.MinSpecificTokens)
	class := search.Classify(sq)
	common.LogDebug("查詢已正規化",
		zap.String("job_id", job.ID),
		zap.String("canonical", nq.CanonicalForm),
		zap.String("classification", string(class)),
		zap.Bool("vague", sq.IsVague),
	)

	// fetching_sources
	run.enter(StageFetchingSources)
	sources := o.deps.Fetcher.FetchTrustedSources(ctx, sq, class)
	if len(sources) == 0 {
		return nil, run.fail(fmt.Errorf("%w for %q", common.ErrNoTrustedSources, sq.DishName))
	}

	// generating
	run.enter(StageGenerating)
	generated, err := o.deps.Generator.Generate(ctx, sq, sources, nq)
	if err != nil {
		if !errors.Is(err, common.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
		}
		return nil, run.fail(err)
	}

	// validating
	run.enter(StageValidating)
	if res := recipe.Validate(generated); !res.IsValid {
		return nil, run.fail(fmt.Errorf("%w: %s", common.ErrValidationFailed, res.Error()))
	}

	// deduping
	run.enter(StageDeduping)
	match, err := o.deps.Checker.Check(ctx, generated)
	if err != nil {
		return nil, run.fail(err)
	}
	if match != nil {
		return run.duplicate(match)
	}

	// persisting
	run.enter(StagePersisting)
	record := storage.GeneratedRecord{
		Recipe:          generated,
		CanonicalName:   search.Normalize(generated.Title).CanonicalForm,
		NameFingerprint: search.ComputeFingerprint(generated.Title),
		IngredientsHash: search.ComputeIngredientsHash(search.NormalizeIngredientsList(generated.Ingredients)),
		Sources:         sources,
		UserQuery:       job.Input.UserQuery,
		JobID:           job.ID,
	}
	saved, err := o.deps.Store.PersistGenerated(ctx, record, run.persistStep)
	if errors.Is(err, common.ErrDuplicateFingerprint) {
		// 另一個任務搶先寫入同名食譜，改以重複處理
		existing, findErr := o.deps.Store.FindByNameFingerprint(ctx, record.NameFingerprint)
		if findErr == nil && existing != nil {
			return run.duplicate(&common.DedupeMatch{
				MatchedRecipeID: existing.ID.String(),
				SimilarityScore: 1.0,
				MatchType:       common.MatchExact,
			})
		}
		return nil, run.fail(err)
	}
	if err != nil {
		return nil, run.fail(err)
	}

	return run.complete(saved, generated, len(sources))
}

// begin 建立 running 執行紀錄
func (o *Orchestrator) begin(ctx context.Context, job *queue.Job) (*jobRun, error) {
	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	entry, err := o.deps.Store.StartExecution(ctx, job.ID, attempt)
	if err != nil {
		o.deps.Metrics.JobFinished(OutcomeFailed)
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}

	common.LogInfo("開始處理任務",
		zap.String("job_id", job.ID),
		zap.Int("attempt", attempt),
		zap.String("query", job.Input.UserQuery),
	)
	return &jobRun{
		o:          o,
		ctx:        ctx,
		job:        job,
		execID:     entry.ID,
		start:      time.Now(),
		stageStart: time.Now(),
	}, nil
}

// jobRun 單次嘗試的進度與計時
type jobRun struct {
	o          *Orchestrator
	ctx        context.Context
	job        *queue.Job
	execID     uuid.UUID
	start      time.Time
	stage      Stage
	stageStart time.Time
	progress   int
}

func (r *jobRun) report(stage Stage) {
	if p := stage.Progress(); p > r.progress {
		r.progress = p
	}
	if r.o.deps.Reporter != nil {
		r.o.deps.Reporter.Report(r.ctx, r.job.ID, string(stage), r.progress)
	}
}

// enter 結束上一階段的計時並進入新階段
func (r *jobRun) enter(stage Stage) {
	r.closeStage()
	r.stage = stage
	r.stageStart = time.Now()
	r.report(stage)
}

// closeStage 記錄目前階段耗時，每個階段只記錄一次
func (r *jobRun) closeStage() {
	if r.stage != "" {
		r.o.deps.Metrics.StageObserved(string(r.stage), time.Since(r.stageStart))
	}
	r.stage = ""
}

func (r *jobRun) persistStep(step string) {
	if stage, ok := persistStages[step]; ok {
		r.report(stage)
	}
}

// finishCtx 任務 ctx 已逾時仍要寫入執行紀錄
func (r *jobRun) finishCtx() (context.Context, context.CancelFunc) {
	if r.ctx.Err() == nil {
		return r.ctx, func() {}
	}
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (r *jobRun) finish(outcome storage.ExecutionOutcome) {
	ctx, cancel := r.finishCtx()
	defer cancel()
	outcome.Elapsed = time.Since(r.start)
	if err := r.o.deps.Store.FinishExecution(ctx, r.execID, outcome); err != nil {
		common.LogError("寫入執行紀錄失敗",
			zap.String("job_id", r.job.ID),
			zap.Error(err),
		)
	}
}

func (r *jobRun) fail(err error) error {
	failedAt := r.stage
	r.closeStage()
	r.report(StageFailed)

	r.finish(storage.ExecutionOutcome{Status: storage.ExecutionFailed, Err: err})
	r.o.deps.Metrics.JobFinished(OutcomeFailed)
	common.LogError("任務階段失敗",
		zap.String("job_id", r.job.ID),
		zap.String("stage", string(failedAt)),
		zap.Int("attempt", r.job.Attempt),
		zap.Duration("elapsed", time.Since(r.start)),
		zap.Error(err),
	)
	return err
}

func (r *jobRun) duplicate(match *common.DedupeMatch) (*common.JobResult, error) {
	r.enter(StageDuplicateResolved)
	r.closeStage()

	r.finish(storage.ExecutionOutcome{
		Status:      storage.ExecutionCompleted,
		RecipeID:    match.MatchedRecipeID,
		IsDuplicate: true,
	})
	r.o.deps.Metrics.DedupeMatched(string(match.MatchType))
	r.o.deps.Metrics.JobFinished(OutcomeDuplicate)
	common.LogInfo("找到既有食譜",
		zap.String("job_id", r.job.ID),
		zap.String("recipe_id", match.MatchedRecipeID),
		zap.String("match_type", string(match.MatchType)),
		zap.Float64("score", match.SimilarityScore),
	)
	return &common.JobResult{
		Success:     true,
		RecipeID:    match.MatchedRecipeID,
		Reason:      duplicateReason,
		IsDuplicate: true,
	}, nil
}

func (r *jobRun) complete(saved *storage.Recipe, generated *common.GeneratedRecipe, sourcesCount int) (*common.JobResult, error) {
	r.closeStage()
	r.report(StageCompleted)

	recipeID := saved.ID.String()
	r.finish(storage.ExecutionOutcome{Status: storage.ExecutionCompleted, RecipeID: recipeID})
	r.o.deps.Metrics.JobFinished(OutcomeCompleted)
	common.LogInfo("食譜生成完成",
		zap.String("job_id", r.job.ID),
		zap.String("recipe_id", recipeID),
		zap.String("title", generated.Title),
		zap.Int("sources", sourcesCount),
		zap.Duration("elapsed", time.Since(r.start)),
	)
	return &common.JobResult{
		Success:      true,
		RecipeID:     recipeID,
		Title:        generated.Title,
		Confidence:   generated.AIMetadata.Confidence,
		SourcesCount: sourcesCount,
	}, nil
}
