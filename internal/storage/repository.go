package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-autofind/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 交易內各寫入步驟完成時回報的名稱
const (
	StepRecipeInserted    = "recipe_inserted"
	StepProvenanceWritten = "provenance_written"
	StepReviewTaskCreated = "review_task_created"
	StepRevisionLogged    = "revision_logged"
)

// GeneratedRecord 要寫入的生成結果與出處
type GeneratedRecord struct {
	Recipe          *common.GeneratedRecipe
	CanonicalName   string
	NameFingerprint string
	IngredientsHash string
	Sources         []common.FetchedSource
	UserQuery       string
	JobID           string
}

// ExecutionOutcome 任務嘗試的終止結果
type ExecutionOutcome struct {
	Status      string
	RecipeID    string
	IsDuplicate bool
	Err         error
	Elapsed     time.Duration
}

// Repository 食譜與稽核資料存取
type Repository struct {
	db *gorm.DB
}

// NewRepository 創建資料存取層
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 底層連線
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Ping 檢查資料庫連線
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FindByNameFingerprint 依菜名指紋查詢，查無資料回傳 nil, nil
func (r *Repository) FindByNameFingerprint(ctx context.Context, fingerprint string) (*Recipe, error) {
	var recipe Recipe
	err := r.db.WithContext(ctx).
		Where("name_fingerprint = ?", fingerprint).
		Take(&recipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recipe by fingerprint: %w", err)
	}
	return &recipe, nil
}

// GetRecipe 依 ID 取得食譜
func (r *Repository) GetRecipe(ctx context.Context, id uuid.UUID) (*Recipe, error) {
	var recipe Recipe
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListDedupeCandidates 取出已驗證或社群食譜作為比對候選，數量有上限
func (r *Repository) ListDedupeCandidates(ctx context.Context, limit int) ([]Recipe, error) {
	var recipes []Recipe
	err := r.db.WithContext(ctx).
		Select("id", "title", "canonical_name", "ingredients").
		Where("authenticity_status IN ?", []string{StatusVerified, StatusCommunity}).
		Order("created_at DESC").
		Limit(limit).
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dedupe candidates: %w", err)
	}
	return recipes, nil
}

// PersistGenerated 在單一交易內寫入食譜、來源快照、審核任務與修訂紀錄。
// 指紋唯一鍵衝突時回傳 ErrDuplicateFingerprint。
// onStep 只在交易提交後依序回報，交易回滾時不會呼叫。
func (r *Repository) PersistGenerated(ctx context.Context, rec GeneratedRecord, onStep func(step string)) (*Recipe, error) {
	if rec.Recipe == nil {
		return nil, fmt.Errorf("%w: nil recipe", common.ErrPersistenceFailed)
	}
	if onStep == nil {
		onStep = func(string) {}
	}

	ingredients, err := marshalJSON(rec.Recipe.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}
	steps, err := marshalJSON(rec.Recipe.Steps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}
	metadata, err := marshalJSON(rec.Recipe.AIMetadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}
	payload, err := marshalJSON(rec.Recipe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}

	now := time.Now().UTC()
	recipe := &Recipe{
		ID:                 uuid.New(),
		Title:              rec.Recipe.Title,
		CanonicalName:      rec.CanonicalName,
		NameFingerprint:    rec.NameFingerprint,
		IngredientsHash:    rec.IngredientsHash,
		Ingredients:        ingredients,
		Steps:              steps,
		CookingTimeMinutes: rec.Recipe.CookingTimeMinutes,
		Difficulty:         string(rec.Recipe.Difficulty),
		History:            rec.Recipe.HistoryText,
		PlatingStyle:       rec.Recipe.PlatingStyle,
		ImageURL:           rec.Recipe.ImageURL,
		OriginCountry:      rec.Recipe.OriginCountry,
		OriginRegion:       rec.Recipe.OriginRegion,
		AuthenticityStatus: StatusAIPending,
		AIMetadata:         metadata,
		ReviewRequested:    true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// 交易內完成的步驟，提交後才回報
	var done []string
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done = done[:0]
		if err := tx.Create(recipe).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", common.ErrDuplicateFingerprint, rec.NameFingerprint)
			}
			return fmt.Errorf("insert recipe: %w", err)
		}
		done = append(done, StepRecipeInserted)

		snapshots := make([]SourceSnapshot, 0, len(rec.Sources))
		for _, src := range rec.Sources {
			if src.SnapshotText == "" {
				continue
			}
			snapshots = append(snapshots, SourceSnapshot{
				ID:           uuid.New(),
				RecipeID:     recipe.ID,
				URL:          src.URL,
				Title:        src.Title,
				Domain:       src.Domain,
				TrustScore:   src.TrustScore,
				SnapshotText: src.SnapshotText,
				CapturedAt:   now,
			})
		}
		if len(snapshots) > 0 {
			if err := tx.Create(&snapshots).Error; err != nil {
				return fmt.Errorf("insert source snapshots: %w", err)
			}
		}
		done = append(done, StepProvenanceWritten)

		task := &ReviewTask{
			ID:        uuid.New(),
			RecipeID:  recipe.ID,
			Status:    ReviewStatusPending,
			Reason:    reviewReasonAIRecipe,
			CreatedAt: now,
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("insert review task: %w", err)
		}
		done = append(done, StepReviewTaskCreated)

		revision := &RevisionEntry{
			ID:        uuid.New(),
			RecipeID:  recipe.ID,
			Action:    RevisionAIGenerated,
			Payload:   payload,
			UserQuery: rec.UserQuery,
			CreatedAt: now,
		}
		if err := tx.Create(revision).Error; err != nil {
			return fmt.Errorf("insert revision entry: %w", err)
		}
		done = append(done, StepRevisionLogged)
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateFingerprint) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrPersistenceFailed, err)
	}
	for _, step := range done {
		onStep(step)
	}

	common.LogInfo("食譜已寫入",
		zap.String("recipe_id", recipe.ID.String()),
		zap.String("job_id", rec.JobID),
		zap.String("title", recipe.Title),
	)
	return recipe, nil
}

// StartExecution 任務嘗試開始時建立 running 紀錄
func (r *Repository) StartExecution(ctx context.Context, jobID string, attempt int) (*JobExecutionLog, error) {
	entry := &JobExecutionLog{
		ID:        uuid.New(),
		JobID:     jobID,
		Attempt:   attempt,
		Status:    ExecutionRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create execution log: %w", err)
	}
	return entry, nil
}

// FinishExecution 將 running 紀錄更新為終止狀態，只會成功一次
func (r *Repository) FinishExecution(ctx context.Context, id uuid.UUID, outcome ExecutionOutcome) error {
	completedAt := time.Now().UTC()
	updates := map[string]interface{}{
		"status":            outcome.Status,
		"is_duplicate":      outcome.IsDuplicate,
		"execution_time_ms": outcome.Elapsed.Milliseconds(),
		"completed_at":      completedAt,
	}
	if outcome.RecipeID != "" {
		recipeID, err := uuid.Parse(outcome.RecipeID)
		if err != nil {
			return fmt.Errorf("invalid recipe id %q: %w", outcome.RecipeID, err)
		}
		updates["recipe_id"] = recipeID
	}
	if outcome.Err != nil {
		updates["error_message"] = outcome.Err.Error()
	}

	res := r.db.WithContext(ctx).
		Model(&JobExecutionLog{}).
		Where("id = ? AND status = ?", id, ExecutionRunning).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to finish execution log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("execution log %s is not running", id)
	}
	return nil
}

// GetLatestExecution 取得任務最新一筆執行紀錄
func (r *Repository) GetLatestExecution(ctx context.Context, jobID string) (*JobExecutionLog, error) {
	var entry JobExecutionLog
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("attempt DESC").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}
	return &entry, nil
}

// PruneExecutions 刪除早於指定時間的已結束執行紀錄
func (r *Repository) PruneExecutions(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status <> ? AND started_at < ?", ExecutionRunning, before.UTC()).
		Delete(&JobExecutionLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune execution logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func marshalJSON(v interface{}) (datatypes.JSON, error) {
	raw, err := common.ToJSON(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
