package storage

import (
	"time"

	"recipe-autofind/internal/pkg/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// 食譜真實性狀態
const (
	StatusAIPending = "ai_pending"
	StatusVerified  = "verified"
	StatusCommunity = "community"
)

// 執行紀錄狀態
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

const (
	ReviewStatusPending  = "pending"
	RevisionAIGenerated  = "ai_generated"
	reviewReasonAIRecipe = "auto-generated recipe awaiting moderation"
)

// Recipe 食譜資料列，只包含流程讀寫的欄位
type Recipe struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title              string         `gorm:"size:255;not null" json:"title"`
	CanonicalName      string         `gorm:"column:canonical_name;not null;index" json:"canonical_name"`
	NameFingerprint    string         `gorm:"column:name_fingerprint;size:64;not null;uniqueIndex" json:"name_fingerprint"`
	IngredientsHash    string         `gorm:"column:ingredients_hash;size:64;index" json:"ingredients_hash"`
	Ingredients        datatypes.JSON `gorm:"column:ingredients" json:"ingredients"`
	Steps              datatypes.JSON `gorm:"column:steps" json:"steps"`
	CookingTimeMinutes int            `gorm:"column:cooking_time_minutes" json:"cooking_time_minutes,omitempty"`
	Difficulty         string         `gorm:"size:16" json:"difficulty,omitempty"`
	History            string         `gorm:"type:text" json:"history,omitempty"`
	PlatingStyle       string         `gorm:"type:text" json:"plating_style,omitempty"`
	ImageURL           string         `gorm:"column:image_url;size:500" json:"image_url,omitempty"`
	OriginCountry      string         `gorm:"column:origin_country" json:"origin_country,omitempty"`
	OriginRegion       string         `gorm:"column:origin_region" json:"origin_region,omitempty"`
	AuthenticityStatus string         `gorm:"column:authenticity_status;not null;index" json:"authenticity_status"`
	AIMetadata         datatypes.JSON `gorm:"column:ai_metadata" json:"ai_metadata,omitempty"`
	ReviewRequested    bool           `gorm:"column:review_requested;not null;default:false" json:"review_requested"`
	CreatedAt          time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Recipe) TableName() string { return "recipes" }

// IngredientList 解出食材陣列
func (r *Recipe) IngredientList() []string {
	var out []string
	if len(r.Ingredients) == 0 {
		return out
	}
	if err := common.ParseJSONBytes(r.Ingredients, &out); err != nil {
		return nil
	}
	return out
}

// ReviewTask 審核任務
type ReviewTask struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID  uuid.UUID `gorm:"type:uuid;not null;index" json:"recipe_id"`
	Status    string    `gorm:"not null;index" json:"status"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ReviewTask) TableName() string { return "review_tasks" }

// RevisionEntry 修訂紀錄，保存生成內容與原始查詢
type RevisionEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"recipe_id"`
	Action    string         `gorm:"not null" json:"action"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	UserQuery string         `gorm:"column:user_query;type:text" json:"user_query"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (RevisionEntry) TableName() string { return "revision_entries" }

// SourceSnapshot 引用來源的快照
type SourceSnapshot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID     uuid.UUID `gorm:"type:uuid;not null;index" json:"recipe_id"`
	URL          string    `gorm:"column:url;not null" json:"url"`
	Title        string    `json:"title"`
	Domain       string    `gorm:"index" json:"domain"`
	TrustScore   float64   `gorm:"column:trust_score" json:"trust_score"`
	SnapshotText string    `gorm:"column:snapshot_text;type:text" json:"snapshot_text"`
	CapturedAt   time.Time `gorm:"column:captured_at;not null" json:"captured_at"`
}

func (SourceSnapshot) TableName() string { return "source_snapshots" }

// JobExecutionLog 每次任務嘗試一筆，結束時只更新一次
type JobExecutionLog struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobID           string     `gorm:"column:job_id;not null;index" json:"job_id"`
	Attempt         int        `gorm:"not null;default:1" json:"attempt"`
	Status          string     `gorm:"not null;index" json:"status"`
	RecipeID        *uuid.UUID `gorm:"type:uuid;column:recipe_id" json:"recipe_id,omitempty"`
	IsDuplicate     bool       `gorm:"column:is_duplicate;not null;default:false" json:"is_duplicate"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ExecutionTimeMs int64      `gorm:"column:execution_time_ms" json:"execution_time_ms"`
	StartedAt       time.Time  `gorm:"column:started_at;not null;index" json:"started_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (JobExecutionLog) TableName() string { return "job_execution_logs" }

// Models 需要遷移的全部模型
func Models() []interface{} {
	return []interface{}{
		&Recipe{},
		&ReviewTask{},
		&RevisionEntry{},
		&SourceSnapshot{},
		&JobExecutionLog{},
	}
}
