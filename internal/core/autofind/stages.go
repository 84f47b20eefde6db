package autofind

import "recipe-autofind/internal/storage"

// Stage 任務處理階段
type Stage string

const (
	StageQueued            Stage = "queued"
	StageNormalizing       Stage = "normalizing"
	StageFetchingSources   Stage = "fetching_sources"
	StageGenerating        Stage = "generating"
	StageValidating        Stage = "validating"
	StageDeduping          Stage = "deduping"
	StagePersisting        Stage = "persisting"
	StageProvenanceWritten Stage = "provenance_written"
	StageReviewTaskCreated Stage = "review_task_created"
	StageRevisionLogged    Stage = "revision_logged"
	StageDuplicateResolved Stage = "duplicate_resolved"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

var stageProgress = map[Stage]int{
	StageQueued:            0,
	StageNormalizing:       5,
	StageFetchingSources:   20,
	StageGenerating:        40,
	StageValidating:        55,
	StageDeduping:          65,
	StagePersisting:        75,
	StageProvenanceWritten: 82,
	StageReviewTaskCreated: 88,
	StageRevisionLogged:    94,
	StageDuplicateResolved: 100,
	StageCompleted:         100,
}

// 交易內寫入步驟對應的階段
var persistStages = map[string]Stage{
	storage.StepProvenanceWritten: StageProvenanceWritten,
	storage.StepReviewTaskCreated: StageReviewTaskCreated,
	storage.StepRevisionLogged:    StageRevisionLogged,
}

// Progress 階段對應的百分比；failed 沒有固定值，保留失敗前的進度
func (s Stage) Progress() int {
	return stageProgress[s]
}
