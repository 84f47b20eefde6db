package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipe-autofind/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	before  time.Time
	deleted int64
	err     error
	calls   int
}

func (f *fakePruner) PruneExecutions(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return f.deleted, f.err
}

func TestRunOnceUsesMaxAgeCutoff(t *testing.T) {
	pruner := &fakePruner{deleted: 4}
	r := NewRetention(pruner, config.RetentionConfig{Enabled: true, MaxAge: 48 * time.Hour}, nil)
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, now.Add(-48*time.Hour), pruner.before)
}

func TestRunOncePropagatesError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	r := NewRetention(pruner, config.RetentionConfig{Enabled: true}, nil)

	_, err := r.RunOnce(context.Background())
	assert.EqualError(t, err, "database is locked")
}

func TestDefaultsApplied(t *testing.T) {
	r := NewRetention(&fakePruner{}, config.RetentionConfig{}, nil)
	assert.Equal(t, defaultSchedule, r.config.Schedule)
	assert.Equal(t, defaultMaxAge, r.config.MaxAge)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewRetention(&fakePruner{}, config.RetentionConfig{Enabled: true, Schedule: "every tuesday"}, nil)
	assert.Error(t, r.Start())
}

func TestStartDisabledIsNoop(t *testing.T) {
	pruner := &fakePruner{}
	r := NewRetention(pruner, config.RetentionConfig{Enabled: false, Schedule: "every tuesday"}, nil)
	require.NoError(t, r.Start())
	r.Stop()
	assert.Zero(t, pruner.calls)
}
