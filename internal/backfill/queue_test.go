package backfill

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Job{}))
	return NewQueue(db)
}

func TestEnqueue_DeduplicatesPendingWallets(t *testing.T) {
	queue := newTestQueue(t)

	require.NoError(t, queue.Enqueue("0xABC"))
	require.NoError(t, queue.Enqueue("0xabc"))
	require.NoError(t, queue.Enqueue("0xdef"))

	jobs, err := queue.PendingJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "0xabc", jobs[0].Wallet)
	assert.Equal(t, "0xdef", jobs[1].Wallet)
}

func TestEnqueue_AllowsNewJobAfterCompletion(t *testing.T) {
	queue := newTestQueue(t)

	require.NoError(t, queue.Enqueue("0xabc"))
	jobs, err := queue.PendingJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, queue.Complete(&jobs[0]))

	require.NoError(t, queue.Enqueue("0xabc"))
	jobs, err = queue.PendingJobs(10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestFail_ParksJobAfterMaxAttempts(t *testing.T) {
	queue := newTestQueue(t)
	require.NoError(t, queue.Enqueue("0xabc"))

	cause := errors.New("aggregate rebuild failed")
	for i := 0; i < maxAttempts; i++ {
		jobs, err := queue.PendingJobs(10)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "attempt %d", i)
		require.NoError(t, queue.Fail(&jobs[0], cause))
	}

	jobs, err := queue.PendingJobs(10)
	require.NoError(t, err)
	assert.Empty(t, jobs, "exhausted job must leave the pending queue")
}
