package backfill

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Queue is a durable job queue backed by the main database. Work enqueued
// here survives restarts, unlike a fire-and-forget goroutine.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue records a pending aggregate rebuild for the wallet. A wallet with
// a job already pending is not queued twice; the pending job will pick up
// the newer data anyway.
func (q *Queue) Enqueue(wallet string) error {
	wallet = strings.ToLower(wallet)

	var existing Job
	err := q.db.Where("wallet = ? AND status = ?", wallet, JobPending).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return q.db.Create(&Job{Wallet: wallet, Status: JobPending}).Error
}

// PendingJobs returns jobs awaiting processing, oldest first.
func (q *Queue) PendingJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []Job
	err := q.db.Where("status = ?", JobPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// Complete marks a job done.
func (q *Queue) Complete(job *Job) error {
	return q.db.Model(job).Updates(map[string]interface{}{
		"status":     JobDone,
		"last_error": "",
	}).Error
}

// Fail records a failed attempt. The job stays pending until it exhausts
// its attempts, then parks as FAILED for inspection.
func (q *Queue) Fail(job *Job, cause error) error {
	job.Attempts++
	status := JobPending
	if job.Attempts >= maxAttempts {
		status = JobFailed
	}
	return q.db.Model(job).Updates(map[string]interface{}{
		"status":     status,
		"attempts":   job.Attempts,
		"last_error": cause.Error(),
	}).Error
}
