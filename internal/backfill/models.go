package backfill

import (
	"gorm.io/gorm"
)

const (
	JobPending = "PENDING"
	JobDone    = "DONE"
	JobFailed  = "FAILED"
)

const maxAttempts = 5

// Job is one queued aggregate rebuild for a trader wallet. Jobs survive
// restarts; the queue deduplicates on wallet while a job is still pending.
type Job struct {
	gorm.Model `json:"-"`
	Wallet     string `gorm:"index" json:"wallet"`
	Status     string `gorm:"index" json:"status"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error"`
}
