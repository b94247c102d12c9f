package models

import "time"

// JobLock is a lease row used to keep background jobs from overlapping
// across processes.
type JobLock struct {
	Name        string    `gorm:"primaryKey;size:64"`
	Holder      string    `gorm:"size:64"`
	LockedUntil time.Time `gorm:"index"`
	UpdatedAt   time.Time
}
