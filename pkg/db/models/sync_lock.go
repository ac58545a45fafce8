package models

import "time"

// SyncLock is a short-lived mutual-exclusion record. The primary key is the
// concurrency primitive: acquisition is a bare INSERT and a duplicate key
// means someone else holds the lock.
type SyncLock struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
}

// Expired reports whether the lock is past its TTL at the given instant.
func (l SyncLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
