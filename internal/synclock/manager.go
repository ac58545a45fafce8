// Package synclock provides short-TTL mutual-exclusion locks backed by the
// relational store. The lock table's primary key is the concurrency
// primitive: acquisition is a single INSERT and a duplicate-key failure
// means another holder owns the id.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/pkg/db"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"gorm.io/gorm"
)

const (
	// DefaultSyncTTL covers one reconciliation pass for a bundle.
	DefaultSyncTTL = 60 * time.Second

	syncPrefix = "sync"
)

// SyncLockID derives the per-bundle reconciliation lock id. The id carries
// no per-acquisition component so concurrent reconcilers of the same bundle
// and location genuinely exclude each other.
func SyncLockID(bundleID uuid.UUID, locationID int64) string {
	return fmt.Sprintf("%s:%s:%d", syncPrefix, bundleID, locationID)
}

// Manager acquires and releases locks against the sync_locks table.
type Manager struct {
	db  *gorm.DB
	now func() time.Time
}

// NewManager builds a lock manager bound to the provided DB.
func NewManager(conn *gorm.DB) (*Manager, error) {
	if conn == nil {
		return nil, errors.New("db connection required for lock manager")
	}
	return &Manager{db: conn, now: time.Now}, nil
}

// Acquire garbage-collects every expired lock, then attempts to create a
// lock row for id. It returns false when a live lock already exists; the
// store's uniqueness enforcement is the only coordination used.
func (m *Manager) Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return false, errors.New("lock id is required")
	}
	if ttl <= 0 {
		ttl = DefaultSyncTTL
	}

	now := m.now()
	if err := m.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.SyncLock{}).Error; err != nil {
		return false, fmt.Errorf("sweep expired locks: %w", err)
	}

	lock := models.SyncLock{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.db.WithContext(ctx).Create(&lock).Error; err != nil {
		if db.IsUniqueViolation(err, "sync_locks") {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", id, err)
	}
	return true, nil
}

// Release deletes the lock if present. Releasing an absent lock is not an
// error; the row may have expired and been swept by another acquirer.
func (m *Manager) Release(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("lock id is required")
	}
	if err := m.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.SyncLock{}).Error; err != nil {
		return fmt.Errorf("delete lock %s: %w", id, err)
	}
	return nil
}
