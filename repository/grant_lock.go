package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	log "github.com/sirupsen/logrus"
)

// GrantLock is the per-grant execution lease, backed by a Postgres
// session-level advisory lock keyed by grant id. The lock lives on a
// dedicated pooled connection held until release.
type GrantLock struct {
	db *database.DB
}

// NewGrantLock creates a new grant lease provider
func NewGrantLock(db *database.DB) *GrantLock {
	return &GrantLock{db: db}
}

// TryLock acquires the lease for a grant without waiting
func (l *GrantLock) TryLock(ctx context.Context, grantID int64) (func(), error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for grant lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, grantID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to lock grant %d: %w", grantID, err)
	}
	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("grant %d: %w", grantID, models.ErrGrantBusy)
	}

	release := func() {
		// the caller's context may already be cancelled
		var unlocked bool
		if err := conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock($1)`, grantID).Scan(&unlocked); err != nil || !unlocked {
			log.WithFields(log.Fields{
				"grantID": grantID,
				"error":   err,
			}).Warn("Failed to release grant lock, closing connection")
			// closing the session drops every lock it holds
			conn.Conn().Close(context.Background())
		}
		conn.Release()
	}
	return release, nil
}
