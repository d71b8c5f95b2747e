// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/logging"
)

const (
	sessionKeyPrefix     = "session:"
	sessionUserKeyPrefix = "session_user:"
)

// BadgerSessionStore keeps sessions in BadgerDB so logins survive a
// restart. Entries carry a TTL matching the session expiry, so Badger
// reclaims abandoned sessions without an application-level sweeper.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore opens (or creates) the store at path. An empty
// path opens an in-memory store, used by tests.
func NewBadgerSessionStore(path string) (*BadgerSessionStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerSessionStore{db: db}, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func userSessionKey(userID int64, sessionID string) []byte {
	return []byte(sessionUserKeyPrefix + strconv.FormatInt(userID, 10) + ":" + sessionID)
}

// Create stores the session plus a user-to-session index entry used by
// DeleteByUser.
func (s *BadgerSessionStore) Create(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(session.ID), data).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		idx := badger.NewEntry(userSessionKey(session.UserID, session.ID), []byte(session.ID)).WithTTL(ttl)
		if err := txn.SetEntry(idx); err != nil {
			return fmt.Errorf("set user index: %w", err)
		}
		return nil
	})
}

// Get returns the session or ErrSessionNotFound / ErrSessionExpired.
func (s *BadgerSessionStore) Get(_ context.Context, id string) (*Session, error) {
	var session Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Delete removes one session. Deleting a missing session is a no-op.
func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if session != nil {
			if err := txn.Delete(userSessionKey(session.UserID, id)); err != nil {
				return fmt.Errorf("delete user index: %w", err)
			}
		}
		return nil
	})
}

// DeleteByUser removes every session belonging to a user, used when an
// account is deleted or a global logout is requested.
func (s *BadgerSessionStore) DeleteByUser(_ context.Context, userID int64) error {
	prefix := []byte(sessionUserKeyPrefix + strconv.FormatInt(userID, 10) + ":")
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var sessionID []byte
			if err := item.Value(func(val []byte) error {
				sessionID = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return fmt.Errorf("read user index: %w", err)
			}
			keys = append(keys, item.KeyCopy(nil), sessionKey(string(sessionID)))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// RunGC runs Badger's value-log garbage collection on an interval until
// the context is cancelled. Run under the supervision tree.
func (s *BadgerSessionStore) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Debug().Err(err).Msg("Session store GC pass skipped")
					}
					break
				}
			}
		}
	}
}

// Close releases the underlying store.
func (s *BadgerSessionStore) Close() error {
	return s.db.Close()
}
