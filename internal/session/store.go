package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no session exists for the given ID or user
var ErrNotFound = errors.New("session not found")

// Store holds bearer tokens keyed by gateway session ID. Session state is an
// explicit collaborator passed to API callers, never ambient global lookup.
// Sessions are created on OTP login and revoked on logout or when the backend
// rejects the token.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a Redis-backed session store
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID int64) string {
	return fmt.Sprintf("session:user:%d", userID)
}

// Create issues a new session for a user's bearer token. Role comes from the
// backend's login response and gates the admin surface.
func (s *Store) Create(ctx context.Context, userID int64, token, role string) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		Role:      role,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(sess.ID), data, s.ttl)
	pipe.Set(ctx, userKey(userID), sess.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	util.SessionsCreatedTotal.Inc()
	return sess, nil
}

// Get resolves a session by its ID
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// GetByUser resolves the most recent session for a user
func (s *Store) GetByUser(ctx context.Context, userID int64) (*models.Session, error) {
	id, err := s.rdb.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Revoke deletes a session. Reason is recorded in metrics only.
func (s *Store) Revoke(ctx context.Context, id, reason string) error {
	sess, err := s.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, userKey(sess.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	util.SessionsRevokedTotal.WithLabelValues(reason).Inc()
	return nil
}
