package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

const defaultSessionKey = "marketplace:session"

// SessionStore keeps the backend session in a single Redis key so it
// survives process restarts. The key carries no TTL: the refresh token
// outlives the access token expiry.
type SessionStore struct {
	client *redis.Client
	key    string
}

// NewSessionStore creates a SessionStore under key, or the default key when empty.
func NewSessionStore(client *redis.Client, key string) *SessionStore {
	if key == "" {
		key = defaultSessionKey
	}
	return &SessionStore{client: client, key: key}
}

// Load returns the stored session, or nil when the key does not exist.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &sess, nil
}

// Save replaces the stored session. A nil session deletes the key.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return s.Delete(ctx)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Delete removes the stored session.
func (s *SessionStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session del: %w", err)
	}
	return nil
}
