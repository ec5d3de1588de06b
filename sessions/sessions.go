// Package sessions tracks live tutoring sessions in Redis. A session is the
// unit the API hands out when a learner starts working on a topic; it expires
// on its own if the client never ends it.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no live record.
var ErrNotFound = errors.New("session not found")

// DefaultTTL bounds abandoned sessions.
const DefaultTTL = 2 * time.Hour

type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Topic     string     `json:"topic"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID string) string {
	return "session:user:" + userID
}

// Start opens a session for the user and records it as their active one. A
// previously active session for the same user is left to expire.
func (m *Manager) Start(ctx context.Context, userID, topic string) (Session, error) {
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Topic:     topic,
		StartedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, m.ttl)
	pipe.Set(ctx, userKey(userID), session.ID, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	return session, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	payload, err := m.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("fetch session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Active returns the user's current session, if one is still live.
func (m *Manager) Active(ctx context.Context, userID string) (Session, error) {
	id, err := m.client.Get(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("fetch active session id: %w", err)
	}
	return m.Get(ctx, id)
}

// End stamps the session and drops the user's active pointer. The stamped
// record stays readable until the TTL runs out.
func (m *Manager) End(ctx context.Context, id string) (Session, error) {
	session, err := m.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if session.EndedAt != nil {
		return session, nil
	}

	now := time.Now().UTC()
	session.EndedAt = &now

	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, m.ttl)
	pipe.Del(ctx, userKey(session.UserID))
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}

	return session, nil
}
