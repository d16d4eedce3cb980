package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound means the session was signed out, rotated away or expired.
var ErrSessionNotFound = errors.New("session not found or expired")

// Record is the server-side half of a sign-in.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	RefreshHash string    `json:"refresh_hash"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store persists session records under crmhub:session:<id> and indexes
// them by refresh-token hash under crmhub:refresh:<hash>.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func sessionKey(id string) string   { return keyPrefix + "session:" + id }
func refreshKey(hash string) string { return keyPrefix + "refresh:" + hash }

// TTL is how long a session lives without a refresh.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ExpiresAt = time.Now().UTC().Add(s.ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(rec.ID), data, s.ttl)
		p.Set(ctx, refreshKey(rec.RefreshHash), rec.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// LookupRefresh resolves a refresh-token hash to its live session.
func (s *Store) LookupRefresh(ctx context.Context, hash string) (*Record, error) {
	id, err := s.client.Get(ctx, refreshKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.RefreshHash != hash {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// Rotate swaps the session's refresh token and extends its lifetime.
// The old refresh token stops working immediately.
func (s *Store) Rotate(ctx context.Context, rec *Record, newHash string) error {
	oldHash := rec.RefreshHash
	rec.RefreshHash = newHash
	rec.ExpiresAt = time.Now().UTC().Add(s.ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, refreshKey(oldHash))
		p.Set(ctx, sessionKey(rec.ID), data, s.ttl)
		p.Set(ctx, refreshKey(newHash), rec.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

// Delete removes the session and its refresh index. Deleting an unknown
// session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, sessionKey(id), refreshKey(rec.RefreshHash)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
