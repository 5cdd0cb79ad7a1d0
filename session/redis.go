package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	// TTL bounds how long history and metadata survive after the last
	// write. Zero disables expiry.
	TTL time.Duration
	// KeyPrefix namespaces all keys, e.g. for shared Redis instances.
	KeyPrefix string
}

// RedisStore persists session history and metadata in Redis. History for a
// session lives under one key as a JSON array that is re-written on every
// append, refreshing the TTL; metadata lives under a sibling key. Appends
// are read-modify-write, so callers serialize writes per session id (the
// engine's per-session lock does).
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisStore creates a store on top of an existing go-redis client.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{TTL: time.Hour}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, opts: opts}
}

func (s *RedisStore) historyKey(sessionID string) string {
	return s.opts.KeyPrefix + "chat_history:" + sessionID
}

func (s *RedisStore) metaKey(sessionID string) string {
	return s.opts.KeyPrefix + "session_meta:" + sessionID
}

// AppendTurns implements core.SessionStore.
func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...core.Message) error {
	existing, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}
	existing = append(existing, turns...)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.client.Set(ctx, s.historyKey(sessionID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// History implements core.SessionStore. Missing or expired keys read as empty.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	data, err := s.client.Get(ctx, s.historyKey(sessionID)).Result()
	if err == redis.Nil {
		return []core.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var turns []core.Message
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return turns, nil
}

// PutInfo implements core.SessionStore.
func (s *RedisStore) PutInfo(ctx context.Context, info core.SessionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal session info: %w", err)
	}
	if err := s.client.Set(ctx, s.metaKey(info.ID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("write session info: %w", err)
	}
	return nil
}

// Info implements core.SessionStore.
func (s *RedisStore) Info(ctx context.Context, sessionID string) (core.SessionInfo, error) {
	data, err := s.client.Get(ctx, s.metaKey(sessionID)).Result()
	if err == redis.Nil {
		return core.SessionInfo{}, core.ErrSessionNotFound
	}
	if err != nil {
		return core.SessionInfo{}, fmt.Errorf("read session info: %w", err)
	}

	var info core.SessionInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return core.SessionInfo{}, fmt.Errorf("decode session info: %w", err)
	}
	return info, nil
}

// List implements core.SessionStore by scanning metadata keys.
func (s *RedisStore) List(ctx context.Context) ([]core.SessionInfo, error) {
	var infos []core.SessionInfo

	iter := s.client.Scan(ctx, 0, s.opts.KeyPrefix+"session_meta:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and read
		}
		if err != nil {
			return nil, fmt.Errorf("read session info: %w", err)
		}
		var info core.SessionInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return infos, nil
}

// Delete implements core.SessionStore. Deleting an unknown id is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.historyKey(sessionID), s.metaKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
