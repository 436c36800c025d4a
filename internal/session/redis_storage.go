package session

// This file backs the session storage area with Redis so that several
// processes (CLI invocations, long-running agents) share one area the way
// browser tabs share one profile.  Writes run in MULTI/EXEC and announce
// themselves on a pub/sub channel that other views turn into Change events.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage is one view of a Redis-backed area identified by scope.
type RedisStorage struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	origin  string
}

var (
	_ Storage  = (*RedisStorage)(nil)
	_ Batcher  = (*RedisStorage)(nil)
	_ Notifier = (*RedisStorage)(nil)
)

// changeMessage is the pub/sub payload.
type changeMessage struct {
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// NewRedisStorage returns a view of the area named scope (for example a
// profile or workstation name).  Each call gets a fresh origin.
func NewRedisStorage(client redis.UniversalClient, scope string) *RedisStorage {
	if scope == "" {
		scope = "default"
	}
	return &RedisStorage{
		client:  client,
		prefix:  "inventory:storage:" + scope + ":",
		channel: "inventory:storage:" + scope + ":changes",
		origin:  uuid.NewString(),
	}
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	return r.Apply(ctx, []Op{{Key: key, Value: value}})
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	return r.Apply(ctx, []Op{{Key: key, Remove: true}})
}

// Apply writes all ops and their change announcements in one transaction.
func (r *RedisStorage) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range ops {
			msg := changeMessage{Origin: r.origin, Key: op.Key}
			if op.Remove {
				p.Del(ctx, r.prefix+op.Key)
				msg.Removed = true
			} else {
				p.Set(ctx, r.prefix+op.Key, op.Value, 0)
				msg.Value = op.Value
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			p.Publish(ctx, r.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}

// Subscribe listens on the area's change channel and forwards changes made
// by other origins.  It returns once the subscription is confirmed.
func (r *RedisStorage) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	out := make(chan Change, subscriberBuffer)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var cm changeMessage
				if err := json.Unmarshal([]byte(m.Payload), &cm); err != nil {
					slog.Debug("storage change decode failed", "error", err)
					continue
				}
				if cm.Origin == r.origin {
					continue
				}
				deliver(out, Change{Key: cm.Key, Value: cm.Value, Removed: cm.Removed})
			}
		}
	}()
	return out, nil
}
