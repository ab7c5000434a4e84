package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
)

const (
	// feedRetention bounds how long the message set itself lives without
	// traffic. Generous compared to message visibility: expired messages are
	// filtered at display time, not deleted.
	feedRetention = 24 * time.Hour

	challengeTTL = 10 * time.Minute

	feedEventsChannel = "feed:events"
	feedMessagesKey   = "feed:messages"
)

// RedisStore handles Redis operations for the message feed, session records,
// and riddle challenge tokens.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// AddMessage stores a feed message and notifies live subscribers. The ID and
// timestamps are server-assigned here so all clients agree on expiry.
func (s *RedisStore) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, feedMessagesKey, redis.Z{
		Score:  float64(msg.CreatedAt),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	s.client.Expire(ctx, feedMessagesKey, feedRetention)
	s.client.Incr(ctx, transmissionsKey(msg.AuthorID))

	// Best-effort: a missed notification is recovered by the ticker refilter.
	s.client.Publish(ctx, feedEventsChannel, msg.ID)

	return nil
}

// ListMessages retrieves all stored messages in creation-time ascending
// order, including ones past their expiry. Visibility filtering is the feed
// flow's concern.
func (s *RedisStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	results, err := s.client.ZRange(ctx, feedMessagesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SubscribeFeedEvents opens a pub/sub subscription that fires whenever a
// message is published. The caller owns the subscription and must close it.
func (s *RedisStore) SubscribeFeedEvents(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, feedEventsChannel)
}

func transmissionsKey(authorID string) string {
	return fmt.Sprintf("transmissions:%s", authorID)
}

// CountTransmissions reports how many messages an agent has ever published.
// Survives message expiry; used by the profile stats.
func (s *RedisStore) CountTransmissions(ctx context.Context, authorID string) (int64, error) {
	count, err := s.client.Get(ctx, transmissionsKey(authorID)).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return count, nil
}

func sessionKey(tokenID string) string {
	return fmt.Sprintf("session:%s", tokenID)
}

// PutSession records an issued session token so logout can revoke it before
// the JWT itself expires.
func (s *RedisStore) PutSession(ctx context.Context, tokenID, identity string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(tokenID), identity, ttl).Err()
}

// SessionLive reports whether a session token is still valid (issued and not
// revoked).
func (s *RedisStore) SessionLive(ctx context.Context, tokenID string) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// RevokeSession drops a session record, invalidating its token immediately.
func (s *RedisStore) RevokeSession(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, sessionKey(tokenID)).Err()
}

func challengeKey(token string) string {
	return fmt.Sprintf("challenge:%s", token)
}

// PutChallenge records which riddle was issued under a one-time token.
func (s *RedisStore) PutChallenge(ctx context.Context, token, riddleID string) error {
	return s.client.Set(ctx, challengeKey(token), riddleID, challengeTTL).Err()
}

// TakeChallenge consumes a challenge token, returning the riddle ID it was
// issued for, or "" if the token is unknown or already used.
func (s *RedisStore) TakeChallenge(ctx context.Context, token string) (string, error) {
	riddleID, err := s.client.GetDel(ctx, challengeKey(token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return riddleID, nil
}
