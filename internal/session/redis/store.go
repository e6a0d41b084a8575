package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
	"github.com/davidbz/starray/internal/session"
)

// DefaultKeyPrefix namespaces session records.
const DefaultKeyPrefix = "starray:session:"

const scanBatch = 100

// Store keeps session records as JSON strings in Redis, one key per session.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Redis-backed session store.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Store{
		client: client,
		prefix: prefix,
	}
}

// NewClient builds a client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}

// Key returns the Redis key holding the record for id.
func (s *Store) Key(id string) string {
	return s.prefix + id
}

// Save replaces the record with a single SET, which Redis applies atomically.
func (s *Store) Save(ctx context.Context, sess *domain.Session) (string, error) {
	if sess == nil {
		return "", errors.New("session cannot be nil")
	}
	if !session.ValidID(sess.ID) {
		return "", fmt.Errorf("invalid session id %q", sess.ID)
	}

	data, err := session.Encode(sess)
	if err != nil {
		return "", err
	}

	key := s.Key(sess.ID)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to write session %s: %w", sess.ID, err)
	}

	observability.FromContext(ctx).Debug("session record written",
		zap.String("key", key),
		zap.Int("turns", len(sess.Turns)))

	return key, nil
}

// Load reads the record for id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Session, error) {
	if !session.ValidID(id) {
		return nil, session.NotFound(id)
	}

	data, err := s.client.Get(ctx, s.Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.NotFound(id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	return session.Decode(id, data)
}

// List summarizes every readable record, newest first.
func (s *Store) List(ctx context.Context) ([]domain.SessionSummary, error) {
	logger := observability.FromContext(ctx)
	summaries := []domain.SessionSummary{}

	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), s.prefix)

		loaded, err := s.Load(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable session record",
				zap.String("key", iter.Val()),
				zap.Error(err))
			continue
		}

		summaries = append(summaries, session.Summarize(loaded))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	session.SortSummaries(summaries)
	return summaries, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
