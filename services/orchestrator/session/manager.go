package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"conference/services/orchestrator/models"
)

const (
	conversationPrefix = "conversation:"
	conversationIndex  = "conversations"
)

// Manager stores conversations as JSON documents in Redis with a TTL and
// keeps a sorted-set index by creation time.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*Manager)(nil)

func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, ttl: ttl, now: time.Now}
}

func key(id string) string {
	return fmt.Sprintf("%s%s", conversationPrefix, id)
}

func (m *Manager) Create(ctx context.Context, conv *models.Conversation) error {
	if err := validate(conv); err != nil {
		return err
	}
	prepare(conv, m.now().UTC())

	if err := m.save(ctx, conv); err != nil {
		return err
	}
	if err := m.rdb.ZAdd(ctx, conversationIndex, redis.Z{
		Score:  float64(conv.CreatedAt.UnixMilli()),
		Member: conv.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index conversation: %w", err)
	}
	return nil
}

// Update loads, merges and rewrites the record inside a WATCH transaction
// so concurrent status and message writes do not clobber each other.
func (m *Manager) Update(ctx context.Context, id string, update models.ConversationUpdate) error {
	if id == "" {
		return ErrInvalidID
	}
	k := key(id)
	txf := func(tx *redis.Tx) error {
		conv, err := m.load(ctx, tx, id)
		if err != nil {
			return err
		}
		conv.Apply(update, m.now().UTC())
		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, m.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := m.rdb.Watch(ctx, txf, k)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to update conversation %s: too much contention", id)
}

func (m *Manager) Get(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return m.load(ctx, m.rdb, id)
}

// List returns the newest conversations first. Index entries whose record
// has expired are pruned.
func (m *Manager) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := m.rdb.ZRevRange(ctx, conversationIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := m.load(ctx, m.rdb, id)
		if IsNotFound(err) {
			m.rdb.ZRem(ctx, conversationIndex, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (m *Manager) Close() error {
	return m.rdb.Close()
}

func (m *Manager) save(ctx context.Context, conv *models.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := m.rdb.Set(ctx, key(conv.ID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (m *Manager) load(ctx context.Context, c getter, id string) (*models.Conversation, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}
