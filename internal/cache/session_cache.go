package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// SessionCache keeps active conversation sessions hot so webhook turns do not
// pay a Mongo round-trip on every inbound message. Mongo remains the source of
// truth; the cache is invalidated after every state transition.
type SessionCache interface {
	Set(ctx context.Context, session *model.ConversationSession) error
	Get(ctx context.Context, id string) (*model.ConversationSession, error)
	GetByContact(ctx context.Context, contact string) (*model.ConversationSession, error)
	Delete(ctx context.Context, session *model.ConversationSession) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    30 * time.Minute,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func contactKey(contact string) string {
	return "session:contact:" + contact
}

func (c *sessionCache) Set(ctx context.Context, session *model.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, c.ttl)
	pipe.Set(ctx, contactKey(session.Contact), session.ID, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *sessionCache) Get(ctx context.Context, id string) (*model.ConversationSession, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.ConversationSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) GetByContact(ctx context.Context, contact string) (*model.ConversationSession, error) {
	id, err := c.client.Get(ctx, contactKey(contact)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

func (c *sessionCache) Delete(ctx context.Context, session *model.ConversationSession) error {
	return c.client.Del(ctx, sessionKey(session.ID), contactKey(session.Contact)).Err()
}
