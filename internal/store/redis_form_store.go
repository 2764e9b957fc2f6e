package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/redis/go-redis/v9"
)

const formKeyPrefix = "feedback:form:"

// RedisFormStore keeps sessions as JSON values with a TTL so every replica sees them.
type RedisFormStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ FormStore = (*RedisFormStore)(nil)

func NewRedisFormStore(client *redis.Client, ttl time.Duration) *RedisFormStore {
	return &RedisFormStore{client: client, ttl: ttl}
}

func formKey(id string) string {
	return formKeyPrefix + id
}

func inflightKey(id string) string {
	return formKeyPrefix + id + ":inflight"
}

func (s *RedisFormStore) Save(ctx context.Context, session *types.FormSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal form session: %w", err)
	}
	if err := s.client.Set(ctx, formKey(session.ID), string(data), s.ttl).Err(); err != nil {
		return fmt.Errorf("save form session: %w", err)
	}
	return nil
}

func (s *RedisFormStore) Get(ctx context.Context, id string) (*types.FormSession, error) {
	data, err := s.client.Get(ctx, formKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get form session: %w", err)
	}

	var session types.FormSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode form session: %w", err)
	}
	return &session, nil
}

func (s *RedisFormStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, formKey(id), inflightKey(id)).Err(); err != nil {
		return fmt.Errorf("delete form session: %w", err)
	}
	return nil
}

// ClaimSubmit uses SET NX so exactly one replica wins the claim.
func (s *RedisFormStore) ClaimSubmit(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, inflightKey(id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim form submit: %w", err)
	}
	return ok, nil
}

func (s *RedisFormStore) ReleaseSubmit(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, inflightKey(id)).Err(); err != nil {
		return fmt.Errorf("release form submit: %w", err)
	}
	return nil
}
