package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	storage "go-credential-verifier/redis"
	"go-credential-verifier/verifier"
)

// StoredResult is a finished verification, kept until it is issued or expires.
type StoredResult struct {
	Result     verifier.Result `json:"result"`
	VerifiedAt time.Time       `json:"verified_at"`
}

var ErrResultNotFound = errors.New("verification result not found")

// Should be safe to use concurrently
type ResultStorage interface {
	// Store the result for the given session id, overwriting any earlier one.
	StoreResult(ctx context.Context, sessionId string, result StoredResult) error

	// Retrieve the result for the given session id. A missing result is
	// ErrResultNotFound.
	RetrieveResult(ctx context.Context, sessionId string) (StoredResult, error)

	// Remove the result. A missing result is ErrResultNotFound.
	RemoveResult(ctx context.Context, sessionId string) error
}

const ResultTimeout time.Duration = 24 * time.Hour

// ------------------------------------------------------------------------------

type RedisResultStorage struct {
	client    *redis.Client
	namespace string
}

func NewRedisResultStorage(client *redis.Client, namespace string) *RedisResultStorage {
	return &RedisResultStorage{client: client, namespace: namespace}
}

func (s *RedisResultStorage) key(sessionId string) string {
	return storage.Key(s.namespace, "result", sessionId)
}

func (s *RedisResultStorage) StoreResult(ctx context.Context, sessionId string, result StoredResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return s.client.Set(ctx, s.key(sessionId), payload, ResultTimeout).Err()
}

func (s *RedisResultStorage) RetrieveResult(ctx context.Context, sessionId string) (StoredResult, error) {
	payload, err := s.client.Get(ctx, s.key(sessionId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return StoredResult{}, ErrResultNotFound
	}
	if err != nil {
		return StoredResult{}, err
	}

	var result StoredResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return StoredResult{}, fmt.Errorf("failed to decode result for %s: %w", sessionId, err)
	}
	return result, nil
}

func (s *RedisResultStorage) RemoveResult(ctx context.Context, sessionId string) error {
	removed, err := s.client.Del(ctx, s.key(sessionId)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrResultNotFound
	}
	return nil
}

// ------------------------------------------------------------------------------

type InMemoryResultStorage struct {
	results map[string]StoredResult
	mutex   sync.Mutex
}

func NewInMemoryResultStorage() *InMemoryResultStorage {
	return &InMemoryResultStorage{
		results: make(map[string]StoredResult),
	}
}

func (s *InMemoryResultStorage) StoreResult(_ context.Context, sessionId string, result StoredResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.results[sessionId] = result
	return nil
}

func (s *InMemoryResultStorage) RetrieveResult(_ context.Context, sessionId string) (StoredResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result, ok := s.results[sessionId]
	if !ok {
		return StoredResult{}, ErrResultNotFound
	}
	return result, nil
}

func (s *InMemoryResultStorage) RemoveResult(_ context.Context, sessionId string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.results[sessionId]; !ok {
		return fmt.Errorf("failed to remove result for %s: %w", sessionId, ErrResultNotFound)
	}
	delete(s.results, sessionId)
	return nil
}
