package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	storage "go-credential-verifier/redis"
	"go-credential-verifier/verifier"
)

// Redis stores policies as JSON under namespace:policy:id, without expiry.
type Redis struct {
	client    *redis.Client
	namespace string
	actionID  ActionIDFunc
}

var _ verifier.PolicyStore = (*Redis)(nil)

func NewRedis(client *redis.Client, namespace string, actionID ActionIDFunc) *Redis {
	return &Redis{client: client, namespace: namespace, actionID: actionOrDefault(actionID)}
}

func (s *Redis) key(id string) string {
	return storage.Key(s.namespace, "policy", id)
}

func (s *Redis) GetActionID(ctx context.Context, userIdentifier, userDefinedData string) (string, error) {
	return s.actionID(ctx, userIdentifier, userDefinedData)
}

func (s *Redis) GetConfig(ctx context.Context, id string) (verifier.Policy, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return verifier.Policy{}, nil
	}
	if err != nil {
		return verifier.Policy{}, fmt.Errorf("failed to get policy %s: %w", id, err)
	}

	var policy verifier.Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return verifier.Policy{}, fmt.Errorf("failed to decode policy %s: %w", id, err)
	}
	return policy, nil
}

func (s *Redis) SetConfig(ctx context.Context, id string, policy verifier.Policy) (bool, error) {
	raw, err := json.Marshal(policy)
	if err != nil {
		return false, fmt.Errorf("failed to encode policy %s: %w", id, err)
	}

	// SET ... GET returns the previous value, or nil when the key is new.
	err = s.client.SetArgs(ctx, s.key(id), raw, redis.SetArgs{Get: true}).Err()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store policy %s: %w", id, err)
	}
	return false, nil
}
