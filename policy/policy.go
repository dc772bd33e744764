// Package policy holds the PolicyStore implementations the verifier resolves
// policies from: a single static policy, an in-memory table, Redis, and an LRU
// cache in front of any of them.
package policy

import (
	"context"
	"sync"

	"go-credential-verifier/verifier"
)

// DefaultActionID is the config id every request maps to when no ActionIDFunc is set.
const DefaultActionID = "default"

// ActionIDFunc maps a request's user identifier and user defined data to a config id.
type ActionIDFunc func(ctx context.Context, userIdentifier, userDefinedData string) (string, error)

// FixedAction maps every request to id.
func FixedAction(id string) ActionIDFunc {
	return func(context.Context, string, string) (string, error) {
		return id, nil
	}
}

// ActionFromUserData uses the user defined data itself as the config id.
func ActionFromUserData(_ context.Context, _ string, userDefinedData string) (string, error) {
	return userDefinedData, nil
}

func actionOrDefault(fn ActionIDFunc) ActionIDFunc {
	if fn == nil {
		return FixedAction(DefaultActionID)
	}
	return fn
}

// Static answers every config id with the same policy.
type Static struct {
	mutex  sync.RWMutex
	policy verifier.Policy
}

var _ verifier.PolicyStore = (*Static)(nil)

func NewStatic(policy verifier.Policy) *Static {
	return &Static{policy: policy}
}

func (s *Static) GetActionID(context.Context, string, string) (string, error) {
	return DefaultActionID, nil
}

func (s *Static) GetConfig(context.Context, string) (verifier.Policy, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.policy, nil
}

// SetConfig replaces the policy regardless of id.
func (s *Static) SetConfig(_ context.Context, _ string, policy verifier.Policy) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.policy = policy
	return true, nil
}

// InMemory keeps policies per config id. Unknown ids yield an empty policy.
type InMemory struct {
	mutex    sync.RWMutex
	policies map[string]verifier.Policy
	actionID ActionIDFunc
}

var _ verifier.PolicyStore = (*InMemory)(nil)

func NewInMemory(actionID ActionIDFunc) *InMemory {
	return &InMemory{
		policies: make(map[string]verifier.Policy),
		actionID: actionOrDefault(actionID),
	}
}

func (s *InMemory) GetActionID(ctx context.Context, userIdentifier, userDefinedData string) (string, error) {
	return s.actionID(ctx, userIdentifier, userDefinedData)
}

func (s *InMemory) GetConfig(_ context.Context, id string) (verifier.Policy, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.policies[id], nil
}

func (s *InMemory) SetConfig(_ context.Context, id string, policy verifier.Policy) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, existed := s.policies[id]
	s.policies[id] = policy
	return !existed, nil
}
