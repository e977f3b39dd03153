package policy

import (
	"context"
	"log/slog"
)

// Provider returns the policy in force. Use cases call it once per operation and pass
// the value down.
type Provider interface {
	Current(ctx context.Context) (Policy, error)
}

type staticProvider struct {
	p Policy
}

func NewStaticProvider(p Policy) Provider {
	return &staticProvider{p: p}
}

func (s *staticProvider) Current(context.Context) (Policy, error) {
	return s.p, nil
}

// Store loads the persisted policy row. ok is false when the row does not exist.
type Store interface {
	LoadPolicy(ctx context.Context) (p Policy, ok bool, err error)
}

type storeProvider struct {
	store  Store
	logger *slog.Logger
}

// NewStoreProvider reads the persisted policy on every call and falls back to
// Defaults when nothing has been saved yet.
func NewStoreProvider(store Store, logger *slog.Logger) Provider {
	return &storeProvider{store: store, logger: logger}
}

func (s *storeProvider) Current(ctx context.Context) (Policy, error) {
	p, ok, err := s.store.LoadPolicy(ctx)
	if err != nil {
		return Policy{}, err
	}
	if !ok {
		s.logger.Debug("policy row missing; using defaults")
		return Defaults(), nil
	}
	return p, nil
}
