package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authguard/internal/kv"
)

// MethodStore keeps the two-factor delivery method each user enabled.
type MethodStore struct {
	kv kv.Store
}

func NewMethodStore(store kv.Store) *MethodStore {
	return &MethodStore{kv: store}
}

func (s *MethodStore) key(userID string) string {
	return "tfm:" + userID
}

func (s *MethodStore) Set(ctx context.Context, userID, method string) error {
	if err := s.kv.Set(ctx, s.key(userID), []byte(method), 0); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the enabled method or [ErrNotFound].
func (s *MethodStore) Get(ctx context.Context, userID string) (string, error) {
	data, err := s.kv.Get(ctx, s.key(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return string(data), nil
}

// Delete removes the method and reports whether one was set.
func (s *MethodStore) Delete(ctx context.Context, userID string) (bool, error) {
	existed, err := s.kv.Delete(ctx, s.key(userID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return existed, nil
}
