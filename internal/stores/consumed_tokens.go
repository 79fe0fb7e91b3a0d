package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
)

// ConsumedTokenStore remembers which token ids were already used.
type ConsumedTokenStore struct {
	kv kv.Store
}

func NewConsumedTokenStore(store kv.Store) *ConsumedTokenStore {
	return &ConsumedTokenStore{kv: store}
}

// MarkConsumed records tokenID as used and reports whether this call was the
// first. ttl should cover the remaining token lifetime; after that the token
// fails on expiry anyway.
func (s *ConsumedTokenStore) MarkConsumed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	first, err := s.kv.SetNX(ctx, "tku:"+tokenID, []byte{1}, ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return first, nil
}

// Release forgets that tokenID was used so it can be redeemed again. Only
// the caller that won MarkConsumed may release, and only when the redemption
// did not take effect.
func (s *ConsumedTokenStore) Release(ctx context.Context, tokenID string) error {
	if _, err := s.kv.Delete(ctx, "tku:"+tokenID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
