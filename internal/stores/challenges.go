package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
)

const challengeVersionV1 = 1

// Challenge is a pending two-factor code for one user.
type Challenge struct {
	CodeHash  string
	Method    string
	ExpiresAt int64
}

// ChallengeStore holds at most one pending challenge per user.
type ChallengeStore struct {
	kv kv.Store
}

func NewChallengeStore(store kv.Store) *ChallengeStore {
	return &ChallengeStore{kv: store}
}

func (s *ChallengeStore) key(userID string) string {
	return "tfc:" + userID
}

// Save replaces any pending challenge for the user.
func (s *ChallengeStore) Save(ctx context.Context, userID string, c *Challenge, ttl time.Duration) error {
	encoded, err := encodeChallenge(c)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key(userID), encoded, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the pending challenge or [ErrNotFound]. now is compared with
// ExpiresAt so a challenge the store has not evicted yet still lapses on time.
func (s *ChallengeStore) Get(ctx context.Context, userID string, now time.Time) (*Challenge, error) {
	data, err := s.kv.Get(ctx, s.key(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c, err := decodeChallenge(data)
	if err != nil {
		return nil, ErrNotFound
	}
	if now.Unix() >= c.ExpiresAt {
		return nil, ErrNotFound
	}
	return c, nil
}

// Consume deletes the pending challenge. Exactly one concurrent caller gets
// nil; the others get [ErrNotFound].
func (s *ChallengeStore) Consume(ctx context.Context, userID string) error {
	existed, err := s.kv.Delete(ctx, s.key(userID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}

func encodeChallenge(c *Challenge) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt); err != nil {
		return nil, err
	}

	for _, s := range []string{c.Method, c.CodeHash} {
		if len(s) > 255 {
			return nil, errors.New("challenge field too long")
		}
		buf.WriteByte(byte(len(s)))
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeVersionV1 {
		return nil, errors.New("invalid challenge version")
	}

	c := &Challenge{}
	if err := binary.Read(reader, binary.BigEndian, &c.ExpiresAt); err != nil {
		return nil, err
	}

	fields := make([]string, 2)
	for i := range fields {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}
	c.Method = fields[0]
	c.CodeHash = fields[1]

	return c, nil
}
