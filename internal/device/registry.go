package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
)

const recordVersionV1 = 1

var (
	ErrNotRegistered      = errors.New("device not registered")
	ErrInvalidFingerprint = errors.New("invalid device fingerprint")
	ErrInvalidUser        = errors.New("device user id is empty")
	ErrStoreUnavailable   = errors.New("device store unavailable")
)

// Record is one known (user, fingerprint) pair.
type Record struct {
	UserID      string
	Fingerprint string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	Trusted     bool
}

// Registry tracks the devices each user has been seen on.
type Registry struct {
	kv        kv.Store
	now       func() time.Time
	retention time.Duration
}

// NewRegistry creates a [Registry]. retention is refreshed on every
// registration; zero keeps records until they are removed.
func NewRegistry(store kv.Store, now func() time.Time, retention time.Duration) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		kv:        store,
		now:       now,
		retention: retention,
	}
}

// IsNewDevice reports whether the pair has no record.
func (r *Registry) IsNewDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if err := validate(userID, fingerprint); err != nil {
		return false, err
	}
	_, err := r.kv.Get(ctx, recordKey(userID, fingerprint))
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, kv.ErrNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// Get returns the record for the pair or [ErrNotRegistered].
func (r *Registry) Get(ctx context.Context, userID, fingerprint string) (*Record, error) {
	if err := validate(userID, fingerprint); err != nil {
		return nil, err
	}
	return r.get(ctx, userID, fingerprint)
}

// RegisterDevice upserts the pair. FirstSeenAt and the trusted flag survive;
// LastSeenAt moves to now.
func (r *Registry) RegisterDevice(ctx context.Context, userID, fingerprint string) (*Record, error) {
	if err := validate(userID, fingerprint); err != nil {
		return nil, err
	}

	now := r.now()
	record := &Record{
		UserID:      userID,
		Fingerprint: fingerprint,
		FirstSeenAt: now,
	}

	existing, err := r.get(ctx, userID, fingerprint)
	switch {
	case err == nil:
		record.FirstSeenAt = existing.FirstSeenAt
		record.Trusted = existing.Trusted
	case !errors.Is(err, ErrNotRegistered):
		return nil, err
	}
	record.LastSeenAt = now

	if err := r.kv.Set(ctx, recordKey(userID, fingerprint), encodeRecord(record), r.retention); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

// TrustDevice marks a registered pair as trusted.
func (r *Registry) TrustDevice(ctx context.Context, userID, fingerprint string) error {
	if err := validate(userID, fingerprint); err != nil {
		return err
	}
	if _, err := r.get(ctx, userID, fingerprint); err != nil {
		return err
	}
	if err := r.kv.Set(ctx, trustKey(userID, fingerprint), []byte{1}, r.retention); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RemoveDevice deletes the pair and its trust marker. It reports whether a
// record existed.
func (r *Registry) RemoveDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if err := validate(userID, fingerprint); err != nil {
		return false, err
	}
	existed, err := r.kv.Delete(ctx, recordKey(userID, fingerprint))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := r.kv.Delete(ctx, trustKey(userID, fingerprint)); err != nil {
		return existed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return existed, nil
}

func (r *Registry) get(ctx context.Context, userID, fingerprint string) (*Record, error) {
	data, err := r.kv.Get(ctx, recordKey(userID, fingerprint))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, ErrNotRegistered
	}
	record.UserID = userID
	record.Fingerprint = fingerprint

	_, err = r.kv.Get(ctx, trustKey(userID, fingerprint))
	switch {
	case err == nil:
		record.Trusted = true
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

func validate(userID, fingerprint string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if !ValidFingerprint(fingerprint) {
		return ErrInvalidFingerprint
	}
	return nil
}

// The fingerprint is fixed-width and last, so a user id containing ':' cannot
// collide with another pair.
func recordKey(userID, fingerprint string) string {
	return "dev:" + userID + ":" + fingerprint
}

func trustKey(userID, fingerprint string) string {
	return "devt:" + userID + ":" + fingerprint
}

func encodeRecord(record *Record) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = recordVersionV1
	binary.BigEndian.PutUint64(buf[1:9], uint64(record.FirstSeenAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[9:17], uint64(record.LastSeenAt.UnixNano()))
	return buf
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) != 17 || data[0] != recordVersionV1 {
		return nil, errors.New("invalid device record")
	}
	reader := bytes.NewReader(data[1:])

	var firstSeen, lastSeen int64
	if err := binary.Read(reader, binary.BigEndian, &firstSeen); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &lastSeen); err != nil {
		return nil, err
	}
	return &Record{
		FirstSeenAt: time.Unix(0, firstSeen),
		LastSeenAt:  time.Unix(0, lastSeen),
	}, nil
}
