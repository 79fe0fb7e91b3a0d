package denylist

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
)

var (
	ErrIPBlocked        = errors.New("ip blocked")
	ErrNotBlocked       = errors.New("ip not blocked")
	ErrInvalidIP        = errors.New("invalid ip address")
	ErrInvalidDuration  = errors.New("block duration must not be negative")
	ErrStoreUnavailable = errors.New("denylist store unavailable")
)

const (
	blockPrefix    = "ipb:"
	locationPrefix = "loc:"
)

// Denylist answers whether an IP is blocked and whether an IP is new for a
// user.
type Denylist struct {
	kv                kv.Store
	now               func() time.Time
	locationRetention time.Duration
}

// New creates a [Denylist]. locationRetention bounds how long a remembered IP
// stays known for a user; zero keeps it forever.
func New(store kv.Store, now func() time.Time, locationRetention time.Duration) *Denylist {
	if now == nil {
		now = time.Now
	}
	return &Denylist{
		kv:                store,
		now:               now,
		locationRetention: locationRetention,
	}
}

// CheckIP returns [ErrIPBlocked] when ip has an active entry.
func (d *Denylist) CheckIP(ctx context.Context, ip string) error {
	_, err := d.Lookup(ctx, ip)
	switch {
	case err == nil:
		return ErrIPBlocked
	case errors.Is(err, ErrNotBlocked):
		return nil
	default:
		return err
	}
}

// Lookup returns the active entry for ip or [ErrNotBlocked]. An entry found
// past its ExpiresAt is deleted and reported as absent.
func (d *Denylist) Lookup(ctx context.Context, ip string) (*Entry, error) {
	addr, err := canonicalIP(ip)
	if err != nil {
		return nil, err
	}

	data, err := d.kv.Get(ctx, blockPrefix+addr)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotBlocked
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		// An unreadable entry still blocks until an operator removes it.
		return &Entry{IP: addr, Reason: "unreadable entry"}, nil
	}

	if entry.expired(d.now()) {
		if _, err := d.kv.Delete(ctx, blockPrefix+addr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil, ErrNotBlocked
	}
	return entry, nil
}

// BlockIP creates or overwrites the entry for ip. A zero duration blocks
// permanently.
func (d *Denylist) BlockIP(ctx context.Context, ip, reason string, duration time.Duration) (*Entry, error) {
	if duration < 0 {
		return nil, ErrInvalidDuration
	}
	addr, err := canonicalIP(ip)
	if err != nil {
		return nil, err
	}

	now := d.now()
	entry := &Entry{
		IP:        addr,
		Reason:    reason,
		BlockedAt: now,
	}
	if duration > 0 {
		expiresAt := now.Add(duration)
		entry.ExpiresAt = &expiresAt
	}

	encoded, err := encodeEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := d.kv.Set(ctx, blockPrefix+addr, encoded, duration); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entry, nil
}

// UnblockIP removes any entry for ip and reports whether one existed.
func (d *Denylist) UnblockIP(ctx context.Context, ip string) (bool, error) {
	addr, err := canonicalIP(ip)
	if err != nil {
		return false, err
	}
	existed, err := d.kv.Delete(ctx, blockPrefix+addr)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return existed, nil
}

// IsUnusualLocation reports whether ip is absent from the user's known IPs.
func (d *Denylist) IsUnusualLocation(ctx context.Context, userID, ip string) (bool, error) {
	addr, err := canonicalIP(ip)
	if err != nil {
		return false, err
	}
	_, err = d.kv.Get(ctx, locationKey(userID, addr))
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, kv.ErrNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// RememberLocation marks ip as known for the user and refreshes its retention.
func (d *Denylist) RememberLocation(ctx context.Context, userID, ip string) error {
	addr, err := canonicalIP(ip)
	if err != nil {
		return err
	}
	if err := d.kv.Set(ctx, locationKey(userID, addr), []byte{1}, d.locationRetention); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func locationKey(userID, addr string) string {
	return locationPrefix + userID + ":" + addr
}

// Canonical returns the form of ip the denylist keys entries by: unmapped
// and without a zone.
func Canonical(ip string) (string, error) {
	return canonicalIP(ip)
}

func canonicalIP(ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return addr.Unmap().WithZone("").String(), nil
}
