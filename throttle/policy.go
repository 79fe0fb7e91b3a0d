package throttle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidPolicy    = errors.New("throttle: invalid policy")
	ErrUnknownOperation = errors.New("throttle: unknown operation")
)

// Policy is the rate limit attached to one operation.
type Policy struct {
	// TTL is the fixed window length. It must be a whole number of seconds.
	TTL time.Duration
	// Limit is the number of admitted requests per window.
	Limit int
	// KeyPrefix namespaces the counters of this policy. Empty means the
	// operation id followed by ":".
	KeyPrefix string
	// Skip disables the check for the operation.
	Skip bool
}

// Validate reports whether p can be enforced.
func (p Policy) Validate() error {
	if p.Skip {
		return nil
	}
	if p.TTL < time.Second || p.TTL%time.Second != 0 {
		return fmt.Errorf("%w: ttl must be a positive whole number of seconds", ErrInvalidPolicy)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// Key returns the counter key for identity under p.
func Key(p Policy, identity string) string {
	return p.KeyPrefix + identity
}

// Registry is an immutable operation to policy table. The zero value has no
// policies.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry validates and copies policies.
func NewRegistry(policies map[string]Policy) (*Registry, error) {
	r := &Registry{policies: make(map[string]Policy, len(policies))}
	for op, p := range policies {
		if strings.TrimSpace(op) == "" {
			return nil, fmt.Errorf("%w: empty operation id", ErrInvalidPolicy)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("operation %q: %w", op, err)
		}
		if p.KeyPrefix == "" {
			p.KeyPrefix = op + ":"
		}
		r.policies[op] = p
	}
	return r, nil
}

// Lookup returns the policy bound to operation.
func (r *Registry) Lookup(operation string) (Policy, bool) {
	if r == nil {
		return Policy{}, false
	}
	p, ok := r.policies[operation]
	return p, ok
}

// MustLookup is Lookup returning [ErrUnknownOperation] for unbound ids.
func (r *Registry) MustLookup(operation string) (Policy, error) {
	p, ok := r.Lookup(operation)
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	return p, nil
}

// Operations returns the bound operation ids in sorted order.
func (r *Registry) Operations() []string {
	if r == nil {
		return nil
	}
	ops := make([]string, 0, len(r.policies))
	for op := range r.policies {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
