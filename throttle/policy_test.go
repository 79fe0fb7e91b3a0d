package throttle

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewRegistryDefaultsPrefix(t *testing.T) {
	r, err := NewRegistry(map[string]Policy{
		"login":        {TTL: time.Minute, Limit: 5},
		"signup":       {TTL: time.Hour, Limit: 3, KeyPrefix: "su:"},
		"health.check": {Skip: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	p, ok := r.Lookup("login")
	if !ok || p.KeyPrefix != "login:" || p.Limit != 5 {
		t.Fatalf("unexpected login policy %+v (%v)", p, ok)
	}
	if got := Key(p, "203.0.113.1"); got != "login:203.0.113.1" {
		t.Fatalf("unexpected key %q", got)
	}

	p, _ = r.Lookup("signup")
	if got := Key(p, "a@example.com"); got != "su:a@example.com" {
		t.Fatalf("unexpected key %q", got)
	}

	if p, _ := r.Lookup("health.check"); !p.Skip {
		t.Fatalf("expected skip policy")
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("expected missing operation")
	}
	if _, err := r.MustLookup("missing"); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}

	want := []string{"health.check", "login", "signup"}
	if got := r.Operations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Operations() = %v, want %v", got, want)
	}
}

func TestNewRegistryRejectsInvalidPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policies map[string]Policy
	}{
		{"empty op", map[string]Policy{" ": {TTL: time.Minute, Limit: 1}}},
		{"zero ttl", map[string]Policy{"a": {Limit: 1}}},
		{"fractional ttl", map[string]Policy{"a": {TTL: 1500 * time.Millisecond, Limit: 1}}},
		{"negative limit", map[string]Policy{"a": {TTL: time.Minute, Limit: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.policies); !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	src := map[string]Policy{"login": {TTL: time.Minute, Limit: 5}}
	r, err := NewRegistry(src)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	src["login"] = Policy{TTL: time.Minute, Limit: 500}
	src["new"] = Policy{TTL: time.Minute, Limit: 1}

	if p, _ := r.Lookup("login"); p.Limit != 5 {
		t.Fatalf("registry observed caller mutation: %+v", p)
	}
	if _, ok := r.Lookup("new"); ok {
		t.Fatalf("registry observed caller insertion")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	if _, ok := r.Lookup("login"); ok {
		t.Fatalf("expected nil registry to be empty")
	}
	if r.Operations() != nil {
		t.Fatalf("expected nil operations")
	}
}
