package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFingerprintDeterministic(t *testing.T) {
	attrs := Attributes{
		UserAgent:      "Mozilla/5.0",
		AcceptLanguage: "en-GB,en;q=0.9",
		IP:             "203.0.113.5",
		ClientHints: map[string]string{
			"Sec-CH-UA-Platform": `"Linux"`,
			"Sec-CH-UA-Mobile":   "?0",
			"Sec-CH-UA":          `"Chromium";v="128"`,
		},
	}

	fp := Fingerprint(attrs)
	if len(fp) != 64 || !ValidFingerprint(fp) {
		t.Fatalf("unexpected fingerprint shape %q", fp)
	}
	for i := 0; i < 50; i++ {
		if got := Fingerprint(attrs); got != fp {
			t.Fatalf("fingerprint not deterministic: %q != %q", got, fp)
		}
	}

	other := attrs
	other.IP = "203.0.113.6"
	if Fingerprint(other) == fp {
		t.Fatalf("expected different ip to change the fingerprint")
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	a := Fingerprint(Attributes{UserAgent: "ab", AcceptLanguage: "c"})
	b := Fingerprint(Attributes{UserAgent: "a", AcceptLanguage: "bc"})
	if a == b {
		t.Fatalf("expected field boundaries to be unambiguous")
	}

	hintA := Fingerprint(Attributes{ClientHints: map[string]string{"a": "b"}})
	hintB := Fingerprint(Attributes{ClientHints: map[string]string{"ab": ""}})
	if hintA == hintB {
		t.Fatalf("expected hint boundaries to be unambiguous")
	}

	if Fingerprint(Attributes{}) == Fingerprint(Attributes{ClientHints: map[string]string{"": ""}}) {
		t.Fatalf("expected empty hint to change the fingerprint")
	}
}

func TestValidFingerprint(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("a", 64), true},
		{strings.Repeat("0", 64), true},
		{strings.Repeat("A", 64), false},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidFingerprint(tt.in); got != tt.want {
			t.Fatalf("ValidFingerprint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func registries(t *testing.T, clock *testClock) map[string]*Registry {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return map[string]*Registry{
		"redis":  NewRegistry(kv.NewRedisStore(client, "test"), clock.Now, 0),
		"memory": NewRegistry(kv.NewMemoryStore(clock.Now), clock.Now, 0),
	}
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	fp := Fingerprint(Attributes{UserAgent: "ua", IP: "10.0.0.1"})

	for name, r := range registries(t, clock) {
		t.Run(name, func(t *testing.T) {
			clock.now = time.Unix(1_700_000_000, 0)

			isNew, err := r.IsNewDevice(ctx, "u1", fp)
			if err != nil || !isNew {
				t.Fatalf("IsNewDevice = %v, %v; want true", isNew, err)
			}
			if _, err := r.Get(ctx, "u1", fp); !errors.Is(err, ErrNotRegistered) {
				t.Fatalf("expected ErrNotRegistered, got %v", err)
			}

			first, err := r.RegisterDevice(ctx, "u1", fp)
			if err != nil {
				t.Fatalf("RegisterDevice failed: %v", err)
			}
			if !first.FirstSeenAt.Equal(clock.now) || !first.LastSeenAt.Equal(clock.now) || first.Trusted {
				t.Fatalf("unexpected first record %+v", first)
			}

			isNew, err = r.IsNewDevice(ctx, "u1", fp)
			if err != nil || isNew {
				t.Fatalf("IsNewDevice after register = %v, %v; want false", isNew, err)
			}
			isNew, _ = r.IsNewDevice(ctx, "u2", fp)
			if !isNew {
				t.Fatalf("expected registry to be per user")
			}

			if err := r.TrustDevice(ctx, "u1", fp); err != nil {
				t.Fatalf("TrustDevice failed: %v", err)
			}

			registeredAt := clock.now
			clock.now = clock.now.Add(time.Hour)
			again, err := r.RegisterDevice(ctx, "u1", fp)
			if err != nil {
				t.Fatalf("RegisterDevice failed: %v", err)
			}
			if !again.FirstSeenAt.Equal(registeredAt) || !again.LastSeenAt.Equal(clock.now) || !again.Trusted {
				t.Fatalf("upsert did not preserve state: %+v", again)
			}

			got, err := r.Get(ctx, "u1", fp)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.UserID != "u1" || got.Fingerprint != fp || !got.Trusted {
				t.Fatalf("unexpected record %+v", got)
			}

			existed, err := r.RemoveDevice(ctx, "u1", fp)
			if err != nil || !existed {
				t.Fatalf("RemoveDevice = %v, %v", existed, err)
			}
			isNew, _ = r.IsNewDevice(ctx, "u1", fp)
			if !isNew {
				t.Fatalf("expected removed device to be new again")
			}

			if _, err := r.RegisterDevice(ctx, "u1", fp); err != nil {
				t.Fatalf("RegisterDevice failed: %v", err)
			}
			got, _ = r.Get(ctx, "u1", fp)
			if got.Trusted {
				t.Fatalf("expected trust to be cleared by removal")
			}
		})
	}
}

func TestRegistryRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(kv.NewMemoryStore(nil), nil, 0)
	fp := Fingerprint(Attributes{})

	if _, err := r.IsNewDevice(ctx, "", fp); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := r.RegisterDevice(ctx, "u1", "raw-user-agent"); !errors.Is(err, ErrInvalidFingerprint) {
		t.Fatalf("expected ErrInvalidFingerprint, got %v", err)
	}
	if err := r.TrustDevice(ctx, "u1", fp); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}
