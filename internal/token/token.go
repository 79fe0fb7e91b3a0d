package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/envelope"
	"github.com/google/uuid"
)

const (
	PurposePasswordReset = "password_reset"
	PurposeVerifyEmail   = "verify_email"
	PurposeVerifyPhone   = "verify_phone"
)

var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Claims is the payload carried inside a token.
type Claims struct {
	ID        string    `json:"jti"`
	Subject   string    `json:"sub"`
	Purpose   string    `json:"pur"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`

	IssuedAtUnix  int64 `json:"iat"`
	ExpiresAtUnix int64 `json:"exp"`
}

// Issuer seals and opens tokens with one key.
type Issuer struct {
	sealer *envelope.Sealer
	now    func() time.Time
}

// NewIssuer returns an [Issuer]. now defaults to time.Now.
func NewIssuer(sealer *envelope.Sealer, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		sealer: sealer,
		now:    now,
	}
}

// Issue mints a token for subject valid for ttl, truncated to whole seconds.
func (i *Issuer) Issue(subject, purpose string, ttl time.Duration) (string, *Claims, error) {
	if subject == "" || purpose == "" {
		return "", nil, errors.New("token subject and purpose are required")
	}
	if ttl < time.Second {
		return "", nil, errors.New("token ttl must be at least one second")
	}

	now := i.now()
	claims := &Claims{
		ID:            uuid.NewString(),
		Subject:       subject,
		Purpose:       purpose,
		IssuedAtUnix:  now.Unix(),
		ExpiresAtUnix: now.Add(ttl).Unix(),
	}
	claims.fillTimes()

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", nil, err
	}
	sealed, err := i.sealer.Seal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("seal token: %w", err)
	}
	return sealed, claims, nil
}

// Parse opens token and checks that it carries purpose and has not expired.
func (i *Issuer) Parse(token, purpose string) (*Claims, error) {
	payload, err := i.sealer.Open(token)
	if err != nil {
		return nil, ErrInvalid
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalid
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.Purpose != purpose {
		return nil, ErrInvalid
	}
	claims.fillTimes()

	if !i.now().Before(claims.ExpiresAt) {
		return nil, ErrExpired
	}
	return &claims, nil
}

func (c *Claims) fillTimes() {
	c.IssuedAt = time.Unix(c.IssuedAtUnix, 0)
	c.ExpiresAt = time.Unix(c.ExpiresAtUnix, 0)
}
