package authguard

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	internalflows "github.com/MrEthical07/authguard/internal/flows"
	"go.uber.org/zap"
)

func (e *Engine) flowGuard() internalflows.Guard {
	return internalflows.Guard{
		ClientIPFromContext: clientIPFromContext,
		CheckIP:             e.checkClientIP,
	}
}

func (e *Engine) deliver(ctx context.Context, d internalflows.Delivery) error {
	if e.delivery == nil {
		return ErrEngineNotReady
	}
	err := e.delivery.Send(ctx, Message{
		Purpose:     d.Purpose,
		Method:      TwoFactorMethod(d.Method),
		UserID:      d.UserID,
		Destination: d.Destination,
		Payload:     d.Payload,
		ExpiresAt:   d.ExpiresAt,
	})
	if err != nil {
		e.logger().Warn("delivery failed",
			zap.String("purpose", d.Purpose),
			zap.String("method", d.Method),
			zap.String("user_id", d.UserID),
			zap.Error(err),
		)
	}
	return err
}

func (e *Engine) issueToken(subject, purpose string, ttl time.Duration) (string, internalflows.TokenClaims, error) {
	tok, claims, err := e.tokens.Issue(subject, purpose, ttl)
	if err != nil {
		e.logger().Error("token issue failed", zap.String("purpose", purpose), zap.Error(err))
		return "", internalflows.TokenClaims{}, err
	}
	return tok, internalflows.TokenClaims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (e *Engine) parseToken(tok, purpose string) (internalflows.TokenClaims, error) {
	claims, err := e.tokens.Parse(tok, purpose)
	if err != nil {
		return internalflows.TokenClaims{}, mapTokenError(err)
	}
	return internalflows.TokenClaims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (e *Engine) markConsumed(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	fresh, err := e.consumed.MarkConsumed(ctx, tokenID, ttl)
	if err != nil {
		return false, e.storeUnavailable("mark_consumed", err)
	}
	return fresh, nil
}

func (e *Engine) releaseConsumed(ctx context.Context, tokenID string) error {
	if err := e.consumed.Release(ctx, tokenID); err != nil {
		return e.storeUnavailable("release_consumed", err)
	}
	return nil
}

func (e *Engine) contactByIdentifier(ctx context.Context, identifier string) (internalflows.Contact, error) {
	if e.userProvider == nil {
		return internalflows.Contact{}, ErrEngineNotReady
	}
	u, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return internalflows.Contact{}, err
	}
	return contact(u), nil
}

func (e *Engine) contactByID(ctx context.Context, userID string) (internalflows.Contact, error) {
	if e.userProvider == nil {
		return internalflows.Contact{}, ErrEngineNotReady
	}
	u, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return internalflows.Contact{}, err
	}
	return contact(u), nil
}

func contact(u UserRecord) internalflows.Contact {
	return internalflows.Contact{
		UserID: u.UserID,
		Email:  u.Email,
		Phone:  u.Phone,
	}
}

func (e *Engine) hashPassword(password string) (string, error) {
	hash, err := e.Hash(password)
	if err != nil {
		e.logger().Error("password hash failed", zap.Error(err))
		return "", err
	}
	return hash, nil
}

func (e *Engine) updatePasswordHash(ctx context.Context, userID, hash string) error {
	if e.userProvider == nil {
		return ErrEngineNotReady
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger().Warn("password hash update failed", zap.String("user_id", userID), zap.Error(err))
		}
		return err
	}
	return nil
}

func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

// sleepEnumerationDelay evens out the timing of requests for unknown
// identifiers.
func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
