package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sushil7090/moodle-backend/internal/models"
)

// ErrTokenNotFound signals a missing or expired refresh token.
var ErrTokenNotFound = errors.New("refresh token not found")

const refreshTokenKeyPrefix = "refresh:"

// TokenRepository stores refresh token sessions in Redis. Expiry is enforced
// by the key TTL so revoked and expired sessions disappear without a sweeper.
type TokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTokenRepository constructs a token repository.
func NewTokenRepository(client *redis.Client, logger *zap.Logger) *TokenRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenRepository{client: client, logger: logger}
}

// Create stores the session keyed by token value with a TTL matching its
// expiry.
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if r.client == nil {
		return fmt.Errorf("redis unavailable")
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	if err := r.client.Set(ctx, refreshTokenKeyPrefix+token.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}
	return nil
}

// Find loads the session for the given token value.
func (r *TokenRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if r.client == nil {
		return nil, ErrTokenNotFound
	}
	raw, err := r.client.Get(ctx, refreshTokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("redis get refresh token: %w", err)
	}
	var stored models.RefreshToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	return &stored, nil
}

// Revoke removes the session, invalidating the token immediately.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, refreshTokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *TokenRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
