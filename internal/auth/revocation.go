package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedNamespace = "revoked"

// RevocationStore remembers logged-out token ids until they would have
// expired anyway. A store without a client accepts every token.
type RevocationStore struct {
	client redis.UniversalClient
}

// NewRevocationStore wraps client, which may be nil.
func NewRevocationStore(client redis.UniversalClient) *RevocationStore {
	return &RevocationStore{client: client}
}

// NewRedisClient connects to a single Redis node. An empty addr yields nil.
func NewRedisClient(addr, password string) redis.UniversalClient {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

// Enabled reports whether revocations are persisted.
func (s *RevocationStore) Enabled() bool {
	return s != nil && s.client != nil
}

// Revoke marks tokenID as revoked until expiresAt.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !s.Enabled() || tokenID == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, key(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !s.Enabled() || tokenID == "" {
		return false, nil
	}
	err := s.client.Get(ctx, key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Ping checks connectivity.
func (s *RevocationStore) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

func key(tokenID string) string {
	return revokedNamespace + ":" + tokenID
}
