package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const membershipKeyPrefix = "haccare:memberships:"

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedMembershipStore keeps membership lists in redis for ttl. Redis
// failures are logged and the backing store answers instead.
type CachedMembershipStore struct {
	next   MembershipStore
	client redisClient
	ttl    time.Duration
}

var _ MembershipStore = (*CachedMembershipStore)(nil)

func NewCachedMembershipStore(next MembershipStore, client redisClient, ttl time.Duration) *CachedMembershipStore {
	return &CachedMembershipStore{next: next, client: client, ttl: ttl}
}

// NewRedisClient builds the client used by the cache.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *CachedMembershipStore) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	key := membershipKeyPrefix + userID

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Membership
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		log.Warn().Str("key", key).Msg("discarding unreadable membership cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("membership cache read failed")
	}

	memberships, err := c.next.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(memberships); err == nil {
		if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("membership cache write failed")
		}
	}
	return memberships, nil
}

// Invalidate drops the cached memberships of userID.
func (c *CachedMembershipStore) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, membershipKeyPrefix+userID).Err()
}
