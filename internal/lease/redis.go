package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker shares leases between processes through SET NX PX.
type RedisLocker struct {
	Client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{Client: client}
}

func (r *RedisLocker) Acquire(ctx context.Context, campaignID int, ttl time.Duration) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key(campaignID), token, ttl).Result()
	if err != nil {
		return Lease{}, false, fmt.Errorf("acquire lease for campaign %d: %w", campaignID, err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	return Lease{CampaignID: campaignID, Token: token, ExpiresAt: time.Now().Add(ttl)}, true, nil
}

func (r *RedisLocker) Extend(ctx context.Context, l Lease, ttl time.Duration) (Lease, error) {
	n, err := extendScript.Run(ctx, r.Client, []string{key(l.CampaignID)}, l.Token, ttl.Milliseconds()).Int()
	if err != nil && err != redis.Nil {
		return Lease{}, fmt.Errorf("extend lease for campaign %d: %w", l.CampaignID, err)
	}
	if n == 0 {
		return Lease{}, ErrLost
	}
	l.ExpiresAt = time.Now().Add(ttl)
	return l, nil
}

func (r *RedisLocker) Release(ctx context.Context, l Lease) error {
	if err := releaseScript.Run(ctx, r.Client, []string{key(l.CampaignID)}, l.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease for campaign %d: %w", l.CampaignID, err)
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
