package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.ember.chat/internal/common/tsid"
)

const (
	keyOnline  = "online"
	keyRegions = "regions"
)

func keyUser(userID string) string { return "presence:" + userID }

func keyRegion(region string) string { return "region:" + region }

func keyHeartbeat(region string) string { return "region-heartbeat:" + region }

// createScript adds the session and returns the user's session count
var createScript = redis.NewScript(`
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[3], ARGV[3])
redis.call("SADD", KEYS[4], ARGV[4])
return redis.call("SCARD", KEYS[1])
`)

// deleteScript removes the session and returns 1 if none remain
var deleteScript = redis.NewScript(`
redis.call("SREM", KEYS[1], ARGV[1])
redis.call("SREM", KEYS[2], ARGV[2])
if redis.call("SCARD", KEYS[1]) == 0 then
	redis.call("SREM", KEYS[3], ARGV[3])
	return 1
end
return 0
`)

// clearScript removes every session of a region. User keys are derived
// inside the script, so this is not cluster safe.
var clearScript = redis.NewScript(`
local members = redis.call("SMEMBERS", KEYS[1])
for _, m in ipairs(members) do
	local user, rest = string.match(m, "^([^:]+):(.+)$")
	if user then
		local key = "presence:" .. user
		redis.call("SREM", key, ARGV[1] .. ":" .. rest)
		if redis.call("SCARD", key) == 0 then
			redis.call("SREM", KEYS[2], user)
		end
	end
end
redis.call("DEL", KEYS[1], KEYS[3])
redis.call("SREM", KEYS[4], ARGV[1])
return #members
`)

// RedisStore keeps presence in Redis sets
type RedisStore struct {
	client *redis.Client
	region string
	ids    *tsid.Generator
}

// NewRedisStore creates a store registering sessions under region
func NewRedisStore(client *redis.Client, region string) *RedisStore {
	return &RedisStore{client: client, region: region, ids: tsid.NewGenerator(time.Now)}
}

func (s *RedisStore) CreateSession(ctx context.Context, userID string, flags uint8) (Session, bool, error) {
	session := Session{ID: s.ids.Generate(), Region: s.region, Flags: flags}

	count, err := createScript.Run(ctx, s.client,
		[]string{keyUser(userID), keyRegion(s.region), keyOnline, keyRegions},
		session.member(), session.regionMember(userID), userID, s.region,
	).Int64()
	if err != nil {
		return Session{}, false, fmt.Errorf("create presence session: %w", err)
	}
	return session, count == 1, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, userID string, session Session) (bool, error) {
	last, err := deleteScript.Run(ctx, s.client,
		[]string{keyUser(userID), keyRegion(session.Region), keyOnline},
		session.member(), session.regionMember(userID), userID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("delete presence session: %w", err)
	}
	return last == 1, nil
}

func (s *RedisStore) FilterOnline(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	flags, err := s.client.SMIsMember(ctx, keyOnline, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("filter online: %w", err)
	}

	online := make([]string, 0, len(ids))
	for i, ok := range flags {
		if ok {
			online = append(online, ids[i])
		}
	}
	return online, nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, keyOnline, userID).Result()
	if err != nil {
		return false, fmt.Errorf("is online: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ClearRegion(ctx context.Context, region string) error {
	err := clearScript.Run(ctx, s.client,
		[]string{keyRegion(region), keyOnline, keyHeartbeat(region), keyRegions},
		region,
	).Err()
	if err != nil {
		return fmt.Errorf("clear region %s: %w", region, err)
	}
	return nil
}

func (s *RedisStore) Heartbeat(ctx context.Context, region string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyHeartbeat(region), time.Now().UnixMilli(), ttl)
	pipe.SAdd(ctx, keyRegions, region)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("heartbeat region %s: %w", region, err)
	}
	return nil
}

func (s *RedisStore) Sweep(ctx context.Context) ([]string, error) {
	regions, err := s.client.SMembers(ctx, keyRegions).Result()
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	var swept []string
	for _, region := range regions {
		alive, err := s.client.Exists(ctx, keyHeartbeat(region)).Result()
		if err != nil {
			return swept, fmt.Errorf("check heartbeat %s: %w", region, err)
		}
		if alive == 1 {
			continue
		}
		if err := s.ClearRegion(ctx, region); err != nil {
			return swept, err
		}
		swept = append(swept, region)
	}
	return swept, nil
}
