package users

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"triggerd/internal/common/errors"
	"triggerd/internal/cooldown"
	"triggerd/internal/redis"
)

const keyPrefix = "triggerd:users"

// RedisRegistry keeps user state in redis so it survives restarts.
//
//	triggerd:users:<platform>:<username>:blocks     SET of item ids
//	triggerd:users:<platform>:<username>:cooldowns  HASH item -> expiry (unix ms)
type RedisRegistry struct {
	client *redis.Client
	clock  cooldown.Clock
}

// NewRedisRegistry creates a registry on top of client.
func NewRedisRegistry(client *redis.Client, clock cooldown.Clock) *RedisRegistry {
	if clock == nil {
		clock = cooldown.SystemClock
	}
	return &RedisRegistry{client: client, clock: clock}
}

func blocksKey(platform Platform, username string) string {
	return fmt.Sprintf("%s:%s:%s:blocks", keyPrefix, platform, username)
}

func cooldownsKey(platform Platform, username string) string {
	return fmt.Sprintf("%s:%s:%s:cooldowns", keyPrefix, platform, username)
}

func wrap(op string, err error) error {
	return errors.ConnectionError(fmt.Sprintf("user registry %s failed", op), err)
}

func (r *RedisRegistry) User(ctx context.Context, platform Platform, username string) (User, error) {
	if err := validate(platform, username); err != nil {
		return User{}, err
	}

	blocks, err := r.client.SetMembers(ctx, blocksKey(platform, username))
	if err != nil {
		return User{}, wrap("read blocks", err)
	}
	sort.Strings(blocks)

	raw, err := r.client.HashGetAll(ctx, cooldownsKey(platform, username))
	if err != nil {
		return User{}, wrap("read cooldowns", err)
	}

	cooldowns := make(map[string]time.Time, len(raw))
	for item, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		cooldowns[item] = time.UnixMilli(ms)
	}

	return User{Platform: platform, Username: username, Blocks: blocks, Cooldowns: cooldowns}, nil
}

func (r *RedisRegistry) Users(ctx context.Context, platform Platform) ([]User, error) {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s:%s:", keyPrefix, platform)
	keys, err := r.client.Keys(ctx, prefix+"*")
	if err != nil {
		return nil, wrap("scan users", err)
	}

	names := make(map[string]struct{})
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.LastIndexByte(rest, ':'); i > 0 {
			names[rest[:i]] = struct{}{}
		}
	}

	out := make([]User, 0, len(names))
	for name := range names {
		u, err := r.User(ctx, platform, name)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *RedisRegistry) IsBlocked(ctx context.Context, platform Platform, username, item string) (bool, error) {
	if err := validate(platform, username); err != nil {
		return false, err
	}
	ok, err := r.client.SetHas(ctx, blocksKey(platform, username), item)
	if err != nil {
		return false, wrap("check block", err)
	}
	return ok, nil
}

func (r *RedisRegistry) Block(ctx context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	if err := r.client.SetAdd(ctx, blocksKey(platform, username), item); err != nil {
		return wrap("block", err)
	}
	return nil
}

func (r *RedisRegistry) Unblock(ctx context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	if err := r.client.SetRemove(ctx, blocksKey(platform, username), item); err != nil {
		return wrap("unblock", err)
	}
	return nil
}

func (r *RedisRegistry) SetCooldown(ctx context.Context, platform Platform, username, item string, d time.Duration) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	expiry := r.clock().Add(d).UnixMilli()
	if err := r.client.HashSet(ctx, cooldownsKey(platform, username), item, expiry); err != nil {
		return wrap("set cooldown", err)
	}
	return nil
}

func (r *RedisRegistry) ClearCooldown(ctx context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	if err := r.client.HashDelete(ctx, cooldownsKey(platform, username), item); err != nil {
		return wrap("clear cooldown", err)
	}
	return nil
}

func (r *RedisRegistry) CooldownExpiry(ctx context.Context, platform Platform, username, item string) (time.Time, error) {
	if err := validate(platform, username); err != nil {
		return time.Time{}, err
	}
	v, err := r.client.HashGet(ctx, cooldownsKey(platform, username), item)
	if redis.IsNil(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, wrap("read cooldown", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, errors.InternalError("corrupt cooldown value", err).WithContext("item", item)
	}
	return time.UnixMilli(ms), nil
}
