package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"triggerd/internal/cooldown"
)

type memoryUser struct {
	blocks    map[string]struct{}
	cooldowns map[string]time.Time
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[Platform]map[string]*memoryUser
	clock cooldown.Clock
}

// NewMemoryRegistry creates an empty registry. A nil clock uses the wall clock.
func NewMemoryRegistry(clock cooldown.Clock) *MemoryRegistry {
	if clock == nil {
		clock = cooldown.SystemClock
	}
	r := &MemoryRegistry{
		users: make(map[Platform]map[string]*memoryUser),
		clock: clock,
	}
	for _, p := range Platforms() {
		r.users[p] = make(map[string]*memoryUser)
	}
	return r
}

// entry returns the user record, creating it on demand. Caller holds mu.
func (r *MemoryRegistry) entry(platform Platform, username string) *memoryUser {
	u, ok := r.users[platform][username]
	if !ok {
		u = &memoryUser{blocks: map[string]struct{}{}, cooldowns: map[string]time.Time{}}
		r.users[platform][username] = u
	}
	return u
}

func snapshot(platform Platform, username string, u *memoryUser) User {
	out := User{
		Platform:  platform,
		Username:  username,
		Blocks:    make([]string, 0, len(u.blocks)),
		Cooldowns: make(map[string]time.Time, len(u.cooldowns)),
	}
	for item := range u.blocks {
		out.Blocks = append(out.Blocks, item)
	}
	sort.Strings(out.Blocks)
	for item, exp := range u.cooldowns {
		out.Cooldowns[item] = exp
	}
	return out
}

func (r *MemoryRegistry) User(_ context.Context, platform Platform, username string) (User, error) {
	if err := validate(platform, username); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[platform][username]; ok {
		return snapshot(platform, username, u), nil
	}
	return User{Platform: platform, Username: username, Blocks: []string{}, Cooldowns: map[string]time.Time{}}, nil
}

func (r *MemoryRegistry) Users(_ context.Context, platform Platform) ([]User, error) {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users[platform]))
	for name, u := range r.users[platform] {
		out = append(out, snapshot(platform, name, u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *MemoryRegistry) IsBlocked(_ context.Context, platform Platform, username, item string) (bool, error) {
	if err := validate(platform, username); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[platform][username]
	if !ok {
		return false, nil
	}
	_, blocked := u.blocks[item]
	return blocked, nil
}

func (r *MemoryRegistry) Block(_ context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	r.mu.Lock()
	r.entry(platform, username).blocks[item] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Unblock(_ context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entry(platform, username).blocks, item)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) SetCooldown(_ context.Context, platform Platform, username, item string, d time.Duration) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	r.mu.Lock()
	r.entry(platform, username).cooldowns[item] = r.clock().Add(d)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) ClearCooldown(_ context.Context, platform Platform, username, item string) error {
	if err := validate(platform, username); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entry(platform, username).cooldowns, item)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) CooldownExpiry(_ context.Context, platform Platform, username, item string) (time.Time, error) {
	if err := validate(platform, username); err != nil {
		return time.Time{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[platform][username]; ok {
		return u.cooldowns[item], nil
	}
	return time.Time{}, nil
}
