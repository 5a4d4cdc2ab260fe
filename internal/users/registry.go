// Package users keeps per-user moderation state consulted while handling
// events: block lists and per-trigger cooldown expiries, keyed by
// (platform, username).
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triggerd/internal/common/errors"
)

// Platform is the streaming platform a user belongs to.
type Platform string

const (
	Twitch  Platform = "twitch"
	YouTube Platform = "youtube"
	TikTok  Platform = "tiktok"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{Twitch, YouTube, TikTok}
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms() {
		if p == known {
			return p, nil
		}
	}
	return "", errors.ValidationError(fmt.Sprintf("unknown platform '%s'", s))
}

// User is a snapshot of one user's moderation state.
type User struct {
	Platform  Platform             `json:"platform"`
	Username  string               `json:"username"`
	Blocks    []string             `json:"blocks"`
	Cooldowns map[string]time.Time `json:"cooldowns"`
}

// Registry stores block lists and cooldown expiries. Items are trigger ids.
type Registry interface {
	User(ctx context.Context, platform Platform, username string) (User, error)
	Users(ctx context.Context, platform Platform) ([]User, error)
	IsBlocked(ctx context.Context, platform Platform, username, item string) (bool, error)
	Block(ctx context.Context, platform Platform, username, item string) error
	Unblock(ctx context.Context, platform Platform, username, item string) error
	// SetCooldown sets the expiry of item for the user to now + d.
	SetCooldown(ctx context.Context, platform Platform, username, item string, d time.Duration) error
	ClearCooldown(ctx context.Context, platform Platform, username, item string) error
	// CooldownExpiry returns the zero time when no cooldown is recorded.
	CooldownExpiry(ctx context.Context, platform Platform, username, item string) (time.Time, error)
}

// OnCooldown reports whether item is still cooling down for the user at now.
func OnCooldown(ctx context.Context, r Registry, platform Platform, username, item string, now time.Time) (bool, error) {
	expiry, err := r.CooldownExpiry(ctx, platform, username, item)
	if err != nil {
		return false, err
	}
	return !expiry.IsZero() && now.Before(expiry), nil
}

func validate(platform Platform, username string) error {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return err
	}
	if strings.TrimSpace(username) == "" {
		return errors.ValidationError("username is required")
	}
	return nil
}
