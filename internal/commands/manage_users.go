package commands

import (
	"context"
	"fmt"
	"time"

	"triggerd/internal/common/errors"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/users"
)

// ManageUsersName is the action id of ManageUsers.
const ManageUsersName = "ManageUsers"

type manageUsersContext struct {
	Username string      `json:"username" validate:"required"`
	Platform string      `json:"platform" validate:"required,platform"`
	Action   string      `json:"action" validate:"required,oneof=set_cooldown unset_cooldown add_block remove_block"`
	ItemID   string      `json:"itemId" validate:"required"`
	Cooldown interface{} `json:"cooldown"`
}

// ManageUsers edits a user's block list and per-trigger cooldowns.
type ManageUsers struct {
	users users.Registry
}

func NewManageUsers(registry users.Registry) *ManageUsers {
	return &ManageUsers{users: registry}
}

func (c *ManageUsers) Name() string { return ManageUsersName }

func (c *ManageUsers) Execute(ctx context.Context, req models.InternalRequest) (string, error) {
	in, err := providers.DecodeContext[manageUsersContext](req)
	if err != nil {
		return "", err
	}
	platform, err := users.ParsePlatform(in.Platform)
	if err != nil {
		return "", err
	}
	who := fmt.Sprintf("@%s (%s)", in.Username, platform)

	switch in.Action {
	case "set_cooldown":
		seconds, err := parseNumber(in.Cooldown)
		if err != nil {
			return "", err
		}
		if seconds < 0 {
			return "", errors.ValidationError("cooldown must not be negative")
		}
		d := time.Duration(int64(seconds)) * time.Second
		if err := c.users.SetCooldown(ctx, platform, in.Username, in.ItemID, d); err != nil {
			return "", err
		}
		return fmt.Sprintf("Cooldown of %s on %s set to %s", who, in.ItemID, d), nil
	case "unset_cooldown":
		if err := c.users.ClearCooldown(ctx, platform, in.Username, in.ItemID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Cooldown of %s on %s cleared", who, in.ItemID), nil
	case "add_block":
		if err := c.users.Block(ctx, platform, in.Username, in.ItemID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s blocked from %s", who, in.ItemID), nil
	default:
		if err := c.users.Unblock(ctx, platform, in.Username, in.ItemID); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s unblocked from %s", who, in.ItemID), nil
	}
}
