package actions

import "errors"

var (
	// ErrCooldownActive is returned when at least one requested action is cooling down
	ErrCooldownActive = errors.New("action is on cooldown")

	// ErrNoLoader is returned when a provider has no catalogue loader
	ErrNoLoader = errors.New("provider has no action loader")
)
