package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a profile cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrDiscordAccountLinked is returned when a Discord account is already
	// bound to a different Minecraft profile
	ErrDiscordAccountLinked = errors.New("discord account already linked")

	// ErrTokenNotFound is returned when a bridge token cannot be found
	ErrTokenNotFound = errors.New("token not found")
)
