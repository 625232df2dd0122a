package twitch

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrRewardInaccessible marks a reward the credentials cannot read,
	// typically a reward created by a different client id.
	ErrRewardInaccessible = errors.New("reward inaccessible")

	ErrUnexpectedStatus = errors.New("unexpected helix status")
)
