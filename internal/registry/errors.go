package registry

import "errors"

var (
	// ErrNotFound reports an unknown client or group identifier.
	ErrNotFound = errors.New("not found")
	// ErrGroupExists reports a CreateGroup for an id that is already taken.
	ErrGroupExists = errors.New("group already exists")
	// ErrNotMember reports a relay attempt by a client outside the group.
	ErrNotMember = errors.New("sender is not a group member")
)
