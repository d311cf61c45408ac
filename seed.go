package main

import "strings"

// maxProfiles caps a user's profile list. The selection UI renders a fixed
// number of slots, so the registry enforces the same bound.
const maxProfiles = 5

const defaultProfileName = "User"

// avatarSet is the fixed pool of avatar images. New profiles pick from it
// round-robin on the current profile count, so the single place that owns the
// pool is here rather than each handler carrying its own copy.
var avatarSet = []string{
	"/assets/avatars/blue-robot.webp",
	"/assets/avatars/orange-smile.jpg",
	"/assets/avatars/green-smile.jpg",
	"/assets/avatars/kids-logo.jpg",
	"/assets/avatars/purple-classic.jpg",
}

// avatarForCount returns the avatar assigned to the n-th profile of a list.
func avatarForCount(n int) string {
	return avatarSet[n%len(avatarSet)]
}

// normalizeProfileName trims and validates a profile display name.
func normalizeProfileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
