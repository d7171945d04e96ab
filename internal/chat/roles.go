package chat

import (
	"fmt"
	"strings"
)

// Roles are what a sender is in the channel.
type Roles struct {
	Broadcaster bool
	Moderator   bool
	Subscriber  bool
}

// Normalize makes the broadcaster a moderator and a subscriber.
func (r Roles) Normalize() Roles {
	if r.Broadcaster {
		r.Moderator = true
		r.Subscriber = true
	}
	return r
}

// RolesFromTwitchBadges reads a Twitch IRC badges tag such as
// "broadcaster/1,subscriber/12".
func RolesFromTwitchBadges(badges string) Roles {
	var r Roles
	for _, badge := range strings.Split(badges, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(badge), "/")
		switch name {
		case "broadcaster":
			r.Broadcaster = true
		case "moderator":
			r.Moderator = true
		case "subscriber", "founder":
			r.Subscriber = true
		}
	}
	return r.Normalize()
}

// Permission is the minimum role required to use the command.
type Permission string

const (
	PermissionAll        Permission = "all"
	PermissionSubscriber Permission = "subscriber"
	PermissionModerator  Permission = "moderator"
	PermissionStreamer   Permission = "streamer"
)

// ParsePermission accepts the canonical names plus the aliases "everyone",
// "subscribers" and "moderators". Matching is case-insensitive.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "everyone":
		return PermissionAll, nil
	case "subscriber", "subscribers":
		return PermissionSubscriber, nil
	case "moderator", "moderators":
		return PermissionModerator, nil
	case "streamer":
		return PermissionStreamer, nil
	default:
		return "", fmt.Errorf("unknown permission %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Allows reports whether roles satisfy p. Unknown permissions deny.
func (p Permission) Allows(roles Roles) bool {
	roles = roles.Normalize()
	switch p {
	case PermissionAll, "":
		return true
	case PermissionSubscriber:
		return roles.Subscriber
	case PermissionModerator:
		return roles.Moderator
	case PermissionStreamer:
		return roles.Broadcaster
	default:
		return false
	}
}
