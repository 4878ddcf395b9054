package state

import (
	"context"
	"time"

	"go.ember.chat/internal/models"
	"go.ember.chat/internal/permissions"
)

// Cache is the session's view of the entities it may see. Members are
// keyed by server id since they are always the session user's own.
type Cache struct {
	UserID string

	Users    map[string]models.User
	Servers  map[string]models.Server
	Channels map[string]models.Channel
	Members  map[string]models.Member

	store permissions.Store
	now   func() time.Time
}

func newCache(user models.User, store permissions.Store, now func() time.Time) Cache {
	return Cache{
		UserID:   user.ID,
		Users:    map[string]models.User{user.ID: user},
		Servers:  make(map[string]models.Server),
		Channels: make(map[string]models.Channel),
		Members:  make(map[string]models.Member),
		store:    store,
		now:      now,
	}
}

// User returns the session user
func (c *Cache) User() models.User {
	return c.Users[c.UserID]
}

// CanViewChannel reports whether the session user holds ViewChannel on a
// server channel. Private channels are always visible: they only reach the
// cache through their recipients.
func (c *Cache) CanViewChannel(ctx context.Context, channel *models.Channel) bool {
	if !channel.IsServerChannel() {
		return true
	}

	user := c.User()
	q := permissions.NewDatabaseQuery(c.store, &user).Channel(channel).WithClock(c.now)

	if member, ok := c.Members[channel.Server]; ok {
		q.Member(&member)
	}
	if server, ok := c.Servers[channel.Server]; ok {
		q.Server(&server)
	}

	return permissions.CalculateChannelPermissions(ctx, q).HasChannelPermission(permissions.ViewChannel)
}

// FilterAccessibleChannels keeps the visible channels, preserving order
func (c *Cache) FilterAccessibleChannels(ctx context.Context, channels []models.Channel) []models.Channel {
	visible := make([]models.Channel, 0, len(channels))
	for i := range channels {
		if c.CanViewChannel(ctx, &channels[i]) {
			visible = append(visible, channels[i])
		}
	}
	return visible
}

// CanSubscribeToUser reports whether the session should receive updates
// about a user: a friend, a pending request, itself, or someone sharing a
// cached direct message or group.
func (c *Cache) CanSubscribeToUser(userID string) bool {
	user, ok := c.Users[c.UserID]
	if !ok {
		return false
	}

	switch user.RelationshipWith(userID) {
	case models.RelationshipFriend,
		models.RelationshipIncoming,
		models.RelationshipOutgoing,
		models.RelationshipUser:
		return true
	}

	for _, channel := range c.Channels {
		switch channel.ChannelType {
		case models.ChannelTypeDirectMessage, models.ChannelTypeGroup:
			if channel.HasRecipient(userID) {
				return true
			}
		}
	}
	return false
}

// dropServer removes a server with its channels and membership, returning
// the ids of the removed channels
func (c *Cache) dropServer(serverID string) []string {
	var removed []string
	if server, ok := c.Servers[serverID]; ok {
		for _, id := range server.Channels {
			if _, ok := c.Channels[id]; ok {
				removed = append(removed, id)
				delete(c.Channels, id)
			}
		}
	}
	// Channels the server list no longer names may still be cached
	for id, channel := range c.Channels {
		if channel.IsServerChannel() && channel.Server == serverID {
			removed = append(removed, id)
			delete(c.Channels, id)
		}
	}

	delete(c.Servers, serverID)
	delete(c.Members, serverID)
	return removed
}
