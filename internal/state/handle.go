package state

import (
	"context"
	"log/slog"

	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
)

// HandleIncomingEvent applies an event received from the bus to the cache
// and subscription set, and returns the event to forward to the client.
// The result may be the input itself, a replacement (ChannelCreate or
// ChannelDelete when a channel's visibility flips), a Bulk wrapping the
// input after the side effects of a server recalculation, or nil when the
// client must not see the event at all.
//
// Events are expected in their decoded pointer form, e.g. *events.ChannelUpdate.
func (s *State) HandleIncomingEvent(ctx context.Context, ev events.Event) events.Event {
	var (
		recalculate string
		queueAdd    string
		queueRemove string
	)
	out := ev

	switch e := ev.(type) {
	case *events.ChannelCreate:
		if !s.Cache.CanViewChannel(ctx, &e.Channel) {
			return nil
		}
		s.InsertSubscription(e.ID)
		s.Cache.Channels[e.ID] = e.Channel

	case *events.ChannelUpdate:
		out, queueAdd, queueRemove = s.channelUpdate(ctx, e)

	case *events.ChannelDelete:
		s.RemoveSubscription(e.ID)
		delete(s.Cache.Channels, e.ID)

	case *events.ChannelGroupJoin:
		if channel, ok := s.Cache.Channels[e.ID]; ok && !channel.HasRecipient(e.User) {
			channel.Recipients = append(append([]string(nil), channel.Recipients...), e.User)
			s.Cache.Channels[e.ID] = channel
		}
		s.InsertSubscription(e.User)

	case *events.ChannelGroupLeave:
		if e.User == s.Cache.UserID {
			s.RemoveSubscription(e.ID)
			delete(s.Cache.Channels, e.ID)
			break
		}
		if channel, ok := s.Cache.Channels[e.ID]; ok {
			channel.Recipients = without(append([]string(nil), channel.Recipients...), e.User)
			s.Cache.Channels[e.ID] = channel
		}
		if !s.Cache.CanSubscribeToUser(e.User) {
			s.RemoveSubscription(e.User)
		}

	case *events.ServerCreate:
		s.InsertSubscription(e.ID)
		s.Cache.Servers[e.ID] = e.Server
		for _, channel := range e.Channels {
			s.Cache.Channels[channel.ID] = channel
		}
		recalculate = e.ID

	case *events.ServerUpdate:
		if server, ok := s.Cache.Servers[e.ID]; ok {
			for _, field := range e.Clear {
				server.Remove(field)
			}
			server.Apply(e.Data)
			s.Cache.Servers[e.ID] = server
		}
		if e.Data.DefaultPermissions != nil {
			recalculate = e.ID
		}

	case *events.ServerMemberJoin:
		// A ServerCreate always follows on the private topic

	case *events.ServerMemberLeave:
		if e.User == s.Cache.UserID {
			s.leaveServer(e.ID)
		}

	case *events.ServerDelete:
		s.leaveServer(e.ID)

	case *events.ServerMemberUpdate:
		if e.ID.User != s.Cache.UserID {
			break
		}
		if member, ok := s.Cache.Members[e.ID.Server]; ok {
			for _, field := range e.Clear {
				member.Remove(field)
			}
			member.Apply(e.Data)
			s.Cache.Members[e.ID.Server] = member
		}
		if e.Data.Roles != nil || containsField(e.Clear, models.FieldsMemberRoles) {
			recalculate = e.ID.Server
		}

	case *events.ServerRoleUpdate:
		server, ok := s.Cache.Servers[e.ID]
		if !ok {
			break
		}
		// An unknown role id is a role creation
		role := server.Roles[e.RoleID]
		for _, field := range e.Clear {
			role.Remove(field)
		}
		role.Apply(e.Data)
		server.Roles = cloneRoles(server.Roles)
		server.Roles[e.RoleID] = role
		s.Cache.Servers[e.ID] = server

		if (e.Data.Permissions != nil || e.Data.Rank != nil) && s.holdsRole(e.ID, e.RoleID) {
			recalculate = e.ID
		}

	case *events.ServerRoleDelete:
		if server, ok := s.Cache.Servers[e.ID]; ok {
			server.Roles = cloneRoles(server.Roles)
			delete(server.Roles, e.RoleID)
			s.Cache.Servers[e.ID] = server
		}
		if s.holdsRole(e.ID, e.RoleID) {
			recalculate = e.ID
		}

	case *events.UserUpdate:
		if user, ok := s.Cache.Users[e.ID]; ok {
			for _, field := range e.Clear {
				user.Remove(field)
			}
			user.Apply(e.Data)
			s.Cache.Users[e.ID] = user
		}

	case *events.UserRelationship:
		s.relationship(e)
	}

	if recalculate != "" {
		out = s.RecalculateServer(ctx, recalculate, out)
	}
	if queueAdd != "" {
		s.InsertSubscription(queueAdd)
	}
	if queueRemove != "" {
		s.RemoveSubscription(queueRemove)
	}

	return out
}

// channelUpdate applies a channel update and replaces it when the update
// changes whether the user can see the channel
func (s *State) channelUpdate(ctx context.Context, e *events.ChannelUpdate) (out events.Event, add, remove string) {
	channel, ok := s.Cache.Channels[e.ID]
	if !ok {
		if created := s.discoverChannel(ctx, e); created != nil {
			return created, e.ID, ""
		}
		return e, "", ""
	}

	couldView := s.Cache.CanViewChannel(ctx, &channel)

	for _, field := range e.Clear {
		channel.Remove(field)
	}
	channel.Apply(e.Data)
	s.Cache.Channels[e.ID] = channel

	canView := s.Cache.CanViewChannel(ctx, &channel)

	switch {
	case couldView == canView:
		return e, "", ""
	case canView:
		metrics.StateSyntheticEvents.WithLabelValues("ChannelCreate").Inc()
		return &events.ChannelCreate{Channel: channel}, e.ID, ""
	default:
		delete(s.Cache.Channels, e.ID)
		metrics.StateSyntheticEvents.WithLabelValues("ChannelDelete").Inc()
		return &events.ChannelDelete{ID: e.ID}, "", e.ID
	}
}

// discoverChannel handles a permission update to a channel the session does
// not hold. It returns a ChannelCreate when the update made a channel of a
// cached server visible, nil otherwise.
func (s *State) discoverChannel(ctx context.Context, e *events.ChannelUpdate) *events.ChannelCreate {
	if e.Data.DefaultPermissions == nil && e.Data.RolePermissions == nil &&
		!containsField(e.Clear, models.FieldsChannelDefaultPermissions) {
		return nil
	}

	channel, err := s.store.FetchChannel(ctx, e.ID)
	if err != nil {
		slog.Debug("Failed to fetch updated channel", "channelId", e.ID, "error", err)
		return nil
	}
	if !channel.IsServerChannel() {
		return nil
	}
	if _, ok := s.Cache.Servers[channel.Server]; !ok {
		return nil
	}
	if !s.Cache.CanViewChannel(ctx, channel) {
		return nil
	}

	s.Cache.Channels[channel.ID] = *channel
	metrics.StateSyntheticEvents.WithLabelValues("ChannelCreate").Inc()
	return &events.ChannelCreate{Channel: *channel}
}

func (s *State) leaveServer(serverID string) {
	s.RemoveSubscription(serverID)
	for _, id := range s.Cache.dropServer(serverID) {
		s.RemoveSubscription(id)
	}
}

func (s *State) relationship(e *events.UserRelationship) {
	other := e.User
	if other.ID == "" || other.ID == s.Cache.UserID {
		return
	}

	self := s.Cache.User()
	relations := make([]models.Relationship, 0, len(self.Relations)+1)
	for _, r := range self.Relations {
		if r.ID != other.ID {
			relations = append(relations, r)
		}
	}
	if e.Status != "" && e.Status != models.RelationshipNone {
		relations = append(relations, models.Relationship{ID: other.ID, Status: e.Status})
	}
	self.Relations = relations
	s.Cache.Users[self.ID] = self
	s.Cache.Users[other.ID] = other

	if s.Cache.CanSubscribeToUser(other.ID) {
		s.InsertSubscription(other.ID)
	} else {
		s.RemoveSubscription(other.ID)
	}
}

func (s *State) holdsRole(serverID, roleID string) bool {
	member, ok := s.Cache.Members[serverID]
	return ok && member.HasRole(roleID)
}

func cloneRoles(roles map[string]models.Role) map[string]models.Role {
	out := make(map[string]models.Role, len(roles))
	for id, r := range roles {
		out[id] = r
	}
	return out
}

func containsField[T comparable](fields []T, field T) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
