package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
)

// GenerateReadyPayload builds the initial snapshot of everything the user
// can see, replaces the cache with it and resubscribes from scratch.
// Storage failures abort session startup.
func (s *State) GenerateReadyPayload(ctx context.Context) (*events.Ready, error) {
	start := time.Now()
	defer func() {
		metrics.StateReadyDuration.Observe(time.Since(start).Seconds())
	}()

	user := s.Cache.User()

	userIDs := make([]string, 0, len(user.Relations))
	for _, r := range user.Relations {
		userIDs = append(userIDs, r.ID)
	}

	members, err := s.store.FetchAllMemberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch memberships: %w", err)
	}

	serverIDs := make([]string, 0, len(members))
	for _, m := range members {
		serverIDs = append(serverIDs, m.ID.Server)
	}

	servers, err := s.store.FetchServers(ctx, serverIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch servers: %w", err)
	}

	var channelIDs []string
	for _, server := range servers {
		channelIDs = append(channelIDs, server.Channels...)
	}

	channels, err := s.store.FindDirectMessages(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch direct messages: %w", err)
	}

	serverChannels, err := s.store.FetchChannels(ctx, channelIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch channels: %w", err)
	}
	channels = append(channels, serverChannels...)

	// Visibility is decided against the new snapshot, not the old cache
	next := newCache(user, s.Cache.store, s.Cache.now)
	for _, server := range servers {
		next.Servers[server.ID] = server
	}
	for _, m := range members {
		next.Members[m.ID.Server] = m
	}

	channels = next.FilterAccessibleChannels(ctx, channels)
	for _, channel := range channels {
		if channel.ChannelType == models.ChannelTypeDirectMessage || channel.ChannelType == models.ChannelTypeGroup {
			userIDs = append(userIDs, channel.Recipients...)
		}
		next.Channels[channel.ID] = channel
	}

	userIDs = without(unique(userIDs), user.ID)

	online := make(map[string]struct{})
	if ids, err := s.presence.FilterOnline(ctx, userIDs); err != nil {
		slog.Warn("Failed to resolve online users", "userId", user.ID, "error", err)
	} else {
		for _, id := range ids {
			online[id] = struct{}{}
		}
	}

	users, err := s.store.FetchUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}

	emojis, err := s.store.FetchEmojiByParentIDs(ctx, serverIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch emoji: %w", err)
	}

	user.Online = true
	for _, u := range users {
		next.Users[u.ID] = u
	}
	next.Users[user.ID] = user
	s.Cache = next

	out := make([]models.User, 0, len(users)+1)
	for _, u := range users {
		_, u.Online = online[u.ID]
		out = append(out, u.WithRelationship(&user))
	}

	self := user.Foreign()
	self.Status = user.Status
	self.Online = true
	self.Relationship = models.RelationshipUser
	out = append(out, self)

	s.ResetState()
	s.InsertSubscription(s.privateTopic)
	for _, u := range out {
		s.InsertSubscription(u.ID)
	}
	for _, server := range servers {
		s.InsertSubscription(server.ID)
	}
	for _, channel := range channels {
		s.InsertSubscription(channel.ID)
	}

	return &events.Ready{
		Users:    out,
		Servers:  servers,
		Channels: channels,
		Members:  members,
		Emojis:   emojis,
	}, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
