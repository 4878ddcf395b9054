package state

import (
	"context"
	"log/slog"
	"sort"

	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
)

// RecalculateServer re-derives which channels of a cached server the user
// can see. Channels that became invisible are dropped and announced with
// ChannelDelete; channels of the server that were not cached are fetched and
// announced with ChannelCreate when visible. If anything changed, ev is
// returned wrapped in a Bulk after those events, otherwise ev is returned
// as is. Storage failures only limit discovery.
func (s *State) RecalculateServer(ctx context.Context, serverID string, ev events.Event) events.Event {
	server, ok := s.Cache.Servers[serverID]
	if !ok {
		return ev
	}
	metrics.StateRecalculations.Inc()

	var cached []string
	for id, channel := range s.Cache.Channels {
		if channel.IsServerChannel() && channel.Server == serverID {
			cached = append(cached, id)
		}
	}
	sort.Strings(cached)

	var bulk []events.Event
	known := make(map[string]struct{}, len(cached))

	for _, id := range cached {
		known[id] = struct{}{}
		channel := s.Cache.Channels[id]

		if s.Cache.CanViewChannel(ctx, &channel) {
			s.InsertSubscription(id)
			continue
		}

		s.RemoveSubscription(id)
		delete(s.Cache.Channels, id)
		bulk = append(bulk, &events.ChannelDelete{ID: id})
		metrics.StateSyntheticEvents.WithLabelValues("ChannelDelete").Inc()
	}

	var unknown []string
	for _, id := range server.Channels {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}

	if len(unknown) > 0 {
		channels, err := s.store.FetchChannels(ctx, unknown)
		if err != nil {
			slog.Warn("Failed to fetch channels during recalculation",
				"serverId", serverID, "userId", s.Cache.UserID, "error", err)
		}

		// Announce in the server's channel order
		order := make(map[string]int, len(unknown))
		for i, id := range unknown {
			order[id] = i
		}
		sort.SliceStable(channels, func(i, j int) bool {
			return order[channels[i].ID] < order[channels[j].ID]
		})

		for _, channel := range s.Cache.FilterAccessibleChannels(ctx, channels) {
			s.Cache.Channels[channel.ID] = channel
			s.InsertSubscription(channel.ID)
			bulk = append(bulk, &events.ChannelCreate{Channel: channel})
			metrics.StateSyntheticEvents.WithLabelValues("ChannelCreate").Inc()
		}
	}

	if len(bulk) == 0 {
		return ev
	}

	metrics.StateSyntheticEvents.WithLabelValues("Bulk").Inc()
	return &events.Bulk{V: append(bulk, ev)}
}
