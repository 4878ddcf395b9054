package state

import (
	"context"
	"fmt"
	"sort"

	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
)

// BroadcastPresenceChange tells everyone watching the user that it came
// online or went offline. Nothing is sent while the user is invisible.
func (s *State) BroadcastPresenceChange(ctx context.Context, pub events.Publisher, online bool) error {
	user := s.Cache.User()
	if user.Presence() == models.PresenceInvisible {
		return nil
	}

	ev := &events.UserUpdate{
		ID:    user.ID,
		Data:  models.PartialUser{Online: &online},
		Clear: []models.FieldsUser{},
	}
	data, err := events.Encode(ev)
	if err != nil {
		return err
	}

	topics := make([]string, 0, len(s.Cache.Servers)+1)
	for id := range s.Cache.Servers {
		topics = append(topics, id)
	}
	sort.Strings(topics)
	topics = append(topics, user.ID)

	for _, topic := range topics {
		if err := pub.Publish(ctx, topic, data); err != nil {
			return fmt.Errorf("broadcast presence to %s: %w", topic, err)
		}
	}
	return nil
}
