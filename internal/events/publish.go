package events

import (
	"context"
	"fmt"

	"go.ember.chat/internal/models"
)

// GlobalTopic receives platform-wide events
const GlobalTopic = "global"

// PrivateTopic returns the topic only a user's own sessions listen on
func PrivateTopic(userID string) string {
	return userID + "!"
}

// Publisher sends an encoded event to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MembershipFetcher lists the servers a user belongs to
type MembershipFetcher interface {
	FetchAllMemberships(ctx context.Context, userID string) ([]models.Member, error)
}

// Publish encodes ev and sends it to topic
func Publish(ctx context.Context, pub Publisher, topic string, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, topic, data); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", ev.EventType(), topic, err)
	}
	return nil
}

// PublishPrivate sends ev to the user's private topic
func PublishPrivate(ctx context.Context, pub Publisher, userID string, ev Event) error {
	return Publish(ctx, pub, PrivateTopic(userID), ev)
}

// PublishGlobal sends ev to every session
func PublishGlobal(ctx context.Context, pub Publisher, ev Event) error {
	return Publish(ctx, pub, GlobalTopic, ev)
}

// PublishUser sends ev to the user's topic and to every server they are a member of
func PublishUser(ctx context.Context, pub Publisher, members MembershipFetcher, userID string, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	if err := pub.Publish(ctx, userID, data); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", ev.EventType(), userID, err)
	}

	memberships, err := members.FetchAllMemberships(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch memberships: %w", err)
	}

	for _, m := range memberships {
		if err := pub.Publish(ctx, m.ID.Server, data); err != nil {
			return fmt.Errorf("failed to publish %s to %s: %w", ev.EventType(), m.ID.Server, err)
		}
	}
	return nil
}
