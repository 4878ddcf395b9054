// Package state keeps one socket session's view of the platform in sync.
//
// A State is owned by the goroutine that reads the session's bus
// subscription. It turns every incoming event into the event the client
// should see, keeping the Cache free of anything the user can no longer
// view and the subscription set converged with the Cache.
package state

import (
	"context"
	"time"

	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
	"go.ember.chat/internal/permissions"
)

// Store is the storage a session reads from
type Store interface {
	permissions.Store
	FetchUsers(ctx context.Context, ids []string) ([]models.User, error)
	FetchServers(ctx context.Context, ids []string) ([]models.Server, error)
	FetchChannel(ctx context.Context, id string) (*models.Channel, error)
	FetchChannels(ctx context.Context, ids []string) ([]models.Channel, error)
	FindDirectMessages(ctx context.Context, userID string) ([]models.Channel, error)
	FetchAllMemberships(ctx context.Context, userID string) ([]models.Member, error)
	FetchEmojiByParentIDs(ctx context.Context, parentIDs []string) ([]models.Emoji, error)
}

// Presence reports which users are online
type Presence interface {
	FilterOnline(ctx context.Context, ids []string) ([]string, error)
}

// State is the synchronised view of a single session
type State struct {
	Cache Cache

	privateTopic string
	subs         subscriptions

	store    Store
	presence Presence
}

// Option configures a State
type Option func(*State)

// WithClock sets the time source used for member timeouts
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.Cache.now = now
	}
}

// New creates the state of a freshly authenticated session. It starts
// subscribed to the user's private topic and own id, with a reset pending.
func New(user models.User, store Store, presence Presence, opts ...Option) *State {
	private := events.PrivateTopic(user.ID)
	s := &State{
		Cache:        newCache(user, store, time.Now),
		privateTopic: private,
		subs:         newSubscriptions(private, user.ID),
		store:        store,
		presence:     presence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrivateTopic returns the topic only this user's sessions listen on
func (s *State) PrivateTopic() string {
	return s.privateTopic
}

// UserID returns the session user's id
func (s *State) UserID() string {
	return s.Cache.UserID
}

// InsertSubscription subscribes to a topic
func (s *State) InsertSubscription(topic string) {
	s.subs.insert(topic)
}

// RemoveSubscription unsubscribes from a topic. It must not be called while
// a reset is pending.
func (s *State) RemoveSubscription(topic string) {
	s.subs.remove(topic)
}

// ResetState clears the subscription set and marks a full resubscribe
func (s *State) ResetState() {
	s.subs.reset()
}

// ApplyState returns the changes to apply to the bus and clears them
func (s *State) ApplyState() SubscriptionChange {
	return s.subs.take()
}

// Subscriptions returns the current subscription set, sorted
func (s *State) Subscriptions() []string {
	return s.subs.list()
}

// IsSubscribed reports whether the session wants a topic
func (s *State) IsSubscribed(topic string) bool {
	return s.subs.has(topic)
}
