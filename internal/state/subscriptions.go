package state

import "sort"

// ChangeKind is the kind of pending subscription change
type ChangeKind int

const (
	// ChangeNone means the bus already matches the subscription set
	ChangeNone ChangeKind = iota

	// ChangeReset means every subscription must be replaced by the current set
	ChangeReset

	// ChangeUpdate means Add and Remove must be applied
	ChangeUpdate
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReset:
		return "reset"
	case ChangeUpdate:
		return "update"
	default:
		return "none"
	}
}

// SubscriptionChange is the accumulated difference between the subscription
// set and what has been applied to the bus
type SubscriptionChange struct {
	Kind   ChangeKind
	Add    []string
	Remove []string
}

// subscriptions tracks the topics a session needs and the changes not yet
// flushed to the bus
type subscriptions struct {
	subscribed map[string]struct{}
	pending    SubscriptionChange
}

func newSubscriptions(topics ...string) subscriptions {
	s := subscriptions{
		subscribed: make(map[string]struct{}, len(topics)),
		pending:    SubscriptionChange{Kind: ChangeReset},
	}
	for _, t := range topics {
		s.subscribed[t] = struct{}{}
	}
	return s
}

// insert adds a topic. While a reset is pending the topic is only recorded
// in the set, since the reset resubscribes everything.
func (s *subscriptions) insert(topic string) {
	if _, ok := s.subscribed[topic]; ok {
		return
	}
	s.subscribed[topic] = struct{}{}

	switch s.pending.Kind {
	case ChangeNone:
		s.pending = SubscriptionChange{Kind: ChangeUpdate, Add: []string{topic}}
	case ChangeUpdate:
		// A topic removed earlier in this batch only needs the removal undone
		if i := indexOf(s.pending.Remove, topic); i >= 0 {
			s.pending.Remove = append(s.pending.Remove[:i], s.pending.Remove[i+1:]...)
			return
		}
		s.pending.Add = append(s.pending.Add, topic)
	}
}

// remove drops a topic. It panics while a reset is pending: a reset always
// rebuilds the set from scratch, so no caller may remove during one.
func (s *subscriptions) remove(topic string) {
	if _, ok := s.subscribed[topic]; !ok {
		return
	}

	switch s.pending.Kind {
	case ChangeReset:
		panic("state: subscription removed during a pending reset")
	case ChangeNone:
		s.pending = SubscriptionChange{Kind: ChangeUpdate, Remove: []string{topic}}
	case ChangeUpdate:
		if i := indexOf(s.pending.Add, topic); i >= 0 {
			s.pending.Add = append(s.pending.Add[:i], s.pending.Add[i+1:]...)
		} else {
			s.pending.Remove = append(s.pending.Remove, topic)
		}
	}

	delete(s.subscribed, topic)
}

func (s *subscriptions) reset() {
	s.pending = SubscriptionChange{Kind: ChangeReset}
	s.subscribed = make(map[string]struct{})
}

// take returns the pending change and marks it applied
func (s *subscriptions) take() SubscriptionChange {
	change := s.pending
	s.pending = SubscriptionChange{}
	if change.Kind == ChangeUpdate && len(change.Add) == 0 && len(change.Remove) == 0 {
		return SubscriptionChange{}
	}
	return change
}

func (s *subscriptions) has(topic string) bool {
	_, ok := s.subscribed[topic]
	return ok
}

func (s *subscriptions) list() []string {
	out := make([]string, 0, len(s.subscribed))
	for t := range s.subscribed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
