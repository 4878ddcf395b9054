package state

import (
	"reflect"
	"testing"
)

func TestSubscriptions_InsertTwiceAddsOnce(t *testing.T) {
	s := subscriptions{subscribed: map[string]struct{}{}}

	s.insert("A")
	s.insert("A")

	change := s.take()
	if change.Kind != ChangeUpdate {
		t.Fatalf("Expected update, got %s", change.Kind)
	}
	if !reflect.DeepEqual(change.Add, []string{"A"}) {
		t.Errorf("Expected add [A], got %v", change.Add)
	}
}

func TestSubscriptions_InsertThenRemoveIsNoop(t *testing.T) {
	s := subscriptions{subscribed: map[string]struct{}{}}

	s.insert("A")
	s.remove("A")

	if change := s.take(); change.Kind != ChangeNone {
		t.Errorf("Expected no change, got %+v", change)
	}
	if s.has("A") {
		t.Error("Expected A not to be subscribed")
	}
}

func TestSubscriptions_RemoveThenInsertIsNoop(t *testing.T) {
	s := subscriptions{subscribed: map[string]struct{}{"A": {}}}

	s.remove("A")
	s.insert("A")

	if change := s.take(); change.Kind != ChangeNone {
		t.Errorf("Expected no change, got %+v", change)
	}
	if !s.has("A") {
		t.Error("Expected A to stay subscribed")
	}
}

func TestSubscriptions_ResetSwallowsAdds(t *testing.T) {
	s := newSubscriptions("A")
	s.reset()
	s.insert("B")
	s.insert("C")

	change := s.take()
	if change.Kind != ChangeReset {
		t.Fatalf("Expected reset, got %s", change.Kind)
	}
	if len(change.Add) != 0 {
		t.Errorf("Expected no individual adds during reset, got %v", change.Add)
	}
	if got := s.list(); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("Expected [B C], got %v", got)
	}

	if change := s.take(); change.Kind != ChangeNone {
		t.Errorf("Expected nothing pending after take, got %s", change.Kind)
	}
}

func TestSubscriptions_RemoveDuringResetPanics(t *testing.T) {
	s := newSubscriptions("A")

	defer func() {
		if recover() == nil {
			t.Error("Expected remove during reset to panic")
		}
	}()
	s.remove("A")
}

func TestSubscriptions_RemoveUnknownIsIgnored(t *testing.T) {
	s := newSubscriptions("A")

	// Not subscribed, so the pending reset is irrelevant
	s.remove("B")

	if change := s.take(); change.Kind != ChangeReset {
		t.Errorf("Expected reset to remain pending, got %s", change.Kind)
	}
}
