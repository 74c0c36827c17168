package tasks

import (
	"testing"

	"github.com/mircoferri/taskhub/internal/hub"
)

type countingPublisher struct {
	published map[string]int
}

func (p *countingPublisher) Publish(group string, _ hub.Event) {
	if p.published == nil {
		p.published = make(map[string]int)
	}
	p.published[group]++
}

func TestDispatchDeduplicatesGroups(t *testing.T) {
	pub := &countingPublisher{}
	d := NewDispatcher(pub, nil)

	// Previous assignee equal to the current one collapses to a single
	// group entry.
	same := int64(42)
	d.Dispatch(hub.EventUpdated, nil, 42, &same)

	if pub.published[hub.UserGroup(42)] != 1 {
		t.Fatalf("user_42 published %d times, want 1", pub.published[hub.UserGroup(42)])
	}
	if pub.published[hub.AdminsGroup] != 1 {
		t.Fatalf("admins published %d times, want 1", pub.published[hub.AdminsGroup])
	}
	if len(pub.published) != 2 {
		t.Fatalf("published groups = %v, want exactly 2", pub.published)
	}
}

func TestDispatchIncludesDistinctPreviousAssignee(t *testing.T) {
	pub := &countingPublisher{}
	d := NewDispatcher(pub, nil)

	prev := int64(7)
	d.Dispatch(hub.EventUpdated, nil, 42, &prev)

	for _, group := range []string{hub.AdminsGroup, hub.UserGroup(42), hub.UserGroup(7)} {
		if pub.published[group] != 1 {
			t.Fatalf("group %s published %d times, want 1", group, pub.published[group])
		}
	}
	if len(pub.published) != 3 {
		t.Fatalf("published groups = %v, want exactly 3", pub.published)
	}
}
