package tasks

import (
	"github.com/mircoferri/taskhub/internal/hub"
	"github.com/mircoferri/taskhub/internal/observability"
)

// Publisher is the registry-side surface the dispatcher fans out through.
type Publisher interface {
	Publish(group string, ev hub.Event)
}

// Dispatcher computes the recipient group set for one mutation outcome and
// publishes the event once per distinct group. Delivery is fire-and-forget:
// nothing here can fail the mutation that triggered it.
type Dispatcher struct {
	pub     Publisher
	metrics *observability.Metrics
}

func NewDispatcher(pub Publisher, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{pub: pub, metrics: metrics}
}

// Dispatch notifies the admins group, the assignee's group, and the previous
// assignee's group when a reassignment moved the task. Duplicates collapse
// so no group sees the same mutation twice.
func (d *Dispatcher) Dispatch(event string, payload any, assignedTo int64, previousAssignee *int64) {
	groups := map[string]struct{}{
		hub.AdminsGroup:           {},
		hub.UserGroup(assignedTo): {},
	}
	if previousAssignee != nil {
		groups[hub.UserGroup(*previousAssignee)] = struct{}{}
	}

	ev := hub.Event{Event: event, Task: payload}
	for group := range groups {
		d.pub.Publish(group, ev)
	}
	if d.metrics != nil {
		d.metrics.BroadcastEvents.WithLabelValues(event).Inc()
	}
}
