package tasks

// Filter selects tasks from a listing. Unknown keyword values leave the
// corresponding filter unapplied rather than erroring.
type Filter struct {
	Priority   *Priority
	AssignedTo *int64
	AssignedBy *int64

	// IsCompleted carries admin-specific semantics: for admins "completed"
	// means completed with approval requested, and "in progress" includes
	// completed tasks whose approval was never requested.
	IsCompleted *bool

	// ApprovalStatus is one of approved, pending, exclude_approved.
	ApprovalStatus string

	// DueKeyword is one of today, tomorrow, this_week, future, overdue.
	DueKeyword string
}

// Match reports whether the task passes every applied filter for a viewer
// of the given role, with "today" anchored at the supplied date.
func (f Filter) Match(t Task, viewerIsAdmin bool, today Date) bool {
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
		return false
	}
	if f.AssignedBy != nil && (t.AssignedBy == nil || *t.AssignedBy != *f.AssignedBy) {
		return false
	}
	if f.IsCompleted != nil && !matchCompleted(t, *f.IsCompleted, viewerIsAdmin) {
		return false
	}
	if !matchApproval(t, f.ApprovalStatus) {
		return false
	}
	if !matchDue(t.DueDate, f.DueKeyword, today) {
		return false
	}
	return true
}

func matchCompleted(t Task, wantCompleted, viewerIsAdmin bool) bool {
	if !viewerIsAdmin {
		return t.IsCompleted == wantCompleted
	}
	if wantCompleted {
		// Admin "completed" bucket: done and waiting on (or past) approval.
		return t.IsCompleted && t.IsApprovalRequested
	}
	return !t.IsCompleted || !t.IsApprovalRequested
}

func approved(t Task) bool {
	return t.IsCompleted && t.IsApprovalRequested && t.ApprovedBy != nil
}

func matchApproval(t Task, status string) bool {
	switch status {
	case "approved":
		return approved(t)
	case "pending":
		return t.IsCompleted && t.IsApprovalRequested && t.ApprovedBy == nil
	case "exclude_approved":
		return !approved(t)
	default:
		return true
	}
}

func matchDue(due Date, keyword string, today Date) bool {
	switch keyword {
	case "today":
		return due.Equal(today)
	case "tomorrow":
		return due.Equal(today.AddDays(1))
	case "this_week":
		// Monday through Sunday of the current week.
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDays(-offset)
		end := start.AddDays(6)
		return !due.Before(start) && !due.After(end)
	case "future":
		return due.After(today)
	case "overdue":
		return due.Before(today)
	default:
		return true
	}
}
