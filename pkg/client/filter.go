package client

import "strings"

// Filter narrows an already authorized task list. Zero fields match all.
type Filter struct {
	Status   Status
	Priority Priority
	// Query is matched case-insensitively against title and description.
	Query string
}

// FilterTasks is a pure projection; it grants or hides nothing the server
// did not already decide.
func FilterTasks(tasks []Task, f Filter) []Task {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		out = append(out, t)
	}
	return out
}
