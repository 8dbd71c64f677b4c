package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusDone}

// ParseStatus reads user input: the canonical names plus a few aliases. Unknown input
// is reported with ok=false. Stored data is matched exactly, see fromRecords.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to-do", "open":
		return StatusTodo, true
	case "doing", "in-progress", "wip":
		return StatusDoing, true
	case "done", "closed":
		return StatusDone, true
	default:
		return StatusTodo, false
	}
}

func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusDoing || s == StatusDone
}

// Order is the grouping order used by the board and week views.
func (s Status) Order() int {
	switch s {
	case StatusDoing:
		return 1
	case StatusDone:
		return 2
	default:
		return 0
	}
}

func (s Status) DisplayName() string {
	switch s {
	case StatusDoing:
		return "Doing"
	case StatusDone:
		return "Done"
	default:
		return "Todo"
	}
}

func (s Status) Abbrev() string {
	switch s {
	case StatusDoing:
		return "d"
	case StatusDone:
		return "✓"
	default:
		return "o"
	}
}

// Task is a single to-do record. Values handed out by the Store are copies.
type Task struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Status  Status     `json:"status"`
	DueDate *time.Time `json:"dueDate,omitempty"`
	Note    string     `json:"note,omitempty"`
	Tags    []string   `json:"tags,omitempty"`

	// Priority runs from 1 (highest) to 5; 0 means unset.
	Priority   int    `json:"priority,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
}

const (
	MinPriority = 1
	MaxPriority = 5
)

// ValidPriority reports whether p can be stored; 0 clears the priority.
func ValidPriority(p int) bool {
	return p == 0 || (p >= MinPriority && p <= MaxPriority)
}

// ParsePriority accepts 1-5, P1-P5, the named levels and none/clear for 0.
func ParsePriority(s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "none", "clear", "-":
		return 0, nil
	case "urgent", "u":
		return 1, nil
	case "high", "h":
		return 2, nil
	case "normal", "n", "med", "medium":
		return 3, nil
	case "low", "l":
		return 4, nil
	case "someday":
		return 5, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(v, "p"))
	if err != nil || n < MinPriority || n > MaxPriority {
		return 0, fmt.Errorf("%w: priority %q (use 1-5)", ErrInvalid, s)
	}
	return n, nil
}

// PriorityAbbrev renders the priority badge, e.g. "P3"; unset priorities render empty.
func (t *Task) PriorityAbbrev() string {
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return ""
	}
	return "P" + strconv.Itoa(t.Priority)
}

func (t Task) IsDone() bool { return t.Status == StatusDone }

func (t Task) clone() Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	return t
}

func (t *Task) IDShort(n int) string {
	if len(t.ID) <= n {
		return t.ID
	}
	return t.ID[:n]
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.clone()
	}
	return out
}

// lessTitle orders titles case-insensitively.
func lessTitle(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
