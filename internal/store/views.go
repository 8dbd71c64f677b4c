package store

import (
	"sort"
	"time"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
)

// TasksByStatus returns the tasks in one board column, titles ascending
// case-insensitively.
func (s *Store) TasksByStatus(status Status) []Task {
	s.mu.RLock()
	var out []Task
	for _, t := range s.items {
		if t.Status == status {
			out = append(out, t.clone())
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return lessTitle(out[i].Title, out[j].Title) })
	return out
}

// TasksOnDate returns the tasks due on date's calendar day, grouped by status order
// and then by title.
func (s *Store) TasksOnDate(date time.Time, cal calendar.Calendar) []Task {
	s.mu.RLock()
	var out []Task
	for _, t := range s.items {
		if t.DueDate != nil && cal.SameDay(*t.DueDate, date) {
			out = append(out, t.clone())
		}
	}
	s.mu.RUnlock()
	sortByStatusThenTitle(out)
	return out
}

func sortByStatusThenTitle(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return tasks[i].Status.Order() < tasks[j].Status.Order()
		}
		return lessTitle(tasks[i].Title, tasks[j].Title)
	})
}

// Day is one column of the week view.
type Day struct {
	Date  time.Time
	Tasks []Task
}

// Week buckets the tasks due in the week containing date.
func (s *Store) Week(date time.Time, cal calendar.Calendar) []Day {
	days := cal.WeekOf(date)
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = Day{Date: d, Tasks: s.TasksOnDate(d, cal)}
	}
	return out
}

// Unscheduled returns tasks without a due date in stored order.
func (s *Store) Unscheduled() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.items {
		if t.DueDate == nil {
			out = append(out, t.clone())
		}
	}
	return out
}
