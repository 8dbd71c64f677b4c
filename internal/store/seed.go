package store

import (
	"time"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
)

// Demonstration ids are fixed so capture runs and tests always see the same records.
const (
	SeedIDReview  = "11111111-1111-1111-1111-111111111111"
	SeedIDAPI     = "22222222-2222-2222-2222-222222222222"
	SeedIDCode    = "33333333-3333-3333-3333-333333333333"
	SeedIDMeeting = "44444444-4444-4444-4444-444444444444"
	SeedIDBacklog = "55555555-5555-5555-5555-555555555555"
)

// DemoTasks builds the demonstration set relative to now: unscheduled, today,
// yesterday, the next Friday after today, and three days out.
func DemoTasks(now time.Time, cal calendar.Calendar) []Task {
	today := cal.StartOfDay(now)
	yesterday := cal.AddDays(today, -1)
	friday := cal.NextWeekday(today, time.Friday)
	planning := cal.AddDays(today, 3)

	return []Task{
		{ID: SeedIDReview, Title: "Review requirements", Status: StatusTodo},
		{ID: SeedIDAPI, Title: "Implement API", Status: StatusDoing, DueDate: &today},
		{ID: SeedIDCode, Title: "Code review", Status: StatusDone, DueDate: &yesterday},
		{ID: SeedIDMeeting, Title: "Weekly meeting", Status: StatusTodo, DueDate: &friday},
		{ID: SeedIDBacklog, Title: "Groom backlog", Status: StatusDoing, DueDate: &planning},
	}
}

// reconcileSeed applies the demonstration set to existing. force replaces everything;
// an empty collection gets the full set; otherwise only missing ids are appended.
// The returned ids are the records that were installed.
func reconcileSeed(existing, demo []Task, force bool) ([]Task, []string) {
	if force || len(existing) == 0 {
		return demo, taskIDs(demo)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.ID] = true
	}
	out := existing
	var added []string
	for _, t := range demo {
		if have[t.ID] {
			continue
		}
		out = append(out, t)
		added = append(added, t.ID)
	}
	return out, added
}

func taskIDs(tasks []Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
