package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
	"github.com/amirbrooks/synapse-tasks/internal/graph"
	"github.com/amirbrooks/synapse-tasks/internal/store"
)

const dateLayout = "2006-01-02"

func taskTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "(untitled)"
	}
	return title
}

func truncate(s string, n int, ascii bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	if ascii {
		return string(r[:n-2]) + ".."
	}
	return string(r[:n-1]) + "…"
}

// dueLabel shows the due day as seen from the configured calendar.
func dueLabel(t store.Task, cal calendar.Calendar) string {
	if t.DueDate == nil {
		return "-"
	}
	return cal.In(*t.DueDate).Format(dateLayout)
}

func priorityLabel(abbrev string) string {
	abbrev = strings.TrimSpace(abbrev)
	if abbrev == "" {
		return ""
	}
	return "[" + abbrev + "] "
}

func priorityColumn(t store.Task) string {
	if p := t.PriorityAbbrev(); p != "" {
		return p
	}
	return "-"
}

func formatDueSuffix(t store.Task, cal calendar.Calendar, includeDue bool) string {
	if !includeDue || t.DueDate == nil {
		return ""
	}
	return fmt.Sprintf(" (due %s)", dueLabel(t, cal))
}

func formatTaskLine(t store.Task, cal calendar.Calendar, includeDue bool) string {
	return fmt.Sprintf("  - [%s] %s%s%s\n", t.Status.Abbrev(), priorityLabel(t.PriorityAbbrev()), taskTitle(t.Title), formatDueSuffix(t, cal, includeDue))
}

func writeTaskSection(b *strings.Builder, title string, tasks []store.Task, cal calendar.Calendar, includeDue bool) {
	b.WriteString(title + "\n")
	if len(tasks) == 0 {
		b.WriteString("  (no tasks)\n")
		return
	}
	for _, t := range tasks {
		b.WriteString(formatTaskLine(t, cal, includeDue))
	}
}

// renderHuman prints one task. category is the resolved category name, if any.
func renderHuman(t store.Task, g graph.Graph, cal calendar.Calendar, category string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n", taskTitle(t.Title)))
	b.WriteString(fmt.Sprintf("ID: %s\n", t.ID))
	b.WriteString(fmt.Sprintf("Status: %s\n", t.Status.DisplayName()))
	if p := t.PriorityAbbrev(); p != "" {
		b.WriteString(fmt.Sprintf("Priority: %s\n", p))
	}
	if category != "" {
		b.WriteString(fmt.Sprintf("Category: %s\n", category))
	}
	if t.DueDate != nil {
		b.WriteString(fmt.Sprintf("Due: %s\n", dueLabel(t, cal)))
	}
	if len(t.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(t.Tags, ", ")))
	}
	for _, e := range g.EdgesOf(t.ID) {
		other := e.To
		if other == t.ID {
			other = e.From
		}
		b.WriteString(fmt.Sprintf("Link: %s %s\n", e.Kind, other))
	}
	if strings.TrimSpace(t.Note) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(t.Note, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderBoard lists every status column, including empty ones.
func renderBoard(st *store.Store, cal calendar.Calendar, ascii bool) string {
	if st.Len() == 0 {
		return "Board is empty. Add a task to get started.\n"
	}
	var b strings.Builder
	for i, status := range store.Statuses {
		if i > 0 {
			b.WriteString("\n")
		}
		tasks := st.TasksByStatus(status)
		b.WriteString(fmt.Sprintf("%s (%d)\n", status.DisplayName(), len(tasks)))
		if len(tasks) == 0 {
			b.WriteString("  (no tasks)\n")
			continue
		}
		for _, t := range tasks {
			title := truncate(taskTitle(t.Title), 80, ascii)
			b.WriteString(fmt.Sprintf("  - %s%s%s\n", priorityLabel(t.PriorityAbbrev()), title, formatDueSuffix(t, cal, true)))
		}
	}
	return b.String()
}

// renderWeek prints the day strip for selected's week followed by the
// selected day's tasks.
func renderWeek(st *store.Store, cal calendar.Calendar, selected time.Time) string {
	days := st.Week(selected, cal)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Week %s -> %s\n", days[0].Date.Format(dateLayout), days[len(days)-1].Date.Format(dateLayout)))
	var picked store.Day
	for _, d := range days {
		marker := "  "
		if cal.SameDay(d.Date, selected) {
			marker = "> "
			picked = d
		}
		count := "-"
		if n := len(d.Tasks); n == 1 {
			count = "1 task"
		} else if n > 1 {
			count = fmt.Sprintf("%d tasks", n)
		}
		b.WriteString(fmt.Sprintf("%s%s %s  %s\n", marker, d.Date.Weekday().String()[:3], d.Date.Format("01-02"), count))
	}
	b.WriteString("\n")
	header := fmt.Sprintf("%s %s", picked.Date.Weekday(), picked.Date.Format(dateLayout))
	if len(picked.Tasks) == 0 {
		b.WriteString(header + "\n  No tasks due this day.\n")
	} else {
		writeTaskSection(&b, header, picked.Tasks, cal, false)
	}
	if open := st.Unscheduled(); len(open) > 0 {
		b.WriteString("\n")
		writeTaskSection(&b, fmt.Sprintf("Unscheduled (%d)", len(open)), open, cal, false)
	}
	return b.String()
}

func renderGraph(tasks []store.Task, g graph.Graph) string {
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = taskTitle(t.Title)
	}
	label := func(id string) string {
		if title, ok := titles[id]; ok {
			return title
		}
		return id
	}

	var b strings.Builder
	if len(g.Edges) == 0 {
		b.WriteString("(no links)\n")
	} else {
		b.WriteString("Links\n")
		for _, e := range g.Edges {
			b.WriteString(fmt.Sprintf("  %s -[%s]-> %s\n", label(e.From), e.Kind, label(e.To)))
		}
	}
	if len(g.Nodes) == 0 {
		return b.String()
	}
	b.WriteString("\nNodes\n")
	for _, t := range tasks {
		n, ok := g.Nodes[t.ID]
		if !ok {
			continue
		}
		lock := ""
		if n.Locked {
			lock = " (locked)"
		}
		b.WriteString(fmt.Sprintf("  %s @ %.0f,%.0f%s\n", label(t.ID), n.X, n.Y, lock))
	}
	return b.String()
}
