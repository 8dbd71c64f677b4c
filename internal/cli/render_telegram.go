package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
	"github.com/amirbrooks/synapse-tasks/internal/store"
)

const telegramMaxChars = 3800

func isTelegramFormat(format string) bool {
	return strings.ToLower(strings.TrimSpace(format)) == "telegram"
}

func trimTelegramOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= telegramMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	suffixRunes := []rune(suffix)
	limit := telegramMaxChars - len(suffixRunes)
	if limit < 1 {
		return string(runes[:telegramMaxChars])
	}
	return string(runes[:limit]) + suffix
}

func telegramStatusEmoji(s store.Status) string {
	switch s {
	case store.StatusTodo:
		return "📝"
	case store.StatusDoing:
		return "🔨"
	case store.StatusDone:
		return "✅"
	default:
		return ""
	}
}

func telegramStatusLabel(s store.Status) string {
	return telegramStatusEmoji(s) + " " + s.DisplayName()
}

func cleanTaskTitle(title string) string {
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, "\r", " ")
	return taskTitle(title)
}

func formatDueShort(due *time.Time, cal calendar.Calendar) string {
	if due == nil {
		return ""
	}
	d := cal.In(*due)
	if d.Year() == cal.In(timeNow()).Year() {
		return d.Format("Jan 02")
	}
	return d.Format("Jan 02 2006")
}

func telegramTaskLine(t store.Task, cal calendar.Calendar, withStatus, includeDue bool) string {
	var b strings.Builder
	b.WriteString("• ")
	if withStatus {
		b.WriteString(telegramStatusEmoji(t.Status))
		b.WriteString(" ")
	}
	b.WriteString(priorityLabel(t.PriorityAbbrev()))
	b.WriteString(cleanTaskTitle(t.Title))
	if includeDue {
		if due := formatDueShort(t.DueDate, cal); due != "" {
			b.WriteString(" (due ")
			b.WriteString(due)
			b.WriteString(")")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func renderTelegramList(tasks []store.Task, cal calendar.Calendar) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 Tasks (%d)\n\n", len(tasks)))
	if len(tasks) == 0 {
		b.WriteString("No tasks.\n")
	}
	for _, t := range tasks {
		b.WriteString(telegramTaskLine(t, cal, true, true))
	}
	return trimTelegramOutput(b.String())
}

func renderTelegramBoard(st *store.Store, cal calendar.Calendar) string {
	var b strings.Builder
	b.WriteString("📋 Board\n\n")
	wrote := false
	for _, status := range store.Statuses {
		tasks := st.TasksByStatus(status)
		if len(tasks) == 0 {
			continue
		}
		wrote = true
		b.WriteString(fmt.Sprintf("%s (%d)\n", telegramStatusLabel(status), len(tasks)))
		for _, t := range tasks {
			b.WriteString(telegramTaskLine(t, cal, false, true))
		}
		b.WriteString("\n")
	}
	if !wrote {
		b.WriteString("No tasks.\n")
	}
	return trimTelegramOutput(b.String())
}

func renderTelegramWeek(st *store.Store, cal calendar.Calendar, selected time.Time) string {
	days := st.Week(selected, cal)
	total := 0
	for _, d := range days {
		total += len(d.Tasks)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 Week — %s → %s (due %d)\n\n",
		days[0].Date.Format(dateLayout), days[len(days)-1].Date.Format(dateLayout), total))
	for _, d := range days {
		if len(d.Tasks) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("📆 %s (%s)\n", d.Date.Format(dateLayout), d.Date.Weekday().String()[:3]))
		for _, t := range d.Tasks {
			b.WriteString(telegramTaskLine(t, cal, true, false))
		}
		b.WriteString("\n")
	}
	if total == 0 {
		b.WriteString("No tasks due this week.\n")
	}
	return trimTelegramOutput(b.String())
}
