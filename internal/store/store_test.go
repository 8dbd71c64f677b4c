package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
	"github.com/amirbrooks/synapse-tasks/internal/graph"
)

// Wednesday 2024-03-06 10:00 UTC
var fixedNow = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

var utcMonday = calendar.Calendar{Location: time.UTC, FirstWeekday: time.Monday}

func freezeClock(t *testing.T) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { timeNow = prev })
}

func openTestStore(t *testing.T, opts Options) (*Store, *logtest.Hook) {
	t.Helper()
	freezeClock(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts.Logger = logger
	if opts.Calendar.Location == nil {
		opts.Calendar = utcMonday
	}
	return Open(opts), hook
}

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readTasksFile(t *testing.T, path string) []Task {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	tasks, err := CodecFor(path).Decode(b)
	require.NoError(t, err)
	return tasks
}

func titles(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func dueOf(t *testing.T, s *Store, id string) time.Time {
	t.Helper()
	task, ok := s.Get(id)
	require.True(t, ok)
	require.NotNil(t, task.DueDate)
	return *task.DueDate
}

func TestForceSeedInstallsDemonstrationSet(t *testing.T) {
	path := tempPath(t, "tasks.json")
	writeFile(t, path, `[{"id":"u1","title":"Mine","status":"doing"}]`)

	s, _ := openTestStore(t, Options{Path: path, ForceSeed: true})

	got := s.Tasks()
	require.Len(t, got, 5)
	assert.Equal(t, []string{SeedIDReview, SeedIDAPI, SeedIDCode, SeedIDMeeting, SeedIDBacklog}, taskIDs(got))
	var statuses []Status
	for _, task := range got {
		statuses = append(statuses, task.Status)
	}
	assert.Equal(t, []Status{StatusTodo, StatusDoing, StatusDone, StatusTodo, StatusDoing}, statuses)

	assert.Equal(t, taskIDs(got), taskIDs(readTasksFile(t, path)), "seeding is persisted")
}

func TestDemoDatesAreRelativeToNow(t *testing.T) {
	s, _ := openTestStore(t, Options{})

	first, ok := s.Get(SeedIDReview)
	require.True(t, ok)
	assert.Nil(t, first.DueDate)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), dueOf(t, s, SeedIDAPI))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), dueOf(t, s, SeedIDCode))
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), dueOf(t, s, SeedIDMeeting))
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), dueOf(t, s, SeedIDBacklog))
}

func TestSeedMergeAppendsOnlyMissingRecords(t *testing.T) {
	path := tempPath(t, "tasks.json")
	writeFile(t, path, `[
  {"id":"`+SeedIDAPI+`","title":"Renamed by user","status":"done"},
  {"id":"mine","title":"Personal errand","status":"todo"},
  {"id":"`+SeedIDReview+`","title":"Review requirements","status":"doing"},
  {"id":"`+SeedIDBacklog+`","title":"Backlog","status":"todo"}
]`)

	s, _ := openTestStore(t, Options{Path: path})

	got := s.Tasks()
	require.Len(t, got, 6)
	assert.Equal(t, []string{SeedIDAPI, "mine", SeedIDReview, SeedIDBacklog, SeedIDCode, SeedIDMeeting}, taskIDs(got))
	assert.Equal(t, "Renamed by user", got[0].Title)
	assert.Equal(t, StatusDone, got[0].Status)
	assert.Nil(t, got[0].DueDate)
	assert.Equal(t, StatusDoing, got[2].Status)
	assert.Equal(t, "Backlog", got[3].Title)

	assert.Len(t, readTasksFile(t, path), 6)
}

func TestCompleteCollectionIsNotRewrittenOnOpen(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})
	require.Equal(t, 5, s.Len())

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	stat, err := os.Stat(path)
	require.NoError(t, err)

	reopened, _ := openTestStore(t, Options{Path: path})
	assert.Equal(t, 5, reopened.Len())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	stat2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stat.ModTime(), stat2.ModTime())
}

func TestAddTrimsAndInsertsAtFront(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})

	task, ok := s.Add("  Buy milk \n")
	require.True(t, ok)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, StatusTodo, task.Status)
	assert.NotEmpty(t, task.ID)

	got := s.Tasks()
	require.Len(t, got, 6)
	assert.Equal(t, task.ID, got[0].ID)

	matches := 0
	for _, other := range got {
		if other.ID == task.ID {
			matches++
		}
	}
	assert.Equal(t, 1, matches)

	second, ok := s.Add("Buy milk")
	require.True(t, ok)
	assert.NotEqual(t, task.ID, second.ID)

	assert.Equal(t, taskIDs(s.Tasks()), taskIDs(readTasksFile(t, path)))
}

func TestAddRejectsBlankTitles(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, title := range []string{"", "   ", "\t\n"} {
		_, ok := s.Add(title)
		assert.False(t, ok)
	}
	assert.Equal(t, 5, s.Len())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToggle(t *testing.T) {
	s, _ := openTestStore(t, Options{})

	// todo -> done -> todo
	require.True(t, s.Toggle(SeedIDReview))
	got, _ := s.Get(SeedIDReview)
	assert.Equal(t, StatusDone, got.Status)
	require.True(t, s.Toggle(SeedIDReview))
	got, _ = s.Get(SeedIDReview)
	assert.Equal(t, StatusTodo, got.Status)

	// done -> todo -> done
	s.Toggle(SeedIDCode)
	s.Toggle(SeedIDCode)
	got, _ = s.Get(SeedIDCode)
	assert.Equal(t, StatusDone, got.Status)

	// doing completes
	s.Toggle(SeedIDAPI)
	got, _ = s.Get(SeedIDAPI)
	assert.Equal(t, StatusDone, got.Status)

	assert.False(t, s.Toggle("nope"))
}

func TestSetStatusAllowsAnyTransition(t *testing.T) {
	s, _ := openTestStore(t, Options{})

	for _, st := range []Status{StatusDone, StatusDoing, StatusTodo, StatusDone} {
		require.True(t, s.SetStatus(SeedIDReview, st))
		got, _ := s.Get(SeedIDReview)
		assert.Equal(t, st, got.Status)
	}
	assert.False(t, s.SetStatus("missing", StatusDone))
	assert.False(t, s.SetStatus(SeedIDReview, Status("blocked")))
}

func TestSetDueDateNoteAndTags(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	due := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	require.True(t, s.SetDueDate(SeedIDReview, &due))
	due = due.AddDate(1, 0, 0) // caller's copy must not leak in
	assert.Equal(t, time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), dueOf(t, s, SeedIDReview))

	require.True(t, s.SetDueDate(SeedIDReview, nil))
	got, _ := s.Get(SeedIDReview)
	assert.Nil(t, got.DueDate)

	require.True(t, s.SetNote(SeedIDReview, "  bring slides "))
	require.True(t, s.SetTags(SeedIDReview, "work", "Urgent", "WORK", " "))
	got, _ = s.Get(SeedIDReview)
	assert.Equal(t, "bring slides", got.Note)
	assert.Equal(t, []string{"Urgent", "work"}, got.Tags)

	assert.False(t, s.SetDueDate("missing", &due))
	assert.False(t, s.SetNote("missing", "x"))
}

func TestReturnedTasksAreCopies(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	got, _ := s.Get(SeedIDAPI)
	*got.DueDate = got.DueDate.AddDate(0, 0, 10)
	got.Title = "changed"

	again, _ := s.Get(SeedIDAPI)
	assert.Equal(t, "Implement API", again.Title)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), *again.DueDate)
}

func TestRemoveUnknownLeavesFileUntouched(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	tasksBefore := s.Tasks()

	assert.Equal(t, 0, s.Remove("not-there"))
	assert.Equal(t, 0, s.RemoveAt(-1, 5, 99))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, tasksBefore, s.Tasks())
}

func TestRemoveByIDAndPosition(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})

	assert.Equal(t, 1, s.Remove(SeedIDCode, "unknown"))
	assert.Equal(t, []string{SeedIDReview, SeedIDAPI, SeedIDMeeting, SeedIDBacklog}, taskIDs(s.Tasks()))

	assert.Equal(t, 2, s.RemoveAt(0, 2, 2, 40))
	assert.Equal(t, []string{SeedIDAPI, SeedIDBacklog}, taskIDs(s.Tasks()))
	assert.Equal(t, []string{SeedIDAPI, SeedIDBacklog}, taskIDs(readTasksFile(t, path)))
}

func TestTasksByStatusSortsCaseInsensitively(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	s.Remove(taskIDs(s.Tasks())...)

	bravo, _ := s.Add("Bravo")
	alpha, _ := s.Add("alpha")
	todo, _ := s.Add("Charlie")
	s.SetStatus(bravo.ID, StatusDoing)
	s.SetStatus(alpha.ID, StatusDoing)

	assert.Equal(t, []string{"alpha", "Bravo"}, titles(s.TasksByStatus(StatusDoing)))
	assert.Equal(t, []string{todo.Title}, titles(s.TasksByStatus(StatusTodo)))
	assert.Empty(t, s.TasksByStatus(StatusDone))
}

func TestTasksOnDateGroupsByStatusThenTitle(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	s.Remove(taskIDs(s.Tasks())...)

	morning := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 6, 23, 30, 0, 0, time.UTC)
	next := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	add := func(title string, st Status, due time.Time) {
		task, ok := s.Add(title)
		require.True(t, ok)
		s.SetStatus(task.ID, st)
		s.SetDueDate(task.ID, &due)
	}
	add("zulu", StatusTodo, morning)
	add("Echo", StatusDone, evening)
	add("alpha", StatusDoing, morning)
	add("Bravo", StatusTodo, evening)
	add("tomorrow", StatusTodo, next)
	s.Add("unscheduled")

	got := s.TasksOnDate(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), utcMonday)
	assert.Equal(t, []string{"Bravo", "zulu", "alpha", "Echo"}, titles(got))

	// 23:30 UTC on the 6th is already the 7th in Tokyo.
	tokyo := calendar.Calendar{Location: time.FixedZone("JST", 9*3600), FirstWeekday: time.Monday}
	got = s.TasksOnDate(time.Date(2024, 3, 7, 12, 0, 0, 0, tokyo.Location), tokyo)
	assert.Equal(t, []string{"Bravo", "tomorrow", "Echo"}, titles(got))
}

func TestWeekBucketsFollowFirstWeekday(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	sunday := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	task, _ := s.Add("Sunday chores")
	s.SetDueDate(task.ID, &sunday)

	monFirst := s.Week(fixedNow, utcMonday)
	require.Len(t, monFirst, 7)
	assert.Equal(t, time.Monday, monFirst[0].Date.Weekday())
	assert.Equal(t, []string{"Sunday chores"}, titles(monFirst[6].Tasks))
	assert.Equal(t, []string{"Implement API"}, titles(monFirst[2].Tasks))

	sunFirst := s.Week(fixedNow, calendar.Calendar{Location: time.UTC, FirstWeekday: time.Sunday})
	assert.Equal(t, time.Sunday, sunFirst[0].Date.Weekday())
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), sunFirst[0].Date)
	for _, d := range sunFirst {
		assert.NotContains(t, titles(d.Tasks), "Sunday chores")
	}
}

func TestDisabledPersistenceNeverWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	s, _ := openTestStore(t, Options{Path: path, DisablePersistence: true, ForceSeed: true})
	s.Add("ephemeral")
	_, err := s.Connect(SeedIDAPI, SeedIDCode, graph.KindRelated)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDisabledPersistenceStillReads(t *testing.T) {
	path := tempPath(t, "tasks.json")
	writeFile(t, path, `[{"id":"keep","title":"Existing","status":"doing"}]`)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	s, _ := openTestStore(t, Options{Path: path, DisablePersistence: true})
	got, ok := s.Get("keep")
	require.True(t, ok)
	assert.Equal(t, StatusDoing, got.Status)
	assert.Equal(t, 6, s.Len())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCorruptFileRecoversEmptyAndKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	writeFile(t, path, `{"this is": not json`)

	s, hook := openTestStore(t, Options{Path: path})
	assert.Equal(t, 5, s.Len(), "empty collection gets the demonstration set")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "unreadable") {
			warned = true
		}
	}
	assert.True(t, warned)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, `{"this is": not json`, string(b))
}

func TestWriteFailureIsLoggedAndMemoryStaysAuthoritative(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "not a directory")
	path := filepath.Join(blocker, "tasks.json")

	s, hook := openTestStore(t, Options{Path: path})
	hook.Reset()

	task, ok := s.Add("still works")
	require.True(t, ok)
	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, "still works", got.Title)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "persist tasks failed", last.Message)
	assert.Error(t, s.Flush())
}

func TestObserversReceiveChangeEvents(t *testing.T) {
	s, _ := openTestStore(t, Options{})

	var seen []cloudevents.Event
	var lenDuringCallback int
	require.NoError(t, s.RegisterObserver(ObserverFunc("view", func(_ context.Context, e cloudevents.Event) error {
		seen = append(seen, e)
		lenDuringCallback = s.Len()
		return nil
	})))

	task, _ := s.Add("observed")
	s.Toggle("missing")
	s.SetStatus(task.ID, StatusDoing)
	s.Remove(task.ID)

	require.Len(t, seen, 3)
	assert.Equal(t, EventTaskAdded, seen[0].Type())
	assert.Equal(t, EventTaskStatus, seen[1].Type())
	assert.Equal(t, EventTaskRemoved, seen[2].Type())
	assert.Equal(t, EventSource, seen[0].Source())
	assert.NotEqual(t, seen[0].ID(), seen[1].ID())
	assert.Equal(t, 5, lenDuringCallback)

	var data ChangeData
	require.NoError(t, seen[0].DataAs(&data))
	assert.Equal(t, []string{task.ID}, data.IDs)
}

func TestObserverFilteringAndUnregister(t *testing.T) {
	s, hook := openTestStore(t, Options{})

	var removals int
	obs := ObserverFunc("removals", func(context.Context, cloudevents.Event) error {
		removals++
		return assert.AnError
	})
	require.NoError(t, s.RegisterObserver(obs, EventTaskRemoved))

	s.Add("ignored")
	s.Remove(SeedIDCode)
	assert.Equal(t, 1, removals)
	assert.Equal(t, "observer failed", hook.LastEntry().Message)

	require.NoError(t, s.UnregisterObserver(obs))
	require.NoError(t, s.UnregisterObserver(obs))
	s.Remove(SeedIDAPI)
	assert.Equal(t, 1, removals)

	assert.Error(t, s.RegisterObserver(ObserverFunc("", nil)))
}

func TestFindAndResolve(t *testing.T) {
	s, _ := openTestStore(t, Options{})

	got, err := s.Find("3333")
	require.NoError(t, err)
	assert.Equal(t, SeedIDCode, got.ID)

	_, err = s.Find("zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	s.Remove(SeedIDAPI)
	a, _ := s.Add("one")
	b, _ := s.Add("two")
	prefix := commonPrefix(a.ID, b.ID)
	if prefix != "" {
		_, err = s.Find(prefix)
		assert.ErrorIs(t, err, ErrConflict)
	}

	got, err = s.Resolve("#1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	_, err = s.Resolve("#99")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Resolve("#x")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Find("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAmbiguousPrefixReportsMatches(t *testing.T) {
	path := tempPath(t, "tasks.json")
	writeFile(t, path, `[{"id":"abc-1","title":"one"},{"id":"abc-2","title":"two"}]`)
	s, _ := openTestStore(t, Options{Path: path})

	_, err := s.Find("ABC")
	require.ErrorIs(t, err, ErrConflict)
	var conflict *MatchConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Len(t, conflict.Matches, 2)
}

func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return a[:n]
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})

	var reloaded int
	require.NoError(t, s.RegisterObserver(ObserverFunc("r", func(context.Context, cloudevents.Event) error {
		reloaded++
		return nil
	}), EventStoreReload))

	writeFile(t, path, `[{"id":"x","title":"from elsewhere","isDone":true}]`)
	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"from elsewhere"}, titles(s.Tasks()))
	assert.Equal(t, 1, reloaded)

	writeFile(t, path, `garbage`)
	assert.Error(t, s.Reload())
	assert.Equal(t, []string{"from elsewhere"}, titles(s.Tasks()))
}

func TestGraphConnectionsArePrunedWithTasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})

	_, err := s.Connect(SeedIDAPI, "missing", graph.KindRelated)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Connect(SeedIDAPI, SeedIDAPI, graph.KindRelated)
	assert.ErrorIs(t, err, ErrInvalid)

	changed, err := s.Connect(SeedIDAPI, SeedIDCode, graph.KindDependsOn)
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = s.Connect(SeedIDMeeting, SeedIDAPI, graph.KindRelated)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, graphFileName))

	assert.True(t, s.Lock(SeedIDAPI, true))
	assert.False(t, s.Move(SeedIDAPI, 10, 10))
	assert.True(t, s.Move(SeedIDCode, 10, 10))

	s.Remove(SeedIDCode)
	g := s.Graph()
	assert.Equal(t, []graph.Edge{{From: SeedIDMeeting, To: SeedIDAPI, Kind: graph.KindRelated}}, g.Edges)
	assert.NotContains(t, g.Nodes, SeedIDCode)

	reopened, _ := openTestStore(t, Options{Path: path})
	rg := reopened.Graph()
	assert.Equal(t, g.Edges, rg.Edges)
	assert.True(t, rg.Nodes[SeedIDAPI].Locked)
}

func TestCloseNeverWrites(t *testing.T) {
	path := tempPath(t, "tasks.json")
	writer, _ := openTestStore(t, Options{Path: path})
	reader, _ := openTestStore(t, Options{Path: path})

	added, ok := writer.Add("from the writer")
	require.True(t, ok)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, reader.Close())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	reopened, _ := openTestStore(t, Options{Path: path})
	_, ok = reopened.Get(added.ID)
	assert.True(t, ok)
}

func TestZeroCalendarUsesDefault(t *testing.T) {
	freezeClock(t)
	logger, _ := logtest.NewNullLogger()
	s := Open(Options{Logger: logger})
	assert.Equal(t, calendar.Default(), s.Calendar())
	assert.Equal(t, time.Monday, s.Calendar().FirstWeekday)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	s = Open(Options{Logger: logger, Calendar: calendar.Calendar{FirstWeekday: time.Sunday, Location: tokyo}})
	assert.Equal(t, time.Sunday, s.Calendar().FirstWeekday)
}

func TestChangeEventDataErrorsAreReported(t *testing.T) {
	freezeClock(t)
	event, err := newChangeEvent(EventTaskAdded, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EventTaskAdded)
	assert.Equal(t, EventTaskAdded, event.Type())
	assert.Equal(t, EventSource, event.Source())

	event, err = newChangeEvent(EventTaskTags, ChangeData{IDs: []string{"a", "b"}})
	require.NoError(t, err)
	var data ChangeData
	require.NoError(t, event.DataAs(&data))
	assert.Equal(t, []string{"a", "b"}, data.IDs)
}

func TestSetPriorityValidatesRange(t *testing.T) {
	path := tempPath(t, "tasks.json")
	s, _ := openTestStore(t, Options{Path: path})

	assert.True(t, s.SetPriority(SeedIDAPI, 1))
	assert.False(t, s.SetPriority(SeedIDAPI, 6))
	assert.False(t, s.SetPriority(SeedIDAPI, -1))
	assert.False(t, s.SetPriority("missing", 2))
	got, _ := s.Get(SeedIDAPI)
	assert.Equal(t, 1, got.Priority)
	assert.Equal(t, "P1", got.PriorityAbbrev())

	reopened, _ := openTestStore(t, Options{Path: path})
	got, _ = reopened.Get(SeedIDAPI)
	assert.Equal(t, 1, got.Priority)

	assert.True(t, reopened.SetPriority(SeedIDAPI, 0))
	got, _ = reopened.Get(SeedIDAPI)
	assert.Zero(t, got.Priority)
	assert.Empty(t, got.PriorityAbbrev())
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]int{"1": 1, "P3": 3, " p5 ": 5, "high": 2, "none": 0, "": 0} {
		got, err := ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0", "6", "-2", "P9", "soon"} {
		_, err := ParsePriority(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}
}
