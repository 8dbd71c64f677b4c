package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amirbrooks/synapse-tasks/internal/calendar"
	"github.com/amirbrooks/synapse-tasks/internal/graph"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = time.Now
)

// MatchConflictError provides details when a selector matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Options struct {
	// Path of the task file. Empty keeps the store purely in memory.
	Path string
	// DisablePersistence suppresses every write; the file is still read.
	DisablePersistence bool
	// ForceSeed replaces the loaded collection with the demonstration set.
	ForceSeed bool
	Calendar  calendar.Calendar
	Logger    logrus.FieldLogger
	// Codec defaults to CodecFor(Path).
	Codec Codec
}

// Store owns the task collection. Views and commands read copies and route every
// change through its methods.
type Store struct {
	mu         sync.RWMutex
	opts       Options
	log        logrus.FieldLogger
	codec      Codec
	items      []Task
	graph      graph.Graph
	categories []Category
	observers  []registration
}

// Open loads the task file, reconciles the demonstration set and persists the result
// when seeding changed anything. Load problems are logged and never fatal.
func Open(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	switch {
	case opts.Calendar == (calendar.Calendar{}):
		opts.Calendar = calendar.Default()
	case opts.Calendar.Location == nil:
		opts.Calendar.Location = time.Local
	}
	if opts.Codec == nil {
		opts.Codec = CodecFor(opts.Path)
	}
	s := &Store{
		opts:  opts,
		log:   opts.Logger.WithField("component", "store"),
		codec: opts.Codec,
	}

	items, err := s.readFile()
	switch {
	case err == nil:
		s.items = items
	case errors.Is(err, fs.ErrNotExist):
		s.log.WithField("path", opts.Path).Debug("no task file yet; starting empty")
	default:
		s.log.WithError(err).WithField("path", opts.Path).Warn("task file unreadable; starting empty")
		s.quarantine()
	}
	s.loadGraph()
	s.loadCategories()

	demo := DemoTasks(timeNow(), opts.Calendar)
	var seeded []string
	s.items, seeded = reconcileSeed(s.items, demo, opts.ForceSeed)
	if len(seeded) > 0 {
		s.log.WithField("count", len(seeded)).WithField("forced", opts.ForceSeed).Debug("installed demonstration tasks")
		s.pruneGraphLocked()
		s.persistLocked()
		s.persistGraphLocked()
	}
	return s
}

func (s *Store) persistenceEnabled() bool {
	return !s.opts.DisablePersistence && strings.TrimSpace(s.opts.Path) != ""
}

func (s *Store) Path() string { return s.opts.Path }

func (s *Store) Calendar() calendar.Calendar { return s.opts.Calendar }

func (s *Store) readFile() ([]Task, error) {
	if strings.TrimSpace(s.opts.Path) == "" {
		return nil, fs.ErrNotExist
	}
	b, err := os.ReadFile(s.opts.Path)
	if err != nil {
		return nil, err
	}
	tasks, err := s.codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(s.opts.Path), err)
	}
	return s.sanitize(tasks), nil
}

// sanitize drops records that would break id uniqueness.
func (s *Store) sanitize(tasks []Task) []Task {
	seen := make(map[string]bool, len(tasks))
	out := tasks[:0]
	dropped := 0
	for _, t := range tasks {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" || seen[t.ID] {
			dropped++
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	if dropped > 0 {
		s.log.WithField("dropped", dropped).Warn("skipped task records with missing or duplicate ids")
	}
	return out
}

// quarantine moves an unreadable task file aside so the next write does not destroy it.
func (s *Store) quarantine() {
	if !s.persistenceEnabled() {
		return
	}
	dst := fmt.Sprintf("%s.corrupt-%d", s.opts.Path, timeNow().Unix())
	if err := os.Rename(s.opts.Path, dst); err != nil {
		s.log.WithError(err).Warn("could not move unreadable task file aside")
		return
	}
	s.log.WithField("backup", dst).Warn("moved unreadable task file aside")
}

// persistLocked rewrites the whole collection. Failures are logged; memory stays
// authoritative until the next mutation tries again.
func (s *Store) persistLocked() {
	if !s.persistenceEnabled() {
		return
	}
	if err := s.writeLocked(); err != nil {
		s.log.WithError(err).WithField("path", s.opts.Path).Error("persist tasks failed")
	}
}

func (s *Store) writeLocked() error {
	b, err := s.codec.Encode(s.items)
	if err != nil {
		return err
	}
	return atomicWriteFile(s.opts.Path, b, 0o644)
}

// Flush writes the current collection now and reports the outcome.
func (s *Store) Flush() error {
	if !s.persistenceEnabled() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.writeLocked(); err != nil {
		return err
	}
	if err := s.writeGraphLocked(); err != nil {
		return err
	}
	return s.writeCategoriesLocked()
}

// Close drops all observers. It never writes; mutations persist as they happen.
func (s *Store) Close() error {
	s.mu.Lock()
	s.observers = nil
	s.mu.Unlock()
	return nil
}

// Reload replaces the collection with the file contents without seeding. On a read
// error the current collection is kept.
func (s *Store) Reload() error {
	items, err := s.readFile()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = items
	s.loadGraph()
	s.loadCategories()
	s.mu.Unlock()
	s.notify(EventStoreReload, taskIDs(items))
	return nil
}

// mutate runs fn under the write lock. fn returns the ids it touched; when it touched
// nothing the store neither writes nor notifies.
func (s *Store) mutate(eventType string, fn func() []string) bool {
	s.mu.Lock()
	ids := fn()
	if len(ids) == 0 {
		s.mu.Unlock()
		return false
	}
	s.persistLocked()
	s.mu.Unlock()
	s.notify(eventType, ids)
	return true
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// update applies fn to the task with id, if present.
func (s *Store) update(eventType, id string, fn func(t *Task)) bool {
	return s.mutate(eventType, func() []string {
		i := s.indexLocked(id)
		if i < 0 {
			return nil
		}
		fn(&s.items[i])
		return []string{id}
	})
}

// Add inserts a new todo task at the front. Blank titles are ignored.
func (s *Store) Add(title string) (Task, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, false
	}
	t := Task{ID: uuid.NewString(), Title: title, Status: StatusTodo}
	s.mutate(EventTaskAdded, func() []string {
		s.items = append([]Task{t}, s.items...)
		return []string{t.ID}
	})
	return t.clone(), true
}

// Toggle flips done to todo and anything else to done.
func (s *Store) Toggle(id string) bool {
	return s.update(EventTaskToggled, id, func(t *Task) {
		if t.Status == StatusDone {
			t.Status = StatusTodo
		} else {
			t.Status = StatusDone
		}
	})
}

func (s *Store) SetStatus(id string, status Status) bool {
	if !status.Valid() {
		return false
	}
	return s.update(EventTaskStatus, id, func(t *Task) { t.Status = status })
}

// SetDueDate overwrites the due date; nil clears it.
func (s *Store) SetDueDate(id string, due *time.Time) bool {
	var d *time.Time
	if due != nil {
		v := *due
		d = &v
	}
	return s.update(EventTaskDue, id, func(t *Task) { t.DueDate = d })
}

func (s *Store) SetNote(id, note string) bool {
	note = strings.TrimSpace(note)
	return s.update(EventTaskNote, id, func(t *Task) { t.Note = note })
}

func (s *Store) SetTags(id string, tags ...string) bool {
	tags = dedupeStrings(tags)
	return s.update(EventTaskTags, id, func(t *Task) { t.Tags = tags })
}

// SetPriority accepts 1..5, or 0 to clear. Anything else is rejected.
func (s *Store) SetPriority(id string, priority int) bool {
	if !ValidPriority(priority) {
		return false
	}
	return s.update(EventTaskPriority, id, func(t *Task) { t.Priority = priority })
}

// RemoveAt deletes the tasks at the given positions of the stored order.
// Out-of-range positions are ignored. It returns how many tasks were removed.
func (s *Store) RemoveAt(positions ...int) int {
	var removed []string
	s.mutate(EventTaskRemoved, func() []string {
		drop := map[int]bool{}
		for _, p := range positions {
			if p >= 0 && p < len(s.items) {
				drop[p] = true
			}
		}
		removed = s.removeLocked(func(i int, _ Task) bool { return drop[i] })
		return removed
	})
	return len(removed)
}

// Remove deletes the tasks with the given ids. Unknown ids are ignored.
func (s *Store) Remove(ids ...string) int {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var removed []string
	s.mutate(EventTaskRemoved, func() []string {
		removed = s.removeLocked(func(_ int, t Task) bool { return want[t.ID] })
		return removed
	})
	return len(removed)
}

func (s *Store) removeLocked(match func(i int, t Task) bool) []string {
	var removed []string
	kept := make([]Task, 0, len(s.items))
	for i, t := range s.items {
		if match(i, t) {
			removed = append(removed, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	if len(removed) == 0 {
		return nil
	}
	s.items = kept
	if s.pruneGraphLocked() {
		s.persistGraphLocked()
	}
	return removed
}

// Tasks returns a copy of the collection in stored order.
func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.items)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i].clone(), true
	}
	return Task{}, false
}

// Find resolves an exact id or a unique, case-insensitive id prefix.
func (s *Store) Find(prefix string) (Task, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return Task{}, fmt.Errorf("%w: empty task id", ErrInvalid)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []Task
	for _, t := range s.items {
		id := strings.ToLower(t.ID)
		if id == prefix {
			return t.clone(), nil
		}
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, t.clone())
		}
	}
	switch len(matches) {
	case 0:
		return Task{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return Task{}, &MatchConflictError{Reason: "prefix", Matches: matches}
	}
}

// Resolve accepts "#n" (1-based position in stored order) or an id prefix.
func (s *Store) Resolve(selector string) (Task, error) {
	selector = strings.TrimSpace(selector)
	if strings.HasPrefix(selector, "#") {
		n, err := strconv.Atoi(selector[1:])
		if err != nil {
			return Task{}, fmt.Errorf("%w: bad position %q", ErrInvalid, selector)
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		if n < 1 || n > len(s.items) {
			return Task{}, ErrNotFound
		}
		return s.items[n-1].clone(), nil
	}
	return s.Find(selector)
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
