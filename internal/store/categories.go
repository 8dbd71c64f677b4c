package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const categoriesFileName = "categories.yaml"

// Category groups tasks. Tasks point at it through Task.CategoryID.
type Category struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

func (s *Store) categoriesPath() string {
	if strings.TrimSpace(s.opts.Path) == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(s.opts.Path), categoriesFileName)
}

func (s *Store) loadCategories() {
	s.categories = nil
	defer s.detachMissingCategoriesLocked()
	path := s.categoriesPath()
	if path == "" {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("path", path).Warn("categories file unreadable; starting empty")
		}
		return
	}
	var f categoryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("categories file unreadable; starting empty")
		return
	}
	seenID := map[string]bool{}
	seenName := map[string]bool{}
	for _, c := range f.Categories {
		c.ID, c.Name = strings.TrimSpace(c.ID), strings.TrimSpace(c.Name)
		key := strings.ToLower(c.Name)
		if c.ID == "" || c.Name == "" || seenID[c.ID] || seenName[key] {
			continue
		}
		seenID[c.ID], seenName[key] = true, true
		s.categories = append(s.categories, c)
	}
}

// detachMissingCategoriesLocked clears task references to categories that no longer
// exist. Only memory changes; the next mutation writes the result.
func (s *Store) detachMissingCategoriesLocked() {
	for i := range s.items {
		if id := s.items[i].CategoryID; id != "" && s.categoryIndexLocked(id) < 0 {
			s.items[i].CategoryID = ""
		}
	}
}

func (s *Store) categoryIndexLocked(id string) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) categoryByNameLocked(name string) int {
	for i, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Store) writeCategoriesLocked() error {
	path := s.categoriesPath()
	if path == "" {
		return nil
	}
	if len(s.categories) == 0 {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	b, err := yaml.Marshal(categoryFile{Categories: s.categories})
	if err != nil {
		return err
	}
	return atomicWriteFile(path, b, 0o644)
}

func (s *Store) persistCategoriesLocked() {
	if !s.persistenceEnabled() {
		return
	}
	if err := s.writeCategoriesLocked(); err != nil {
		s.log.WithError(err).WithField("path", s.categoriesPath()).Error("persist categories failed")
	}
}

// Categories returns the categories ordered by name.
func (s *Store) Categories() []Category {
	s.mu.RLock()
	out := append([]Category(nil), s.categories...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return lessTitle(out[i].Name, out[j].Name) })
	return out
}

// Category resolves an exact id or a case-insensitive name.
func (s *Store) Category(ref string) (Category, bool) {
	ref = strings.TrimSpace(ref)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.categoryIndexLocked(ref); i >= 0 {
		return s.categories[i], true
	}
	if i := s.categoryByNameLocked(ref); i >= 0 {
		return s.categories[i], true
	}
	return Category{}, false
}

// EnsureCategory returns the category called name, creating it when missing.
// created reports whether a new category was stored.
func (s *Store) EnsureCategory(name string) (c Category, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, false, fmt.Errorf("%w: empty category name", ErrInvalid)
	}
	s.mu.Lock()
	if i := s.categoryByNameLocked(name); i >= 0 {
		c = s.categories[i]
		s.mu.Unlock()
		return c, false, nil
	}
	c = Category{ID: uuid.NewString(), Name: name}
	s.categories = append(s.categories, c)
	s.persistCategoriesLocked()
	s.mu.Unlock()
	s.notify(EventCategoryChanged, []string{c.ID})
	return c, true, nil
}

// RemoveCategory deletes a category and detaches every task that used it.
func (s *Store) RemoveCategory(id string) bool {
	s.mu.Lock()
	i := s.categoryIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.categories = append(s.categories[:i:i], s.categories[i+1:]...)
	detached := false
	for j := range s.items {
		if s.items[j].CategoryID == id {
			s.items[j].CategoryID = ""
			detached = true
		}
	}
	s.persistCategoriesLocked()
	if detached {
		s.persistLocked()
	}
	s.mu.Unlock()
	s.notify(EventCategoryChanged, []string{id})
	return true
}

// SetCategory files a task under an existing category; an empty categoryID clears it.
func (s *Store) SetCategory(id, categoryID string) (bool, error) {
	categoryID = strings.TrimSpace(categoryID)
	missing := false
	changed := s.mutate(EventTaskCategory, func() []string {
		if categoryID != "" && s.categoryIndexLocked(categoryID) < 0 {
			missing = true
			return nil
		}
		i := s.indexLocked(id)
		if i < 0 || s.items[i].CategoryID == categoryID {
			return nil
		}
		s.items[i].CategoryID = categoryID
		return []string{id}
	})
	if missing {
		return false, fmt.Errorf("%w: category %s", ErrNotFound, categoryID)
	}
	return changed, nil
}

// TasksInCategory returns the tasks filed under categoryID, titles ascending.
func (s *Store) TasksInCategory(categoryID string) []Task {
	s.mu.RLock()
	var out []Task
	for _, t := range s.items {
		if t.CategoryID == categoryID {
			out = append(out, t.clone())
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return lessTitle(out[i].Title, out[j].Title) })
	return out
}
