package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/synapse-tasks/internal/graph"
)

const graphFileName = "graph.yaml"

func (s *Store) graphPath() string {
	if strings.TrimSpace(s.opts.Path) == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(s.opts.Path), graphFileName)
}

func (s *Store) loadGraph() {
	s.graph = graph.Graph{}
	path := s.graphPath()
	if path == "" {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("path", path).Warn("graph file unreadable; starting empty")
		}
		return
	}
	var g graph.Graph
	if err := yaml.Unmarshal(b, &g); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("graph file unreadable; starting empty")
		return
	}
	s.graph = g
	s.pruneGraphLocked()
}

func (s *Store) pruneGraphLocked() bool {
	live := make(map[string]bool, len(s.items))
	for _, t := range s.items {
		live[t.ID] = true
	}
	return s.graph.Prune(live)
}

func (s *Store) writeGraphLocked() error {
	path := s.graphPath()
	if path == "" {
		return nil
	}
	if len(s.graph.Nodes) == 0 && len(s.graph.Edges) == 0 {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	b, err := yaml.Marshal(&s.graph)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, b, 0o644)
}

func (s *Store) persistGraphLocked() {
	if !s.persistenceEnabled() {
		return
	}
	if err := s.writeGraphLocked(); err != nil {
		s.log.WithError(err).WithField("path", s.graphPath()).Error("persist graph failed")
	}
}

// mutateGraph is mutate for the task graph: fn reports the touched ids.
func (s *Store) mutateGraph(fn func() ([]string, error)) (bool, error) {
	s.mu.Lock()
	ids, err := fn()
	if err != nil || len(ids) == 0 {
		s.mu.Unlock()
		return false, err
	}
	s.persistGraphLocked()
	s.mu.Unlock()
	s.notify(EventGraphChanged, ids)
	return true, nil
}

// Connect links two existing tasks.
func (s *Store) Connect(from, to string, kind graph.Kind) (bool, error) {
	return s.mutateGraph(func() ([]string, error) {
		for _, id := range []string{from, to} {
			if s.indexLocked(id) < 0 {
				return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
			}
		}
		changed, err := s.graph.Connect(from, to, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if !changed {
			return nil, nil
		}
		s.graph.AutoLayout(s.idsLocked())
		return []string{from, to}, nil
	})
}

func (s *Store) Disconnect(from, to string) bool {
	changed, _ := s.mutateGraph(func() ([]string, error) {
		if !s.graph.Disconnect(from, to) {
			return nil, nil
		}
		return []string{from, to}, nil
	})
	return changed
}

// Move drags a task node; locked and unknown nodes stay put.
func (s *Store) Move(id string, dx, dy float64) bool {
	changed, _ := s.mutateGraph(func() ([]string, error) {
		if s.indexLocked(id) < 0 {
			return nil, nil
		}
		s.graph.AutoLayout(s.idsLocked())
		if !s.graph.Move(id, dx, dy) {
			return nil, nil
		}
		return []string{id}, nil
	})
	return changed
}

func (s *Store) Lock(id string, locked bool) bool {
	changed, _ := s.mutateGraph(func() ([]string, error) {
		if s.indexLocked(id) < 0 {
			return nil, nil
		}
		s.graph.AutoLayout(s.idsLocked())
		if !s.graph.Lock(id, locked) {
			return nil, nil
		}
		return []string{id}, nil
	})
	return changed
}

// Graph returns a copy of the task graph.
func (s *Store) Graph() graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Clone()
}

func (s *Store) idsLocked() []string {
	return taskIDs(s.items)
}
