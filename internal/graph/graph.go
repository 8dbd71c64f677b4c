// Package graph keeps the task mini-map: node positions and typed connections between
// tasks. Everything is referenced by task id; the graph never holds task values.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalid = errors.New("invalid")

type Kind string

const (
	KindRelated   Kind = "related"
	KindDependsOn Kind = "depends-on"
	KindBlockedBy Kind = "blocked-by"
)

// ParseKind normalizes a connection kind. Empty input means related.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "related", "rel":
		return KindRelated, nil
	case "depends-on", "dependson", "depends_on", "depends":
		return KindDependsOn, nil
	case "blocked-by", "blockedby", "blocked_by", "blocked":
		return KindBlockedBy, nil
	default:
		return "", fmt.Errorf("%w: unknown connection kind %q", ErrInvalid, s)
	}
}

// Node is the layout of one task on the mini-map.
type Node struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Locked bool    `yaml:"locked,omitempty" json:"locked,omitempty"`
}

// Edge connects two tasks. From and To are task ids.
type Edge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	Kind Kind   `yaml:"kind" json:"kind"`
}

// Graph is a flat, id-keyed adjacency structure. The zero value is ready to use.
type Graph struct {
	Nodes map[string]Node `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Edges []Edge          `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// Connect adds an edge between two distinct tasks. Connecting the same pair again
// replaces the kind. It reports whether the graph changed.
func (g *Graph) Connect(from, to string, kind Kind) (bool, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return false, fmt.Errorf("%w: connection needs two task ids", ErrInvalid)
	}
	if from == to {
		return false, fmt.Errorf("%w: a task cannot connect to itself", ErrInvalid)
	}
	if kind == "" {
		kind = KindRelated
	}
	for i, e := range g.Edges {
		if e.From == from && e.To == to {
			if e.Kind == kind {
				return false, nil
			}
			g.Edges[i].Kind = kind
			return true, nil
		}
	}
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind})
	return true, nil
}

// Disconnect removes the edge from -> to, if any.
func (g *Graph) Disconnect(from, to string) bool {
	for i, e := range g.Edges {
		if e.From == from && e.To == to {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// EdgesOf returns every edge touching id, in insertion order.
func (g *Graph) EdgesOf(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id || e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the sorted ids connected to id in either direction.
func (g *Graph) Neighbors(id string) []string {
	seen := map[string]bool{}
	for _, e := range g.EdgesOf(id) {
		other := e.To
		if other == id {
			other = e.From
		}
		seen[other] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Place sets the absolute position of a node, creating it if needed.
// Locked nodes keep their position.
func (g *Graph) Place(id string, x, y float64) bool {
	if g.Nodes == nil {
		g.Nodes = map[string]Node{}
	}
	n, ok := g.Nodes[id]
	if ok && n.Locked {
		return false
	}
	if ok && n.X == x && n.Y == y {
		return false
	}
	n.X, n.Y = x, y
	g.Nodes[id] = n
	return true
}

// Move drags a node by (dx, dy). Unknown and locked nodes do not move.
func (g *Graph) Move(id string, dx, dy float64) bool {
	n, ok := g.Nodes[id]
	if !ok || n.Locked || (dx == 0 && dy == 0) {
		return false
	}
	n.X += dx
	n.Y += dy
	g.Nodes[id] = n
	return true
}

// Lock pins or unpins a node.
func (g *Graph) Lock(id string, locked bool) bool {
	n, ok := g.Nodes[id]
	if !ok || n.Locked == locked {
		return false
	}
	n.Locked = locked
	g.Nodes[id] = n
	return true
}

// Prune drops nodes and edges that reference ids not in live.
func (g *Graph) Prune(live map[string]bool) bool {
	changed := false
	for id := range g.Nodes {
		if !live[id] {
			delete(g.Nodes, id)
			changed = true
		}
	}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if live[e.From] && live[e.To] {
			kept = append(kept, e)
			continue
		}
		changed = true
	}
	g.Edges = kept
	return changed
}

// AutoLayout places every unplaced id on a grid, six per row.
func (g *Graph) AutoLayout(ids []string) bool {
	if g.Nodes == nil {
		g.Nodes = map[string]Node{}
	}
	changed := false
	for i, id := range ids {
		if _, ok := g.Nodes[id]; ok {
			continue
		}
		g.Nodes[id] = Node{X: float64(i%6) * 160, Y: float64(i/6) * 140}
		changed = true
	}
	return changed
}

// Clone returns a deep copy.
func (g *Graph) Clone() Graph {
	out := Graph{Edges: append([]Edge(nil), g.Edges...)}
	if g.Nodes != nil {
		out.Nodes = make(map[string]Node, len(g.Nodes))
		for k, v := range g.Nodes {
			out.Nodes[k] = v
		}
	}
	return out
}
