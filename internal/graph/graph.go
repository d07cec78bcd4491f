// Package graph maintains the symbol call graph. Edges are created in
// two phases: indexing records provisional calls_by_name edges against
// bare callee names, and a resolution pass after each indexing run
// rewrites them into calls edges between concrete symbols. Names seen
// before their definitions therefore still link up.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// EdgeKind distinguishes resolved from provisional call edges.
type EdgeKind string

const (
	// EdgeCalls links two concrete symbol IDs.
	EdgeCalls EdgeKind = "calls"
	// EdgeCallsByName links a symbol to a bare-name placeholder node
	// awaiting resolution.
	EdgeCallsByName EdgeKind = "calls_by_name"
)

// SnapshotVersion is the on-disk snapshot schema version.
const SnapshotVersion = 1

// Node is a graph vertex. Placeholder nodes, created as targets of
// provisional edges, have the bare callee name as their ID and no file
// path.
type Node struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
}

// Placeholder reports whether the node is an unresolved name target.
func (n *Node) Placeholder() bool {
	return n.FilePath == ""
}

// ResolveStats summarizes one resolution pass.
type ResolveStats struct {
	Resolved   int // provisional edges rewritten
	Added      int // concrete edges created (fan-out can exceed Resolved)
	Unresolved int // provisional edges left in place
}

// Store is an in-memory directed graph with typed edges and adjacency
// in both directions. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]Node
	out   map[string]map[string]EdgeKind
	in    map[string]map[string]EdgeKind
}

// NewStore creates an empty graph.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]Node),
		out:   make(map[string]map[string]EdgeKind),
		in:    make(map[string]map[string]EdgeKind),
	}
}

// AddNode inserts or replaces a node.
func (s *Store) AddNode(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n
}

// AddCallByName records a provisional edge from a concrete symbol to a
// bare callee name, creating the placeholder target if needed.
func (s *Store) AddCallByName(fromID, calleeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[calleeName]; !ok {
		s.nodes[calleeName] = Node{ID: calleeName, Name: calleeName}
	}
	s.addEdgeLocked(fromID, calleeName, EdgeCallsByName)
}

func (s *Store) addEdgeLocked(from, to string, kind EdgeKind) {
	if s.out[from] == nil {
		s.out[from] = make(map[string]EdgeKind)
	}
	if s.in[to] == nil {
		s.in[to] = make(map[string]EdgeKind)
	}
	s.out[from][to] = kind
	s.in[to][from] = kind
}

func (s *Store) removeEdgeLocked(from, to string) {
	delete(s.out[from], to)
	if len(s.out[from]) == 0 {
		delete(s.out, from)
	}
	delete(s.in[to], from)
	if len(s.in[to]) == 0 {
		delete(s.in, to)
	}
}

func (s *Store) degreeLocked(id string) int {
	return len(s.out[id]) + len(s.in[id])
}

// DeleteByFile removes every node whose FilePath equals path, all edges
// touching them, and any placeholder left without edges afterwards.
// Resolved edges arriving from surviving callers are demoted back to
// provisional calls_by_name edges, so the resolve pass after the next
// indexing run re-links them when the callee's replacement appears.
func (s *Store) DeleteByFile(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]bool)
	for id, n := range s.nodes {
		if n.FilePath == path {
			doomed[id] = true
		}
	}

	touched := make(map[string]bool)
	for id := range doomed {
		name := s.nodes[id].Name
		for to := range s.out[id] {
			touched[to] = true
			s.removeEdgeLocked(id, to)
		}
		for from, kind := range s.in[id] {
			touched[from] = true
			s.removeEdgeLocked(from, id)
			if kind == EdgeCalls && !doomed[from] {
				if _, ok := s.nodes[name]; !ok {
					s.nodes[name] = Node{ID: name, Name: name}
				}
				s.addEdgeLocked(from, name, EdgeCallsByName)
			}
		}
		delete(s.nodes, id)
	}

	for id := range touched {
		if n, ok := s.nodes[id]; ok && n.Placeholder() && s.degreeLocked(id) == 0 {
			delete(s.nodes, id)
		}
	}

	return len(doomed)
}

// ResolveEdges rewrites provisional edges whose callee name now has at
// least one concrete definition. Ambiguous names fan out to every
// definition; self-loops are skipped. Placeholders drained of edges are
// removed. Idempotent: a second pass with no new definitions is a no-op.
func (s *Store) ResolveEdges() ResolveStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName := make(map[string][]string)
	for id, n := range s.nodes {
		if !n.Placeholder() {
			byName[n.Name] = append(byName[n.Name], id)
		}
	}
	for _, ids := range byName {
		sort.Strings(ids)
	}

	type pending struct{ from, name string }
	var work []pending
	for from, targets := range s.out {
		for to, kind := range targets {
			if kind == EdgeCallsByName {
				work = append(work, pending{from: from, name: to})
			}
		}
	}

	var stats ResolveStats
	for _, p := range work {
		targets := byName[p.name]
		if len(targets) == 0 {
			stats.Unresolved++
			continue
		}

		s.removeEdgeLocked(p.from, p.name)
		stats.Resolved++

		for _, target := range targets {
			if target == p.from {
				continue
			}
			if _, exists := s.out[p.from][target]; exists {
				continue
			}
			s.addEdgeLocked(p.from, target, EdgeCalls)
			stats.Added++
		}

		if n, ok := s.nodes[p.name]; ok && n.Placeholder() && s.degreeLocked(p.name) == 0 {
			delete(s.nodes, p.name)
		}
	}

	return stats
}

// findByName matches concrete nodes by symbol name, falling back to an
// exact ID match so callers can pass either.
func (s *Store) findByName(name string) []string {
	var ids []string
	for id, n := range s.nodes {
		if !n.Placeholder() && n.Name == name {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if _, ok := s.nodes[name]; ok {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids
}

// Callers returns the concrete symbols with a resolved call edge into
// any symbol matching name.
func (s *Store) Callers(name string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Node
	for _, id := range s.findByName(name) {
		for from, kind := range s.in[id] {
			if kind != EdgeCalls || seen[from] {
				continue
			}
			seen[from] = true
			out = append(out, s.nodes[from])
		}
	}

	sortNodes(out)
	return out
}

// Callees returns the concrete symbols any symbol matching name calls.
// Unresolved callees (placeholder targets) are included by name so
// callers can see calls into code outside the index.
func (s *Store) Callees(name string) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Node
	for _, id := range s.findByName(name) {
		for to := range s.out[id] {
			if seen[to] {
				continue
			}
			seen[to] = true
			out = append(out, s.nodes[to])
		}
	}

	sortNodes(out)
	return out
}

// ChainLevel is one BFS frontier of a call chain.
type ChainLevel struct {
	Depth int    `json:"depth"`
	Nodes []Node `json:"nodes"`
}

// CallChain walks the resolved graph from every symbol matching name.
// Direction is "callers" or "callees". Each node appears at its first
// (shallowest) depth only, so cycles terminate.
func (s *Store) CallChain(name, direction string, maxDepth int) []ChainLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj := s.out
	if direction == "callers" {
		adj = s.in
	}

	frontier := s.findByName(name)
	visited := make(map[string]bool, len(frontier))
	for _, id := range frontier {
		visited[id] = true
	}

	var levels []ChainLevel
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for other, kind := range adj[id] {
				if kind != EdgeCalls || visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
			}
		}
		if len(next) == 0 {
			break
		}

		level := ChainLevel{Depth: depth}
		for _, id := range next {
			level.Nodes = append(level.Nodes, s.nodes[id])
		}
		sortNodes(level.Nodes)
		levels = append(levels, level)
		frontier = next
	}

	return levels
}

// NodeCount returns concrete and placeholder node counts.
func (s *Store) NodeCount() (concrete, placeholders int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nodes {
		if n.Placeholder() {
			placeholders++
		} else {
			concrete++
		}
	}
	return concrete, placeholders
}

// EdgeCount returns resolved and provisional edge counts.
func (s *Store) EdgeCount() (calls, callsByName int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, targets := range s.out {
		for _, kind := range targets {
			if kind == EdgeCalls {
				calls++
			} else {
				callsByName++
			}
		}
	}
	return calls, callsByName
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// ---- persistence ----

type snapshotEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

type snapshot struct {
	Version int            `json:"version"`
	Nodes   []Node         `json:"nodes"`
	Edges   []snapshotEdge `json:"edges"`
}

// Save writes the graph to path.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{Version: SnapshotVersion}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, n)
	}
	for from, targets := range s.out {
		for to, kind := range targets {
			snap.Edges = append(snap.Edges, snapshotEdge{From: from, To: to, Kind: kind})
		}
	}
	s.mu.RUnlock()

	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].From != snap.Edges[j].From {
			return snap.Edges[i].From < snap.Edges[j].From
		}
		return snap.Edges[i].To < snap.Edges[j].To
	})

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode graph snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write graph snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a graph snapshot. A missing file yields an empty graph.
func Load(path string) (*Store, error) {
	s := NewStore()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read graph snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse graph snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return s, nil
	}

	for _, n := range snap.Nodes {
		s.nodes[n.ID] = n
	}
	for _, e := range snap.Edges {
		s.addEdgeLocked(e.From, e.To, e.Kind)
	}

	return s, nil
}
