// Package lexical provides an in-memory BM25 keyword index over symbol
// documents. The corpus is small enough that statistics are rebuilt in
// full after changes; the rebuild is deferred until the next search so a
// burst of indexing writes pays the cost once.
package lexical

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// BM25 parameters, standard Okapi defaults.
const (
	k1 = 1.5
	b  = 0.75
)

// SnapshotVersion is the on-disk snapshot schema version.
const SnapshotVersion = 1

var tokenRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Tokenize lowercases text and splits on any run of characters outside
// [a-zA-Z0-9_]. Identifiers with underscores survive intact.
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenRe.Split(strings.ToLower(text), -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

type document struct {
	Text string `json:"text"`
	File string `json:"file"`
}

// Store is the keyword index. Documents are keyed by symbol ID and carry
// their owning file path: IDs are content hashes, so deletion by file
// needs the association stored, not derived.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]document
	dirty bool

	// rebuilt index state
	tokens map[string][]string
	df     map[string]int
	avgLen float64
}

// NewStore creates an empty keyword index.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]document),
	}
}

// Add inserts or replaces documents. ids, texts, and the owning file
// must line up; mismatched lengths are a programming error.
func (s *Store) Add(file string, ids, texts []string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("id/text length mismatch: %d vs %d", len(ids), len(texts))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range ids {
		s.docs[id] = document{Text: texts[i], File: file}
	}
	s.dirty = true

	return nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (s *Store) Delete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.docs, id)
	}
	s.dirty = true
}

// DeleteByFile removes every document owned by file and returns the
// removed IDs.
func (s *Store) DeleteByFile(file string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, doc := range s.docs {
		if doc.File == file {
			removed = append(removed, id)
			delete(s.docs, id)
		}
	}
	if len(removed) > 0 {
		s.dirty = true
	}

	return removed
}

// Len returns the number of indexed documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search scores every document against the query and returns raw BM25
// scores keyed by ID. Documents scoring zero are omitted; an empty map
// means no lexical evidence, which fusion treats as vector-only.
func (s *Store) Search(query string) map[string]float64 {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return map[string]float64{}
	}

	// Rebuild and score under one lock so a concurrent mutation cannot
	// invalidate the statistics mid-scan.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()

	n := len(s.docs)
	scores := make(map[string]float64)
	if n == 0 {
		return scores
	}

	for id, toks := range s.tokens {
		tf := make(map[string]int, len(toks))
		for _, tok := range toks {
			tf[tok]++
		}

		var score float64
		for _, term := range terms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			df := float64(s.df[term])
			idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
			norm := 1 - b + b*float64(len(toks))/s.avgLen
			score += idf * f * (k1 + 1) / (f + k1*norm)
		}

		if score > 0 {
			scores[id] = score
		}
	}

	return scores
}

// rebuildLocked recomputes token lists and document frequencies. Callers
// must hold the write lock.
func (s *Store) rebuildLocked() {
	if !s.dirty {
		return
	}

	s.tokens = make(map[string][]string, len(s.docs))
	s.df = make(map[string]int)

	var total int
	for id, doc := range s.docs {
		toks := Tokenize(doc.Text)
		s.tokens[id] = toks
		total += len(toks)

		seen := make(map[string]bool, len(toks))
		for _, tok := range toks {
			if !seen[tok] {
				seen[tok] = true
				s.df[tok]++
			}
		}
	}

	s.avgLen = 1
	if len(s.docs) > 0 && total > 0 {
		s.avgLen = float64(total) / float64(len(s.docs))
	}
	s.dirty = false
}

// ---- persistence ----

type snapshot struct {
	Version   int                 `json:"version"`
	Documents map[string]document `json:"documents"`
}

// Save writes the document set to path. Index statistics are derived
// state and are rebuilt on load.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{Version: SnapshotVersion, Documents: s.docs}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode keyword snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write keyword snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot from path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := NewStore()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read keyword snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse keyword snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return s, nil
	}

	if snap.Documents != nil {
		s.docs = snap.Documents
	}
	s.dirty = true

	return s, nil
}
