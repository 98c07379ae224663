// Package graphstore implements the persistent directed graph (spec.md
// §4.2, §6.4): two keyed collections (nodes, edges), JSON-blob rows, an
// upsert API with per-key serialization, and lock-free snapshot reads.
//
// Grounded on spec.md's persistence layout and original_source's
// pkg/infra/local/sqlite_store.py ("one embedded container, two
// tables"); backed by go.etcd.io/bbolt because no SQL driver ships in
// the retrieved example pack and bbolt is the ecosystem's standard
// single-file embedded KV store — see DESIGN.md for the full rationale.
package graphstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sgerhart/shadowhunter/internal/model"
)

var (
	nodesBucket = []byte("nodes")
	edgesBucket = []byte("edges")
)

// Store is a persistent, upsertable directed graph.
type Store struct {
	db *bolt.DB

	// keyLocks serializes upserts to the same key while allowing
	// concurrent upserts to different keys, per spec.md §4.2/§5.
	keyLocks sync.Map // key string -> *sync.Mutex
}

// Open opens (creating if necessary) the on-disk container at path with
// mode 0600, per spec.md §6.4.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening graph store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(edgesBucket); err != nil {
			return err
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing graph store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying container.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	m, _ := s.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func edgeKey(src, dst string) string {
	return src + "\x00" + dst
}

// UpsertNode creates the node if absent, else merges props into the
// existing record (last_seen advances, label/type/risk_score/alert
// counters take the caller's values). The write is flushed (bbolt
// commits fsync by default) before this returns, satisfying spec.md's
// "flushed before acknowledgement" durability model.
func (s *Store) UpsertNode(id string, mutate func(existing *model.Node) model.Node) (model.Node, error) {
	lock := s.lockFor("node:" + id)
	lock.Lock()
	defer lock.Unlock()

	var result model.Node
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		var existing *model.Node
		if raw := b.Get([]byte(id)); raw != nil {
			var n model.Node
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("decoding stored node %s: %w", id, err)
			}
			existing = &n
		}
		result = mutate(existing)
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding node %s: %w", id, err)
		}
		return b.Put([]byte(id), encoded)
	})
	if err != nil {
		return model.Node{}, err
	}
	return result, nil
}

// UpsertEdge requires both endpoints to already exist as nodes (caller's
// responsibility per spec.md §3) and aggregates properties via mutate.
func (s *Store) UpsertEdge(src, dst string, mutate func(existing *model.Edge) model.Edge) (model.Edge, error) {
	key := edgeKey(src, dst)
	lock := s.lockFor("edge:" + key)
	lock.Lock()
	defer lock.Unlock()

	var result model.Edge
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(edgesBucket)
		var existing *model.Edge
		if raw := b.Get([]byte(key)); raw != nil {
			var e model.Edge
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("decoding stored edge %s->%s: %w", src, dst, err)
			}
			existing = &e
		}
		result = mutate(existing)
		result.Source = src
		result.Target = dst
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding edge %s->%s: %w", src, dst, err)
		}
		return b.Put([]byte(key), encoded)
	})
	if err != nil {
		return model.Edge{}, err
	}
	return result, nil
}

// GetNode returns a self-consistent snapshot of node id, or
// model.ErrNotFound.
func (s *Store) GetNode(id string) (model.Node, error) {
	var n model.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(nodesBucket).Get([]byte(id))
		if raw == nil {
			return model.ErrNotFound
		}
		return json.Unmarshal(raw, &n)
	})
	if err != nil {
		return model.Node{}, err
	}
	return n, nil
}

// NodeFilter narrows ListNodes results. A zero-value filter matches all.
type NodeFilter struct {
	Type model.NodeType
}

func (f NodeFilter) matches(n model.Node) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return true
}

// ListNodes returns a snapshot slice of nodes matching filter, sorted by
// id for deterministic output.
func (s *Store) ListNodes(filter NodeFilter) ([]model.Node, error) {
	var out []model.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(nodesBucket).ForEach(func(_, raw []byte) error {
			var n model.Node
			if err := json.Unmarshal(raw, &n); err != nil {
				return err
			}
			if filter.matches(n) {
				out = append(out, n)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EdgeFilter narrows ListEdges results.
type EdgeFilter struct {
	Source string
	Target string
}

func (f EdgeFilter) matches(e model.Edge) bool {
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	return true
}

// ListEdges returns a snapshot slice of edges matching filter.
func (s *Store) ListEdges(filter EdgeFilter) ([]model.Edge, error) {
	var out []model.Edge
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(edgesBucket).ForEach(func(_, raw []byte) error {
			var e model.Edge
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			if filter.matches(e) {
				out = append(out, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

// Neighbors returns the set of node ids directly reachable from id via
// an outbound edge.
func (s *Store) Neighbors(id string) ([]string, error) {
	edges, err := s.ListEdges(EdgeFilter{Source: id})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out, nil
}

// Reset empties both collections.
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(nodesBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		if err := tx.DeleteBucket(edgesBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(edgesBucket); err != nil {
			return err
		}
		return nil
	})
}
