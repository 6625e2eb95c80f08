// Package memstore is an in-process docstore.Store. It backs the test suites
// and STORE_BACKEND=memory for local development.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/parisxmas/OxiForms/internal/docstore"
)

type key struct {
	pk string
	id string
}

type collection struct {
	docs map[key]docstore.Document
	seq  map[key]uint64
}

// Store keeps documents in memory. Documents are deep-copied through JSON on
// the way in and out so callers never share maps with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	next        uint64
	maxOps      int
}

type Option func(*Store)

// WithMaxBatchOps overrides docstore.DefaultMaxBatchOps.
func WithMaxBatchOps(n int) Option {
	return func(s *Store) { s.maxOps = n }
}

func New(opts ...Option) *Store {
	s := &Store{collections: map[string]*collection{}, maxOps: docstore.DefaultMaxBatchOps}
	for _, o := range opts {
		o(s)
	}
	return s
}

var emptyCollection = &collection{docs: map[key]docstore.Document{}, seq: map[key]uint64{}}

// peek is coll for readers holding only the read lock; it never inserts.
func (s *Store) peek(name string) *collection {
	if c, ok := s.collections[name]; ok {
		return c
	}
	return emptyCollection
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[key]docstore.Document{}, seq: map[key]uint64{}}
		s.collections[name] = c
	}
	return c
}

// find locates a document by id; an empty pk searches every partition.
func (c *collection) find(id, pk string) (key, docstore.Document, bool) {
	if pk != "" {
		k := key{pk: pk, id: id}
		d, ok := c.docs[k]
		return k, d, ok
	}
	for k, d := range c.docs {
		if k.id == id {
			return k, d, true
		}
	}
	return key{}, nil, false
}

func (s *Store) Read(ctx context.Context, coll, id, pk string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, d, ok := s.peek(coll).find(id, pk)
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return docstore.Public(clone(d)), nil
}

// Scan returns matches in insertion order.
func (s *Store) Scan(ctx context.Context, coll string, filter docstore.Filter) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.peek(coll)
	type hit struct {
		seq uint64
		doc docstore.Document
	}
	hits := make([]hit, 0)
	for k, d := range c.docs {
		if filter.Match(d) {
			hits = append(hits, hit{seq: c.seq[k], doc: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]docstore.Document, len(hits))
	for i, h := range hits {
		out[i] = docstore.Public(clone(h.doc))
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, coll string, filter docstore.Filter) (int, error) {
	docs, err := s.Scan(ctx, coll, filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Store) Create(ctx context.Context, coll, pk string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	k := key{pk: pk, id: doc.ID()}
	if _, exists := c.docs[k]; exists {
		return docstore.ErrConflict
	}
	s.put(c, k, docstore.Stamp(doc, pk))
	return nil
}

func (s *Store) Upsert(ctx context.Context, coll, pk string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(s.coll(coll), key{pk: pk, id: doc.ID()}, docstore.Stamp(doc, pk))
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id, pk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	k, _, ok := c.find(id, pk)
	if !ok {
		return docstore.ErrNotFound
	}
	delete(c.docs, k)
	delete(c.seq, k)
	return nil
}

// put must be called with s.mu held.
func (s *Store) put(c *collection, k key, doc docstore.Document) {
	doc = clone(doc)
	doc[docstore.FieldETag] = docstore.NewETag()
	if _, exists := c.seq[k]; !exists {
		s.next++
		c.seq[k] = s.next
	}
	c.docs[k] = doc
}

func (s *Store) NewBatch(pk string) docstore.Batch {
	return &batch{store: s, ops: docstore.Ops{PartitionKey: pk, MaxOps: s.maxOps}}
}

func (s *Store) EnsureIndexes(context.Context, string, ...string) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

type batch struct {
	store *Store
	ops   docstore.Ops
}

func (b *batch) Create(coll string, doc docstore.Document) docstore.Batch {
	b.ops.AddCreate(coll, doc)
	return b
}

func (b *batch) Replace(coll, id string, doc docstore.Document, opts ...docstore.ReplaceOption) docstore.Batch {
	b.ops.AddReplace(coll, id, doc, opts)
	return b
}

func (b *batch) Len() int { return len(b.ops.List) }

// Execute validates every operation under the write lock before applying any
// of them, so a failing batch leaves the store untouched.
func (b *batch) Execute(ctx context.Context) error {
	if err := b.ops.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := b.ops.PartitionKey
	pending := map[string]map[key]bool{}
	for _, op := range b.ops.List {
		c := s.coll(op.Collection)
		k := key{pk: pk, id: op.ID}
		if pending[op.Collection] == nil {
			pending[op.Collection] = map[key]bool{}
		}
		existing, exists := c.docs[k]
		exists = exists || pending[op.Collection][k]
		switch op.Kind {
		case docstore.OpCreate:
			if exists {
				return docstore.ErrConflict
			}
			pending[op.Collection][k] = true
		case docstore.OpReplace:
			if !exists {
				return docstore.ErrNotFound
			}
			if op.IfMatch != "" && existing.ETag() != op.IfMatch {
				return docstore.ErrPreconditionFailed
			}
		}
	}
	for _, op := range b.ops.List {
		s.put(s.coll(op.Collection), key{pk: pk, id: op.ID}, op.Doc)
	}
	return nil
}

func clone(d docstore.Document) docstore.Document {
	data, err := json.Marshal(d)
	if err != nil {
		return docstore.Document{}
	}
	var out docstore.Document
	_ = json.Unmarshal(data, &out)
	return out
}
