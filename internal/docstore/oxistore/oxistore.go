// Package oxistore implements docstore.Store on oxidb-server.
//
// Documents are stored flat with the reserved id, _pk and _etag fields next
// to the model fields. Batches run as one server transaction on a leased
// connection; every document a batch touches is read inside the transaction
// first, so the server's optimistic concurrency check rejects the commit if a
// concurrent writer changed it.
package oxistore

import (
	"context"
	"errors"
	"fmt"

	"github.com/parisxmas/OxiForms/internal/db"
	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/oxidb"
)

// DefaultPageSize is the Find page size used by Scan.
const DefaultPageSize = 500

type Options struct {
	PageSize    int
	MaxBatchOps int
}

type Store struct {
	pool     *db.Pool
	pageSize int
	maxOps   int
}

func New(pool *db.Pool, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxBatchOps <= 0 {
		opts.MaxBatchOps = docstore.DefaultMaxBatchOps
	}
	return &Store{pool: pool, pageSize: opts.PageSize, maxOps: opts.MaxBatchOps}
}

func locator(id, pk string) map[string]any {
	q := map[string]any{docstore.FieldID: id}
	if pk != "" {
		q[docstore.FieldPartitionKey] = pk
	}
	return q
}

func (s *Store) Read(ctx context.Context, coll, id, pk string) (docstore.Document, error) {
	var doc map[string]any
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		var err error
		doc, err = c.FindOne(ctx, coll, locator(id, pk))
		return err
	})
	if err != nil {
		return nil, wrap("read", coll, err)
	}
	if doc == nil {
		return nil, docstore.ErrNotFound
	}
	return docstore.Public(doc), nil
}

// Scan drains every page of the query.
func (s *Store) Scan(ctx context.Context, coll string, filter docstore.Filter) ([]docstore.Document, error) {
	var raw []map[string]any
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		var err error
		raw, err = c.FindAll(ctx, coll, map[string]any(filter), s.pageSize)
		return err
	})
	if err != nil {
		return nil, wrap("scan", coll, err)
	}
	out := make([]docstore.Document, len(raw))
	for i, d := range raw {
		out[i] = docstore.Public(d)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, coll string, filter docstore.Filter) (int, error) {
	var n int
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		var err error
		n, err = c.Count(ctx, coll, map[string]any(filter))
		return err
	})
	if err != nil {
		return 0, wrap("count", coll, err)
	}
	return n, nil
}

func (s *Store) Create(ctx context.Context, coll, pk string, doc docstore.Document) error {
	b := s.NewBatch(pk).Create(coll, doc)
	return b.Execute(ctx)
}

func (s *Store) Upsert(ctx context.Context, coll, pk string, doc docstore.Document) error {
	doc = docstore.Stamp(doc, pk)
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		return c.WithTransaction(ctx, func(ctx context.Context) error {
			existing, err := c.FindOne(ctx, coll, locator(doc.ID(), pk))
			if err != nil {
				return err
			}
			if existing == nil {
				return insert(ctx, c, coll, doc)
			}
			return replace(ctx, c, coll, existing, doc)
		})
	})
	return wrap("upsert", coll, err)
}

func (s *Store) Delete(ctx context.Context, coll, id, pk string) error {
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		existing, err := c.FindOne(ctx, coll, locator(id, pk))
		if err != nil {
			return err
		}
		if existing == nil {
			return docstore.ErrNotFound
		}
		_, err = c.DeleteOne(ctx, coll, map[string]any{"_id": existing["_id"]})
		return err
	})
	return wrap("delete", coll, err)
}

func (s *Store) NewBatch(pk string) docstore.Batch {
	return &batch{store: s, ops: docstore.Ops{PartitionKey: pk, MaxOps: s.maxOps}}
}

// EnsureIndexes creates a single-field index per field and a composite
// (_pk, id) index used by point reads.
func (s *Store) EnsureIndexes(ctx context.Context, coll string, fields ...string) error {
	err := s.pool.With(ctx, func(c *oxidb.Client) error {
		for _, f := range fields {
			if err := c.CreateIndex(ctx, coll, f); err != nil {
				return fmt.Errorf("index %s: %w", f, err)
			}
		}
		return c.CreateCompositeIndex(ctx, coll, []string{docstore.FieldPartitionKey, docstore.FieldID})
	})
	return wrap("ensure indexes", coll, err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.With(ctx, func(c *oxidb.Client) error {
		_, err := c.Ping(ctx)
		return err
	})
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

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

func (b *batch) Execute(ctx context.Context) error {
	if err := b.ops.Check(); err != nil {
		return err
	}
	pk := b.ops.PartitionKey
	err := b.store.pool.With(ctx, func(c *oxidb.Client) error {
		return c.WithTransaction(ctx, func(ctx context.Context) error {
			created := map[string]bool{}
			for _, op := range b.ops.List {
				if err := applyOp(ctx, c, pk, op, created); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return wrap("batch", "", err)
}

func applyOp(ctx context.Context, c *oxidb.Client, pk string, op docstore.Op, created map[string]bool) error {
	k := op.Collection + "/" + op.ID
	existing, err := c.FindOne(ctx, op.Collection, locator(op.ID, pk))
	if err != nil {
		return err
	}
	switch op.Kind {
	case docstore.OpCreate:
		if existing != nil || created[k] {
			return docstore.ErrConflict
		}
		created[k] = true
		return insert(ctx, c, op.Collection, op.Doc)
	case docstore.OpReplace:
		if existing == nil {
			return docstore.ErrNotFound
		}
		if op.IfMatch != "" && docstore.Document(existing).ETag() != op.IfMatch {
			return docstore.ErrPreconditionFailed
		}
		return replace(ctx, c, op.Collection, existing, op.Doc)
	}
	return fmt.Errorf("unknown batch op %d", op.Kind)
}

func insert(ctx context.Context, c *oxidb.Client, coll string, doc docstore.Document) error {
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[docstore.FieldETag] = docstore.NewETag()
	_, err := c.Insert(ctx, coll, out)
	return err
}

// replace overwrites existing with doc. Fields the new document lacks are
// set to null so stale values do not survive.
func replace(ctx context.Context, c *oxidb.Client, coll string, existing map[string]any, doc docstore.Document) error {
	set := make(map[string]any, len(doc)+len(existing))
	for k := range existing {
		if k != "_id" {
			set[k] = nil
		}
	}
	for k, v := range doc {
		set[k] = v
	}
	set[docstore.FieldETag] = docstore.NewETag()
	_, err := c.UpdateOne(ctx, coll, map[string]any{"_id": existing["_id"]}, map[string]any{"$set": set})
	return err
}

// wrap maps client errors onto docstore sentinels and adds context.
func wrap(op, coll string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrConflict) ||
		errors.Is(err, docstore.ErrPreconditionFailed) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if oxidb.IsConflict(err) {
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	if coll == "" {
		return fmt.Errorf("oxistore %s: %w", op, err)
	}
	return fmt.Errorf("oxistore %s %s: %w", op, coll, err)
}
