// Package docstore defines the partitioned document store the repositories
// write through. Every document lives in a collection under a partition key,
// and writes that must land together are grouped into a Batch scoped to a
// single partition.
package docstore

import (
	"context"
	"errors"
)

// Reserved document fields.
const (
	FieldID           = "id"
	FieldPartitionKey = "_pk"
	FieldETag         = "_etag"
)

// DefaultMaxBatchOps caps the number of operations in one batch.
const DefaultMaxBatchOps = 100

var (
	ErrNotFound           = errors.New("docstore: document not found")
	ErrConflict           = errors.New("docstore: conflict")
	ErrPreconditionFailed = errors.New("docstore: precondition failed")
	ErrBatchTooLarge      = errors.New("docstore: batch too large")
	ErrEmptyBatch         = errors.New("docstore: empty batch")
)

// Document is a schemaless record. Values must survive a JSON round trip.
type Document map[string]any

// ID returns the document id or "".
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// ETag returns the store-assigned version tag or "".
func (d Document) ETag() string {
	s, _ := d[FieldETag].(string)
	return s
}

// Filter matches documents whose top-level fields equal every value in it.
type Filter map[string]any

// Match reports whether doc satisfies f.
func (f Filter) Match(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		return toFloat(b) == av
	case int:
		return toFloat(b) == float64(av)
	case int32:
		return toFloat(b) == float64(av)
	case int64:
		return toFloat(b) == float64(av)
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return -1 << 62
}

// Store is a partitioned document store.
//
// An empty partitionKey passed to Read or Delete addresses the document by
// id across all partitions of the collection.
type Store interface {
	Read(ctx context.Context, collection, id, partitionKey string) (Document, error)
	Scan(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Count(ctx context.Context, collection string, filter Filter) (int, error)
	Create(ctx context.Context, collection, partitionKey string, doc Document) error
	Upsert(ctx context.Context, collection, partitionKey string, doc Document) error
	Delete(ctx context.Context, collection, id, partitionKey string) error
	NewBatch(partitionKey string) Batch
	EnsureIndexes(ctx context.Context, collection string, fields ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Batch accumulates writes against one partition and applies them all or
// none. Builder methods return the batch so calls can be chained.
type Batch interface {
	Create(collection string, doc Document) Batch
	Replace(collection, id string, doc Document, opts ...ReplaceOption) Batch
	Len() int
	Execute(ctx context.Context) error
}

// ReplaceOptions configures a Replace operation.
type ReplaceOptions struct {
	IfMatch string
}

type ReplaceOption func(*ReplaceOptions)

// IfMatch makes the replace fail with ErrPreconditionFailed unless the stored
// document still carries etag.
func IfMatch(etag string) ReplaceOption {
	return func(o *ReplaceOptions) { o.IfMatch = etag }
}

// ApplyReplaceOptions folds opts into a ReplaceOptions value.
func ApplyReplaceOptions(opts []ReplaceOption) ReplaceOptions {
	var o ReplaceOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// OpKind identifies a batched operation.
type OpKind int

const (
	OpCreate OpKind = iota
	OpReplace
)

// Op is one buffered batch operation. Backends share it through Ops.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Doc        Document
	IfMatch    string
}

// Ops is the backend-agnostic part of a Batch: it records operations and
// stamps partition keys. Backends embed it and implement Execute.
type Ops struct {
	PartitionKey string
	List         []Op
	MaxOps       int
	Err          error
}

func (b *Ops) AddCreate(collection string, doc Document) {
	if doc.ID() == "" {
		b.fail(errors.New("docstore: create without id"))
		return
	}
	b.List = append(b.List, Op{Kind: OpCreate, Collection: collection, ID: doc.ID(), Doc: Stamp(doc, b.PartitionKey)})
}

func (b *Ops) AddReplace(collection, id string, doc Document, opts []ReplaceOption) {
	o := ApplyReplaceOptions(opts)
	doc = Stamp(doc, b.PartitionKey)
	doc[FieldID] = id
	b.List = append(b.List, Op{Kind: OpReplace, Collection: collection, ID: id, Doc: doc, IfMatch: o.IfMatch})
}

func (b *Ops) fail(err error) {
	if b.Err == nil {
		b.Err = err
	}
}

// Check validates the batch before any backend touches storage.
func (b *Ops) Check() error {
	if b.Err != nil {
		return b.Err
	}
	if len(b.List) == 0 {
		return ErrEmptyBatch
	}
	limit := b.MaxOps
	if limit <= 0 {
		limit = DefaultMaxBatchOps
	}
	if len(b.List) > limit {
		return ErrBatchTooLarge
	}
	return nil
}

// Stamp returns a copy of doc carrying the partition key. The etag field is
// dropped; backends assign a fresh one on write.
func Stamp(doc Document, partitionKey string) Document {
	out := make(Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	out[FieldPartitionKey] = partitionKey
	delete(out, FieldETag)
	return out
}
