// Package mongostore implements docstore.Store on MongoDB.
//
// Each document is keyed by _id = "<partition>|<id>" so the (partition, id)
// pair is unique per collection. Batches run inside a session transaction,
// which requires a replica set or sharded cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
)

// fieldCreated orders scans by first write.
const fieldCreated = "_created"

type Options struct {
	URI         string
	Database    string
	MaxBatchOps int
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	maxOps int
	log    *zap.SugaredLogger
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, opts Options, log *zap.SugaredLogger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	maxOps := opts.MaxBatchOps
	if maxOps <= 0 {
		maxOps = docstore.DefaultMaxBatchOps
	}
	return &Store{client: client, db: client.Database(opts.Database), maxOps: maxOps, log: log}, nil
}

// DocumentKey builds the _id of a document.
func DocumentKey(pk, id string) string {
	return pk + "|" + id
}

func locator(id, pk string) bson.M {
	if pk == "" {
		return bson.M{docstore.FieldID: id}
	}
	return bson.M{"_id": DocumentKey(pk, id)}
}

func (s *Store) Read(ctx context.Context, coll, id, pk string) (docstore.Document, error) {
	var raw bson.M
	err := s.db.Collection(coll).FindOne(ctx, locator(id, pk)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, wrap("read", coll, err)
	}
	return FromBSON(raw), nil
}

// Scan drains the cursor, ordered by first write.
func (s *Store) Scan(ctx context.Context, coll string, filter docstore.Filter) ([]docstore.Document, error) {
	cur, err := s.db.Collection(coll).Find(ctx, bson.M(filter), options.Find().SetSort(bson.D{{Key: fieldCreated, Value: 1}}))
	if err != nil {
		return nil, wrap("scan", coll, err)
	}
	defer cur.Close(ctx)

	var out []docstore.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, wrap("scan", coll, err)
		}
		out = append(out, FromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, wrap("scan", coll, err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, coll string, filter docstore.Filter) (int, error) {
	n, err := s.db.Collection(coll).CountDocuments(ctx, bson.M(filter))
	if err != nil {
		return 0, wrap("count", coll, err)
	}
	return int(n), nil
}

func (s *Store) Create(ctx context.Context, coll, pk string, doc docstore.Document) error {
	_, err := s.db.Collection(coll).InsertOne(ctx, ToBSON(docstore.Stamp(doc, pk), time.Now()))
	return wrap("create", coll, err)
}

func (s *Store) Upsert(ctx context.Context, coll, pk string, doc docstore.Document) error {
	doc = docstore.Stamp(doc, pk)
	err := s.transact(ctx, func(sc mongo.SessionContext) error {
		c := s.db.Collection(coll)
		var existing bson.M
		err := c.FindOne(sc, locator(doc.ID(), pk)).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			_, err = c.InsertOne(sc, ToBSON(doc, time.Now()))
			return err
		}
		if err != nil {
			return err
		}
		_, err = c.ReplaceOne(sc, bson.M{"_id": existing["_id"]}, ToBSON(doc, createdOf(existing)))
		return err
	})
	return wrap("upsert", coll, err)
}

func (s *Store) Delete(ctx context.Context, coll, id, pk string) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, locator(id, pk))
	if err != nil {
		return wrap("delete", coll, err)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) NewBatch(pk string) docstore.Batch {
	return &batch{store: s, ops: docstore.Ops{PartitionKey: pk, MaxOps: s.maxOps}}
}

func (s *Store) EnsureIndexes(ctx context.Context, coll string, fields ...string) error {
	models := []mongo.IndexModel{{Keys: bson.D{{Key: fieldCreated, Value: 1}}}}
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
	}
	_, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models)
	return wrap("ensure indexes", coll, err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) transact(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
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
	now := time.Now()
	err := b.store.transact(ctx, func(sc mongo.SessionContext) error {
		for _, op := range b.ops.List {
			c := b.store.db.Collection(op.Collection)
			switch op.Kind {
			case docstore.OpCreate:
				if _, err := c.InsertOne(sc, ToBSON(op.Doc, now)); err != nil {
					return err
				}
			case docstore.OpReplace:
				var existing bson.M
				err := c.FindOne(sc, bson.M{"_id": DocumentKey(pk, op.ID)}).Decode(&existing)
				if errors.Is(err, mongo.ErrNoDocuments) {
					return docstore.ErrNotFound
				}
				if err != nil {
					return err
				}
				etag, _ := existing[docstore.FieldETag].(string)
				if op.IfMatch != "" && etag != op.IfMatch {
					return docstore.ErrPreconditionFailed
				}
				filter := bson.M{"_id": existing["_id"], docstore.FieldETag: etag}
				res, err := c.ReplaceOne(sc, filter, ToBSON(op.Doc, createdOf(existing)))
				if err != nil {
					return err
				}
				if res.MatchedCount == 0 {
					return docstore.ErrPreconditionFailed
				}
			}
		}
		return nil
	})
	return wrap("batch", "", err)
}

// ToBSON converts a stamped document into its stored form.
func ToBSON(doc docstore.Document, created time.Time) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	pk, _ := doc[docstore.FieldPartitionKey].(string)
	out["_id"] = DocumentKey(pk, doc.ID())
	out[docstore.FieldETag] = docstore.NewETag()
	out[fieldCreated] = created.UnixNano()
	return out
}

// FromBSON converts a stored document back into a public Document.
func FromBSON(raw bson.M) docstore.Document {
	doc, _ := normalize(raw).(map[string]any)
	delete(doc, fieldCreated)
	return docstore.Public(doc)
}

func createdOf(existing bson.M) time.Time {
	if n, ok := existing[fieldCreated].(int64); ok {
		return time.Unix(0, n)
	}
	return time.Now()
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(a []any) []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = normalize(v)
	}
	return out
}

func wrap(op, coll string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrPreconditionFailed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	case isWriteConflict(err):
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	where := strings.TrimSpace(op + " " + coll)
	return fmt.Errorf("mongostore %s: %w", where, err)
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(112)
}
