package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/docstore"
	"github.com/parisxmas/OxiForms/internal/docstore/storetest"
)

func TestToBSON(t *testing.T) {
	created := time.Unix(0, 42)
	doc := docstore.Stamp(docstore.Document{"id": "q1", "content": "Age?"}, "f1")

	out := ToBSON(doc, created)
	assert.Equal(t, "f1|q1", out["_id"])
	assert.Equal(t, "f1", out[docstore.FieldPartitionKey])
	assert.Equal(t, int64(42), out[fieldCreated])
	assert.NotEmpty(t, out[docstore.FieldETag])
}

func TestFromBSON(t *testing.T) {
	raw := bson.M{
		"_id":                      "f1|q1",
		docstore.FieldPartitionKey: "f1",
		docstore.FieldETag:         "e1",
		fieldCreated:               int64(42),
		"id":                       "q1",
		"position":                 int32(3),
		"choices":                  bson.A{"a", "b"},
		"meta":                     bson.D{{Key: "k", Value: int64(1)}},
	}
	doc := FromBSON(raw)
	assert.Equal(t, docstore.Document{
		"id":               "q1",
		docstore.FieldETag: "e1",
		"position":         float64(3),
		"choices":          []any{"a", "b"},
		"meta":             map[string]any{"k": float64(1)},
	}, doc)
}

func TestCreatedOf(t *testing.T) {
	assert.Equal(t, time.Unix(0, 7), createdOf(bson.M{fieldCreated: int64(7)}))
}

// TestStore runs against a live replica set when MONGO_URI is set.
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	storetest.Run(t, func(t *testing.T) docstore.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		name := "oxiforms_test_" + uuid.NewString()[:8]
		s, err := Connect(ctx, Options{URI: uri, Database: name}, zap.NewNop().Sugar())
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.db.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}
