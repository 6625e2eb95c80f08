package oxidb_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiForms/internal/oxidb"
	"github.com/parisxmas/OxiForms/internal/oxidb/oxidbtest"
)

func getClient(t *testing.T) (*oxidb.Client, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	c, err := oxidb.Connect(context.Background(), srv.Host(), srv.Port(), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, oxidb.WriteFrame(&buf, []byte(`{"cmd":"ping"}`)))
	assert.Equal(t, []byte{14, 0, 0, 0}, buf.Bytes()[:4])

	got, err := oxidb.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"ping"}`, string(got))
}

func TestReadFrameRejectsOversize(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := oxidb.ReadFrame(buf)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	c, _ := getClient(t)
	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}

func TestInsertAndFind(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	result, err := c.Insert(ctx, "forms", map[string]any{"id": "f1", "title": "Intake"})
	require.NoError(t, err)
	assert.NotNil(t, result["id"])

	docs, err := c.Find(ctx, "forms", map[string]any{"title": "Intake"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "f1", docs[0]["id"])
}

func TestFindOne(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	_, err := c.Insert(ctx, "forms", map[string]any{"id": "f1"})
	require.NoError(t, err)

	doc, err := c.FindOne(ctx, "forms", map[string]any{"id": "f1"})
	require.NoError(t, err)
	assert.Equal(t, "f1", doc["id"])

	doc, err = c.FindOne(ctx, "forms", map[string]any{"id": "missing"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestFindAllPages(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := c.Insert(ctx, "questions", map[string]any{"id": fmt.Sprintf("q%d", i), "isActive": false})
		require.NoError(t, err)
	}

	docs, err := c.FindAll(ctx, "questions", map[string]any{"isActive": false}, 3)
	require.NoError(t, err)
	require.Len(t, docs, 7)
	for i, d := range docs {
		assert.Equal(t, fmt.Sprintf("q%d", i), d["id"])
	}
	// 3 + 3 + 1
	assert.Equal(t, 3, srv.Commands("find"))
}

func TestUpdateOneAndCount(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	_, err := c.Insert(ctx, "questions", map[string]any{"id": "q1", "isActive": true})
	require.NoError(t, err)
	_, err = c.UpdateOne(ctx, "questions", map[string]any{"id": "q1"}, map[string]any{"$set": map[string]any{"isActive": false}})
	require.NoError(t, err)

	n, err := c.Count(ctx, "questions", map[string]any{"isActive": false})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteOne(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	_, err := c.Insert(ctx, "questions", map[string]any{"id": "q1"})
	require.NoError(t, err)
	res, err := c.DeleteOne(ctx, "questions", map[string]any{"id": "q1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res["deleted"])

	n, err := c.Count(ctx, "questions", map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexes(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateIndex(ctx, "questions", "formId"))
	require.NoError(t, c.CreateCompositeIndex(ctx, "questions", []string{"_pk", "id"}))
	assert.Equal(t, []string{"formId", "_pk+id"}, srv.Indexes("questions"))
}

func TestTransaction(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	err := c.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := c.Insert(ctx, "questions", map[string]any{"id": "q1"}); err != nil {
			return err
		}
		_, err := c.Insert(ctx, "questions", map[string]any{"id": "q2"})
		return err
	})
	require.NoError(t, err)

	docs, err := c.Find(ctx, "questions", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := c.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := c.Insert(ctx, "questions", map[string]any{"id": "q1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := c.Count(ctx, "questions", map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionConflict(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	_, err := c.Insert(ctx, "forms", map[string]any{"id": "f1", "title": "v1"})
	require.NoError(t, err)

	other, err := oxidb.Connect(ctx, srv.Host(), srv.Port(), time.Second)
	require.NoError(t, err)
	defer other.Close()

	srv.OnCommand("commit_tx", func() {
		_, err := other.UpdateOne(ctx, "forms", map[string]any{"id": "f1"}, map[string]any{"$set": map[string]any{"title": "v2"}})
		assert.NoError(t, err)
	})

	err = c.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := c.FindOne(ctx, "forms", map[string]any{"id": "f1"}); err != nil {
			return err
		}
		_, err := c.UpdateOne(ctx, "forms", map[string]any{"id": "f1"}, map[string]any{"$set": map[string]any{"title": "v3"}})
		return err
	})
	require.Error(t, err)
	assert.True(t, oxidb.IsConflict(err))

	doc, err := c.FindOne(ctx, "forms", map[string]any{"id": "f1"})
	require.NoError(t, err)
	assert.Equal(t, "v2", doc["title"])
}

func TestServerErrorMapping(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	srv.FailNext("insert", "disk full")
	_, err := c.Insert(ctx, "forms", map[string]any{"id": "f1"})
	var oxErr *oxidb.Error
	require.ErrorAs(t, err, &oxErr)
	assert.Equal(t, "disk full", oxErr.Msg)
	assert.False(t, oxidb.IsConflict(err))
}

func TestCancelledContext(t *testing.T) {
	c, _ := getClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Broken())
}

func TestDeadlineBreaksConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never answer.
		_, _ = oxidb.ReadFrame(conn)
		time.Sleep(time.Second)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	c, err := oxidb.Connect(context.Background(), addr.IP.String(), addr.Port, time.Second)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.Broken())

	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, oxidb.ErrBrokenConn)
}
