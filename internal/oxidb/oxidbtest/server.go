// Package oxidbtest provides a fake oxidb-server for tests. It speaks the
// length-prefixed JSON protocol over a loopback TCP listener and keeps
// collections in memory.
//
// Supported commands: ping, insert, find, find_one, update_one, delete_one,
// count, create_index, create_unique_index, create_composite_index,
// begin_tx, commit_tx, rollback_tx.
//
// Transactions buffer writes per connection and validate, on commit, that
// every document read inside the transaction is unchanged. A stale read
// fails the commit with a "transaction conflict" error, matching the real
// server's optimistic concurrency control.
//
// Failures are injected with FailNext, and OnCommand runs a hook before a
// command is handled, which lets tests interleave a competing writer.
package oxidbtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/parisxmas/OxiForms/internal/oxidb"
)

type record struct {
	id      int64
	version uint64
	doc     map[string]any
}

type txWrite struct {
	cmd        string
	collection string
	query      map[string]any
	doc        map[string]any
	update     map[string]any
}

type txState struct {
	reads  map[string]map[int64]uint64
	writes []txWrite
}

// Server is a fake oxidb-server.
type Server struct {
	ln net.Listener

	mu          sync.Mutex
	collections map[string][]*record
	indexes     map[string][]string
	nextID      int64
	version     uint64
	failNext    map[string]string
	hooks       map[string]func()
	commands    map[string]int

	wg     sync.WaitGroup
	closed chan struct{}
}

// Start listens on a random loopback port and serves until Close.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("oxidbtest: listen: %w", err)
	}
	s := &Server{
		ln:          ln,
		collections: map[string][]*record{},
		indexes:     map[string][]string{},
		failNext:    map[string]string{},
		hooks:       map[string]func(){},
		commands:    map[string]int{},
		closed:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Host and Port identify the listener.
func (s *Server) Host() string { return s.ln.Addr().(*net.TCPAddr).IP.String() }
func (s *Server) Port() int    { return s.ln.Addr().(*net.TCPAddr).Port }

// Close stops the listener and waits for connection handlers to exit.
func (s *Server) Close() error {
	close(s.closed)
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

// FailNext makes the next occurrence of cmd fail with msg.
func (s *Server) FailNext(cmd, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[cmd] = msg
}

// OnCommand runs fn once, before the next occurrence of cmd is handled.
func (s *Server) OnCommand(cmd string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[cmd] = fn
}

// Commands returns how many times cmd was received.
func (s *Server) Commands(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[cmd]
}

// Indexes returns the index definitions created on collection.
func (s *Server) Indexes(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.indexes[collection]...)
}

// Docs returns a copy of every committed document in collection.
func (s *Server) Docs(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.collections[collection]))
	for _, r := range s.collections[collection] {
		out = append(out, s.view(r))
	}
	return out
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	go func() {
		<-s.closed
		conn.Close()
	}()

	var tx *txState
	for {
		frame, err := oxidb.ReadFrame(conn)
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(frame, &req); err != nil {
			s.reply(conn, nil, errors.New("invalid json"))
			continue
		}
		data, err := s.handle(req, &tx)
		if !s.reply(conn, data, err) {
			return
		}
	}
}

func (s *Server) reply(conn net.Conn, data any, err error) bool {
	resp := map[string]any{"ok": true, "data": data}
	if err != nil {
		resp = map[string]any{"ok": false, "error": err.Error()}
	}
	payload, _ := json.Marshal(resp)
	return oxidb.WriteFrame(conn, payload) == nil
}

func (s *Server) handle(req map[string]any, tx **txState) (any, error) {
	cmd, _ := req["cmd"].(string)

	s.mu.Lock()
	hook := s.hooks[cmd]
	delete(s.hooks, cmd)
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[cmd]++
	if msg, ok := s.failNext[cmd]; ok {
		delete(s.failNext, cmd)
		return nil, errors.New(msg)
	}

	coll, _ := req["collection"].(string)
	query, _ := req["query"].(map[string]any)

	switch cmd {
	case "ping":
		return "pong", nil

	case "begin_tx":
		if *tx != nil {
			return nil, errors.New("transaction already active")
		}
		*tx = &txState{reads: map[string]map[int64]uint64{}}
		return map[string]any{"tx_id": float64(s.version)}, nil

	case "rollback_tx":
		if *tx == nil {
			return nil, errors.New("no active transaction")
		}
		*tx = nil
		return "rolled_back", nil

	case "commit_tx":
		if *tx == nil {
			return nil, errors.New("no active transaction")
		}
		t := *tx
		*tx = nil
		if err := s.validate(t); err != nil {
			return nil, err
		}
		for _, w := range t.writes {
			s.apply(w)
		}
		return "committed", nil

	case "insert":
		doc, _ := req["doc"].(map[string]any)
		w := txWrite{cmd: cmd, collection: coll, doc: doc}
		if *tx != nil {
			(*tx).writes = append((*tx).writes, w)
			return "buffered", nil
		}
		return map[string]any{"id": float64(s.apply(w))}, nil

	case "update_one", "delete_one":
		update, _ := req["update"].(map[string]any)
		w := txWrite{cmd: cmd, collection: coll, query: query, update: update}
		if *tx != nil {
			(*tx).writes = append((*tx).writes, w)
			return "buffered", nil
		}
		n := s.apply(w)
		if cmd == "update_one" {
			return map[string]any{"modified": float64(n)}, nil
		}
		return map[string]any{"deleted": float64(n)}, nil

	case "find", "find_one":
		matches := s.match(coll, query)
		if cmd == "find" {
			sortRecords(matches, req["sort"])
			matches = window(matches, req["skip"], req["limit"])
		}
		if *tx != nil {
			seen := (*tx).reads[coll]
			if seen == nil {
				seen = map[int64]uint64{}
				(*tx).reads[coll] = seen
			}
			for _, r := range matches {
				seen[r.id] = r.version
			}
		}
		if cmd == "find_one" {
			if len(matches) == 0 {
				return nil, nil
			}
			return s.view(matches[0]), nil
		}
		out := make([]any, len(matches))
		for i, r := range matches {
			out[i] = s.view(r)
		}
		return out, nil

	case "count":
		return map[string]any{"count": float64(len(s.match(coll, query)))}, nil

	case "create_index", "create_unique_index":
		field, _ := req["field"].(string)
		s.indexes[coll] = append(s.indexes[coll], field)
		return "ok", nil

	case "create_composite_index":
		fields, _ := req["fields"].([]any)
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i], _ = f.(string)
		}
		s.indexes[coll] = append(s.indexes[coll], strings.Join(parts, "+"))
		return "ok", nil
	}
	return nil, fmt.Errorf("unknown command: %s", cmd)
}

// validate must be called with s.mu held.
func (s *Server) validate(t *txState) error {
	for coll, seen := range t.reads {
		current := map[int64]uint64{}
		for _, r := range s.collections[coll] {
			current[r.id] = r.version
		}
		for id, v := range seen {
			if cv, ok := current[id]; !ok || cv != v {
				return fmt.Errorf("transaction conflict: document %d in %s changed", id, coll)
			}
		}
	}
	return nil
}

// apply must be called with s.mu held. It returns the new id for inserts and
// the affected count otherwise.
func (s *Server) apply(w txWrite) int64 {
	switch w.cmd {
	case "insert":
		s.nextID++
		s.version++
		s.collections[w.collection] = append(s.collections[w.collection], &record{
			id: s.nextID, version: s.version, doc: copyDoc(w.doc),
		})
		return s.nextID
	case "update_one":
		matches := s.match(w.collection, w.query)
		if len(matches) == 0 {
			return 0
		}
		r := matches[0]
		set, _ := w.update["$set"].(map[string]any)
		for k, v := range set {
			r.doc[k] = v
		}
		s.version++
		r.version = s.version
		return 1
	case "delete_one":
		matches := s.match(w.collection, w.query)
		if len(matches) == 0 {
			return 0
		}
		recs := s.collections[w.collection]
		for i, r := range recs {
			if r == matches[0] {
				s.collections[w.collection] = append(recs[:i], recs[i+1:]...)
				break
			}
		}
		return 1
	}
	return 0
}

func (s *Server) match(coll string, query map[string]any) []*record {
	var out []*record
	for _, r := range s.collections[coll] {
		if matches(s.view(r), query) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) view(r *record) map[string]any {
	doc := copyDoc(r.doc)
	doc["_id"] = float64(r.id)
	return doc
}

func matches(doc, query map[string]any) bool {
	for k, want := range query {
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

func sortRecords(recs []*record, sortBy any) {
	m, _ := sortBy.(map[string]any)
	for field, dir := range m {
		desc := false
		if d, ok := dir.(float64); ok && d < 0 {
			desc = true
		}
		sort.SliceStable(recs, func(i, j int) bool {
			less := lessValue(fieldOf(recs[i], field), fieldOf(recs[j], field))
			if desc {
				return lessValue(fieldOf(recs[j], field), fieldOf(recs[i], field))
			}
			return less
		})
		return
	}
}

func fieldOf(r *record, field string) any {
	if field == "_id" {
		return float64(r.id)
	}
	return r.doc[field]
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, _ := b.(float64)
		return av < bv
	case string:
		bv, _ := b.(string)
		return av < bv
	}
	return false
}

func window(recs []*record, skip, limit any) []*record {
	if n, ok := skip.(float64); ok {
		if int(n) >= len(recs) {
			return nil
		}
		recs = recs[int(n):]
	}
	if n, ok := limit.(float64); ok && int(n) < len(recs) {
		recs = recs[:int(n)]
	}
	return recs
}

func copyDoc(doc map[string]any) map[string]any {
	data, _ := json.Marshal(doc)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
