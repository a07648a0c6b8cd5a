// Package fakestore is an in-memory implementation of the store's HTTP
// surface. It keeps plain values and versioned item sets with vector
// clocks, rejects writes against stale versions and answers hash-routed
// reads for foreign buckets with a redirect.
package fakestore

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/command"
)

const defaultSlots = 256

type entry struct {
	data   *string
	items  []string
	clocks map[string]int
}

type Store struct {
	node     string
	slots    int
	owned    func(hashKey int) bool
	redirect string

	mu      sync.Mutex
	entries map[string]*entry
	hits    atomic.Int64
}

type Option func(*Store)

// WithNode sets the node name used in vector clocks.
func WithNode(name string) Option {
	return func(s *Store) {
		s.node = name
	}
}

// WithOwnership restricts hash-routed reads to the buckets owned returns
// true for. Other buckets are redirected to address.
func WithOwnership(owned func(hashKey int) bool, address string) Option {
	return func(s *Store) {
		s.owned = owned
		s.redirect = address
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		node:    "node-0",
		slots:   defaultSlots,
		owned:   func(int) bool { return true },
		entries: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HashKey is the bucket of key. Clients never compute it themselves, tests
// use it to build redirect-get requests.
func (s *Store) HashKey(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int(h.Sum32() % uint32(s.slots))
}

// Hits returns how many requests reached the store.
func (s *Store) Hits() int64 {
	return s.hits.Load()
}

func (s *Store) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /get/{key}", s.handleGet)
	mux.HandleFunc("GET /get/{hashKey}/{key}", s.handleRedirectGet)
	mux.HandleFunc("POST /put/{key}", s.handlePut)
	mux.HandleFunc("POST /reconcile/merge/{key}", s.handleReconcile)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		log.Debugf("[fakestore] %s %s", r.Method, r.URL.Path)
		mux.ServeHTTP(w, r)
	})
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	s.writeValue(w, r.PathValue("key"))
}

func (s *Store) handleRedirectGet(w http.ResponseWriter, r *http.Request) {
	hashKey, err := strconv.Atoi(r.PathValue("hashKey"))

	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !s.owned(hashKey) {
		writeJSON(w, http.StatusTemporaryRedirect, command.Redirect{Address: s.redirect})
		return
	}

	s.writeValue(w, r.PathValue("key"))
}

func (s *Store) writeValue(w http.ResponseWriter, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]

	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if e.data != nil {
		writeJSON(w, http.StatusOK, command.PlainWrite{Data: *e.data})
		return
	}

	writeJSON(w, http.StatusOK, []command.Version{e.version()})
}

func (s *Store) handlePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data    *string         `json:"data"`
		Op      string          `json:"op"`
		Item    string          `json:"item"`
		Version json.RawMessage `json:"version"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	key := r.PathValue("key")

	if body.Data != nil {
		s.mu.Lock()
		s.entries[key] = &entry{data: body.Data}
		s.mu.Unlock()

		w.WriteHeader(http.StatusOK)
		return
	}

	var clocks []command.Clock

	if err := json.Unmarshal(body.Version, &clocks); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version must be a list of clocks"})
		return
	}

	if body.Op != "add" && body.Op != "remove" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown op " + body.Op})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]

	if !ok || e.data != nil {
		e = &entry{clocks: make(map[string]int)}
		s.entries[key] = e
	}

	if !e.matches(clocks) {
		writeJSON(w, http.StatusFound, e.clockList())
		return
	}

	if body.Op == "add" {
		e.items = append(e.items, body.Item)
	} else {
		e.remove(body.Item)
	}

	e.clocks[s.node]++

	w.WriteHeader(http.StatusOK)
}

func (s *Store) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var versions []command.Version

	if err := json.NewDecoder(r.Body).Decode(&versions); err != nil || len(versions) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	merged := Merge(versions)

	s.mu.Lock()
	s.entries[r.PathValue("key")] = &entry{items: merged.Items, clocks: toClockMap(merged.Clocks)}
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// Merge folds sibling versions into the first one. Items missing from the
// first version are appended, respecting duplicates, and every clock takes
// its highest timestamp.
func Merge(versions []command.Version) command.Version {
	items := append([]string(nil), versions[0].Items...)
	clocks := toClockMap(versions[0].Clocks)

	for _, v := range versions[1:] {
		seen := make(map[string]int)

		for _, item := range items {
			seen[item]++
		}

		for _, item := range v.Items {
			if seen[item] == 0 {
				items = append(items, item)
				continue
			}

			seen[item]--
		}

		for _, c := range v.Clocks {
			if c.Timestamp > clocks[c.Node] {
				clocks[c.Node] = c.Timestamp
			}
		}
	}

	e := entry{items: items, clocks: clocks}

	return e.version()
}

// matches reports whether clocks is exactly the entry's clock set. A node
// listed twice never matches.
func (e *entry) matches(clocks []command.Clock) bool {
	sent := toClockMap(clocks)

	if len(sent) != len(clocks) || len(sent) != len(e.clocks) {
		return false
	}

	for node, ts := range sent {
		if current, ok := e.clocks[node]; !ok || current != ts {
			return false
		}
	}

	return true
}

func (e *entry) remove(item string) {
	for i, existing := range e.items {
		if existing == item {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return
		}
	}
}

func (e *entry) clockList() []command.Clock {
	clocks := make([]command.Clock, 0, len(e.clocks))

	for node, ts := range e.clocks {
		clocks = append(clocks, command.Clock{Node: node, Timestamp: ts})
	}

	sort.Slice(clocks, func(i, j int) bool {
		return clocks[i].Node < clocks[j].Node
	})

	return clocks
}

func (e *entry) version() command.Version {
	items := e.items

	if items == nil {
		items = []string{}
	}

	return command.Version{Items: items, Clocks: e.clockList()}
}

func toClockMap(clocks []command.Clock) map[string]int {
	m := make(map[string]int, len(clocks))

	for _, c := range clocks {
		m[c.Node] = c.Timestamp
	}

	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[fakestore] cannot encode response: %s", err)
	}
}
