// Package memory is an IStorage kept entirely in process memory.
//
// Every document carries its own mutex, so conditional updates on different
// documents never contend. The collection lock is held only while a document
// is looked up or inserted.
package memory

import (
	"sort"
	"sync"
	"time"

	"taxidispatch/storage"
)

type Store struct {
	orders     *collection[orderDoc]
	drivers    *collection[driverDoc]
	clients    *collection[clientDoc]
	actionLogs *actionLogStore
}

func New() *Store {
	return &Store{
		orders:     newCollection[orderDoc](),
		drivers:    newCollection[driverDoc](),
		clients:    newCollection[clientDoc](),
		actionLogs: &actionLogStore{},
	}
}

func (s *Store) Order() storage.IOrderStorage         { return &orderRepo{s: s} }
func (s *Store) Driver() storage.IDriverStorage       { return &driverRepo{s: s} }
func (s *Store) Client() storage.IClientStorage       { return &clientRepo{s: s} }
func (s *Store) ActionLog() storage.IActionLogStorage { return s.actionLogs }
func (s *Store) Close()                               {}

type document[T any] struct {
	mu  sync.Mutex
	val T
}

type collection[T any] struct {
	mu   sync.RWMutex
	docs map[string]*document[T]
	// byTelegramID indexes documents with a unique Telegram id.
	byTelegramID map[int64]string
	seq          []string
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{
		docs:         make(map[string]*document[T]),
		byTelegramID: make(map[int64]string),
	}
}

func (c *collection[T]) get(id string) (*document[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	return d, ok
}

func (c *collection[T]) getByTelegramID(tgID int64) (*document[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byTelegramID[tgID]
	if !ok {
		return nil, false
	}
	return c.docs[id], true
}

// insertLocked adds a document; the caller holds c.mu for writing.
func (c *collection[T]) insertLocked(id string, val T) *document[T] {
	d := &document[T]{val: val}
	c.docs[id] = d
	c.seq = append(c.seq, id)
	return d
}

// snapshot returns every document in insertion order.
func (c *collection[T]) snapshot() []*document[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*document[T], 0, len(c.seq))
	for _, id := range c.seq {
		out = append(out, c.docs[id])
	}
	return out
}

// read copies the document value out under its lock.
func (d *document[T]) read() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.val
}

// newestFirst sorts by creation time, later insertions first on ties.
func newestFirst[T any](items []T, createdAt func(T) time.Time) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
