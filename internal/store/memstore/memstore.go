// Package memstore is an in-memory implementation of the store gateway used
// by tests and local development. Documents round-trip through bson so the
// same struct tags drive this store and the Mongo-backed one.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"kollektiv/internal/store"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is a map-backed document store safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]bson.M

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

type subscription struct {
	collection string
	preds      []store.Predicate
	fn         func(store.Event)
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		data: make(map[string]map[string]bson.M),
		subs: make(map[int]*subscription),
	}
}

var _ store.Store = (*Store)(nil)

func encode(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

func decode(m bson.M, out any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return bson.Unmarshal(raw, out)
}

// clone detaches a document from the store so it can be read after the lock
// is released.
func clone(m bson.M) bson.M {
	out, err := encode(m)
	if err != nil {
		return bson.M{}
	}
	return out
}

// Get implements store.Store. The lock is held through decoding; stored maps
// must never be read while a writer can mutate them.
func (s *Store) Get(_ context.Context, collection, id string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	return decode(doc, out)
}

// Query implements store.Store. Sorting and decoding read the stored maps, so
// the lock is held until the results are decoded.
func (s *Store) Query(_ context.Context, collection string, q store.Query, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]bson.M, 0)
	for _, doc := range s.data[collection] {
		if matches(doc, q.Predicates) {
			matched = append(matched, doc)
		}
	}

	if q.OrderField != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := lookup(matched[i], q.OrderField)
			b, _ := lookup(matched[j], q.OrderField)
			cmp, ok := compare(a, b)
			if !ok {
				return false
			}
			if q.OrderDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	return decodeSlice(matched, out)
}

func decodeSlice(docs []bson.M, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("query target must be a pointer to a slice, got %T", out)
	}
	slice := rv.Elem()
	slice.Set(reflect.MakeSlice(slice.Type(), 0, len(docs)))
	elemType := slice.Type().Elem()

	for _, doc := range docs {
		if elemType.Kind() == reflect.Pointer {
			elem := reflect.New(elemType.Elem())
			if err := decode(doc, elem.Interface()); err != nil {
				return err
			}
			slice.Set(reflect.Append(slice, elem))
			continue
		}
		elem := reflect.New(elemType)
		if err := decode(doc, elem.Interface()); err != nil {
			return err
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	return nil
}

// Create implements store.Store.
func (s *Store) Create(_ context.Context, collection string, doc any) (string, error) {
	m, err := encode(doc)
	if err != nil {
		return "", err
	}
	id, _ := m["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		m["_id"] = id
	}

	snapshot := clone(m)

	s.mu.Lock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]bson.M)
	}
	s.data[collection][id] = m
	s.mu.Unlock()

	s.notify(store.Event{Type: store.EventCreated, Collection: collection, ID: id, Doc: snapshot})
	return id, nil
}

// Update implements store.Store.
func (s *Store) Update(_ context.Context, collection, id string, fields map[string]any) error {
	norm, err := encode(bson.M(fields))
	if err != nil {
		return err
	}

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = norm[k]
	}
	snapshot := clone(doc)
	s.mu.Unlock()

	s.notify(store.Event{Type: store.EventUpdated, Collection: collection, ID: id, Doc: snapshot})
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if ok {
		delete(s.data[collection], id)
	}
	s.mu.Unlock()

	if ok {
		s.notify(store.Event{Type: store.EventDeleted, Collection: collection, ID: id, Doc: doc})
	}
	return nil
}

// ArrayUnion implements store.Store.
func (s *Store) ArrayUnion(_ context.Context, collection, id, field string, values ...any) error {
	return s.mutateArray(collection, id, field, func(arr bson.A) bson.A {
		for _, v := range values {
			nv := normalize(v)
			present := false
			for _, existing := range arr {
				if eq, ok := compare(existing, nv); ok && eq == 0 {
					present = true
					break
				}
			}
			if !present {
				arr = append(arr, nv)
			}
		}
		return arr
	})
}

// ArrayRemove implements store.Store.
func (s *Store) ArrayRemove(_ context.Context, collection, id, field string, values ...any) error {
	return s.mutateArray(collection, id, field, func(arr bson.A) bson.A {
		kept := make(bson.A, 0, len(arr))
		for _, existing := range arr {
			remove := false
			for _, v := range values {
				if eq, ok := compare(existing, normalize(v)); ok && eq == 0 {
					remove = true
					break
				}
			}
			if !remove {
				kept = append(kept, existing)
			}
		}
		return kept
	})
}

func (s *Store) mutateArray(collection, id, field string, mutate func(bson.A) bson.A) error {
	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	arr, _ := doc[field].(bson.A)
	doc[field] = mutate(arr)
	snapshot := clone(doc)
	s.mu.Unlock()

	s.notify(store.Event{Type: store.EventUpdated, Collection: collection, ID: id, Doc: snapshot})
	return nil
}

// Count implements store.Store.
func (s *Store) Count(_ context.Context, collection string, preds ...store.Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, doc := range s.data[collection] {
		if matches(doc, preds) {
			n++
		}
	}
	return n, nil
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(_ context.Context, collection string, preds []store.Predicate, fn func(store.Event)) (store.CancelFunc, error) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscription{collection: collection, preds: preds, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}, nil
}

// notify fans the event out to matching subscribers. ev.Doc is detached from
// the store; callbacks may read it without holding any lock.
func (s *Store) notify(ev store.Event) {
	s.subMu.Lock()
	var targets []func(store.Event)
	for _, sub := range s.subs {
		if sub.collection != ev.Collection {
			continue
		}
		if ev.Doc != nil && !matches(ev.Doc, sub.preds) {
			continue
		}
		targets = append(targets, sub.fn)
	}
	s.subMu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

func matches(doc bson.M, preds []store.Predicate) bool {
	for _, p := range preds {
		val, ok := lookup(doc, p.Field)
		if !ok {
			return false
		}
		want := normalize(p.Value)
		switch p.Op {
		case store.OpArrayContains:
			arr, ok := val.(bson.A)
			if !ok {
				return false
			}
			found := false
			for _, item := range arr {
				if cmp, ok := compare(item, want); ok && cmp == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			cmp, ok := compare(val, want)
			if !ok {
				return false
			}
			switch p.Op {
			case store.OpEq:
				if cmp != 0 {
					return false
				}
			case store.OpLt:
				if cmp >= 0 {
					return false
				}
			case store.OpLte:
				if cmp > 0 {
					return false
				}
			case store.OpGt:
				if cmp <= 0 {
					return false
				}
			case store.OpGte:
				if cmp < 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func lookup(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(bson.M)
		if !ok {
			if mm, ok2 := cur.(map[string]any); ok2 {
				m = bson.M(mm)
			} else {
				return nil, false
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalize converts a Go value into its bson-decoded representation so that
// predicate values compare cleanly against stored fields.
func normalize(v any) any {
	m, err := encode(bson.M{"v": v})
	if err != nil {
		return v
	}
	return m["v"]
}

// compare orders two bson-decoded scalar values. The bool result is false
// when the values are not comparable.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case bson.DateTime:
		bv, ok := b.(bson.DateTime)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
