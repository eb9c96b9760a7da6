package realtime

// entity is a keyed record with notification-gating comparison fields
type entity[T any] interface {
	Key() string
	SameAs(prev T) bool
}

// store is a keyed cache that keeps first-seen key order, so snapshot reads are stable.
// Not safe for concurrent use; the Cache guards it.
type store[T any] struct {
	keys  []string
	items map[string]T
}

func newStore[T any]() *store[T] {
	return &store[T]{items: make(map[string]T)}
}

func (s *store[T]) get(key string) (T, bool) {
	v, ok := s.items[key]
	return v, ok
}

func (s *store[T]) set(key string, v T) {
	if _, ok := s.items[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.items[key] = v
}

// retain keeps only keys for which keep returns true and reports how many were removed
func (s *store[T]) retain(keep func(key string) bool) int {
	kept := s.keys[:0]
	removed := 0
	for _, key := range s.keys {
		if keep(key) {
			kept = append(kept, key)
			continue
		}
		delete(s.items, key)
		removed++
	}
	s.keys = kept
	return removed
}

// list returns the entries in key order
func (s *store[T]) list() []T {
	out := make([]T, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, s.items[key])
	}
	return out
}

func (s *store[T]) len() int {
	return len(s.keys)
}

func (s *store[T]) clear() {
	s.keys = nil
	s.items = make(map[string]T)
}

// diff writes incoming records into s and returns those whose comparison fields changed
// (or that are new), in incoming order. Records equal on comparison fields still overwrite
// the cached value. Keys cached before but absent from incoming are evicted silently.
func diff[T entity[T]](s *store[T], incoming []T) (changed []T, evicted int) {
	seen := make(map[string]struct{}, len(incoming))

	for _, rec := range incoming {
		key := rec.Key()
		if key == "" {
			continue
		}
		seen[key] = struct{}{}

		prev, ok := s.get(key)
		s.set(key, rec)
		if !ok || !rec.SameAs(prev) {
			changed = append(changed, rec)
		}
	}

	evicted = s.retain(func(key string) bool {
		_, ok := seen[key]
		return ok
	})

	return changed, evicted
}
