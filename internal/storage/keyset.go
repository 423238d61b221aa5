package storage

import (
	"fmt"

	"airdropScope/internal/model"
)

// KeySet is the in-memory view of known dedup keys. Keys only ever grow.
type KeySet struct {
	index  map[string]struct{}
	keys   []string
	loaded int
}

func NewKeySet() *KeySet {
	return &KeySet{index: make(map[string]struct{})}
}

// NewLoadedKeySet builds the set as it existed in durable state. Keys
// inserted afterwards are reported by Added.
func NewLoadedKeySet(keys []string) (*KeySet, error) {
	s := NewKeySet()
	for _, key := range keys {
		canonical, err := model.CanonicalKey(key)
		if err != nil {
			return nil, fmt.Errorf("invalid stored key %q: %w", key, err)
		}
		s.Insert(canonical)
	}
	s.loaded = len(s.keys)
	return s, nil
}

func (s *KeySet) Contains(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Insert adds key and reports whether it was new. This is the only place
// a dedup decision is made.
func (s *KeySet) Insert(key string) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

// Keys returns loaded keys followed by new keys in discovery order.
func (s *KeySet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Added returns keys inserted since the set was loaded.
func (s *KeySet) Added() []string {
	out := make([]string, len(s.keys)-s.loaded)
	copy(out, s.keys[s.loaded:])
	return out
}

func (s *KeySet) Len() int {
	return len(s.keys)
}

// MarkFlushed treats every current key as durable, so later Added calls
// only return keys discovered after this point.
func (s *KeySet) MarkFlushed() {
	s.loaded = len(s.keys)
}
