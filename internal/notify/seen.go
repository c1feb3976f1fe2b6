package notify

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSeenSetSize = 512

// SeenSet remembers recently displayed message IDs with bounded retention
type SeenSet struct {
	cache *lru.Cache[string, struct{}]
}

func NewSeenSet(size int) *SeenSet {
	if size <= 0 {
		size = defaultSeenSetSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// only possible for a non-positive size
		panic(err)
	}
	return &SeenSet{cache: cache}
}

// FirstSight records id and reports whether it had not been seen before.
// Empty IDs are never deduplicated.
func (s *SeenSet) FirstSight(id string) bool {
	if id == "" {
		return true
	}
	seen, _ := s.cache.ContainsOrAdd(id, struct{}{})
	return !seen
}

// Forget removes id so its next sighting counts as the first
func (s *SeenSet) Forget(id string) {
	if id != "" {
		s.cache.Remove(id)
	}
}

func (s *SeenSet) Len() int {
	return s.cache.Len()
}
