package p2p

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/coreledger/powchain/foundation/blockchain/database"
)

// seenCapacity bounds the recently-seen hash cache (spec.md §5: "seen-hash
// LRU (≤ 4096)"), preventing re-broadcast storms on gossip.
const seenCapacity = 4096

// seenCache deduplicates gossip announcements, same role and library as
// state.State's blacklist cache.
type seenCache struct {
	cache *lru.Cache
}

func newSeenCache() (*seenCache, error) {
	c, err := lru.New(seenCapacity)
	if err != nil {
		return nil, err
	}
	return &seenCache{cache: c}, nil
}

// markSeen records h as seen and reports whether it was already present.
func (s *seenCache) markSeen(h database.Hash) bool {
	if s.cache.Contains(h) {
		return true
	}
	s.cache.Add(h, struct{}{})
	return false
}
