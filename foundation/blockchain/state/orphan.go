package state

import "github.com/coreledger/powchain/foundation/blockchain/database"

// parkOrphan buffers a block whose parent hasn't arrived yet, keyed by the
// missing parent's ID. When the buffer already holds orphanCapacity blocks,
// the oldest parked parent key (and every block waiting on it) is evicted,
// repeatedly, until there is room, to bound memory use.
func (s *State) parkOrphan(block database.Block) {
	s.orphanMu.Lock()
	defer s.orphanMu.Unlock()

	parent := block.Header.Parent

	total := 0
	for _, waiting := range s.orphansByHash {
		total += len(waiting)
	}
	for total >= orphanCapacity && len(s.orphanOrder) > 0 {
		oldest := s.orphanOrder[0]
		s.orphanOrder = s.orphanOrder[1:]
		total -= len(s.orphansByHash[oldest])
		delete(s.orphansByHash, oldest)
	}

	if _, exists := s.orphansByHash[parent]; !exists {
		s.orphanOrder = append(s.orphanOrder, parent)
	}

	s.orphansByHash[parent] = append(s.orphansByHash[parent], block)
}

// promoteOrphans re-attempts insertion of every block that was waiting on
// parentID, recursively: accepting one orphan may itself unlock further
// orphans parked on it.
func (s *State) promoteOrphans(parentID database.Hash) {
	s.orphanMu.Lock()
	waiting, ok := s.orphansByHash[parentID]
	if !ok {
		s.orphanMu.Unlock()
		return
	}
	delete(s.orphansByHash, parentID)
	for i, id := range s.orphanOrder {
		if id == parentID {
			s.orphanOrder = append(s.orphanOrder[:i], s.orphanOrder[i+1:]...)
			break
		}
	}
	s.orphanMu.Unlock()

	for _, block := range waiting {
		// Ignore the result: a block that fails validation here is simply
		// dropped (and blacklisted by InsertBlock), the same outcome as if
		// it had arrived directly.
		_, _ = s.InsertBlock(block)
	}
}
