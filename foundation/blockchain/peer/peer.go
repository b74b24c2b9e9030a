// Package peer maintains the set of known peers and each one's handshake
// and sync state.
package peer

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncState is a peer's position in the per-peer sync state machine.
type SyncState int

// The sync states a peer connection moves through.
const (
	Handshaking SyncState = iota
	Idle
	RequestingHeight
	FetchingBlocks
)

// String renders SyncState for logging.
func (s SyncState) String() string {
	switch s {
	case Handshaking:
		return "handshaking"
	case Idle:
		return "idle"
	case RequestingHeight:
		return "requesting_height"
	case FetchingBlocks:
		return "fetching_blocks"
	default:
		return "unknown"
	}
}

// Peer represents one connected remote node.
type Peer struct {
	ID   string
	Addr string
	Conn net.Conn

	mu       sync.Mutex
	state    SyncState
	height   uint64
	tipHash  [32]byte
	lastSeen time.Time
}

// New wraps a connection as a Peer beginning in the Handshaking state.
func New(addr string, conn net.Conn) *Peer {
	return &Peer{
		ID:       uuid.New().String(),
		Addr:     addr,
		Conn:     conn,
		state:    Handshaking,
		lastSeen: time.Now(),
	}
}

// State returns the peer's current sync state.
func (p *Peer) State() SyncState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the peer to state.
func (p *Peer) SetState(state SyncState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// Touch records a liveness observation (a received message of any kind).
func (p *Peer) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now()
}

// LastSeen returns the last time a message was observed from this peer.
func (p *Peer) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// SetHeight records the peer's most recently advertised chain height.
func (p *Peer) SetHeight(height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height = height
}

// Height returns the peer's most recently advertised chain height.
func (p *Peer) Height() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

// SetTip records the peer's most recently advertised height and tip hash
// together, since both arrive in the same Ping/Pong/Height envelope.
func (p *Peer) SetTip(height uint64, tipHash [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height = height
	p.tipHash = tipHash
}

// TipHash returns the peer's most recently advertised tip hash.
func (p *Peer) TipHash() [32]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tipHash
}

// Close releases the underlying connection.
func (p *Peer) Close() error {
	if p.Conn == nil {
		return nil
	}
	return p.Conn.Close()
}

// Table tracks the set of connected peers, keyed by ID.
type Table struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewTable constructs an empty peer table.
func NewTable() *Table {
	return &Table{peers: make(map[string]*Peer)}
}

// Add registers a peer. Returns false if a peer with the same ID already
// exists.
func (t *Table) Add(p *Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.peers[p.ID]; exists {
		return false
	}
	t.peers[p.ID] = p
	return true
}

// Remove drops a peer from the table by ID.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// Get returns the peer with the given ID, if connected.
func (t *Table) Get(id string) (*Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	return p, ok
}

// Copy returns a snapshot slice of every currently connected peer, excluding
// the one matching exceptID.
func (t *Table) Copy(exceptID string) []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]*Peer, 0, len(t.peers))
	for id, p := range t.peers {
		if id == exceptID {
			continue
		}
		peers = append(peers, p)
	}
	return peers
}

// Len returns the number of connected peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// BestHeight returns the ID and height of the peer advertising the highest
// chain height, used to decide whether local sync should kick off.
func (t *Table) BestHeight() (string, uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var bestID string
	var bestHeight uint64
	found := false
	for id, p := range t.peers {
		h := p.Height()
		if !found || h > bestHeight {
			bestID, bestHeight, found = id, h, true
		}
	}
	return bestID, bestHeight, found
}
