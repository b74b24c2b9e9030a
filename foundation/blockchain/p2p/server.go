package p2p

import (
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/peer"
)

// EventHandler is the logging callback shape shared across the foundation
// packages (state.EventHandler, worker's evH), threaded through here too.
type EventHandler func(format string, args ...any)

// heartbeatInterval is how often a connected peer's height is re-advertised
// via Ping, the supplemented "height-advertising heartbeat" of SPEC_FULL.md
// §9, also driving the worker's BestPeerHeight-triggered sync check.
const heartbeatInterval = 10 * time.Second

// invalidBlockBanThreshold is how many invalid blocks from one remote
// address trigger a brief ban, per spec.md §4.5's "repeated invalid blocks
// -> brief ban".
const invalidBlockBanThreshold = 3

// banDuration is how long a banned address is refused new connections.
const banDuration = 5 * time.Minute

// ChainReader is the read surface the p2p layer needs from the Chain &
// State Engine to answer peer requests, know its own tip, and recognize
// blocks its own state has already permanently rejected.
type ChainReader interface {
	GetBlock(id database.Hash) (database.Block, bool, error)
	Tip() (database.Hash, uint64, *big.Int)
	IsBlacklisted(id database.Hash) bool
}

// Mempool is the surface the p2p layer needs from the mempool: serving
// GetTransactions requests and admitting transactions relayed by peers.
type Mempool interface {
	Get(id database.Hash) (database.SignedTx, bool)
	Insert(tx database.SignedTx, state mempool.StateView) (mempool.Result, error)
}

// Receiver is the worker-facing consumer interface the p2p layer hands
// newly-received blocks to for validation and insertion off the
// connection's read loop. *worker.Worker satisfies it structurally; p2p
// never imports the worker package (the same "interface on the consumer
// side" idiom worker.Broadcaster uses in reverse). Received transactions
// are admitted directly into the mempool here (see handleTransactions)
// since, unlike a block, admission doesn't need the chain's writer lock.
type Receiver interface {
	SubmitRemoteBlock(database.Block)
}

// StateView is the account lookup mempool admission needs, satisfied
// directly by *state.State.
type StateView interface {
	GetAccount(addr database.Address) (database.Account, error)
}

// Config wires a Server to the node's local chain, mempool, and receiver.
type Config struct {
	ListenAddr string
	Chain      ChainReader
	Mempool    Mempool
	State      StateView
	Receiver   Receiver
	EvHandler  EventHandler
}

// Server is a running p2p node: it accepts inbound connections, dials
// outbound ones, and implements worker.Broadcaster for the local worker to
// reach the network.
type Server struct {
	cfg   Config
	evH   EventHandler
	table *peer.Table
	seen  *seenCache
	ln    net.Listener

	connsMu sync.RWMutex
	conns   map[string]*conn // keyed by peer.Peer.ID

	pendingMu sync.Mutex
	pending   map[string]chan []database.Block // keyed by peer.Peer.ID

	banMu sync.Mutex
	bans  map[string]time.Time
	fails map[string]int

	shut chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Server. Call ListenAndServe to start accepting
// connections.
func New(cfg Config) (*Server, error) {
	seen, err := newSeenCache()
	if err != nil {
		return nil, fmt.Errorf("p2p: constructing seen cache: %w", err)
	}

	evH := cfg.EvHandler
	if evH == nil {
		evH = func(string, ...any) {}
	}

	return &Server{
		cfg:     cfg,
		evH:     evH,
		table:   peer.NewTable(),
		seen:    seen,
		conns:   make(map[string]*conn),
		pending: make(map[string]chan []database.Block),
		bans:    make(map[string]time.Time),
		fails:   make(map[string]int),
		shut:    make(chan struct{}),
	}, nil
}

// ListenAndServe opens cfg.ListenAddr and begins accepting peers in the
// background. It returns once the listener is open.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("p2p: listening on %s: %w", s.cfg.ListenAddr, err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Close stops accepting connections and closes every live peer connection.
func (s *Server) Close() {
	close(s.shut)
	if s.ln != nil {
		s.ln.Close()
	}

	s.connsMu.Lock()
	for _, c := range s.conns {
		c.close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.shut:
				return
			default:
				s.evH("p2p: accept: %s", err)
				return
			}
		}

		if s.isBanned(nc.RemoteAddr().String()) {
			nc.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConn(nc, false)
	}
}

// Dial connects out to addr and runs the connection until it closes,
// reconnecting with exponential backoff per spec.md §4.5's failure
// handling. Intended to be run in its own goroutine per configured seed
// peer.
func (s *Server) Dial(addr string) {
	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		select {
		case <-s.shut:
			return
		default:
		}

		nc, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			s.evH("p2p: dial %s: %s", addr, err)
			select {
			case <-time.After(backoff):
			case <-s.shut:
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		s.wg.Add(1)
		s.handleConn(nc, true)
	}
}

func (s *Server) handleConn(nc net.Conn, outbound bool) {
	defer s.wg.Done()

	p := peer.New(nc.RemoteAddr().String(), nc)
	if !s.table.Add(p) {
		nc.Close()
		return
	}
	p.SetState(peer.Handshaking)

	c := newConn(nc, p)
	s.connsMu.Lock()
	s.conns[p.ID] = c
	s.connsMu.Unlock()

	s.evH("p2p: peer %s connected (addr=%s outbound=%t)", p.ID, p.Addr, outbound)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()

	s.sendHeightAdvert(c, KindPing)
	p.SetState(peer.Idle)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.heartbeatLoop(c)
	}()

	c.readLoop(s.dispatch)

	s.table.Remove(p.ID)
	s.connsMu.Lock()
	delete(s.conns, p.ID)
	s.connsMu.Unlock()
	s.pendingMu.Lock()
	delete(s.pending, p.ID)
	s.pendingMu.Unlock()

	s.evH("p2p: peer %s disconnected", p.ID)
}

func (s *Server) heartbeatLoop(c *conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.isClosed() {
				return
			}
			s.sendHeightAdvert(c, KindPing)
		case <-c.done:
			return
		case <-s.shut:
			return
		}
	}
}

func (s *Server) sendHeightAdvert(c *conn, kind Kind) {
	tip, height, _ := s.cfg.Chain.Tip()
	c.send(kind, encodeHeightAdvert(heightAdvert{Height: height, TipHash: tip}))
}

// AnnounceHeight proactively re-advertises this node's tip to every
// connected peer, rather than waiting for the next heartbeat tick. It is not
// part of worker.Broadcaster and the worker does not call it; without a
// call, peers learn a new local tip at the next heartbeat.
func (s *Server) AnnounceHeight() {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()

	for _, c := range s.conns {
		s.sendHeightAdvert(c, KindPing)
	}
}

func (s *Server) isBanned(addr string) bool {
	s.banMu.Lock()
	defer s.banMu.Unlock()

	until, ok := s.bans[addr]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(s.bans, addr)
		return false
	}
	return true
}

func (s *Server) recordInvalidBlock(addr string) {
	s.banMu.Lock()
	defer s.banMu.Unlock()

	s.fails[addr]++
	if s.fails[addr] >= invalidBlockBanThreshold {
		s.bans[addr] = time.Now().Add(banDuration)
		delete(s.fails, addr)
	}
}

// broadcastExcept sends a frame to every connected peer except excludeID,
// implementing spec.md §4.5's "announce ... to all peers except the
// sender" gossip fan-out.
func (s *Server) broadcastExcept(excludeID string, kind Kind, payload []byte) {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()

	for id, c := range s.conns {
		if id == excludeID {
			continue
		}
		c.send(kind, payload)
	}
}
