package p2p

import (
	"net"

	"github.com/coreledger/powchain/foundation/blockchain/peer"
)

// conn pairs a live TCP connection with its peer bookkeeping and outbound
// queue. One readLoop and one writeLoop goroutine run per conn.
type conn struct {
	nc   net.Conn
	peer *peer.Peer
	out  *outbox
	done chan struct{}
}

func newConn(nc net.Conn, p *peer.Peer) *conn {
	return &conn{
		nc:   nc,
		peer: p,
		out:  newOutbox(),
		done: make(chan struct{}),
	}
}

// send queues a message for delivery; back-pressure is handled by the
// outbox, never by blocking the caller.
func (c *conn) send(kind Kind, payload []byte) {
	c.out.enqueue(frame{kind: kind, payload: payload})
}

// close tears down the connection exactly once.
func (c *conn) close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.out.close()
	c.nc.Close()
}

func (c *conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbox to the wire until the connection closes.
func (c *conn) writeLoop() {
	for {
		f, ok := c.out.dequeue()
		if !ok {
			return
		}
		if err := writeFrame(c.nc, f); err != nil {
			c.close()
			return
		}
	}
}

// readLoop reads frames off the wire and hands each to handle until a
// malformed frame or network error closes the connection, per spec.md
// §4.5's "malformed messages -> disconnect".
func (c *conn) readLoop(handle func(*conn, frame) error) {
	defer c.close()

	for {
		f, err := readFrame(c.nc)
		if err != nil {
			return
		}
		c.peer.Touch()
		if err := handle(c, f); err != nil {
			return
		}
	}
}
