package peer_test

import (
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/peer"
)

func Test_NewPeerStartsHandshaking(t *testing.T) {
	p := peer.New("127.0.0.1:9000", nil)
	if p.State() != peer.Handshaking {
		t.Fatalf("expected a new peer to start Handshaking, got %s", p.State())
	}
}

func Test_SetStateTransitions(t *testing.T) {
	p := peer.New("127.0.0.1:9000", nil)
	p.SetState(peer.Idle)
	if p.State() != peer.Idle {
		t.Fatalf("expected Idle, got %s", p.State())
	}
}

func Test_TableAddRejectsDuplicateID(t *testing.T) {
	table := peer.NewTable()
	p := peer.New("127.0.0.1:9000", nil)

	if !table.Add(p) {
		t.Fatalf("expected first Add to succeed")
	}
	if table.Add(p) {
		t.Fatalf("expected second Add of the same peer to fail")
	}
	if table.Len() != 1 {
		t.Fatalf("expected table length 1, got %d", table.Len())
	}
}

func Test_TableCopyExcludesGivenID(t *testing.T) {
	table := peer.NewTable()
	p1 := peer.New("127.0.0.1:9000", nil)
	p2 := peer.New("127.0.0.1:9001", nil)
	table.Add(p1)
	table.Add(p2)

	others := table.Copy(p1.ID)
	if len(others) != 1 || others[0].ID != p2.ID {
		t.Fatalf("expected Copy to exclude p1, got %+v", others)
	}
}

func Test_TableRemove(t *testing.T) {
	table := peer.NewTable()
	p := peer.New("127.0.0.1:9000", nil)
	table.Add(p)
	table.Remove(p.ID)

	if table.Len() != 0 {
		t.Fatalf("expected table to be empty after Remove")
	}
}

func Test_BestHeightPicksHighest(t *testing.T) {
	table := peer.NewTable()
	p1 := peer.New("127.0.0.1:9000", nil)
	p2 := peer.New("127.0.0.1:9001", nil)
	p1.SetHeight(5)
	p2.SetHeight(10)
	table.Add(p1)
	table.Add(p2)

	id, height, ok := table.BestHeight()
	if !ok {
		t.Fatalf("expected a best height to be found")
	}
	if id != p2.ID || height != 10 {
		t.Fatalf("expected p2 with height 10 to be best, got id=%s height=%d", id, height)
	}
}

func Test_CloseNilConnIsNoop(t *testing.T) {
	p := peer.New("127.0.0.1:9000", nil)
	if err := p.Close(); err != nil {
		t.Fatalf("expected no error closing a peer with a nil conn, got %v", err)
	}
}
