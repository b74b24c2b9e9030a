package p2p

// handleGetPeers replies with the addresses of every other connected peer
// (no reply when there are none). The server only answers GetPeers and acts
// on Peers replies; it never sends GetPeers itself, so no periodic peer-list
// exchange takes place.
func (s *Server) handleGetPeers(c *conn, f frame) error {
	s.connsMu.RLock()
	addrs := make([]string, 0, len(s.conns))
	for id, other := range s.conns {
		if id == c.peer.ID {
			continue
		}
		addrs = append(addrs, other.peer.Addr)
	}
	s.connsMu.RUnlock()

	if len(addrs) > 0 {
		c.send(KindPeers, encodeAddrList(addrs))
	}
	return nil
}

func (s *Server) handlePeers(c *conn, f frame) error {
	addrs, err := decodeAddrList(f.payload)
	if err != nil {
		return err
	}

	s.connsMu.RLock()
	known := make(map[string]bool, len(s.conns))
	for _, other := range s.conns {
		known[other.peer.Addr] = true
	}
	s.connsMu.RUnlock()

	for _, addr := range addrs {
		if addr == s.cfg.ListenAddr || known[addr] {
			continue
		}
		go s.Dial(addr)
	}
	return nil
}
