package p2p

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/coreledger/powchain/foundation/blockchain/chainerr"
)

// protocolVersion is the version byte every frame opens with. A peer
// advertising a version this node doesn't understand is disconnected
// rather than guessed at.
const protocolVersion uint8 = 1

// maxFrameSize bounds a single frame's payload. Inbound frames exceeding it
// close the connection per spec.md §4.5's back-pressure rule; sized well
// above a full Blocks reply for a windowed sync batch.
const maxFrameSize = 8 << 20 // 8 MiB

// ErrOversizedFrame is returned by readFrame when a peer's declared payload
// length exceeds maxFrameSize.
var ErrOversizedFrame = errors.New("p2p: frame exceeds maximum size")

// ErrUnsupportedVersion is returned by readFrame when a peer's frame opens
// with a version byte this node doesn't speak.
var ErrUnsupportedVersion = errors.New("p2p: unsupported protocol version")

type frame struct {
	kind    Kind
	payload []byte
}

// writeFrame serializes {version u8, kind u8, len u32, payload} directly to
// w, per spec.md §6's P2P wire format.
func writeFrame(w io.Writer, f frame) error {
	header := make([]byte, 6)
	header[0] = protocolVersion
	header[1] = byte(f.kind)
	binary.LittleEndian.PutUint32(header[2:], uint32(len(f.payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("p2p: writing frame header: %w", err)
	}
	if len(f.payload) == 0 {
		return nil
	}
	if _, err := w.Write(f.payload); err != nil {
		return fmt.Errorf("p2p: writing frame payload: %w", err)
	}
	return nil
}

// readFrame reads one frame from r, rejecting unsupported versions and
// oversized payloads before allocating a buffer for them.
func readFrame(r io.Reader) (frame, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, err
	}

	if header[0] != protocolVersion {
		return frame{}, chainerr.Wrap(chainerr.Protocol, ErrUnsupportedVersion)
	}

	length := binary.LittleEndian.Uint32(header[2:])
	if length > maxFrameSize {
		return frame{}, chainerr.Wrap(chainerr.Protocol, ErrOversizedFrame)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, err
		}
	}

	return frame{kind: Kind(header[1]), payload: payload}, nil
}
