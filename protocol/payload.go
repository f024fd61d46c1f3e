package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/merkle"
)

// PayloadVersion is the wire format version written by the encoder.
const PayloadVersion = 1

const headerSize = 12

// header is the self-describing prefix of a payload:
//
//	version | mode | security | depth | epoch size (u32) | leaf offset (u32)
type header struct {
	version   byte
	mode      Mode
	security  int
	depth     int
	epochSize uint32
	offset    uint32
}

func (h header) marshal() []byte {
	buf := make([]byte, headerSize)
	buf[0] = h.version
	buf[1] = byte(h.mode)
	buf[2] = byte(h.security)
	buf[3] = byte(h.depth)
	binary.BigEndian.PutUint32(buf[4:8], h.epochSize)
	binary.BigEndian.PutUint32(buf[8:12], h.offset)
	return buf
}

// parsedPayload holds the sections of a payload. Slices alias the input.
type parsedPayload struct {
	header    header
	raw       []byte
	path      []crypto.Hash
	signature []byte
	masked    []byte
}

// payloadSize returns the length of a payload carrying a body of bodyLen bytes.
func payloadSize(security int, depth int, bodyLen int) int {
	return headerSize + depth*crypto.HashSize + crypto.SignatureSize(security) + bodyLen + crypto.HashSize
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// parsePayload splits untrusted bytes into payload sections. It never panics.
func parsePayload(payload []byte) (*parsedPayload, error) {
	if len(payload) < headerSize {
		return nil, malformed("%d bytes is shorter than the header", len(payload))
	}

	h := header{
		version:   payload[0],
		mode:      Mode(payload[1]),
		security:  int(payload[2]),
		depth:     int(payload[3]),
		epochSize: binary.BigEndian.Uint32(payload[4:8]),
		offset:    binary.BigEndian.Uint32(payload[8:12]),
	}

	switch {
	case h.version != PayloadVersion:
		return nil, malformed("unsupported version %d", h.version)
	case !h.mode.Valid():
		return nil, malformed("unknown mode %d", payload[1])
	case !crypto.ValidSecurity(h.security):
		return nil, malformed("security %d out of range", h.security)
	case h.epochSize == 0 || h.epochSize > MaxEpochSize:
		return nil, malformed("epoch size %d out of range", h.epochSize)
	case h.depth > merkle.MaxDepth || h.depth != merkle.Depth(int(h.epochSize)):
		return nil, malformed("path length %d inconsistent with epoch size %d", h.depth, h.epochSize)
	case h.offset >= h.epochSize:
		return nil, malformed("leaf offset %d out of range for epoch size %d", h.offset, h.epochSize)
	}

	minSize := payloadSize(h.security, h.depth, 0)
	if len(payload) < minSize {
		return nil, malformed("%d bytes is shorter than the minimum %d", len(payload), minSize)
	}

	pos := headerSize
	path := make([]crypto.Hash, h.depth)
	for i := range path {
		copy(path[i][:], payload[pos:pos+crypto.HashSize])
		pos += crypto.HashSize
	}

	sigEnd := pos + crypto.SignatureSize(h.security)

	return &parsedPayload{
		header:    h,
		raw:       payload[:headerSize],
		path:      path,
		signature: payload[pos:sigEnd],
		masked:    payload[sigEnd:],
	}, nil
}

// signedData is the byte string a leaf key signs: header, body and next root.
func signedData(headerBytes []byte, plain []byte) []byte {
	data := make([]byte, 0, len(headerBytes)+len(plain))
	data = append(data, headerBytes...)
	return append(data, plain...)
}
