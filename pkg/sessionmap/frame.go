package sessionmap

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

// Every encoded record in this package carries a (struct_v, compat_v,
// length) preamble, following the project's standard versioned binary
// framing. A decoder refuses a record whose struct_v is older than the
// compat_v it supports, so the on-disk format can grow new optional fields
// without breaking readers of the previous version.
//
// Wire layout: u8 struct_v, u8 compat_v, u32 length (BigEndian), then
// `length` bytes of payload specific to the record type.
const frameHeaderSize = 1 + 1 + 4

// encodeFrameHeader writes the (struct_v, compat_v, length) preamble for a
// payload of the given length.
func encodeFrameHeader(structV, compatV uint8, payloadLen int) []byte {
	hdr := make([]byte, frameHeaderSize)
	hdr[0] = structV
	hdr[1] = compatV
	binary.BigEndian.PutUint32(hdr[2:], uint32(payloadLen))
	return hdr
}

// frameHeader is a decoded (struct_v, compat_v, length) preamble.
type frameHeader struct {
	StructV uint8
	CompatV uint8
	Length  uint32
}

// decodeFrameHeader reads and validates a frame preamble from buf, returning
// the header and the remaining bytes after it. compatVSupported is the
// oldest struct_v this decoder can still read; a stream with an older
// struct_v is a malformed/incompatible record.
func decodeFrameHeader(buf []byte, compatVSupported uint8) (frameHeader, []byte, error) {
	if len(buf) < frameHeaderSize {
		return frameHeader{}, nil, smerrors.NewMalformedInput("truncated frame header", fmt.Sprintf("need %d bytes, have %d", frameHeaderSize, len(buf)))
	}

	hdr := frameHeader{
		StructV: buf[0],
		CompatV: buf[1],
		Length:  binary.BigEndian.Uint32(buf[2:6]),
	}

	if hdr.StructV < compatVSupported {
		return frameHeader{}, nil, smerrors.NewMalformedInput("incompatible struct_v", fmt.Sprintf("struct_v=%d < compat_v_supported=%d", hdr.StructV, compatVSupported))
	}

	rest := buf[frameHeaderSize:]
	if uint32(len(rest)) < hdr.Length {
		return frameHeader{}, nil, smerrors.NewMalformedInput("truncated frame payload", fmt.Sprintf("need %d bytes, have %d", hdr.Length, len(rest)))
	}

	return hdr, rest, nil
}

// putUint64 appends a big-endian uint64 to buf.
func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// takeUint64 reads a big-endian uint64 from the front of buf, returning the
// value and the remaining bytes.
func takeUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, smerrors.NewMalformedInput("truncated u64", fmt.Sprintf("have %d bytes", len(buf)))
	}
	return binary.BigEndian.Uint64(buf[:8]), buf[8:], nil
}

// putUint32 appends a big-endian uint32 to buf.
func putUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// takeUint32 reads a big-endian uint32 from the front of buf, returning the
// value and the remaining bytes.
func takeUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, smerrors.NewMalformedInput("truncated u32", fmt.Sprintf("have %d bytes", len(buf)))
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

// putString appends a length-prefixed (u32 length) string to buf.
func putString(buf []byte, s string) []byte {
	buf = putUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// takeString reads a length-prefixed string from the front of buf.
func takeString(buf []byte) (string, []byte, error) {
	n, rest, err := takeUint32(buf)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(rest)) < n {
		return "", nil, smerrors.NewMalformedInput("truncated string", fmt.Sprintf("need %d bytes, have %d", n, len(rest)))
	}
	return string(rest[:n]), rest[n:], nil
}

// putUint64Set appends a length-prefixed set of u64 values to buf.
func putUint64Set(buf []byte, set map[uint64]struct{}) []byte {
	buf = putUint32(buf, uint32(len(set)))
	for v := range set {
		buf = putUint64(buf, v)
	}
	return buf
}

// takeUint64Set reads a length-prefixed set of u64 values from buf.
func takeUint64Set(buf []byte) (map[uint64]struct{}, []byte, error) {
	n, rest, err := takeUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	set := make(map[uint64]struct{}, n)
	for i := uint32(0); i < n; i++ {
		var v uint64
		v, rest, err = takeUint64(rest)
		if err != nil {
			return nil, nil, err
		}
		set[v] = struct{}{}
	}
	return set, rest, nil
}

// putStringMap appends a length-prefixed string->string map to buf.
func putStringMap(buf []byte, m map[string]string) []byte {
	buf = putUint32(buf, uint32(len(m)))
	for k, v := range m {
		buf = putString(buf, k)
		buf = putString(buf, v)
	}
	return buf
}

// takeStringMap reads a length-prefixed string->string map from buf.
func takeStringMap(buf []byte) (map[string]string, []byte, error) {
	n, rest, err := takeUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		var k, v string
		k, rest, err = takeString(rest)
		if err != nil {
			return nil, nil, err
		}
		v, rest, err = takeString(rest)
		if err != nil {
			return nil, nil, err
		}
		m[k] = v
	}
	return m, rest, nil
}
