package sessionmap

import (
	"testing"

	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello")
	hdr := encodeFrameHeader(3, 1, len(payload))
	buf := append(hdr, payload...)

	got, rest, err := decodeFrameHeader(buf, 1)
	if err != nil {
		t.Fatalf("decodeFrameHeader: %v", err)
	}
	if got.StructV != 3 || got.CompatV != 1 || got.Length != uint32(len(payload)) {
		t.Fatalf("decoded header = %+v", got)
	}
	if string(rest) != string(payload) {
		t.Fatalf("rest = %q, want %q", rest, payload)
	}
}

func TestFrameHeaderRejectsIncompatibleStructV(t *testing.T) {
	hdr := encodeFrameHeader(1, 1, 0)
	_, _, err := decodeFrameHeader(hdr, 2)
	if !smerrors.IsMalformedInput(err) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}

func TestFrameHeaderRejectsTruncatedInput(t *testing.T) {
	_, _, err := decodeFrameHeader([]byte{1, 1}, 1)
	if !smerrors.IsMalformedInput(err) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}

func TestFrameHeaderRejectsTruncatedPayload(t *testing.T) {
	hdr := encodeFrameHeader(1, 1, 10)
	_, _, err := decodeFrameHeader(append(hdr, []byte("short")...), 1)
	if !smerrors.IsMalformedInput(err) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	buf := putUint64(nil, 0xdeadbeefcafebabe)
	got, rest, err := takeUint64(buf)
	if err != nil {
		t.Fatalf("takeUint64: %v", err)
	}
	if got != 0xdeadbeefcafebabe || len(rest) != 0 {
		t.Fatalf("got=%x rest=%v", got, rest)
	}
}

func TestStringRoundTrip(t *testing.T) {
	buf := putString(nil, "hello world")
	got, rest, err := takeString(buf)
	if err != nil {
		t.Fatalf("takeString: %v", err)
	}
	if got != "hello world" || len(rest) != 0 {
		t.Fatalf("got=%q rest=%v", got, rest)
	}
}

func TestUint64SetRoundTrip(t *testing.T) {
	set := map[uint64]struct{}{1: {}, 2: {}, 3: {}}
	buf := putUint64Set(nil, set)
	got, rest, err := takeUint64Set(buf)
	if err != nil {
		t.Fatalf("takeUint64Set: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest = %v", rest)
	}
	if len(got) != len(set) {
		t.Fatalf("got = %v, want %v", got, set)
	}
	for v := range set {
		if _, ok := got[v]; !ok {
			t.Fatalf("missing %d in decoded set", v)
		}
	}
}

func TestStringMapRoundTrip(t *testing.T) {
	m := map[string]string{"client_metadata_k": "v", "root": "/"}
	buf := putStringMap(nil, m)
	got, rest, err := takeStringMap(buf)
	if err != nil {
		t.Fatalf("takeStringMap: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest = %v", rest)
	}
	for k, v := range m {
		if got[k] != v {
			t.Fatalf("got[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestTakeUint64SetTruncated(t *testing.T) {
	buf := putUint32(nil, 2) // claims two entries, supplies none
	_, _, err := takeUint64Set(buf)
	if !smerrors.IsMalformedInput(err) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}
