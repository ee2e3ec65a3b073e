package sessionmap

import (
	"fmt"
	"sort"
	"time"

	"github.com/marmos91/mdsessiond/pkg/sessionmap/smerrors"
)

// headerStructV/CompatV version the OMAP header frame: a single u64
// version field.
const (
	headerStructV uint8 = 1
	headerCompatV uint8 = 1
)

// legacySentinel marks the modern-under-the-hood legacy variant: when the
// first decoded u64 equals this value, the remainder is a versioned frame
// rather than a bare (version, count) pair.
const legacySentinel uint64 = ^uint64(0)

// legacyFrameCompatV is the minimum struct_v accepted for the sentinel
// legacy variant's inner frame.
const legacyFrameCompatV uint8 = 2

// SessionMapStore is the pure, I/O-free half of the Session Map: the
// in-memory index of sessions by EntityName, plus the codec for both the
// modern (OMAP) and legacy on-disk representations. It performs no object
// store I/O itself; SessionMap drives it with bytes obtained from or bound
// for the Objecter.
type SessionMapStore struct {
	sessions map[EntityName]*Session
}

// NewSessionMapStore returns an empty store.
func NewSessionMapStore() *SessionMapStore {
	return &SessionMapStore{sessions: make(map[EntityName]*Session)}
}

// Sessions exposes the underlying index for iteration. Callers must not
// mutate the returned map's structure (add/delete keys); mutate via
// GetOrAddSession and the SessionMap removal path instead.
func (st *SessionMapStore) Sessions() map[EntityName]*Session {
	return st.sessions
}

// Get returns the session for name, if any.
func (st *SessionMapStore) Get(name EntityName) (*Session, bool) {
	s, ok := st.sessions[name]
	return s, ok
}

// GetOrAddSession returns the existing session for inst.Name, or creates and
// inserts a new one in the Opening state. The returned pointer is stable
// for the session's lifetime, so repeated decodes of the same name (the
// legacy duplicate-name recovery path) update the same Session in place.
func (st *SessionMapStore) GetOrAddSession(inst EntityInst) *Session {
	if s, ok := st.sessions[inst.Name]; ok {
		s.Info.Inst.Addr = inst.Addr
		return s
	}
	s := NewSession(inst)
	st.sessions[inst.Name] = s
	return s
}

// Remove deletes name from the index. Returns false if it was not present.
func (st *SessionMapStore) Remove(name EntityName) bool {
	if _, ok := st.sessions[name]; !ok {
		return false
	}
	delete(st.sessions, name)
	return true
}

// EncodeHeader produces the OMAP header bytes for the given version.
func EncodeHeader(version uint64) []byte {
	body := putUint64(nil, version)
	out := encodeFrameHeader(headerStructV, headerCompatV, len(body))
	return append(out, body...)
}

// DecodeHeader parses the OMAP header bytes, returning the stored version.
func DecodeHeader(buf []byte) (uint64, error) {
	hdr, rest, err := decodeFrameHeader(buf, headerCompatV)
	if err != nil {
		return 0, err
	}
	version, _, err := takeUint64(rest[:hdr.Length])
	if err != nil {
		return 0, err
	}
	return version, nil
}

// DecodeValues parses one OMAP read batch into the index: each key is
// parsed as an EntityName, the session is obtained or created, and its
// Info is decoded from the paired value. A session created by this call
// (GetOrAddSession creates it in Opening) is promoted to Open; a session
// already in the index keeps its state.
// Keys are processed in the order given by the caller, which must be
// key-sorted ascending (the order omap_get_vals returns them in).
func (st *SessionMapStore) DecodeValues(batch []KeyValue) error {
	for _, kv := range batch {
		name, err := ParseEntityName(kv.Key)
		if err != nil {
			return smerrors.NewMalformedInput("malformed OMAP key", kv.Key)
		}

		_, existed := st.sessions[name]
		s := st.GetOrAddSession(EntityInst{Name: name})

		if _, err := s.Decode(kv.Value); err != nil {
			return err
		}

		if !existed {
			s.State = StateOpen
		}
	}
	return nil
}

// DecodeLegacy decodes a whole legacy-format object payload, recognizing
// both the bare-counted and sentinel-framed variants. It returns the
// version recorded in the payload. last_cap_renew is set to now for every
// reconstructed session.
func (st *SessionMapStore) DecodeLegacy(buf []byte, now time.Time) (uint64, error) {
	first, rest, err := takeUint64(buf)
	if err != nil {
		return 0, smerrors.NewMalformedInput("legacy payload too short for version word", "")
	}

	var version uint64
	if first == legacySentinel {
		version, err = st.decodeLegacySentinelVariant(rest)
	} else {
		version, err = st.decodeLegacyCountedVariant(first, rest)
	}
	if err != nil {
		return 0, err
	}

	for _, s := range st.sessions {
		s.LastCapRenew = now
	}
	return version, nil
}

// decodeLegacySentinelVariant decodes the sentinel-prefixed legacy variant:
// a versioned frame containing version then zero-or-more records until the
// frame body is exhausted.
func (st *SessionMapStore) decodeLegacySentinelVariant(buf []byte) (uint64, error) {
	hdr, rest, err := decodeFrameHeader(buf, legacyFrameCompatV)
	if err != nil {
		return 0, err
	}
	body := rest[:hdr.Length]

	version, body, err := takeUint64(body)
	if err != nil {
		return 0, err
	}

	for len(body) > 0 {
		var si SessionInfo
		si, body, err = decodeSessionInfoBody(body)
		if err != nil {
			return 0, err
		}
		st.applyDecodedLegacySession(si)
	}

	return version, nil
}

// decodeLegacyCountedVariant decodes the older legacy variant: version
// already consumed into firstWord, followed by a u32 count that is only a
// loose upper bound and otherwise ignored, followed by up to that many
// records. Duplicate names overwrite the earlier session in place via
// GetOrAddSession's identity-preserving lookup.
func (st *SessionMapStore) decodeLegacyCountedVariant(version uint64, buf []byte) (uint64, error) {
	count, body, err := takeUint32(buf)
	if err != nil {
		return 0, err
	}

	for i := uint32(0); i < count && len(body) > 0; i++ {
		var si SessionInfo
		si, body, err = decodeSessionInfoBody(body)
		if err != nil {
			return 0, err
		}
		st.applyDecodedLegacySession(si)
	}

	return version, nil
}

// applyDecodedLegacySession installs a decoded legacy SessionInfo into the
// index, creating the session if new.
func (st *SessionMapStore) applyDecodedLegacySession(si SessionInfo) {
	s := st.GetOrAddSession(si.Inst)
	s.Info = si
	s.updateHumanName()
}

// KeyValue is one OMAP entry, as returned by an ordered ranged read.
type KeyValue struct {
	Key   string
	Value []byte
}

// Dump renders the store's sessions, sorted by entity name, to w. It is the
// basis for the CLI's "dump" output.
func (st *SessionMapStore) Dump(w Formatter) {
	names := make([]EntityName, 0, len(st.sessions))
	for name := range st.sessions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})

	for _, name := range names {
		s := st.sessions[name]
		w.WriteSession(name.String(), s)
	}
}

// Formatter receives one row per call from Dump; implementations render
// table/JSON/YAML output.
type Formatter interface {
	WriteSession(name string, s *Session)
}

// GenerateTestInstances populates the store with n synthetic sessions,
// named "client.<i>" for i in [1, n], for use by codec round-trip and
// property tests.
func (st *SessionMapStore) GenerateTestInstances(n int) {
	for i := 1; i <= n; i++ {
		name := EntityName{Kind: "client", ID: uint64(i)}
		s := st.GetOrAddSession(EntityInst{Name: name, Addr: fmt.Sprintf("10.0.0.%d:0", i)})
		s.State = StateOpen
	}
}
