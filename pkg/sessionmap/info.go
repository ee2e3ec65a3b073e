package sessionmap

// sessionInfoStructV is the current struct_v written for SessionInfo. Bump
// this (and sessionInfoCompatV if the change is breaking) whenever a field
// is added.
const (
	sessionInfoStructV uint8 = 1
	sessionInfoCompatV uint8 = 1
)

// SessionInfo is the persisted payload of a Session: everything that must
// survive a restart, as opposed to Session's purely in-memory bookkeeping
// (state, request/cap back-references, recall counters).
type SessionInfo struct {
	Inst EntityInst

	// PreallocInos is the set of inode numbers pre-allocated for this
	// client's future creates but not yet consumed.
	PreallocInos map[uint64]struct{}

	// UsedInos is the set of inode numbers this client has actually used
	// from its pre-allocation.
	UsedInos map[uint64]struct{}

	// CompletedRequests is the set of request ids the client has already
	// seen a reply for, used to answer retransmits idempotently.
	CompletedRequests map[uint64]struct{}

	// ClientMetadata is an opaque string->string bag the client attaches
	// at mount time (hostname, kernel version, mount point, entity_id...).
	ClientMetadata map[string]string
}

// newEmptySessionInfo returns a SessionInfo with all sets/maps initialized,
// ready for decode or for a freshly created session.
func newEmptySessionInfo(inst EntityInst) SessionInfo {
	return SessionInfo{
		Inst:              inst,
		PreallocInos:      make(map[uint64]struct{}),
		UsedInos:          make(map[uint64]struct{}),
		CompletedRequests: make(map[uint64]struct{}),
		ClientMetadata:    make(map[string]string),
	}
}

// Encode serializes a SessionInfo using the project's versioned binary
// framing: a (struct_v, compat_v, length) preamble, then the fields in a
// fixed order. This exact byte layout is relied on for on-disk compatibility
// and must not be reordered without bumping sessionInfoStructV.
func (si *SessionInfo) Encode() []byte {
	var body []byte
	body = putString(body, si.Inst.Name.Kind)
	body = putUint64(body, si.Inst.Name.ID)
	body = putString(body, si.Inst.Addr)
	body = putUint64Set(body, si.PreallocInos)
	body = putUint64Set(body, si.UsedInos)
	body = putUint64Set(body, si.CompletedRequests)
	body = putStringMap(body, si.ClientMetadata)

	out := encodeFrameHeader(sessionInfoStructV, sessionInfoCompatV, len(body))
	return append(out, body...)
}

// DecodeSessionInfo decodes a SessionInfo from its versioned binary
// encoding, returning the decoded value and the bytes following it (so
// callers decoding a sequence of back-to-back records can continue from
// there). Any structural problem is smerrors.ErrMalformedInput.
func DecodeSessionInfo(buf []byte) (SessionInfo, []byte, error) {
	hdr, rest, err := decodeFrameHeader(buf, sessionInfoCompatV)
	if err != nil {
		return SessionInfo{}, nil, err
	}

	body := rest[:hdr.Length]
	tail := rest[hdr.Length:]

	var si SessionInfo

	kind, body, err := takeString(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	id, body, err := takeUint64(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	addr, body, err := takeString(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.Inst = EntityInst{Name: EntityName{Kind: kind, ID: id}, Addr: addr}

	si.PreallocInos, body, err = takeUint64Set(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.UsedInos, body, err = takeUint64Set(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.CompletedRequests, body, err = takeUint64Set(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.ClientMetadata, _, err = takeStringMap(body)
	if err != nil {
		return SessionInfo{}, nil, err
	}

	return si, tail, nil
}

// decodeSessionInfoBody decodes only the body fields of a SessionInfo, used
// by the legacy "old format" variant where records are not individually
// framed with a struct_v/compat_v preamble. Returns the decoded value and
// the remaining bytes.
func decodeSessionInfoBody(buf []byte) (SessionInfo, []byte, error) {
	var si SessionInfo

	kind, rest, err := takeString(buf)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	id, rest, err := takeUint64(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	addr, rest, err := takeString(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.Inst = EntityInst{Name: EntityName{Kind: kind, ID: id}, Addr: addr}

	si.PreallocInos, rest, err = takeUint64Set(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.UsedInos, rest, err = takeUint64Set(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.CompletedRequests, rest, err = takeUint64Set(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	si.ClientMetadata, rest, err = takeStringMap(rest)
	if err != nil {
		return SessionInfo{}, nil, err
	}

	return si, rest, nil
}
