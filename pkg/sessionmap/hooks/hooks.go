// Package hooks defines the callback types external collaborators (the
// capability machinery, the request/journal layer) register with a
// SessionMap to react to the events it produces, rather than SessionMap
// importing those subsystems directly.
package hooks

import "github.com/marmos91/mdsessiond/pkg/sessionmap"

// RecallHook is invoked after NotifyRecallSent records that a capability
// recall was sent to a session, so the caller can actually dispatch the
// recall message on the wire.
type RecallHook func(s *sessionmap.Session, newLimit int)

// ReleaseHook is invoked after NotifyCapRelease records that a session
// released capabilities, so the caller can update whatever structure owns
// capability allocation.
type ReleaseHook func(s *sessionmap.Session, released int)

// Hooks bundles the optional lifecycle callbacks a SessionMap owner wires
// in. A nil field means "no hook".
type Hooks struct {
	OnRecallSent  RecallHook
	OnCapReleased ReleaseHook
}

// FireRecallSent calls OnRecallSent if set.
func (h Hooks) FireRecallSent(s *sessionmap.Session, newLimit int) {
	if h.OnRecallSent != nil {
		h.OnRecallSent(s, newLimit)
	}
}

// FireCapReleased calls OnCapReleased if set.
func (h Hooks) FireCapReleased(s *sessionmap.Session, released int) {
	if h.OnCapReleased != nil {
		h.OnCapReleased(s, released)
	}
}
