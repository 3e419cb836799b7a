package zone

import "sync"

// MemberRef holds one member slot of a deliberately circular
// parent/child transport reference -- the parent zone's service holds a
// MemberRef[Transport] for its child_transport, the child's holds one
// for its parent_transport -- and implements the three rules §4.7
// requires to break the cycle safely without ever invalidating an
// in-flight call:
//
//  1. Snapshot-before-call: Snapshot takes a strong reference under a
//     reader lock; a concurrent Reset does not invalidate a snapshot
//     already taken.
//  2. Status gate: Reset is the only way to clear the slot, always
//     taken under the writer lock.
//  3. Final-reference triggers release: once Reset runs, onEmpty (set at
//     construction) fires exactly once, scheduling the owning
//     component's teardown task.
type MemberRef[T any] struct {
	mu      sync.RWMutex
	value   T
	present bool
	onEmpty func()
	fired   bool
}

// NewMemberRef builds a MemberRef holding value, invoking onEmpty
// exactly once the first time Reset clears it.
func NewMemberRef[T any](value T, onEmpty func()) *MemberRef[T] {
	return &MemberRef[T]{value: value, present: true, onEmpty: onEmpty}
}

// Snapshot takes a strong local reference to the current value under a
// reader lock. The returned value remains valid to use even if Reset
// runs concurrently; ok is false if the slot has already been cleared.
func (m *MemberRef[T]) Snapshot() (value T, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.present
}

// Reset clears the slot under the writer lock. The first call fires
// onEmpty; subsequent calls are no-ops.
func (m *MemberRef[T]) Reset() {
	m.mu.Lock()
	var zero T
	wasPresent := m.present
	m.value = zero
	m.present = false
	fire := wasPresent && !m.fired
	if fire {
		m.fired = true
	}
	m.mu.Unlock()

	if fire && m.onEmpty != nil {
		m.onEmpty()
	}
}

// Present reports whether the slot currently holds a value.
func (m *MemberRef[T]) Present() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.present
}

// HierarchicalLink is the pair of MemberRef slots for a parent/child zone
// pair: the parent's service holds Child, the child's service holds
// Parent. The type only holds the two slots and clears them in
// Disconnect; it performs no handshake, reports no CONNECTED status, and
// has no step that discards both slots when a connection attempt fails.
type HierarchicalLink struct {
	Child  *MemberRef[Transport]
	Parent *MemberRef[Transport]
}

// Disconnect clears both halves of the link. Call this from
// on_child_disconnected/on_parent_disconnected once either side reports
// DISCONNECTED; any snapshot already in flight runs to completion and
// then drops, per rule 1.
func (l *HierarchicalLink) Disconnect() {
	if l.Child != nil {
		l.Child.Reset()
	}
	if l.Parent != nil {
		l.Parent.Reset()
	}
}
