package editor

import "fmt"

// RecoveryState of the restore-or-discard flow.
type RecoveryState string

const (
	RecoveryAwaitingHydration RecoveryState = "awaiting-hydration"
	RecoveryPromptPending     RecoveryState = "prompt-pending"
	RecoveryResolved          RecoveryState = "resolved"
)

// RecoveryFlow decides, once per editing session, whether to offer the user a
// previously persisted draft. The prompt only appears after the store has
// been queried AND - for edit contexts - the remote document has finished
// loading, so it never fires against incomplete remote state.
type RecoveryFlow struct {
	ctx   Context
	store Store

	// apply overwrites the live editing surface with the restored snapshot.
	apply func(Snapshot)

	state        RecoveryState
	hydrated     bool
	remoteLoaded bool
	pending      *Snapshot
	restored     bool
}

// NewRecoveryFlow builds the flow for one session mount. New-post contexts
// have no remote document, so that gate is satisfied immediately.
func NewRecoveryFlow(ctx Context, store Store, apply func(Snapshot)) *RecoveryFlow {
	return &RecoveryFlow{
		ctx:          ctx,
		store:        store,
		apply:        apply,
		state:        RecoveryAwaitingHydration,
		remoteLoaded: ctx.IsNewPost(),
	}
}

// Hydrate queries the store for an existing draft. Called once when the
// storage medium is confirmed available.
func (f *RecoveryFlow) Hydrate() {
	if f.hydrated {
		return
	}
	f.hydrated = true

	if snap, ok := f.store.Load(f.ctx); ok {
		f.pending = &snap
	}
	f.advance()
}

// SignalRemoteLoaded marks the authoritative remote document as loaded.
func (f *RecoveryFlow) SignalRemoteLoaded() {
	f.remoteLoaded = true
	f.advance()
}

func (f *RecoveryFlow) advance() {
	if f.state != RecoveryAwaitingHydration || !f.hydrated || !f.remoteLoaded {
		return
	}
	if f.pending != nil {
		f.state = RecoveryPromptPending
	} else {
		f.state = RecoveryResolved
	}
}

// Resolve settles a pending prompt. Restore applies the snapshot to the live
// surface and marks the session restored so a late remote load cannot clobber
// it; discard clears the stored draft and leaves live state alone.
func (f *RecoveryFlow) Resolve(restore bool) error {
	if f.state != RecoveryPromptPending {
		return fmt.Errorf("no recovery prompt pending (state %s)", f.state)
	}

	if restore {
		f.apply(*f.pending)
		f.restored = true
	} else {
		if err := f.store.Clear(f.ctx); err != nil {
			return fmt.Errorf("error discarding draft: %w", err)
		}
	}

	f.pending = nil
	f.state = RecoveryResolved
	return nil
}

func (f *RecoveryFlow) State() RecoveryState {
	return f.state
}

// PendingSnapshot exposes the draft offered by a pending prompt.
func (f *RecoveryFlow) PendingSnapshot() (Snapshot, bool) {
	if f.pending == nil {
		return Snapshot{}, false
	}
	return *f.pending, true
}

// Restored reports whether this session applied a recovered draft; the
// surrounding application uses it to keep the remote document's own load
// completion from overwriting restored content.
func (f *RecoveryFlow) Restored() bool {
	return f.restored
}
