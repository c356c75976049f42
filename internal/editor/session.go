package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/cache"
)

// Session is one mounted editing surface: the last-reported live fields, an
// owned autosave scheduler and a recovery flow. It implements
// LiveStateProvider for its scheduler - the scheduler pulls, the surface
// pushes.
type Session struct {
	ID        string
	Context   Context
	CreatedAt time.Time

	Scheduler *Scheduler

	mu       sync.Mutex
	fields   *Fields
	recovery *RecoveryFlow
}

// CurrentFields implements LiveStateProvider. ok=false until the surface has
// reported state at least once.
func (s *Session) CurrentFields() (Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields == nil {
		return Fields{}, false
	}
	return cloneFields(*s.fields), true
}

// ReportFields records the surface's current logical state.
func (s *Session) ReportFields(f Fields) {
	f = cloneFields(f)
	s.mu.Lock()
	s.fields = &f
	s.mu.Unlock()
}

// applyRestored overwrites the live fields with a recovered snapshot.
func (s *Session) applyRestored(snap Snapshot) {
	f := cloneFields(snap.Fields)
	s.fields = &f
}

// SignalRemoteLoaded feeds the remote-document load completion into the
// recovery gate. When the session already restored a draft the caller must
// not overwrite the live fields; the return value reports that.
func (s *Session) SignalRemoteLoaded() (restored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovery.SignalRemoteLoaded()
	return s.recovery.Restored()
}

// ResolveRecovery settles the restore-or-discard prompt.
func (s *Session) ResolveRecovery(restore bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recovery.Resolve(restore); err != nil {
		return err
	}
	if !restore {
		s.Scheduler.MarkDraftCleared()
	}
	return nil
}

func (s *Session) RecoveryState() RecoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery.State()
}

func (s *Session) PendingSnapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery.PendingSnapshot()
}

func (s *Session) Restored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery.Restored()
}

// Manager owns all live editing sessions and the shared draft store.
type Manager struct {
	store    Store
	cfg      SchedulerConfig
	sessions *cache.Cache[string, *Session]
}

func NewManager(store Store, cfg SchedulerConfig) *Manager {
	return &Manager{
		store:    store,
		cfg:      cfg,
		sessions: cache.NewCache[string, *Session](),
	}
}

func (m *Manager) Store() Store {
	return m.store
}

// Open mounts a new editing session for ctx. The recovery flow hydrates
// immediately - the store is synchronous and always available to query - and
// the scheduler starts ticking. onState receives visible state transitions.
func (m *Manager) Open(ctx Context, onState func(State), onError func(error)) *Session {
	session := &Session{
		ID:        uuid.New().String(),
		Context:   ctx,
		CreatedAt: time.Now().UTC(),
	}
	session.recovery = NewRecoveryFlow(ctx, m.store, session.applyRestored)
	session.Scheduler = NewScheduler(ctx, session, m.store, SchedulerConfig{
		DirtyCheckInterval: m.cfg.DirtyCheckInterval,
		PersistInterval:    m.cfg.PersistInterval,
		OnStateChange:      onState,
		OnError:            onError,
	})

	session.mu.Lock()
	session.recovery.Hydrate()
	session.mu.Unlock()

	session.Scheduler.Start()
	m.sessions.Set(session.ID, session)

	editorLogger.Info().
		Str("session_id", session.ID).
		Str("context", string(ctx)).
		Msg("Editor session opened")

	return session
}

func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// Close tears down a session: both timers are cancelled and never fire again.
func (m *Manager) Close(id string) error {
	session, ok := m.sessions.Get(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	session.Scheduler.Stop()
	m.sessions.Delete(id)

	editorLogger.Info().Str("session_id", id).Msg("Editor session closed")
	return nil
}

// CloseAll stops every live session, e.g. on server shutdown.
func (m *Manager) CloseAll() {
	for _, id := range m.sessions.Keys() {
		_ = m.Close(id)
	}
}

// ClearDraft removes the stored draft for ctx and resets the indicator on any
// session currently editing it. Called by the surrounding application after a
// successful remote commit.
func (m *Manager) ClearDraft(ctx Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	for _, id := range m.sessions.Keys() {
		if session, ok := m.sessions.Get(id); ok && session.Context == ctx {
			session.Scheduler.MarkDraftCleared()
		}
	}
	return nil
}
