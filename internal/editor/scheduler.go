package editor

import (
	"sync"
	"time"
)

// Status of the autosave scheduler.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// LiveStateProvider is supplied by the editing surface. CurrentFields must be
// callable at arbitrary times without side effects; ok=false means the
// surface has nothing to report yet.
type LiveStateProvider interface {
	CurrentFields() (Fields, bool)
}

// State is the scheduler's externally visible state.
type State struct {
	Status            Status     `json:"status"`
	HasUnsavedChanges bool       `json:"has_unsaved_changes"`
	HasDraft          bool       `json:"has_draft"`
	LastSaved         *time.Time `json:"last_saved,omitempty"`
}

const (
	DefaultDirtyCheckInterval = 1 * time.Second
	DefaultPersistInterval    = 5 * time.Second
)

// SchedulerConfig carries the two timer periods. Zero values fall back to the
// defaults.
type SchedulerConfig struct {
	DirtyCheckInterval time.Duration
	PersistInterval    time.Duration

	// OnStateChange is invoked after any visible state transition, outside
	// the scheduler lock.
	OnStateChange func(State)

	// OnError receives persistence failures. They are non-fatal to the
	// editing session and never surfaced to the end user, but must stay
	// observable to engineering diagnostics.
	OnError func(error)
}

// Scheduler drives periodic draft persistence for one editing session. Each
// session owns its scheduler; there is no process-wide timer state. Two
// independent periods apply: a fast dirty-check tick refreshing the unsaved-
// changes flag, and a slower persist tick writing the draft when dirty.
type Scheduler struct {
	ctx      Context
	provider LiveStateProvider
	store    Store
	cfg      SchedulerConfig

	mu       sync.Mutex
	detector Detector
	state    State

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(ctx Context, provider LiveStateProvider, store Store, cfg SchedulerConfig) *Scheduler {
	if cfg.DirtyCheckInterval <= 0 {
		cfg.DirtyCheckInterval = DefaultDirtyCheckInterval
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = DefaultPersistInterval
	}

	return &Scheduler{
		ctx:      ctx,
		provider: provider,
		store:    store,
		cfg:      cfg,
		state:    State{Status: StatusIdle},
		done:     make(chan struct{}),
	}
}

// Start launches both timers. They run until Stop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

func (s *Scheduler) run() {
	dirtyTicker := time.NewTicker(s.cfg.DirtyCheckInterval)
	defer dirtyTicker.Stop()
	persistTicker := time.NewTicker(s.cfg.PersistInterval)
	defer persistTicker.Stop()

	for {
		select {
		case <-dirtyTicker.C:
			s.RunDirtyCheck()
		case <-persistTicker.C:
			s.RunPersistPass()
		case <-s.done:
			return
		}
	}
}

// Stop cancels both timers deterministically and waits for the ticker
// goroutine to drain, so an already-selected tick finishes before Stop
// returns and none fires after. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// State returns a copy of the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkDraftCleared resets the draft indicator after an external Clear, e.g.
// after a successful remote commit or a recovery discard.
func (s *Scheduler) MarkDraftCleared() {
	s.mu.Lock()
	s.state.HasDraft = false
	s.state.Status = StatusIdle
	state := s.state
	s.mu.Unlock()

	s.notify(state)
}

// RunDirtyCheck refreshes the unsaved-changes flag from a fresh read of the
// live state. It never writes to storage.
func (s *Scheduler) RunDirtyCheck() {
	// The provider has its own lock and its owner calls back into the
	// scheduler while holding it, so it must never be read under s.mu.
	fields, ok := s.provider.CurrentFields()

	s.mu.Lock()
	dirty := s.detector.Check(fields, ok)
	changed := dirty != s.state.HasUnsavedChanges
	s.state.HasUnsavedChanges = dirty
	state := s.state
	s.mu.Unlock()

	if changed {
		s.notify(state)
	}
}

// RunPersistPass performs one save-if-dirty pass. It always re-runs its own
// dirty check rather than trusting the last tick's flag, so the persisted
// data is never stale relative to the check that gated it. The live state is
// read before the lock (same lock-order rule as RunDirtyCheck); from the
// check through the write the pass holds the lock, so no observer sees a
// torn idle/saving state.
func (s *Scheduler) RunPersistPass() {
	fields, ok := s.provider.CurrentFields()

	s.mu.Lock()
	if !s.detector.Check(fields, ok) {
		// Clean pass: no state change, no write.
		s.mu.Unlock()
		return
	}

	s.state.Status = StatusSaving

	snap, err := s.store.Save(s.ctx, fields)

	// The indicators reflect the attempted save even when durable
	// persistence failed; the failure stays observable via OnError.
	s.detector.Acknowledge(fields.Fingerprint())
	s.state.Status = StatusSaved
	s.state.HasUnsavedChanges = false
	s.state.HasDraft = true
	savedAt := snap.SavedAt
	if err != nil {
		savedAt = time.Now().UTC()
	}
	s.state.LastSaved = &savedAt

	state := s.state
	s.mu.Unlock()

	if err != nil {
		editorLogger.Error().Err(err).Str("context", string(s.ctx)).Msg("Draft autosave failed")
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
	}
	s.notify(state)
}

// SaveDraft runs a persist pass synchronously, e.g. before navigating away.
func (s *Scheduler) SaveDraft() {
	s.RunPersistPass()
}

func (s *Scheduler) notify(state State) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}
