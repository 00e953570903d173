package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/pkg/models"
)

// State is a step of a matching wizard session.
type State string

const (
	StateIdle                 State = "idle"
	StateSearching            State = "searching"
	StateRanking              State = "ranking"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateCompleted            State = "completed"
	StateCancelled            State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("wizard session not found")

	// ErrInvalidState is returned when an action does not fit the session state.
	ErrInvalidState = errors.New("action not allowed in current wizard state")

	// ErrInvalidCandidate is returned when a confirmed index is outside the list.
	ErrInvalidCandidate = errors.New("candidate index out of range")

	// ErrLinkFailed is returned when the confirmed link could not be saved.
	ErrLinkFailed = errors.New("failed to link transaction")
)

// sessionTTL is how long finished sessions stay readable.
const sessionTTL = time.Hour

// Matcher is the part of the Engine the wizard drives.
type Matcher interface {
	Transaction(ctx context.Context, id uint) (*models.BankTransaction, error)
	FindMatchingInvoices(ctx context.Context, tx models.BankTransaction) []matching.Candidate
	LinkTransactionToInvoice(ctx context.Context, txID, invoiceID uint) bool
	LinkTransactionToDocument(ctx context.Context, txID uint, documentID int, title string) bool
}

// Recommender suggests one of the candidates.
type Recommender interface {
	Recommend(ctx context.Context, tx models.BankTransaction, candidates []matching.Candidate) (*Recommendation, error)
}

// Session is a snapshot of one wizard run.
type Session struct {
	ID             string               `json:"id"`
	TransactionID  uint                 `json:"transaction_id"`
	State          State                `json:"state"`
	Candidates     []matching.Candidate `json:"candidates"`
	Recommendation *Recommendation      `json:"recommendation,omitempty"`
	Linked         *matching.Candidate  `json:"linked,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type session struct {
	mu     sync.Mutex
	snap   Session
	tx     models.BankTransaction
	cancel context.CancelFunc
	done   chan struct{}
}

// transition moves to the next state unless the session was cancelled.
func (s *session) transition(to State, update func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State.Terminal() {
		return false
	}
	s.snap.State = to
	if update != nil {
		update(&s.snap)
	}
	s.snap.UpdatedAt = time.Now()
	return true
}

func (s *session) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.Candidates = append([]matching.Candidate(nil), s.snap.Candidates...)
	return out
}

// Wizard runs matching sessions: search, optional AI ranking, then wait for a
// human to confirm one candidate. Cancelling a session cancels its context;
// steps check it before and after each network call, but a call already in
// flight runs to completion.
type Wizard struct {
	matcher Matcher
	ranker  Recommender

	mu       sync.Mutex
	sessions map[string]*session
	log      zerolog.Logger
}

// NewWizard creates a wizard. ranker may be nil, then the ranking step passes
// straight through.
func NewWizard(matcher Matcher, ranker Recommender) *Wizard {
	return &Wizard{
		matcher:  matcher,
		ranker:   ranker,
		sessions: make(map[string]*session),
		log:      logger.WithComponent("wizard"),
	}
}

// Start loads the transaction and runs the search and ranking steps in the
// background. The session ends when ctx is cancelled or Cancel is called.
func (w *Wizard) Start(ctx context.Context, transactionID uint) (Session, error) {
	const op = "Start"

	tx, err := w.matcher.Transaction(ctx, transactionID)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		snap: Session{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			State:         StateIdle,
			UpdatedAt:     time.Now(),
		},
		tx:     *tx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	w.mu.Lock()
	w.pruneLocked()
	w.sessions[s.snap.ID] = s
	w.mu.Unlock()

	w.log.Info().Str("session_id", s.snap.ID).Uint("transaction_id", transactionID).Msg("Wizard session started")

	go w.run(runCtx, s)
	return s.snapshot(), nil
}

func (w *Wizard) run(ctx context.Context, s *session) {
	defer close(s.done)
	log := w.log.With().Str("session_id", s.snap.ID).Logger()

	// before searching
	if w.stopped(ctx, s) || !s.transition(StateSearching, nil) {
		return
	}
	candidates := w.matcher.FindMatchingInvoices(context.WithoutCancel(ctx), s.tx)
	// after searching
	if w.stopped(ctx, s) {
		return
	}
	if !s.transition(StateRanking, func(snap *Session) { snap.Candidates = candidates }) {
		return
	}
	log.Debug().Int("candidates", len(candidates)).Msg("Wizard search completed")

	// before ranking
	if w.stopped(ctx, s) {
		return
	}
	var rec *Recommendation
	if w.ranker != nil && len(candidates) > 0 {
		r, err := w.ranker.Recommend(context.WithoutCancel(ctx), s.tx, candidates)
		if err != nil {
			log.Warn().Err(err).Msg("AI ranking failed, continuing without recommendation")
		} else {
			rec = r
		}
		// after ranking
		if w.stopped(ctx, s) {
			return
		}
	}

	s.transition(StateAwaitingConfirmation, func(snap *Session) { snap.Recommendation = rec })
	log.Info().Int("candidates", len(candidates)).Bool("recommended", rec != nil && rec.Matched).Msg("Wizard awaiting confirmation")
}

// stopped is a cancellation checkpoint.
func (w *Wizard) stopped(ctx context.Context, s *session) bool {
	if ctx.Err() == nil {
		return false
	}
	if s.transition(StateCancelled, nil) {
		w.log.Info().Str("session_id", s.snap.ID).Msg("Wizard session cancelled")
	}
	return true
}

// Get returns the current snapshot of a session.
func (w *Wizard) Get(id string) (Session, error) {
	s, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	return s.snapshot(), nil
}

// Wait blocks until the background steps of a session have finished or ctx
// is done.
func (w *Wizard) Wait(ctx context.Context, id string) (Session, error) {
	s, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	select {
	case <-s.done:
		return s.snapshot(), nil
	case <-ctx.Done():
		return s.snapshot(), ctx.Err()
	}
}

// Confirm links the candidate at index and completes the session.
func (w *Wizard) Confirm(ctx context.Context, id string, index int) (Session, error) {
	const op = "Confirm"

	s, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}

	snap := s.snapshot()
	if snap.State != StateAwaitingConfirmation {
		return snap, fmt.Errorf("%s: %w: %s", op, ErrInvalidState, snap.State)
	}
	if index < 0 || index >= len(snap.Candidates) {
		return snap, fmt.Errorf("%s: %w: %d of %d", op, ErrInvalidCandidate, index, len(snap.Candidates))
	}

	chosen := snap.Candidates[index]
	var ok bool
	if chosen.IsLocal() {
		ok = w.matcher.LinkTransactionToInvoice(ctx, snap.TransactionID, uint(chosen.ReferenceID))
	} else {
		ok = w.matcher.LinkTransactionToDocument(ctx, snap.TransactionID, chosen.ReferenceID, chosen.Title)
	}
	if !ok {
		return snap, fmt.Errorf("%s: %w", op, ErrLinkFailed)
	}

	if !s.transition(StateCompleted, func(snap *Session) { snap.Linked = &chosen }) {
		return s.snapshot(), fmt.Errorf("%s: %w: session ended during confirmation", op, ErrInvalidState)
	}
	s.cancel()

	w.log.Info().Str("session_id", id).Str("type", string(chosen.Source)).Int("reference_id", chosen.ReferenceID).Msg("Wizard session completed")
	return s.snapshot(), nil
}

// Cancel stops a session. Cancelling twice is harmless; a completed session
// cannot be cancelled.
func (w *Wizard) Cancel(id string) (Session, error) {
	const op = "Cancel"

	s, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}

	snap := s.snapshot()
	switch snap.State {
	case StateCompleted:
		return snap, fmt.Errorf("%s: %w: %s", op, ErrInvalidState, snap.State)
	case StateCancelled:
		return snap, nil
	}

	s.cancel()
	s.transition(StateCancelled, nil)
	w.log.Info().Str("session_id", id).Str("from", string(snap.State)).Msg("Wizard session cancelled")
	return s.snapshot(), nil
}

func (w *Wizard) lookup(id string) (*session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// pruneLocked drops sessions untouched for sessionTTL that are finished or
// still waiting for a confirmation. w.mu must be held.
func (w *Wizard) pruneLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, s := range w.sessions {
		snap := s.snapshot()
		if !snap.UpdatedAt.Before(cutoff) {
			continue
		}
		if snap.State.Terminal() || snap.State == StateAwaitingConfirmation {
			s.cancel()
			delete(w.sessions, id)
		}
	}
}
