package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tracksidelive/trackside/pkg/logging"
)

// State is a playback session's position in its lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StateError   State = "error"
)

// validTransitions encodes the playback state machine. Begin tears down and
// recreates, so "any -> loading" is handled outside this table.
var validTransitions = map[State][]State{
	StateLoading: {StatePlaying, StateError, StateIdle},
	StatePlaying: {StateIdle, StateError},
	StateError:   {StateIdle},
}

func canTransition(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Session tracks one playback attempt by one user against one mount.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mount     string    `json:"mount"`
	State     State     `json:"state"`
	Candidate int       `json:"candidate"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists playback sessions. Implementations: in-process map, Redis.
type Store interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, bool, error)
	FindByUser(ctx context.Context, userID string) (Session, bool, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrSessionNotFound  = errors.New("playback session not found")
	ErrBadTransition    = errors.New("invalid playback state transition")
	ErrSessionWrongUser = errors.New("playback session belongs to another user")
)

// Registry enforces the playback rules on top of a Store: each user holds at
// most one session, and sessions move idle -> loading -> playing or error.
type Registry struct {
	store  Store
	logger logging.Logger
}

func NewRegistry(store Store, logger logging.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Begin starts a loading session for the user against the mount. Any prior
// session the user holds is torn down first, whatever state it is in.
func (r *Registry) Begin(ctx context.Context, userID, mount string) (Session, error) {
	if prev, ok, err := r.store.FindByUser(ctx, userID); err != nil {
		return Session{}, fmt.Errorf("find previous session: %w", err)
	} else if ok {
		if err := r.store.Delete(ctx, prev.ID); err != nil {
			return Session{}, fmt.Errorf("tear down previous session: %w", err)
		}
		r.logger.WithFields(logging.Fields{
			"user_id":    userID,
			"session_id": prev.ID,
			"state":      prev.State,
		}).Debug("Tore down previous playback session")
	}

	now := time.Now()
	s := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mount:     mount,
		State:     StateLoading,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(ctx, s); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

func (r *Registry) transition(ctx context.Context, id string, to State, mutate func(*Session)) (Session, error) {
	s, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !canTransition(s.State, to) {
		return Session{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, s.State, to)
	}
	s.State = to
	s.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(&s)
	}
	if err := r.store.Put(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// MarkPlaying records that a candidate URL produced audio.
func (r *Registry) MarkPlaying(ctx context.Context, id string) (Session, error) {
	return r.transition(ctx, id, StatePlaying, func(s *Session) { s.LastError = "" })
}

// MarkError records a terminal failure after the candidate list is
// exhausted. The message is the short diagnostic shown to the user.
func (r *Registry) MarkError(ctx context.Context, id, message string) (Session, error) {
	return r.transition(ctx, id, StateError, func(s *Session) { s.LastError = message })
}

// AdvanceCandidate moves a loading session to the next candidate URL.
// Intermediate failures stay internal; only the index moves.
func (r *Registry) AdvanceCandidate(ctx context.Context, id string) (Session, error) {
	s, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.State != StateLoading && s.State != StatePlaying {
		return Session{}, fmt.Errorf("%w: advance from %s", ErrBadTransition, s.State)
	}
	s.State = StateLoading
	s.Candidate++
	s.UpdatedAt = time.Now()
	if err := r.store.Put(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Stop tears the session down on explicit user stop.
func (r *Registry) Stop(ctx context.Context, id, userID string) error {
	s, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	if s.UserID != userID {
		return ErrSessionWrongUser
	}
	return r.store.Delete(ctx, id)
}

// Validate reports whether the session id names a live session, and returns
// it. The stream relay uses this to honor sid tokens on candidate URLs.
func (r *Registry) Validate(ctx context.Context, id string) (Session, bool) {
	s, ok, err := r.store.Get(ctx, id)
	if err != nil {
		r.logger.WithError(err).Warn("Playback session lookup failed")
		return Session{}, false
	}
	return s, ok
}
