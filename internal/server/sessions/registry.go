// Package sessions tracks connected clients: who they are, whether they have
// authenticated and how far they have acknowledged the log.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/google/uuid"
)

// Verifier checks a credential for a user. A rejection wraps
// common.ErrorUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, user string, cred auth.Credential) error
}

type Registry struct {
	verifier Verifier
	logger   logging.Logger

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewRegistry(verifier Verifier, logger logging.Logger) *Registry {
	return &Registry{
		verifier: verifier,
		logger:   logger.With("module", "sessions"),
		sessions: make(map[string]*models.Session),
	}
}

// Register adds s in the pending state. An empty ID gets a fresh one.
// Registering a live ID again returns common.ErrorAlreadyExists.
func (r *Registry) Register(s models.Session) (models.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.State = models.SessionPending
	s.Degraded = false
	if s.ConnectedAt.IsZero() {
		s.ConnectedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return models.Session{}, fmt.Errorf("session %s: %w", s.ID, common.ErrorAlreadyExists)
	}
	r.sessions[s.ID] = &s
	return s, nil
}

// Authenticate verifies cred for user and moves the session to
// authenticated. On failure the session stays pending.
func (r *Registry) Authenticate(ctx context.Context, id, user string, cred auth.Credential) error {
	if _, err := r.Get(id); err != nil {
		return err
	}

	// The verifier may hit storage; never hold the lock across it.
	if err := r.verifier.Verify(ctx, user, cred); err != nil {
		r.logger.Warn(ctx, "Session authentication failed", "session", id, "user", user, "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.State == models.SessionClosed {
		return fmt.Errorf("session %s: %w", id, common.ErrSessionClosed)
	}
	s.User = user
	s.State = models.SessionAuthenticated
	return nil
}

// Ack advances the session's acknowledgment point. Acking below the current
// point returns common.ErrAckRegression; acking the same id again is a no-op.
func (r *Registry) Ack(id string, entryID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return 0, fmt.Errorf("session %s: %w", id, common.ErrorNotFound)
	}
	if s.State != models.SessionAuthenticated {
		return s.LastAckedID, fmt.Errorf("session %s: %w", id, common.ErrorUnauthorized)
	}
	if entryID < s.LastAckedID {
		return s.LastAckedID, fmt.Errorf("%w: ack %d below %d", common.ErrAckRegression, entryID, s.LastAckedID)
	}
	s.LastAckedID = entryID
	return entryID, nil
}

// MarkDegraded records that live delivery to the session overflowed. The
// flag clears on the next successful catch-up.
func (r *Registry) MarkDegraded(id string, degraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Degraded = degraded
	}
}

// Unregister closes and forgets the session. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.State = models.SessionClosed
		delete(r.sessions, id)
	}
}

// Get returns a snapshot of the session, or common.ErrorNotFound.
func (r *Registry) Get(id string) (models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return models.Session{}, fmt.Errorf("session %s: %w", id, common.ErrorNotFound)
	}
	return *s, nil
}

// Live returns snapshots of all authenticated sessions ordered by id.
func (r *Registry) Live() []models.Session {
	r.mu.RLock()
	out := make([]models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.State == models.SessionAuthenticated {
			out = append(out, *s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
