// Package presence tracks which live connection is in which session.
//
// The durable participant set lives in the store; the connection map is
// ephemeral and owned by this process. Joins and leaves for one session are
// serialized through the session lock so the two never disagree for long.
package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/lock"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
)

// ErrBackpressure is returned by TrySend when a connection's queue is full.
var ErrBackpressure = errors.New("backpressure")

// Conn is a live client connection as seen by the registry.
type Conn interface {
	ID() string
	Identity() models.Identity
	// TrySend queues a frame without blocking.
	TrySend(frame []byte) error
	Close()
}

// Store is the durable half of presence.
type Store interface {
	AddParticipant(ctx context.Context, sessionID, identityID string) (*models.Session, error)
	RemoveParticipant(ctx context.Context, sessionID, identityID string) error
}

// Entry is the ephemeral presence record of one connection.
type Entry struct {
	Conn        Conn
	Identity    models.Identity
	DisplayName string
	SessionID   string
	JoinedAt    time.Time
}

// Participant renders the entry for clients.
func (e Entry) Participant() models.PresentParticipant {
	return models.PresentParticipant{
		ConnectionID: e.Conn.ID(),
		IdentityID:   e.Identity.ID,
		DisplayName:  e.DisplayName,
	}
}

// LeaveResult describes a completed leave.
type LeaveResult struct {
	Entry Entry
	// IdentityGone is true when no other local connection of the identity remains in the session.
	IdentityGone bool
}

// Registry owns the connection -> session map.
type Registry struct {
	store  Store
	locker lock.Locker
	log    zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry builds an empty registry.
func NewRegistry(store Store, locker lock.Locker, log zerolog.Logger) *Registry {
	return &Registry{
		store:   store,
		locker:  locker,
		log:     log.With().Str("component", "presence").Logger(),
		entries: make(map[string]*Entry),
	}
}

// LockKey is the per-session lock shared by join and leave.
func LockKey(sessionID string) string {
	return "presence:" + sessionID
}

// Join records conn as present in sessionID. The durable add happens first so
// a crash between the two steps leaves membership recorded rather than lost.
// A connection already in another session is moved out of it first.
func (r *Registry) Join(ctx context.Context, conn Conn, sessionID, displayName string) (*models.Session, error) {
	if prev, ok := r.Lookup(conn.ID()); ok && prev.SessionID != sessionID {
		if _, err := r.Leave(ctx, conn.ID()); err != nil {
			r.log.Warn().Err(err).Str("connection_id", conn.ID()).Msg("leave before move failed")
		}
	}

	unlock, err := r.locker.Lock(ctx, LockKey(sessionID))
	if err != nil {
		return nil, apperr.External(err)
	}
	defer unlock()

	identity := conn.Identity()
	session, err := r.store.AddParticipant(ctx, sessionID, identity.ID)
	if err != nil {
		return nil, apperr.External(err)
	}

	if displayName == "" {
		displayName = identity.DisplayName
	}

	r.mu.Lock()
	if e, ok := r.entries[conn.ID()]; ok {
		// repeated join of the same connection keeps the original entry
		e.DisplayName = displayName
	} else {
		r.entries[conn.ID()] = &Entry{
			Conn:        conn,
			Identity:    identity,
			DisplayName: displayName,
			SessionID:   session.ID,
			JoinedAt:    time.Now(),
		}
		metrics.PresenceChanges.WithLabelValues("join").Inc()
	}
	r.mu.Unlock()

	r.log.Info().
		Str("connection_id", conn.ID()).
		Str("identity_id", identity.ID).
		Str("session_id", session.ID).
		Msg("joined session")
	return session, nil
}

// Leave removes the connection's entry and, when it was the identity's last
// local connection in the session, its durable membership. Without an entry it is a no-op.
// The entry is always removed even when the durable update fails.
func (r *Registry) Leave(ctx context.Context, connID string) (*LeaveResult, error) {
	entry, ok := r.Lookup(connID)
	if !ok {
		return nil, nil
	}

	unlock, lockErr := r.locker.Lock(ctx, LockKey(entry.SessionID))
	if lockErr == nil {
		defer unlock()
	} else {
		lockErr = apperr.External(lockErr)
	}

	r.mu.Lock()
	current, ok := r.entries[connID]
	if !ok || current.SessionID != entry.SessionID {
		r.mu.Unlock()
		return nil, nil
	}
	delete(r.entries, connID)
	gone := true
	for _, e := range r.entries {
		if e.SessionID == entry.SessionID && e.Identity.ID == entry.Identity.ID {
			gone = false
			break
		}
	}
	r.mu.Unlock()
	metrics.PresenceChanges.WithLabelValues("leave").Inc()

	res := &LeaveResult{Entry: *current, IdentityGone: gone}
	if !gone {
		return res, lockErr
	}

	if err := r.store.RemoveParticipant(ctx, entry.SessionID, entry.Identity.ID); err != nil {
		r.log.Error().Err(err).
			Str("session_id", entry.SessionID).
			Str("identity_id", entry.Identity.ID).
			Msg("remove participant failed")
		return res, apperr.External(err)
	}

	r.log.Info().
		Str("connection_id", connID).
		Str("identity_id", entry.Identity.ID).
		Str("session_id", entry.SessionID).
		Msg("left session")
	return res, lockErr
}

// Lookup returns a copy of the connection's entry.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Present lists the live connections of a session in join order.
func (r *Registry) Present(sessionID string) []models.PresentParticipant {
	entries := r.entriesOf(sessionID)
	out := make([]models.PresentParticipant, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Participant())
	}
	return out
}

// ConnectionsOf returns every local connection of identityID in sessionID.
func (r *Registry) ConnectionsOf(sessionID, identityID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, e := range r.entries {
		if e.SessionID == sessionID && e.Identity.ID == identityID {
			out = append(out, e.Conn)
		}
	}
	return out
}

// Count is the number of connections currently in any session.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// DeliverToSession queues frame on every local connection of sessionID except excludeConn.
func (r *Registry) DeliverToSession(sessionID string, frame []byte, excludeConn string) int {
	var targets []Conn
	for _, e := range r.entriesOf(sessionID) {
		if e.Conn.ID() != excludeConn {
			targets = append(targets, e.Conn)
		}
	}
	return r.deliver(targets, frame)
}

// DeliverToIdentity queues frame on every local connection of identityID in sessionID.
func (r *Registry) DeliverToIdentity(sessionID, identityID string, frame []byte) int {
	return r.deliver(r.ConnectionsOf(sessionID, identityID), frame)
}

func (r *Registry) deliver(targets []Conn, frame []byte) int {
	sent := 0
	for _, c := range targets {
		if err := c.TrySend(frame); err != nil {
			if errors.Is(err, ErrBackpressure) {
				// slow consumer; closing ends its read loop which runs the usual cleanup
				metrics.SlowConsumers.Inc()
				r.log.Warn().Str("connection_id", c.ID()).Msg("send queue full, closing connection")
				c.Close()
			}
			continue
		}
		sent++
	}
	return sent
}

func (r *Registry) entriesOf(sessionID string) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			out = append(out, *e)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Conn.ID() < out[j].Conn.ID()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
