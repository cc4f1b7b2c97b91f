package sessions

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultWindow is the number of turns kept per session.
	DefaultWindow = 10
	// DefaultMaxSessions bounds the number of live sessions.
	DefaultMaxSessions = 1024
)

// Store is an in-memory session store with a bounded turn window per session
// and an LRU bound on the number of live sessions.
//
// The store is safe for concurrent use across sessions. Callers are expected
// to serialize traffic within a single session; concurrent messages under the
// same identifier have undefined interleaving.
type Store struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
	window   int
}

// NewStore creates a session store. Non-positive arguments fall back to defaults.
func NewStore(window, maxSessions int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, _ := lru.New[string, *Session](maxSessions)
	return &Store{sessions: cache, window: window}
}

// Window returns the configured turn window.
func (s *Store) Window() int { return s.window }

// GetOrCreate returns the identifier of an existing session, or creates a new
// session and returns its fresh identifier. It never fails. The second return
// reports whether a new session was created.
func (s *Store) GetOrCreate(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.sessions.Get(id); ok {
			return id, false
		}
	}
	return s.createLocked(), true
}

func (s *Store) createLocked() string {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		Context:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions.Add(sess.ID, sess)
	return sess.ID
}

// AppendTurn assigns the next turn number, appends the turn, evicts the oldest
// turn when the window is exceeded, and bumps the last-activity timestamp.
func (s *Store) AppendTurn(id, userMessage, botResponse string) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(id)
	if !ok {
		return Turn{}, false
	}

	sess.nextTurn++
	turn := Turn{
		Number:      sess.nextTurn,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Ts:          time.Now(),
	}
	sess.Turns = append(sess.Turns, turn)
	if len(sess.Turns) > s.window {
		sess.Turns = sess.Turns[len(sess.Turns)-s.window:]
	}
	sess.UpdatedAt = turn.Ts
	return turn, true
}

// UpdateContext merges one key into the session context, last-write-wins.
func (s *Store) UpdateContext(id, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(id)
	if !ok {
		return false
	}
	if sess.Context == nil {
		// Recover from corrupted state rather than faulting the turn.
		sess.Context = make(map[string]string)
	}
	sess.Context[key] = value
	sess.UpdatedAt = time.Now()
	return true
}

// Context returns a snapshot copy of the session context.
// Unknown sessions yield an empty map.
func (s *Store) Context(id string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]string)
	sess, ok := s.sessions.Get(id)
	if !ok {
		return snapshot
	}
	for k, v := range sess.Context {
		snapshot[k] = v
	}
	return snapshot
}

// Turns returns an ordered copy of the session's turns, most recent last.
func (s *Store) Turns(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.Turns))
	copy(out, sess.Turns)
	return out
}

// Delete removes a session. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Remove(id)
}

// Stats returns summary information for a session.
func (s *Store) Stats(id string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(id)
	if !ok {
		return Stats{}, false
	}

	keys := make([]string, 0, len(sess.Context))
	for k := range sess.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Stats{
		ID:          sess.ID,
		TotalTurns:  len(sess.Turns),
		LastTurn:    sess.nextTurn,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
		ContextKeys: keys,
	}, true
}

// List returns metadata for all live sessions, most recently created first.
func (s *Store) List() []Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.sessions.Keys()
	out := make([]Meta, 0, len(keys))
	for _, k := range keys {
		sess, ok := s.sessions.Peek(k)
		if !ok {
			continue
		}
		out = append(out, Meta{
			ID:        sess.ID,
			TurnCount: len(sess.Turns),
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
