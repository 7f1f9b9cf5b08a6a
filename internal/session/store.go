// Package session holds chat sessions in memory with idle expiry and a
// capacity bound.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
	"github.com/apollo-risk/risk-assistant/pkg/metrics"
)

const (
	DefaultTTL         = 2 * time.Hour
	DefaultMaxSessions = 10000
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	// TTL is how long a session may stay idle before it is treated as unknown.
	TTL time.Duration

	// MaxSessions bounds the number of sessions held. When full, creating a
	// session evicts the least recently active one.
	MaxSessions int

	// Now overrides the clock, for tests.
	Now func() time.Time

	Logger *logger.Logger
}

type chatSession struct {
	id           string
	userID       string
	createdAt    time.Time
	lastActivity time.Time
	messages     []model.ChatMessage
	messageCount int

	// position in the recency list, front is most recent
	elem *list.Element
}

// Store is a concurrency-safe in-memory session store.
type Store struct {
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	logger      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*chatSession
	recency  *list.List
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return &Store{
		ttl:         opts.TTL,
		maxSessions: opts.MaxSessions,
		now:         opts.Now,
		logger:      opts.Logger,
		sessions:    make(map[string]*chatSession),
		recency:     list.New(),
	}
}

// ResolveOrCreate returns id unchanged when it names a live session. An empty,
// unknown, malformed or expired id yields a freshly generated one with an
// empty session behind it; isNew reports which case applied. userID is only
// recorded on creation. A session created for a different user is treated as
// unknown and left untouched.
func (s *Store) ResolveOrCreate(id, userID string) (string, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			switch {
			case s.expired(sess, now):
				s.remove(sess, "expired")
			case sess.userID != "" && sess.userID != userID:
				s.logger.Debug("session belongs to another user, starting fresh",
					zap.String("session_id", id),
				)
			default:
				return id, false
			}
		}
	}

	newID := uuid.NewString()
	s.create(newID, userID, now)
	return newID, true
}

// RecordInbound appends a user message to the session.
func (s *Store) RecordInbound(id, text string) {
	s.append(id, model.RoleUser, text)
}

// RecordOutbound appends an assistant message to the session.
func (s *Store) RecordOutbound(id, text string) {
	s.append(id, model.RoleAssistant, text)
}

func (s *Store) append(id string, role model.Role, text string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		// Evicted between resolve and record; keep the turn under the same id.
		sess = s.create(id, "", now)
	}

	sess.messages = append(sess.messages, model.ChatMessage{
		Role:      role,
		Content:   text,
		CreatedAt: now,
	})
	sess.messageCount++
	sess.lastActivity = now
	s.recency.MoveToFront(sess.elem)
}

// RecentHistory returns at most k of the session's latest messages, oldest
// first. The slice is a copy.
func (s *Store) RecentHistory(id string, k int) []model.ChatMessage {
	if k <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}

	msgs := sess.messages
	if len(msgs) > k {
		msgs = msgs[len(msgs)-k:]
	}
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Get returns a snapshot of a live session.
func (s *Store) Get(id string) (model.SessionInfo, bool) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, now) {
		return model.SessionInfo{}, false
	}

	msgs := make([]model.ChatMessage, len(sess.messages))
	copy(msgs, sess.messages)

	return model.SessionInfo{
		ID:             sess.id,
		UserID:         sess.userID,
		CreatedAt:      sess.createdAt,
		LastActivityAt: sess.lastActivity,
		MessageCount:   sess.messageCount,
		Messages:       msgs,
	}, true
}

// Len returns the number of sessions held, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	// The back of the recency list is least recently active, so stop at the
	// first live session.
	for e := s.recency.Back(); e != nil; {
		sess := e.Value.(*chatSession)
		if !s.expired(sess, now) {
			break
		}
		prev := e.Prev()
		s.remove(sess, "expired")
		removed++
		e = prev
	}
	return removed
}

// StartJanitor runs Sweep every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Debug("expired sessions swept", zap.Int("count", n))
				}
			}
		}
	}()
}

// create must be called with mu held.
func (s *Store) create(id, userID string, now time.Time) *chatSession {
	for len(s.sessions) >= s.maxSessions {
		back := s.recency.Back()
		if back == nil {
			break
		}
		s.remove(back.Value.(*chatSession), "capacity")
	}

	sess := &chatSession{
		id:           id,
		userID:       userID,
		createdAt:    now,
		lastActivity: now,
	}
	sess.elem = s.recency.PushFront(sess)
	s.sessions[id] = sess
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return sess
}

// remove must be called with mu held.
func (s *Store) remove(sess *chatSession, reason string) {
	s.recency.Remove(sess.elem)
	delete(s.sessions, sess.id)
	metrics.SessionsEvicted.WithLabelValues(reason).Inc()
	metrics.SessionsActive.Set(float64(len(s.sessions)))
}

func (s *Store) expired(sess *chatSession, now time.Time) bool {
	return now.Sub(sess.lastActivity) > s.ttl
}
