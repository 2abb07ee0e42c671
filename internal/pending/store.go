// Package pending holds short-lived tokens linking a chat-rendered Download
// button to a specific request. Tokens are consumed exactly once.
package pending

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediabandit/internal/metrics"
)

// ErrNotFound is returned for unknown, already-consumed or expired tokens
var ErrNotFound = errors.New("pending token not found")

// Token is the payload stored behind an issued token
type Token struct {
	Token       string    `json:"token"`
	URL         string    `json:"url"`
	InitiatorID int64     `json:"initiator_id"`
	ChatID      int64     `json:"chat_id"`
	MessageID   int64     `json:"message_id"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Store is the in-process pending token table
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	tokens  map[string]*Token
	logger  *slog.Logger
	metrics *metrics.Registry

	now func() time.Time
}

// NewStore creates a store whose tokens expire ttl after issuance
func NewStore(ttl time.Duration, reg *metrics.Registry) *Store {
	return &Store{
		ttl:     ttl,
		tokens:  make(map[string]*Token),
		logger:  slog.Default(),
		metrics: reg,
		now:     time.Now,
	}
}

// Issue creates a one-shot token for a group message's Download button
func (s *Store) Issue(chatID, messageID, initiatorID int64, url string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	s.tokens[token] = &Token{
		Token:       token,
		URL:         url,
		InitiatorID: initiatorID,
		ChatID:      chatID,
		MessageID:   messageID,
		IssuedAt:    s.now(),
	}
	s.updateGaugeLocked()
	s.mu.Unlock()

	return token
}

// Consume removes and returns the token's payload. The first successful call
// wins; later calls and expired tokens get ErrNotFound.
func (s *Store) Consume(token string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.tokens, token)
	s.updateGaugeLocked()

	if s.expiredLocked(t) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Drop force-removes a token before consumption. Used by the admin surface.
func (s *Store) Drop(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tokens[token]
	delete(s.tokens, token)
	s.updateGaugeLocked()
	return ok
}

// Flush removes every token and returns how many were cleared
func (s *Store) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.tokens)
	s.tokens = make(map[string]*Token)
	s.updateGaugeLocked()
	return count
}

// Count returns the number of live tokens
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Snapshot returns tokens newest-first, capped at limit (0 means all)
func (s *Store) Snapshot(limit int) []Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		rows = append(rows, *t)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].IssuedAt.After(rows[j].IssuedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Sweep removes expired tokens and returns the number dropped
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for token, t := range s.tokens {
		if s.expiredLocked(t) {
			delete(s.tokens, token)
			dropped++
		}
	}
	if dropped > 0 {
		s.updateGaugeLocked()
		s.logger.Info("Swept expired pending tokens", "count", dropped)
	}
	return dropped
}

// Run sweeps expired tokens on the given interval until ctx is done
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expiredLocked(t *Token) bool {
	return s.ttl > 0 && s.now().Sub(t.IssuedAt) > s.ttl
}

func (s *Store) updateGaugeLocked() {
	if s.metrics != nil {
		s.metrics.SetGauge(metrics.PendingTokens, int64(len(s.tokens)))
	}
}
