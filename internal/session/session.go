// Package session holds the per-user state of the interactive shell: the
// selected mode and the append-only conversation log.
package session

import (
	"errors"
	"sync"

	"pdfqa/internal/domain"
)

// Session is safe for concurrent use.
type Session struct {
	mu           sync.RWMutex
	mode         domain.Mode
	history      []domain.ConversationTurn
	webAvailable bool
}

// New starts a session in mode. webAvailable is false when no web search
// credential was configured; PDF_AND_WEB is then refused.
func New(mode domain.Mode, webAvailable bool) (*Session, error) {
	s := &Session{webAvailable: webAvailable}
	if err := s.SetMode(mode); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Mode() domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) SetMode(m domain.Mode) error {
	if m == domain.ModePDFAndWeb && !s.webAvailable {
		return domain.E(domain.ErrConfiguration, "set mode", errors.New("web search is not configured"))
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

// ToggleMode switches to the other mode if it is available and returns the result.
func (s *Session) ToggleMode() (domain.Mode, error) {
	next := domain.ModePDFAndWeb
	if s.Mode() == domain.ModePDFAndWeb {
		next = domain.ModePDFOnly
	}
	if err := s.SetMode(next); err != nil {
		return s.Mode(), err
	}
	return next, nil
}

func (s *Session) WebAvailable() bool { return s.webAvailable }

// Append records a turn. Turns are never changed once appended.
func (s *Session) Append(role domain.Role, content string) {
	s.mu.Lock()
	s.history = append(s.history, domain.ConversationTurn{Role: role, Content: content})
	s.mu.Unlock()
}

// History returns a copy of the log in append order.
func (s *Session) History() []domain.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationTurn, len(s.history))
	copy(out, s.history)
	return out
}
