package views

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
)

// Session holds the screens opened by one browser
type Session struct {
	ID string

	svc      *roster.Service
	mu       sync.Mutex
	lastSeen time.Time
	coaches  map[int]*CoachScreen
	teams    map[string]*TeamScreen
}

// Coach returns the session's screen for coachID, creating it on first use
func (s *Session) Coach(coachID int) *CoachScreen {
	s.mu.Lock()
	defer s.mu.Unlock()

	screen, ok := s.coaches[coachID]
	if !ok {
		screen = NewCoachScreen(s.svc, coachID)
		s.coaches[coachID] = screen
	}
	return screen
}

// Team returns the session's screen for teamID, creating it on first use
func (s *Session) Team(teamID string) *TeamScreen {
	s.mu.Lock()
	defer s.mu.Unlock()

	screen, ok := s.teams[teamID]
	if !ok {
		screen = NewTeamScreen(s.svc, teamID)
		s.teams[teamID] = screen
	}
	return screen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Sessions keeps screen state per browser and forgets idle browsers
type Sessions struct {
	svc  *roster.Service
	idle time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates a registry whose sessions expire after idle
func NewSessions(svc *roster.Service, idle time.Duration) *Sessions {
	return &Sessions{
		svc:      svc,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id. Unknown or empty ids get a new session;
// created reports whether that happened.
func (s *Sessions) Get(id string) (session *Session, created bool) {
	now := s.now()

	if id != "" {
		s.mu.RLock()
		existing, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			existing.touch(now)
			return existing, false
		}
	}

	session = &Session{
		ID:       uuid.NewString(),
		svc:      s.svc,
		lastSeen: now,
		coaches:  make(map[int]*CoachScreen),
		teams:    make(map[string]*TeamScreen),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	logger.Debug("Session created", "session", session.ID)
	return session, true
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the configured duration and
// returns how many were removed.
func (s *Sessions) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, session := range s.sessions {
		if session.idleSince(now) > s.idle {
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 {
		logger.Info("Swept idle sessions", "removed", n, "remaining", len(s.sessions))
	}
	return n
}

// Run sweeps every interval until ctx is done
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
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
