package conversation

import (
	"sync"

	"remindbot/internal/dateparse"
)

type State int

const (
	StateInitial State = iota
	StateAwaitingDate
	StateAwaitingTime
	StateAwaitingMessage
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingTime:
		return "awaiting_time"
	case StateAwaitingMessage:
		return "awaiting_message"
	default:
		return "unknown"
	}
}

// session is one recipient's dialogue position plus the draft collected so
// far. The mutex serializes messages from the same recipient only.
type session struct {
	mu sync.Mutex

	state State

	date    dateparse.Date
	hasDate bool
	hour    int
	minute  int
	hasTime bool
}

func (s *session) reset() {
	s.state = StateInitial
	s.date = dateparse.Date{}
	s.hasDate = false
	s.hour, s.minute = 0, 0
	s.hasTime = false
}

// sessions is the recipient-keyed session store. The map lock is held only
// for lookup/insert; per-session work happens under the session's own lock.
type sessions struct {
	mu sync.Mutex
	m  map[string]*session
}

func newSessions() *sessions {
	return &sessions{m: map[string]*session{}}
}

func (ss *sessions) get(recipient string) *session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.m[recipient]
	if !ok {
		s = &session{}
		ss.m[recipient] = s
	}
	return s
}
