package assistant

import (
	"sync"
	"time"
)

// Role identifies who produced a SessionLog entry.
type Role string

// Entry roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Entry is one line of the session log.
type Entry struct {
	Time time.Time
	Role Role
	Text string
}

// SessionLog is an ordered, append-only record of the session. It is safe
// for concurrent use.
type SessionLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewSessionLog creates an empty log.
func NewSessionLog() *SessionLog {
	return &SessionLog{}
}

// Append adds an entry and returns it.
func (l *SessionLog) Append(t time.Time, role Role, text string) Entry {
	e := Entry{Time: t, Role: role, Text: text}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// Len returns the number of entries.
func (l *SessionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the newest entry.
func (l *SessionLog) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of all entries, oldest first.
func (l *SessionLog) Entries() []Entry {
	return l.Tail(0)
}

// Tail returns a copy of the newest n entries, oldest first. n <= 0 returns
// every entry.
func (l *SessionLog) Tail(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && n < len(l.entries) {
		start = len(l.entries) - n
	}
	return append([]Entry(nil), l.entries[start:]...)
}

// Count returns the number of entries with role.
func (l *SessionLog) Count(role Role) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if e.Role == role {
			n++
		}
	}
	return n
}
