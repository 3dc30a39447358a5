package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edu-moreno89/erado-export/internal/folder"
)

// ErrInProgress is returned when an operation is started while the same
// operation is still running in that session
var ErrInProgress = errors.New("operation already in progress")

// Op names a guarded operation
type Op string

const (
	OpDocument    Op = "document"
	OpAttachments Op = "attachments"
	OpExportAll   Op = "exportAll"
	OpSave        Op = "saveAttachment"
	OpThread      Op = "thread"
)

// State of one operation
type State int

const (
	Idle State = iota
	InProgress
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in-progress"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session holds the state of one page context: the chosen target folder
// and the per-operation guards. It lives until the page is reloaded.
type Session struct {
	ID string

	mu     sync.Mutex
	folder folder.Folder
	states map[Op]State
}

// New creates an idle session without a folder
func New(id string) *Session {
	return &Session{ID: id, states: make(map[Op]State)}
}

// Folder returns the selected folder, if any
func (s *Session) Folder() (folder.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder, s.folder != nil
}

// SetFolder remembers f for every later export in this session
func (s *Session) SetFolder(f folder.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folder = f
}

// State reports whether op is running
func (s *Session) State(op Op) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[op]
}

// Busy reports whether any operation is running
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st == InProgress {
			return true
		}
	}
	return false
}

// Begin moves op from Idle to InProgress. The returned release func moves it
// back and is safe to call more than once.
func (s *Session) Begin(op Op) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.states[op] == InProgress {
		return nil, fmt.Errorf("%s: %w", op, ErrInProgress)
	}
	s.states[op] = InProgress

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.states[op] = Idle
			s.mu.Unlock()
		})
	}, nil
}

// Registry maps page contexts to sessions
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry), now: time.Now}
}

// Get returns the session for id, creating it on first use
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		e = &entry{session: New(id)}
		r.sessions[id] = e
	}
	e.lastUsed = r.now()
	return e.session
}

// Lookup returns the session for id without creating one
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

// Reset forgets the session, as a page reload would
func (r *Registry) Reset(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Evict forgets every session unused for longer than idle. Sessions with a
// running operation are kept.
func (r *Registry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.session.Busy() {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
