package calibration

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session status values.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionAborted   = "aborted"
)

// NodeEvent records an accepted calibration point.
type NodeEvent struct {
	Node int            `json:"node_index"`
	At   time.Time      `json:"ts"`
	Data map[string]any `json:"data,omitempty"`
}

// Session is a snapshot of one calibration session.
type Session struct {
	ID             uuid.UUID   `json:"session_id"`
	Status         string      `json:"state"`
	Protocol       string      `json:"protocol"`
	TotalNodes     int         `json:"total_nodes"`
	ActiveNode     int         `json:"active_node_index"`
	CompletedNodes []int       `json:"completed_nodes"`
	Events         []NodeEvent `json:"node_events"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	AbortedAt      *time.Time  `json:"aborted_at,omitempty"`
	AbortReason    string      `json:"abort_reason,omitempty"`
}

func (s *Session) clone() Session {
	c := *s
	c.CompletedNodes = slices.Clone(s.CompletedNodes)
	c.Events = slices.Clone(s.Events)
	return c
}

// Sessions holds the current calibration session. Every method returns a
// copy, never the stored session.
type Sessions struct {
	mu      sync.Mutex
	current *Session
	now     func() time.Time
}

// NewSessions creates an empty store.
func NewSessions() *Sessions {
	return &Sessions{now: time.Now}
}

// Start replaces any current session with a new running one.
func (s *Sessions) Start(protocol string, totalNodes int) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &Session{
		ID:             uuid.New(),
		Status:         SessionRunning,
		Protocol:       protocol,
		TotalNodes:     totalNodes,
		CompletedNodes: []int{},
		Events:         []NodeEvent{},
		StartedAt:      s.now(),
	}
	return s.current.clone()
}

// Get returns the current session.
func (s *Sessions) Get() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	return s.current.clone(), true
}

// RecordNode marks a node complete and advances the active node.
func (s *Sessions) RecordNode(id uuid.UUID, node int, data map[string]any) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if cur.Status != SessionRunning {
		return Session{}, ErrSessionNotRunning
	}

	if !slices.Contains(cur.CompletedNodes, node) {
		cur.CompletedNodes = append(cur.CompletedNodes, node)
	}
	cur.ActiveNode = min(len(cur.CompletedNodes), max(0, cur.TotalNodes-1))
	cur.Events = append(cur.Events, NodeEvent{Node: node, At: s.now(), Data: data})
	return cur.clone(), nil
}

// Complete marks the session completed.
func (s *Sessions) Complete(id uuid.UUID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	cur.Status = SessionCompleted
	cur.CompletedAt = &now
	cur.ActiveNode = max(0, cur.TotalNodes-1)
	return cur.clone(), nil
}

// Abort marks the current session aborted. It reports false when there is
// no session.
func (s *Sessions) Abort(reason string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Session{}, false
	}
	now := s.now()
	s.current.Status = SessionAborted
	s.current.AbortedAt = &now
	if reason != "" {
		s.current.AbortReason = reason
	}
	return s.current.clone(), true
}

func (s *Sessions) lookup(id uuid.UUID) (*Session, error) {
	if s.current == nil {
		return nil, ErrNoSession
	}
	if s.current.ID != id {
		return nil, fmt.Errorf("%w: %s", ErrSessionMismatch, id)
	}
	return s.current, nil
}
