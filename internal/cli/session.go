package cli

import (
	"fmt"
	"time"

	"doclookup/internal/lookup"
	"doclookup/internal/screen"

	"go.uber.org/zap"
)

const defaultHistoryMaxEntries = 20

type historyEntry struct {
	Type  string    `json:"doc_type"`
	Key   string    `json:"key"`
	Found bool      `json:"found"`
	At    time.Time `json:"at"`
}

// SessionHistory keeps the most recent key lookups of a session.
type SessionHistory struct {
	entries    []historyEntry
	maxEntries int
	logger     *zap.Logger
}

func NewSessionHistory(maxEntries int, logger *zap.Logger) *SessionHistory {
	if maxEntries <= 0 {
		maxEntries = defaultHistoryMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHistory{
		maxEntries: maxEntries,
		logger:     logger,
	}
}

func (h *SessionHistory) Append(entry historyEntry) {
	h.entries = append(h.entries, entry)
	h.enforceLimits()
}

func (h *SessionHistory) Entries() []historyEntry {
	if len(h.entries) == 0 {
		return nil
	}
	out := make([]historyEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *SessionHistory) Clear() {
	h.entries = nil
}

func (h *SessionHistory) enforceLimits() {
	if len(h.entries) <= h.maxEntries {
		return
	}
	dropped := len(h.entries) - h.maxEntries
	h.entries = append([]historyEntry(nil), h.entries[dropped:]...)
	h.logger.Debug("session history trimmed",
		zap.Int("entries", len(h.entries)),
		zap.Int("dropped", dropped),
	)
}

// session holds one screen per document type and tracks the active one.
type session struct {
	svc     screen.Lookup
	limit   int
	screens map[lookup.DocumentType]*screen.Screen
	active  *screen.Screen
	history *SessionHistory
}

func newSession(svc screen.Lookup, t lookup.DocumentType, limit int, logger *zap.Logger) (*session, error) {
	s := &session{
		svc:     svc,
		limit:   limit,
		screens: make(map[lookup.DocumentType]*screen.Screen),
		history: NewSessionHistory(defaultHistoryMaxEntries, logger),
	}
	if err := s.use(t); err != nil {
		return nil, err
	}
	return s, nil
}

// use switches the active screen, creating it on first use. Each type keeps
// its own state across switches.
func (s *session) use(t lookup.DocumentType) error {
	if sc, ok := s.screens[t]; ok {
		s.active = sc
		return nil
	}
	sc, err := screen.New(s.svc, t)
	if err != nil {
		return fmt.Errorf("open %s screen: %w", t, err)
	}
	sc.Limit = s.limit
	s.screens[t] = sc
	s.active = sc
	return nil
}

func (s *session) record(key string, found bool) {
	s.history.Append(historyEntry{
		Type:  s.active.Type().String(),
		Key:   key,
		Found: found,
		At:    time.Now(),
	})
}
