// Package screen holds the presentation state of one document lookup screen
// and the handlers that move it between the main and details pages.
package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"doclookup/internal/lookup"
	"doclookup/internal/odata"
)

type Page int

const (
	PageMain Page = iota
	PageDetails
)

func (p Page) String() string {
	if p == PageDetails {
		return "details"
	}
	return "main"
}

type Severity int

const (
	// Transient notices disappear on their own (input hints).
	Transient Severity = iota
	// Warning notices are non-blocking (partial data).
	Warning
	// Blocking notices need acknowledgement (failed lookups).
	Blocking
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Blocking:
		return "error"
	default:
		return "info"
	}
}

type Notice struct {
	Severity Severity `json:"-"`
	Level    string   `json:"level"`
	Message  string   `json:"message"`
}

func newNotice(sev Severity, format string, args ...any) Notice {
	return Notice{Severity: sev, Level: sev.String(), Message: fmt.Sprintf(format, args...)}
}

// Lookup is the part of lookup.Service a screen drives.
type Lookup interface {
	Definition(t lookup.DocumentType) (lookup.Definition, error)
	FetchByKey(ctx context.Context, t lookup.DocumentType, key string) (lookup.Document, error)
	SearchSuggestions(ctx context.Context, t lookup.DocumentType, partial string) []lookup.Suggestion
	SearchFiltered(ctx context.Context, t lookup.DocumentType, criteria lookup.Criteria, limit, offset int) ([]odata.Record, error)
	Refine(t lookup.DocumentType, records []odata.Record, criteria lookup.Criteria) ([]odata.Record, error)
}

// Screen is the state of one lookup screen. It is owned by a single goroutine.
type Screen struct {
	def       lookup.Definition
	svc       Lookup
	typeahead *lookup.Typeahead

	Key         string
	Record      odata.Record
	Items       []odata.Record
	Suggestions []lookup.Suggestion
	Picker      []odata.Record
	PickerView  []odata.Record
	Page        Page
	// Limit caps picker loads; zero uses the service page size.
	Limit int

	notices []Notice
}

func New(svc Lookup, t lookup.DocumentType) (*Screen, error) {
	def, err := svc.Definition(t)
	if err != nil {
		return nil, err
	}
	return &Screen{
		def:         def,
		svc:         svc,
		typeahead:   lookup.NewTypeahead(svc, t),
		Record:      odata.Record{},
		Items:       []odata.Record{},
		Suggestions: []lookup.Suggestion{},
		Page:        PageMain,
	}, nil
}

func (s *Screen) Definition() lookup.Definition {
	return s.def
}

func (s *Screen) Type() lookup.DocumentType {
	return s.def.Type
}

// Notices returns and clears the pending notices.
func (s *Screen) Notices() []Notice {
	out := s.notices
	s.notices = nil
	return out
}

func (s *Screen) notify(n Notice) {
	s.notices = append(s.notices, n)
}

// SetKey stores the input key without surrounding whitespace.
func (s *Screen) SetKey(key string) {
	s.Key = strings.TrimSpace(key)
}

// Check fetches the document for the current key and moves to the details
// page on success. Any failure clears the displayed record.
func (s *Screen) Check(ctx context.Context) error {
	s.Key = strings.TrimSpace(s.Key)
	if s.Key == "" {
		s.notify(newNotice(Transient, "Please enter a %s", s.def.Label))
		return lookup.ErrValidation
	}

	doc, err := s.svc.FetchByKey(ctx, s.def.Type, s.Key)
	if err != nil {
		s.clearRecord()
		switch {
		case errors.Is(err, lookup.ErrNotFound):
			s.notify(newNotice(Blocking, "%s %s does not exist", s.def.Label, s.Key))
		case errors.Is(err, lookup.ErrValidation):
			s.notify(newNotice(Transient, "%s", err.Error()))
		default:
			s.notify(newNotice(Blocking, "Request for %s %s failed: %v", s.def.Label, s.Key, errors.Unwrap(err)))
		}
		return err
	}

	s.Record = doc.Header
	s.Items = doc.Items
	if s.Items == nil {
		s.Items = []odata.Record{}
	}
	if doc.ItemsErr != nil {
		s.notify(newNotice(Warning, "Items of %s %s could not be loaded", s.def.Label, s.Key))
	}
	s.Page = PageDetails
	return nil
}

// LiveChange refreshes the suggestion list for text. Responses that were
// overtaken by a later keystroke are dropped.
func (s *Screen) LiveChange(ctx context.Context, text string) {
	if text == "" {
		s.typeahead.Suggest(ctx, "")
		s.Suggestions = []lookup.Suggestion{}
		return
	}
	res, fresh := s.typeahead.Suggest(ctx, text)
	if !fresh {
		return
	}
	s.Suggestions = res
}

// OpenPicker loads the initial unfiltered page into the picker.
func (s *Screen) OpenPicker(ctx context.Context) error {
	return s.loadPicker(ctx, nil)
}

// SearchPicker reloads the picker from the backend with criteria applied.
func (s *Screen) SearchPicker(ctx context.Context, criteria lookup.Criteria) error {
	return s.loadPicker(ctx, criteria)
}

func (s *Screen) loadPicker(ctx context.Context, criteria lookup.Criteria) error {
	records, err := s.svc.SearchFiltered(ctx, s.def.Type, criteria, s.Limit, 0)
	if err != nil {
		if errors.Is(err, lookup.ErrValidation) {
			s.notify(newNotice(Transient, "%s", err.Error()))
		} else {
			s.notify(newNotice(Blocking, "Error fetching %ss for selection", s.def.Label))
		}
		return err
	}
	s.Picker = records
	s.PickerView = records
	return nil
}

// FilterPicker narrows the loaded picker page in memory.
func (s *Screen) FilterPicker(criteria lookup.Criteria) error {
	view, err := s.svc.Refine(s.def.Type, s.Picker, criteria)
	if err != nil {
		s.notify(newNotice(Transient, "%s", err.Error()))
		return err
	}
	s.PickerView = view
	return nil
}

// PickerKey returns the key of row (1-based) of the current picker view.
func (s *Screen) PickerKey(row int) (string, bool) {
	if row < 1 || row > len(s.PickerView) {
		return "", false
	}
	return s.PickerView[row-1].String(s.def.KeyField), true
}

// Confirm takes key from the picker and fetches it.
func (s *Screen) Confirm(ctx context.Context, key string) error {
	s.SetKey(key)
	return s.Check(ctx)
}

// NavBack returns to the main page and forgets the current document.
func (s *Screen) NavBack() {
	s.Page = PageMain
	s.Key = ""
	s.clearRecord()
}

func (s *Screen) clearRecord() {
	s.Record = odata.Record{}
	s.Items = []odata.Record{}
}
