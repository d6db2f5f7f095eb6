package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"doclookup/internal/lookup"
	"doclookup/internal/odata"
	"doclookup/internal/screen"
)

type view int

const (
	viewMessage view = iota
	viewDocument
	viewSuggestions
	viewPicker
	viewHistory
	viewHelp
)

type response struct {
	Command     string              `json:"command"`
	Type        string              `json:"doc_type"`
	Page        string              `json:"page"`
	Key         string              `json:"key,omitempty"`
	Record      odata.Record        `json:"record,omitempty"`
	Items       []odata.Record      `json:"items,omitempty"`
	Suggestions []lookup.Suggestion `json:"suggestions,omitempty"`
	Rows        []odata.Record      `json:"rows,omitempty"`
	Loaded      int                 `json:"loaded,omitempty"`
	History     []historyEntry      `json:"history,omitempty"`
	Notices     []screen.Notice     `json:"notices,omitempty"`
	Message     string              `json:"message,omitempty"`
	MS          int64               `json:"ms"`

	view view
	def  lookup.Definition
}

// usageError is a malformed command. It never reaches the backend.
type usageError struct {
	Message string
}

func (e usageError) Error() string {
	return e.Message
}

const helpText = `Commands:
  type <so|bd>              switch document type
  get <key>                 look up a document by key
  suggest <text>            list keys containing text
  pick [Field=value ...]    load the selection list, optionally refined
  refine [Field=value ...]  narrow the loaded selection list
  find [Field=value ...]    reload the selection list filtered by the backend
  choose <row|key>          open a row of the selection list or a key
  back                      return to the main page
  show                      print the current state
  history [clear]           list or forget looked-up keys
  help                      print this text
  exit | quit               leave`

// execute runs one command line against the session. Lookup failures are
// reported both as notices on the response and as the returned error.
func execute(ctx context.Context, sess *session, name string, args []string) (response, error) {
	name = strings.ToLower(name)
	sc := sess.active
	var err error
	v := viewMessage

	switch name {
	case "help":
		v = viewHelp
	case "type":
		if len(args) != 1 {
			return response{}, usageError{Message: "usage: type <so|bd>"}
		}
		t, perr := lookup.ParseDocumentType(args[0])
		if perr != nil {
			return response{}, usageError{Message: perr.Error()}
		}
		if err = sess.use(t); err != nil {
			return response{}, err
		}
		sc = sess.active
		v = viewDocument
	case "get":
		if len(args) > 1 {
			return response{}, usageError{Message: "usage: get <key>"}
		}
		sc.SetKey(strings.Join(args, ""))
		err = sc.Check(ctx)
		if sc.Key != "" && !errors.Is(err, lookup.ErrValidation) {
			sess.record(sc.Key, err == nil)
		}
		v = viewDocument
	case "suggest":
		sc.LiveChange(ctx, strings.Join(args, " "))
		v = viewSuggestions
	case "pick", "refine", "find":
		criteria, perr := lookup.ParseCriteria(args)
		if perr != nil {
			return response{}, usageError{Message: perr.Error()}
		}
		err = runPicker(ctx, sc, name, criteria)
		v = viewPicker
	case "choose":
		if len(args) != 1 {
			return response{}, usageError{Message: "usage: choose <row|key>"}
		}
		key := args[0]
		// Small numbers address rows of the selection list; anything else
		// is taken as a key.
		if row, cerr := strconv.Atoi(key); cerr == nil {
			if k, ok := sc.PickerKey(row); ok {
				key = k
			}
		}
		err = sc.Confirm(ctx, key)
		if !errors.Is(err, lookup.ErrValidation) {
			sess.record(key, err == nil)
		}
		v = viewDocument
	case "back":
		sc.NavBack()
		v = viewDocument
	case "show":
		v = viewDocument
	case "history":
		switch {
		case len(args) == 0:
		case len(args) == 1 && strings.EqualFold(args[0], "clear"):
			sess.history.Clear()
		default:
			return response{}, usageError{Message: "usage: history [clear]"}
		}
		v = viewHistory
	default:
		return response{}, usageError{Message: fmt.Sprintf("unknown command %q, try 'help'", name)}
	}

	resp := snapshot(sc, name, v)
	if v == viewHistory {
		resp.History = sess.history.Entries()
	}
	if v == viewHelp {
		resp.Message = helpText
	}
	if hint := errorHint(err); hint != "" {
		resp.Notices = append(resp.Notices, screen.Notice{Severity: screen.Transient, Level: screen.Transient.String(), Message: hint})
	}
	return resp, err
}

func runPicker(ctx context.Context, sc *screen.Screen, name string, criteria lookup.Criteria) error {
	switch name {
	case "find":
		return sc.SearchPicker(ctx, criteria)
	case "refine":
		if sc.Picker == nil {
			if err := sc.OpenPicker(ctx); err != nil {
				return err
			}
		}
		return sc.FilterPicker(criteria)
	default:
		if err := sc.OpenPicker(ctx); err != nil {
			return err
		}
		if criteria.IsEmpty() {
			return nil
		}
		return sc.FilterPicker(criteria)
	}
}

func snapshot(sc *screen.Screen, name string, v view) response {
	resp := response{
		Command: name,
		Type:    sc.Type().String(),
		Page:    sc.Page.String(),
		Key:     sc.Key,
		Notices: sc.Notices(),
		view:    v,
		def:     sc.Definition(),
	}
	switch v {
	case viewDocument:
		if len(sc.Record) > 0 {
			resp.Record = sc.Record
			resp.Items = sc.Items
		}
	case viewSuggestions:
		resp.Suggestions = sc.Suggestions
	case viewPicker:
		resp.Rows = sc.PickerView
		resp.Loaded = len(sc.Picker)
	}
	return resp
}
