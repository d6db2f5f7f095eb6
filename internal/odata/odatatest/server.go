// Package odatatest provides an in-memory OData v2 backend for tests.
//
// It understands key reads, navigation reads and the subset of query options
// the lookup client issues: $filter with substringof, eq and and; $top;
// $skip; $select.
package odatatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Request is one request observed by the server.
type Request struct {
	Path  string
	Query url.Values
	Auth  string
}

type entitySet struct {
	keyField   string
	records    []map[string]any
	navigation map[string]map[string][]map[string]any
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	sets     map[string]*entitySet
	failures map[string]int
	requests []Request
	hook     func(*http.Request)
}

func NewServer() *Server {
	s := &Server{
		sets:     map[string]*entitySet{},
		failures: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/{segment}", s.handleSegment)
	r.Get("/{segment}/{nav}", s.handleNavigation)
	s.Server = httptest.NewServer(r)
	return s
}

// AddEntitySet registers set keyed by keyField. Records keep insertion order.
func (s *Server) AddEntitySet(name, keyField string, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[name] = &entitySet{
		keyField:   keyField,
		records:    records,
		navigation: map[string]map[string][]map[string]any{},
	}
}

// AddNavigation registers the items reachable from set(key)/nav.
func (s *Server) AddNavigation(set, nav, key string, items ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.sets[set]
	if !ok {
		panic(fmt.Sprintf("odatatest: unknown entity set %q", set))
	}
	if es.navigation[nav] == nil {
		es.navigation[nav] = map[string][]map[string]any{}
	}
	es.navigation[nav][key] = items
}

// Fail makes every request whose decoded path starts with prefix answer status.
func (s *Server) Fail(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = status
}

// SetHook installs fn to run before each request is served.
func (s *Server) SetHook(fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Path:  r.URL.Path,
			Query: r.URL.Query(),
			Auth:  r.Header.Get("Authorization"),
		})
		hook := s.hook
		status := 0
		for prefix, code := range s.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				status = code
			}
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if status != 0 {
			writeError(w, status, "SY/530", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

var segmentPattern = regexp.MustCompile(`^([A-Za-z0-9_]+)(?:\((.*)\))?$`)

func parseSegment(raw string) (set, key string, hasKey bool, err error) {
	// chi hands over the raw segment when the request path carries escapes,
	// and the decoded one otherwise.
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	m := segmentPattern.FindStringSubmatch(decoded)
	if m == nil {
		return "", "", false, fmt.Errorf("malformed resource segment %q", decoded)
	}
	if m[2] == "" && !strings.Contains(decoded, "(") {
		return m[1], "", false, nil
	}
	key, err = unquote(m[2])
	if err != nil {
		return "", "", false, err
	}
	return m[1], key, true, nil
}

func unquote(literal string) (string, error) {
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		return "", fmt.Errorf("unsupported key literal %q", literal)
	}
	return strings.ReplaceAll(literal[1:len(literal)-1], "''", "'"), nil
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	name, key, hasKey, err := parseSegment(chi.URLParam(r, "segment"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "SY/400", err.Error())
		return
	}

	s.mu.Lock()
	es, ok := s.sets[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "SY/404", fmt.Sprintf("Resource not found for segment '%s'", name))
		return
	}

	if hasKey {
		for _, rec := range es.records {
			if fmt.Sprint(rec[es.keyField]) == key {
				writeJSON(w, map[string]any{"d": encodeRecord(name, rec, nil)})
				return
			}
		}
		writeError(w, http.StatusNotFound, "SY/404", fmt.Sprintf("Resource not found for segment '%s(%s)'", name, key))
		return
	}

	s.writeCollection(w, r, name, es.records)
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	name, key, hasKey, err := parseSegment(chi.URLParam(r, "segment"))
	if err != nil || !hasKey {
		writeError(w, http.StatusBadRequest, "SY/400", "navigation requires a keyed segment")
		return
	}
	nav := chi.URLParam(r, "nav")

	s.mu.Lock()
	es, ok := s.sets[name]
	var items []map[string]any
	found := false
	if ok {
		items, found = es.navigation[nav][key]
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "SY/404", fmt.Sprintf("Resource not found for segment '%s(%s)/%s'", name, key, nav))
		return
	}

	s.writeCollection(w, r, nav, items)
}

func (s *Server) writeCollection(w http.ResponseWriter, r *http.Request, typeName string, records []map[string]any) {
	q := r.URL.Query()

	predicates, err := parseFilter(q.Get("$filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "SY/400", err.Error())
		return
	}

	var matched []map[string]any
	for _, rec := range records {
		if matchAll(rec, predicates) {
			matched = append(matched, rec)
		}
	}

	if skip, _ := strconv.Atoi(q.Get("$skip")); skip > 0 {
		if skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[skip:]
		}
	}
	if top, _ := strconv.Atoi(q.Get("$top")); top > 0 && top < len(matched) {
		matched = matched[:top]
	}

	var selected []string
	if sel := q.Get("$select"); sel != "" {
		selected = strings.Split(sel, ",")
	}

	results := make([]map[string]any, 0, len(matched))
	for _, rec := range matched {
		results = append(results, encodeRecord(typeName, rec, selected))
	}
	writeJSON(w, map[string]any{"d": map[string]any{"results": results}})
}

func encodeRecord(typeName string, rec map[string]any, selected []string) map[string]any {
	out := map[string]any{
		"__metadata": map[string]any{"type": "TEST." + typeName + "Type"},
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(selected) > 0 && !contains(selected, k) {
			continue
		}
		if t, ok := rec[k].(time.Time); ok {
			out[k] = fmt.Sprintf("/Date(%d)/", t.UnixMilli())
			continue
		}
		out[k] = rec[k]
	}
	return out
}

type predicate struct {
	field    string
	contains bool
	value    string
	date     time.Time
	isDate   bool
}

var (
	substringPattern = regexp.MustCompile(`^substringof\('((?:[^']|'')*)',\s*([A-Za-z0-9_]+)\)$`)
	eqStringPattern  = regexp.MustCompile(`^([A-Za-z0-9_]+) eq '((?:[^']|'')*)'$`)
	eqDatePattern    = regexp.MustCompile(`^([A-Za-z0-9_]+) eq datetime'([^']*)'$`)
)

func parseFilter(filter string) ([]predicate, error) {
	if strings.TrimSpace(filter) == "" {
		return nil, nil
	}
	var out []predicate
	for _, term := range splitAnd(filter) {
		term = strings.TrimSpace(term)
		switch {
		case substringPattern.MatchString(term):
			m := substringPattern.FindStringSubmatch(term)
			out = append(out, predicate{field: m[2], contains: true, value: strings.ReplaceAll(m[1], "''", "'")})
		case eqDatePattern.MatchString(term):
			m := eqDatePattern.FindStringSubmatch(term)
			t, err := time.Parse("2006-01-02T15:04:05", m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid datetime literal %q", m[2])
			}
			out = append(out, predicate{field: m[1], date: t, isDate: true})
		case eqStringPattern.MatchString(term):
			m := eqStringPattern.FindStringSubmatch(term)
			out = append(out, predicate{field: m[1], value: strings.ReplaceAll(m[2], "''", "'")})
		default:
			return nil, fmt.Errorf("unsupported filter term %q", term)
		}
	}
	return out, nil
}

// splitAnd splits on " and " outside of string literals.
func splitAnd(filter string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(filter); i++ {
		if filter[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && strings.HasPrefix(filter[i:], " and ") {
			parts = append(parts, filter[start:i])
			i += len(" and ") - 1
			start = i + 1
		}
	}
	return append(parts, filter[start:])
}

func matchAll(rec map[string]any, predicates []predicate) bool {
	for _, p := range predicates {
		if !p.match(rec) {
			return false
		}
	}
	return true
}

func (p predicate) match(rec map[string]any) bool {
	v, ok := rec[p.field]
	if !ok {
		return false
	}
	if p.isDate {
		t, ok := v.(time.Time)
		return ok && t.Equal(p.date)
	}
	text := fmt.Sprint(v)
	if p.contains {
		return strings.Contains(text, p.value)
	}
	return text == p.value
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if strings.TrimSpace(item) == s {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": map[string]any{"lang": "en", "value": message},
		},
	})
}
