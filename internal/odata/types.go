package odata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is a single OData entity: property name to decoded value.
// Values are string, json.Number, bool, time.Time, []Record (expanded
// navigation) or map[string]any (complex types).
type Record map[string]any

// String renders the field the way it would be shown or compared as text.
// Dates without a time component render as YYYY-MM-DD.
func (r Record) String(field string) string {
	return FormatValue(r[field])
}

func (r Record) Time(field string) (time.Time, bool) {
	t, ok := r[field].(time.Time)
	return t, ok
}

func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

type Query struct {
	Filter Expr
	Top    int
	Skip   int
	Select []string
}

func (q Query) params() map[string]string {
	params := map[string]string{}
	if q.Filter != "" {
		params["$filter"] = string(q.Filter)
	}
	if q.Top > 0 {
		params["$top"] = strconv.Itoa(q.Top)
	}
	if q.Skip > 0 {
		params["$skip"] = strconv.Itoa(q.Skip)
	}
	if len(q.Select) > 0 {
		params["$select"] = strings.Join(q.Select, ",")
	}
	return params
}

var dateLiteral = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// decodeEnvelope accepts the OData v2 verbose JSON forms {"d": {...}} and
// {"d": {"results": [...]}}, and the v4 {"value": [...]} form.
func decodeEnvelope(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var raw struct {
		D     json.RawMessage `json:"d"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode odata envelope: %w", err)
	}

	switch {
	case !isNull(raw.D):
		return decodeD(raw.D)
	case !isNull(raw.Value):
		return decodeList(raw.Value)
	default:
		return nil, nil
	}
}

func decodeD(data json.RawMessage) ([]Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode odata payload: %w", err)
	}
	if results, ok := fields["results"]; ok && isArray(results) {
		return decodeList(results)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func decodeList(data json.RawMessage) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode odata results: %w", err)
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(data json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode odata record: %w", err)
	}
	return normalizeRecord(fields), nil
}

func normalizeRecord(fields map[string]any) Record {
	rec := make(Record, len(fields))
	for name, value := range fields {
		if name == "__metadata" {
			continue
		}
		normalized, keep := normalizeValue(value)
		if keep {
			rec[name] = normalized
		}
	}
	return rec
}

func normalizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		if t, ok := parseDate(v); ok {
			return t, true
		}
		return v, true
	case map[string]any:
		if _, deferred := v["__deferred"]; deferred {
			return nil, false
		}
		if results, ok := v["results"].([]any); ok {
			nested := make([]Record, 0, len(results))
			for _, item := range results {
				if m, ok := item.(map[string]any); ok {
					nested = append(nested, normalizeRecord(m))
				}
			}
			return nested, true
		}
		return map[string]any(normalizeRecord(v)), true
	default:
		return v, true
	}
}

func parseDate(s string) (time.Time, bool) {
	m := dateLiteral.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isArray(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
