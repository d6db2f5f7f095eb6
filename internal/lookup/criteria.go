package lookup

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"doclookup/internal/odata"
)

// Criteria maps filter field names to raw user input. Blank values impose no
// constraint.
type Criteria map[string]string

// ParseCriteria reads Field=value arguments. Field names are matched without
// regard to case, so each field may appear once.
func ParseCriteria(args []string) (Criteria, error) {
	c := Criteria{}
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: criterion %q is not Field=value", ErrValidation, arg)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("%w: %s is given more than once", ErrValidation, name)
		}
		seen[strings.ToLower(name)] = true
		c[name] = strings.TrimSpace(value)
	}
	return c, nil
}

// value returns the input for field. An exact-case entry wins; otherwise a
// single case-insensitive match is used and several are rejected.
func (c Criteria) value(field string) (string, error) {
	if v, ok := c[field]; ok {
		return strings.TrimSpace(v), nil
	}
	var (
		found string
		names []string
	)
	for name, v := range c {
		if strings.EqualFold(name, field) {
			found = strings.TrimSpace(v)
			names = append(names, name)
		}
	}
	if len(names) > 1 {
		slices.Sort(names)
		return "", fmt.Errorf("%w: %s is given more than once (%s)", ErrValidation, field, strings.Join(names, ", "))
	}
	return found, nil
}

func (c Criteria) IsEmpty() bool {
	for _, v := range c {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type Operator int

const (
	OpContains Operator = iota
	OpEquals
)

// Condition is one resolved predicate. The same value drives both the
// backend $filter and the in-memory match.
type Condition struct {
	Field string
	Op    Operator
	Text  string
	Date  time.Time
}

// Conditions resolves c against the filter fields of d, in the order the
// definition lists them.
func (d Definition) Conditions(c Criteria) ([]Condition, error) {
	for name := range c {
		if _, ok := d.FilterField(name); !ok {
			return nil, fmt.Errorf("%w: %s cannot be filtered by %q", ErrValidation, d.Label, name)
		}
	}

	var out []Condition
	for _, f := range d.FilterFields {
		value, err := c.value(f.Name)
		if err != nil {
			return nil, err
		}
		if value == "" {
			continue
		}

		switch f.Kind {
		case KindDate:
			date, err := time.Parse(time.DateOnly, value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrValidation, f.Name, value)
			}
			out = append(out, Condition{Field: f.Name, Op: OpEquals, Date: date})
		default:
			out = append(out, Condition{Field: f.Name, Op: OpContains, Text: value})
		}
	}
	return out, nil
}

func (c Condition) Expr() odata.Expr {
	if c.Op == OpEquals {
		return odata.Eq(c.Field, c.Date)
	}
	return odata.SubstringOf(c.Field, c.Text)
}

// Match applies c to an already fetched record. Text matching is
// case-sensitive like substringof; dates compare by calendar day in UTC.
func (c Condition) Match(r odata.Record) bool {
	if c.Op == OpEquals {
		if t, ok := r.Time(c.Field); ok {
			y1, m1, d1 := t.UTC().Date()
			y2, m2, d2 := c.Date.Date()
			return y1 == y2 && m1 == m2 && d1 == d2
		}
		return r.String(c.Field) == c.Date.Format(time.DateOnly)
	}
	return strings.Contains(r.String(c.Field), c.Text)
}

func filterExpr(conds []Condition) odata.Expr {
	exprs := make([]odata.Expr, 0, len(conds))
	for _, c := range conds {
		exprs = append(exprs, c.Expr())
	}
	return odata.And(exprs...)
}

func matchAll(r odata.Record, conds []Condition) bool {
	for _, c := range conds {
		if !c.Match(r) {
			return false
		}
	}
	return true
}
