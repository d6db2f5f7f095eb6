package odata

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Expr is an OData v2 $filter expression.
type Expr string

func (e Expr) String() string {
	return string(e)
}

func SubstringOf(field, value string) Expr {
	return Expr(fmt.Sprintf("substringof(%s, %s)", Literal(value), field))
}

func Eq(field string, value any) Expr {
	return Expr(fmt.Sprintf("%s eq %s", field, Literal(value)))
}

// And joins the non-empty expressions. A single operand is returned as is.
func And(exprs ...Expr) Expr {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, string(e))
		}
	}
	return Expr(strings.Join(parts, " and "))
}

// Literal formats v as an OData v2 URI literal.
func Literal(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case time.Time:
		return "datetime'" + val.UTC().Format("2006-01-02T15:04:05") + "'"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return Literal(fmt.Sprint(val))
	}
}

// EntityPath addresses a single entity of set by its key. The key literal is
// escaped as one path segment, so characters like '#', '?' and '/' stay part
// of the key.
func EntityPath(set, key string) string {
	return "/" + set + "(" + url.PathEscape(Literal(key)) + ")"
}

// NavigationPath addresses the nav property of the entity of set with key.
func NavigationPath(set, key, nav string) string {
	return EntityPath(set, key) + "/" + nav
}
