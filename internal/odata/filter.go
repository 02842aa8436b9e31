// Package odata builds OData $filter expressions as a predicate tree.
//
// Expressions serialize to the query string sent to the remote API and can be
// evaluated against a flattened Record, which lets fakes and tests share the
// exact semantics of a filter without a network round trip.
package odata

import (
	"fmt"
	"strings"
	"time"
)

// Expr is a node of a filter expression.
type Expr interface {
	// String serializes the expression to OData $filter syntax.
	String() string
	// Match reports whether rec satisfies the expression.
	Match(rec Record) bool
}

// Record is a flattened view of a remote entity keyed by property path
// (e.g. "from/emailAddress/address"). Collection properties hold []Record.
type Record map[string]any

// Value is a typed filter literal.
type Value interface {
	literal() string
	compare(v any) (int, bool)
}

// String is a string literal. Single quotes are doubled on serialization.
type String string

func (s String) literal() string {
	return "'" + strings.ReplaceAll(string(s), "'", "''") + "'"
}

func (s String) compare(v any) (int, bool) {
	other, ok := v.(string)
	if !ok {
		return 0, false
	}
	// Graph compares string properties case-insensitively.
	return strings.Compare(strings.ToLower(other), strings.ToLower(string(s))), true
}

// DateTime is an Edm.DateTimeOffset literal, serialized unquoted in UTC.
type DateTime time.Time

func (d DateTime) literal() string {
	return time.Time(d).UTC().Format(time.RFC3339)
}

func (d DateTime) compare(v any) (int, bool) {
	other, ok := v.(time.Time)
	if !ok {
		return 0, false
	}
	return other.Compare(time.Time(d)), true
}

type op string

const (
	opEq op = "eq"
	opGe op = "ge"
	opLe op = "le"
)

type comparison struct {
	path  string
	op    op
	value Value
}

// Eq matches when the property at path equals v.
func Eq(path string, v Value) Expr { return comparison{path: path, op: opEq, value: v} }

// Ge matches when the property at path is greater than or equal to v.
func Ge(path string, v Value) Expr { return comparison{path: path, op: opGe, value: v} }

// Le matches when the property at path is less than or equal to v.
func Le(path string, v Value) Expr { return comparison{path: path, op: opLe, value: v} }

func (c comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.path, c.op, c.value.literal())
}

func (c comparison) Match(rec Record) bool {
	v, ok := rec[c.path]
	if !ok {
		return false
	}
	cmp, ok := c.value.compare(v)
	if !ok {
		return false
	}
	switch c.op {
	case opEq:
		return cmp == 0
	case opGe:
		return cmp >= 0
	case opLe:
		return cmp <= 0
	}
	return false
}

type and []Expr

// And joins expressions with "and". Nil operands are dropped, so optional
// predicates can be passed unconditionally.
func And(exprs ...Expr) Expr {
	out := make(and, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if nested, ok := e.(and); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, e)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (a and) String() string {
	parts := make([]string, len(a))
	for i, e := range a {
		parts[i] = e.String()
	}
	return strings.Join(parts, " and ")
}

func (a and) Match(rec Record) bool {
	for _, e := range a {
		if !e.Match(rec) {
			return false
		}
	}
	return true
}

type anyExpr struct {
	collection string
	alias      string
	inner      Expr
}

// Any matches when at least one member of a collection property satisfies
// inner. Paths inside inner are written relative to the member, e.g.
// Any("emailAddresses", "e", Eq("address", String(x))) serializes to
// emailAddresses/any(e:e/address eq 'x').
func Any(collection, alias string, inner Expr) Expr {
	return anyExpr{collection: collection, alias: alias, inner: inner}
}

func (a anyExpr) String() string {
	return fmt.Sprintf("%s/any(%s:%s)", a.collection, a.alias, prefixPaths(a.inner, a.alias+"/").String())
}

func (a anyExpr) Match(rec Record) bool {
	members, ok := rec[a.collection].([]Record)
	if !ok {
		return false
	}
	for _, m := range members {
		if a.inner.Match(m) {
			return true
		}
	}
	return false
}

func prefixPaths(e Expr, prefix string) Expr {
	switch t := e.(type) {
	case comparison:
		t.path = prefix + t.path
		return t
	case and:
		out := make(and, len(t))
		for i, inner := range t {
			out[i] = prefixPaths(inner, prefix)
		}
		return out
	default:
		return e
	}
}

// Format serializes e, returning "" for a nil expression.
func Format(e Expr) string {
	if e == nil {
		return ""
	}
	return e.String()
}
