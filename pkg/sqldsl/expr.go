package sqldsl

import (
	"strconv"
	"strings"
)

// Expr is the interface that all SQL expression types implement.
type Expr interface {
	SQL() string
}

// Col represents a table column reference (e.g., r.entity_a).
type Col struct {
	Table  string
	Column string
}

// SQL renders the column reference.
func (c Col) SQL() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// Star is every column of a table (t.*), or of the whole FROM list if Table
// is empty.
type Star struct {
	Table string
}

// SQL renders the wildcard.
func (s Star) SQL() string {
	if s.Table == "" {
		return "*"
	}
	return s.Table + ".*"
}

// Lit represents a literal string value (auto-quoted with single quotes).
type Lit string

// SQL renders the literal with single quotes.
func (l Lit) SQL() string {
	// Escape single quotes by doubling them
	escaped := strings.ReplaceAll(string(l), "'", "''")
	return "'" + escaped + "'"
}

// Raw is an escape hatch for arbitrary SQL expressions.
// The caller is responsible for quoting anything embedded in it.
type Raw string

// SQL renders the raw SQL as-is.
func (r Raw) SQL() string {
	return string(r)
}

// Int represents an integer literal.
type Int int64

// SQL renders the integer.
func (i Int) SQL() string {
	return strconv.FormatInt(int64(i), 10)
}

// Alias wraps an expression with an alias (expr AS alias).
type Alias struct {
	Expr Expr
	Name string
}

// SQL renders the aliased expression.
func (a Alias) SQL() string {
	return a.Expr.SQL() + " AS " + a.Name
}

// Desc marks an ORDER BY expression as descending.
type Desc struct {
	Expr Expr
}

// SQL renders expr DESC.
func (d Desc) SQL() string {
	return d.Expr.SQL() + " DESC"
}
