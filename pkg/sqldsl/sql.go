package sqldsl

import (
	"fmt"
	"math"
	"strings"
)

// Optf returns formatted string if condition is true, empty string otherwise.
// Useful for optional SQL clauses.
func Optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}

// SelectStmt represents a SELECT query over a comma-joined FROM list.
type SelectStmt struct {
	Distinct    bool
	ColumnExprs []Expr
	From        []TableExpr
	Where       Expr
	OrderBy     []Expr
	Limit       int // zero or less: no limit
	Offset      int
}

// SQL renders the SELECT statement, one clause per line.
func (s SelectStmt) SQL() string {
	clauses := []string{
		"SELECT " + Optf(s.Distinct, "DISTINCT ") + s.columnsSQL(),
		s.fromSQL(),
		s.whereSQL(),
		s.orderSQL(),
		s.limitSQL(),
	}
	out := clauses[:0]
	for _, c := range clauses {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, "\n")
}

func (s SelectStmt) columnsSQL() string {
	if len(s.ColumnExprs) == 0 {
		return "1"
	}
	parts := make([]string, len(s.ColumnExprs))
	for i, e := range s.ColumnExprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, ", ")
}

func (s SelectStmt) fromSQL() string {
	if len(s.From) == 0 {
		return ""
	}
	parts := make([]string, len(s.From))
	for i, t := range s.From {
		parts[i] = t.TableSQL()
	}
	return "FROM " + strings.Join(parts, ", ")
}

func (s SelectStmt) whereSQL() string {
	if s.Where == nil {
		return ""
	}
	if and, ok := s.Where.(AndExpr); ok && len(and.Exprs) == 0 {
		return ""
	}
	return "WHERE " + s.Where.SQL()
}

func (s SelectStmt) orderSQL() string {
	if len(s.OrderBy) == 0 {
		return ""
	}
	parts := make([]string, len(s.OrderBy))
	for i, e := range s.OrderBy {
		parts[i] = e.SQL()
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// noLimit stands in for a missing LIMIT when only OFFSET is set; MySQL and
// SQLite reject a bare OFFSET.
const noLimit = math.MaxInt64

func (s SelectStmt) limitSQL() string {
	switch {
	case s.Limit > 0 && s.Offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", s.Limit, s.Offset)
	case s.Limit > 0:
		return fmt.Sprintf("LIMIT %d", s.Limit)
	case s.Offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", int64(noLimit), s.Offset)
	default:
		return ""
	}
}
