package sqldsl

import (
	"strconv"
	"strings"
)

// Comparison operators

// Eq represents an equality comparison (=).
type Eq struct {
	Left  Expr
	Right Expr
}

func (e Eq) SQL() string { return e.Left.SQL() + " = " + e.Right.SQL() }

// Ne represents a not-equal comparison (<>).
type Ne struct {
	Left  Expr
	Right Expr
}

func (n Ne) SQL() string { return n.Left.SQL() + " <> " + n.Right.SQL() }

// Gt represents a greater-than comparison (>).
type Gt struct {
	Left  Expr
	Right Expr
}

func (g Gt) SQL() string { return g.Left.SQL() + " > " + g.Right.SQL() }

// Like represents a LIKE pattern match.
type Like struct {
	Expr    Expr
	Pattern Expr
}

func (l Like) SQL() string { return l.Expr.SQL() + " LIKE " + l.Pattern.SQL() }

// quoteValues renders a slice of strings as quoted SQL literals.
func quoteValues(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Lit(v).SQL()
	}
	return strings.Join(quoted, ", ")
}

// In represents an IN clause for string values.
type In struct {
	Expr   Expr
	Values []string
}

func (i In) SQL() string {
	if len(i.Values) == 0 {
		return "1 = 0"
	}
	return i.Expr.SQL() + " IN (" + quoteValues(i.Values) + ")"
}

// InInt represents an IN clause for integer values.
type InInt struct {
	Expr   Expr
	Values []int64
}

func (i InInt) SQL() string {
	if len(i.Values) == 0 {
		return "1 = 0"
	}
	parts := make([]string, len(i.Values))
	for j, v := range i.Values {
		parts[j] = strconv.FormatInt(v, 10)
	}
	return i.Expr.SQL() + " IN (" + strings.Join(parts, ", ") + ")"
}

// Logical operators

// filterNilExprs removes nil expressions from the slice.
func filterNilExprs(exprs []Expr) []Expr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// joinExprs renders expressions joined by a separator, wrapped in parentheses if more than one.
func joinExprs(exprs []Expr, sep, emptyVal string) string {
	switch len(exprs) {
	case 0:
		return emptyVal
	case 1:
		return exprs[0].SQL()
	default:
		parts := make([]string, len(exprs))
		for i, e := range exprs {
			parts[i] = e.SQL()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
}

// AndExpr represents a logical AND of multiple expressions.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) SQL() string { return joinExprs(a.Exprs, " AND ", "1 = 1") }

// And creates an AND expression from multiple expressions.
func And(exprs ...Expr) AndExpr {
	return AndExpr{Exprs: filterNilExprs(exprs)}
}

// OrExpr represents a logical OR of multiple expressions.
type OrExpr struct {
	Exprs []Expr
}

func (o OrExpr) SQL() string { return joinExprs(o.Exprs, " OR ", "1 = 0") }

// Or creates an OR expression from multiple expressions.
func Or(exprs ...Expr) OrExpr {
	return OrExpr{Exprs: filterNilExprs(exprs)}
}

// IsNotNull represents IS NOT NULL check.
type IsNotNull struct {
	Expr Expr
}

func (i IsNotNull) SQL() string { return i.Expr.SQL() + " IS NOT NULL" }
