package sqldsl

// TableExpr is the interface for table expressions in FROM clauses.
type TableExpr interface {
	// TableSQL returns the SQL for use in the FROM list.
	TableSQL() string
	// TableAlias returns the name other clauses use to refer to the table:
	// the alias if set, otherwise the table name.
	TableAlias() string
}

// TableRef wraps a raw table name for use as a TableExpr.
type TableRef struct {
	Name  string
	Alias string
}

// TableSQL implements TableExpr.
func (t TableRef) TableSQL() string {
	if t.Alias != "" && t.Alias != t.Name {
		return t.Name + " AS " + t.Alias
	}
	return t.Name
}

// TableAlias implements TableExpr.
func (t TableRef) TableAlias() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Table creates an unaliased table reference.
func Table(name string) TableRef {
	return TableRef{Name: name}
}

// TableAs creates a table reference with an alias.
func TableAs(name, alias string) TableRef {
	return TableRef{Name: name, Alias: alias}
}
