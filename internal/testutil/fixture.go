// Package testutil provides the fixture store shared by strata's tests:
// an SQLite database for fast package tests and a PostgreSQL container for
// integration tests. Both are loaded from the same DDL and seed.
package testutil

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/pthm/strata"
	schemasql "github.com/pthm/strata/sql"
)

//go:embed testdata/fixture.sql
var fixtureSQL string

// Fixture ids. See testdata/fixture.sql.
const (
	TypeRoot         strata.ID = 1
	TypeContentTable strata.ID = 2
	TypeSite         strata.ID = 3
	TypeUser         strata.ID = 4
	TypeUserRole     strata.ID = 5
	TypeImage        strata.ID = 6
	TypeHTMLEditor   strata.ID = 7

	TableImage      strata.ID = 21
	TableSite       strata.ID = 22
	TableHTMLEditor strata.ID = 23

	RoleEditor      strata.ID = 30
	RoleAdmin       strata.ID = 31
	RoleContributor strata.ID = 32
	RolePowerUser   strata.ID = 33

	SiteOne strata.ID = 40
	SiteTwo strata.ID = 41

	Logo       strata.ID = 42
	Banner     strata.ID = 43
	DraftPhoto strata.ID = 44
	OldPhoto   strata.ID = 45

	Alice strata.ID = 50
	Bob   strata.ID = 51
	Carol strata.ID = 52
	Dave  strata.ID = 53

	TinyMCE strata.ID = 60

	RelTypeToTable    strata.ID = 100
	RelOwns           strata.ID = 101
	RelBorrows        strata.ID = 102
	RelSiteToUser     strata.ID = 103
	RelUserToRole     strata.ID = 104
	RelSiteToEditor   strata.ID = 105
	RelSiteSharesType strata.ID = 106
	RelImageParent    strata.ID = 107
	RelSiteOwnsEditor strata.ID = 108
)

// Load creates the core tables and the fixture data in db.
func Load(ctx context.Context, db strata.Execer) error {
	for _, script := range []string{schemasql.SchemaSQL, fixtureSQL} {
		for _, stmt := range schemasql.Statements(script) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("loading fixture: %w\n%s", err, stmt)
			}
		}
	}
	return nil
}

// Exec runs statements against a fixture database, failing the test on
// error. Tests use it to break the fixture in controlled ways.
func Exec(tb testingTB, db strata.Execer, stmts ...string) {
	tb.Helper()
	for _, stmt := range stmts {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			tb.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// testingTB is the subset of testing.TB the helpers use.
type testingTB interface {
	Helper()
	Fatalf(format string, args ...any)
}
