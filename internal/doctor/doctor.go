// Package doctor provides health checks for a strata store.
//
// The doctor command validates that a store can be read: the core tables
// exist, the type root is sound, the unique names and relationships the
// resolvers depend on are present, and every table a type links to exists.
//
// Example usage:
//
//	d := doctor.New(reader.New(db))
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/catalog"
	"github.com/pthm/strata/pkg/graph"
	"github.com/pthm/strata/pkg/privilege"
	"github.com/pthm/strata/pkg/reader"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Core Tables", "Type Tables").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Find returns the check with the given category and name.
func (r *Report) Find(category, name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Category names.
const (
	CategoryCoreTables    = "Core Tables"
	CategoryTypeRoot      = "Type Root"
	CategoryUniqueNames   = "Unique Names"
	CategoryRelationships = "Allowable Relationships"
	CategoryTypeTables    = "Type Tables"
	CategoryPrivileges    = "Privileges"
)

// RequiredUniqueNames must resolve for the resolvers to work.
var RequiredUniqueNames = []string{
	catalog.TypeRootName,
	catalog.ContentTableName,
	catalog.SiteTypeName,
	catalog.UserTypeName,
	catalog.UserRoleTypeName,
}

// RequiredRelationships must be declared for the resolvers to work.
var RequiredRelationships = []string{
	catalog.RelTypeToTable,
	catalog.RelOwns,
	catalog.RelBorrows,
	privilege.RelUserToRole,
	graph.RelSiteToUser,
}

// Doctor performs health checks on a store through a Reader.
type Doctor struct {
	r *reader.Reader
}

// New creates a new Doctor instance. Every lookup it makes bypasses the
// reader's cache.
func New(r *reader.Reader) *Doctor {
	return &Doctor{r: r}
}

// lookup is the option set for every doctor lookup.
var lookup = []strata.LookupOption{strata.Fresh(), strata.Quiet()}

// Run executes all health checks and returns a report. Checks that depend
// on the core tables are skipped when those are missing.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	ok, err := d.checkCoreTables(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("checking core tables: %w", err)
	}
	if !ok {
		return report, nil
	}

	d.checkProtectedTables(report)

	rootOK, err := d.checkTypeRoot(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("checking type root: %w", err)
	}
	if err := d.checkUniqueNames(ctx, report); err != nil {
		return nil, fmt.Errorf("checking unique names: %w", err)
	}
	if err := d.checkRelationships(ctx, report); err != nil {
		return nil, fmt.Errorf("checking allowable relationships: %w", err)
	}
	if rootOK {
		if err := d.checkTypeTables(ctx, report); err != nil {
			return nil, fmt.Errorf("checking type tables: %w", err)
		}
		if err := d.checkPrivilegeRoles(ctx, report); err != nil {
			return nil, fmt.Errorf("checking privilege roles: %w", err)
		}
	}

	return report, nil
}

// checkCoreTables probes the three fixed tables.
func (d *Doctor) checkCoreTables(ctx context.Context, report *Report) (bool, error) {
	ok := true
	for _, table := range []string{strata.TableEntity, strata.TableRelationship, strata.TableAllowableRelationship} {
		fields, err := d.r.Catalog.FieldsOfTable(ctx, table, lookup...)
		switch {
		case strata.IsMissingTableErr(err):
			ok = false
			report.AddCheck(CheckResult{
				Category: CategoryCoreTables,
				Name:     table,
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s table does not exist", table),
				Details:  err.Error(),
				FixHint:  "Run 'strata schema' and apply the output to the database",
			})
		case err != nil:
			return false, err
		default:
			report.AddCheck(CheckResult{
				Category: CategoryCoreTables,
				Name:     table,
				Status:   StatusPass,
				Message:  fmt.Sprintf("%s table exists (%d columns)", table, len(fields)),
				Details:  strings.Join(fields, ", "),
			})
		}
	}
	return ok, nil
}

func (d *Doctor) checkProtectedTables(report *Report) {
	tables := catalog.ProtectedTables()
	report.AddCheck(CheckResult{
		Category: CategoryCoreTables,
		Name:     "protected",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d protected tables", len(tables)),
		Details:  strings.Join(tables, ", "),
	})
}

func (d *Doctor) checkTypeRoot(ctx context.Context, report *Report) (bool, error) {
	root, err := d.r.Catalog.Root(ctx, lookup...)
	if strata.IsIntegrityGapErr(err) {
		report.AddCheck(CheckResult{
			Category: CategoryTypeRoot,
			Name:     "root",
			Status:   StatusFail,
			Message:  "Type root is missing or not self-typed",
			Details:  err.Error(),
			FixHint:  fmt.Sprintf("Ensure one entity has unique_name %q and type equal to its own id", catalog.TypeRootName),
		})
		return false, nil
	}
	if err != nil {
		return false, err
	}
	report.AddCheck(CheckResult{
		Category: CategoryTypeRoot,
		Name:     "root",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Type root is entity %d", root),
	})
	return true, nil
}

func (d *Doctor) checkUniqueNames(ctx context.Context, report *Report) error {
	missing, err := d.missingNames(ctx, RequiredUniqueNames)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryUniqueNames,
			Name:     "required",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d required unique names missing", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Restore the missing entities or their unique_name values",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: CategoryUniqueNames,
			Name:     "required",
			Status:   StatusPass,
			Message:  fmt.Sprintf("All %d required unique names resolve", len(RequiredUniqueNames)),
		})
	}

	role := d.r.Privileges.DefaultRole()
	missing, err = d.missingNames(ctx, []string{role})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryUniqueNames,
			Name:     "default_role",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Default role %s has no entity", role),
			Details:  "Users without roles still receive its privileges",
			FixHint:  "Create the user_role entity or set privileges.default_role",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryUniqueNames,
		Name:     "default_role",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Default role %s exists", role),
	})
	return nil
}

func (d *Doctor) missingNames(ctx context.Context, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		_, err := d.r.Catalog.IDOf(ctx, name, lookup...)
		switch {
		case strata.IsNotFoundErr(err):
			missing = append(missing, name)
		case err != nil:
			return nil, err
		}
	}
	return missing, nil
}

func (d *Doctor) checkRelationships(ctx context.Context, report *Report) error {
	var missing []string
	for _, name := range RequiredRelationships {
		_, err := d.r.Catalog.RelationshipID(ctx, name, lookup...)
		switch {
		case strata.IsNotFoundErr(err):
			missing = append(missing, name)
		case err != nil:
			return err
		}
	}
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryRelationships,
			Name:     "required",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d required allowable relationships missing", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Declare the missing relationships in allowable_relationship",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryRelationships,
		Name:     "required",
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d required allowable relationships declared", len(RequiredRelationships)),
	})
	return nil
}

// checkTypeTables follows every type's type_to_table edges and probes each
// table they name.
func (d *Doctor) checkTypeTables(ctx context.Context, report *Report) error {
	types, err := d.r.Catalog.Types(ctx, lookup...)
	if err != nil {
		return err
	}

	var (
		broken  []string
		checked = make(map[string]bool)
	)
	for _, t := range types {
		tables, err := d.r.Catalog.TablesForType(ctx, t.ID(), lookup...)
		if err != nil {
			return err
		}
		for _, table := range tables {
			if table == strata.TableEntity {
				continue
			}
			if ok, seen := checked[table]; seen {
				if !ok {
					broken = append(broken, fmt.Sprintf("%s: %s", typeLabel(t), table))
				}
				continue
			}
			_, err := d.r.Catalog.FieldsOfTable(ctx, table, lookup...)
			switch {
			case strata.IsMissingTableErr(err):
				checked[table] = false
				broken = append(broken, fmt.Sprintf("%s: %s", typeLabel(t), table))
			case err != nil:
				checked[table] = false
				broken = append(broken, fmt.Sprintf("%s: %s (%v)", typeLabel(t), table, err))
			default:
				checked[table] = true
			}
		}
	}

	if len(broken) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryTypeTables,
			Name:     "type_to_table",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d type tables do not exist", len(broken)),
			Details:  strings.Join(broken, "\n"),
			FixHint:  "Create the tables or remove the type_to_table edges that name them",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryTypeTables,
		Name:     "type_to_table",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d types, %d tables verified", len(types), len(checked)),
	})
	return nil
}

// checkPrivilegeRoles warns about roles in the privilege table that have
// no live user_role entity.
func (d *Doctor) checkPrivilegeRoles(ctx context.Context, report *Report) error {
	roleType, err := d.r.Catalog.TypeID(ctx, catalog.UserRoleTypeName, lookup...)
	if strata.IsNotFoundErr(err) {
		// Already reported as a missing unique name.
		return nil
	}
	if err != nil {
		return err
	}

	var missing []string
	for _, role := range d.r.Privileges.Table().Roles() {
		id, err := d.r.Catalog.IDOf(ctx, role, lookup...)
		if strata.IsNotFoundErr(err) {
			missing = append(missing, role)
			continue
		}
		if err != nil {
			return err
		}
		e, err := d.r.Entities.GetByID(ctx, id, lookup...)
		var gap *strata.IntegrityGapError
		if errors.As(err, &gap) {
			e, err = gap.Partial, nil
		}
		if err != nil {
			return err
		}
		if e.Type() != roleType || e.State() != strata.StateLive {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryPrivileges,
			Name:     "roles",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d roles in the privilege table have no live user_role entity", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Users cannot be assigned these roles until the entities exist",
		})
		return nil
	}
	report.AddCheck(CheckResult{
		Category: CategoryPrivileges,
		Name:     "roles",
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d privilege table roles exist", len(d.r.Privileges.Table().Roles())),
	})
	return nil
}

func typeLabel(t strata.Entity) string {
	if u := t.UniqueName(); u != "" {
		return u
	}
	return t.ID().String()
}
