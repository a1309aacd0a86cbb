package strata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Sentinel errors for lookups that can fail without the store being broken.
// Resolvers wrap these with the name or id that was looked up, so use the
// Is*Err helpers rather than comparing directly.
var (
	// ErrNotFound is returned when a unique name, relationship name or entity
	// id has no corresponding row. Callers decide whether it is fatal.
	ErrNotFound = errors.New("strata: not found")

	// ErrIntegrityGap is returned when the graph that describes an entity is
	// incomplete, for example a type_to_table edge that points at nothing or an
	// auxiliary row that is missing. Results that could still be assembled are
	// carried on *IntegrityGapError.
	ErrIntegrityGap = errors.New("strata: integrity gap")

	// ErrMissingTable is returned when a table named by the catalog does not
	// exist in the store. It is a kind of integrity gap.
	ErrMissingTable = fmt.Errorf("%w: table missing", ErrIntegrityGap)
)

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrityGapErr returns true if err is or wraps ErrIntegrityGap.
func IsIntegrityGapErr(err error) bool {
	return errors.Is(err, ErrIntegrityGap)
}

// IsMissingTableErr returns true if err is or wraps ErrMissingTable.
func IsMissingTableErr(err error) bool {
	return errors.Is(err, ErrMissingTable)
}

// NotFound wraps ErrNotFound with what was looked up.
func NotFound(kind string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, key)
}

// IntegrityGapError reports an entity whose auxiliary rows could not all be
// joined. Partial holds whatever the entity table alone returned, which is
// enough for degraded displays.
type IntegrityGapError struct {
	ID      ID
	Tables  []string
	Partial Entity
}

func (e *IntegrityGapError) Error() string {
	return fmt.Sprintf("strata: integrity gap: entity %d missing rows in %s",
		e.ID, strings.Join(e.Tables, ", "))
}

// Unwrap makes errors.Is(err, ErrIntegrityGap) hold.
func (e *IntegrityGapError) Unwrap() error {
	return ErrIntegrityGap
}

// MisuseError is the panic value for calls that can only be reached by a
// programming error, such as resolving tables for id 0.
type MisuseError struct {
	Op     string
	Reason string
}

func (e MisuseError) Error() string {
	return fmt.Sprintf("strata: %s: %s", e.Op, e.Reason)
}

// MustID panics with a MisuseError if id is zero.
func MustID(op string, id ID) {
	if id.IsZero() {
		panic(MisuseError{Op: op, Reason: "called with id 0"})
	}
}

// Driver error codes for missing tables.
const (
	pgUndefinedTable  = "42P01" // undefined_table
	mysqlNoSuchTable  = 1146    // ER_NO_SUCH_TABLE
	sqliteNoSuchTable = "no such table"
)

// MapError maps driver errors to sentinel errors.
// Detection covers pq and pgx (SQLSTATE), go-sql-driver/mysql (error number)
// and SQLite (message text). Other errors are wrapped with operation.
func MapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isMissingTable(err) {
		return fmt.Errorf("%s: %w: %v", operation, ErrMissingTable, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func isMissingTable(err error) bool {
	if sqlState(err) == pgUndefinedTable {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUndefinedTable {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlNoSuchTable {
		return true
	}
	return strings.Contains(err.Error(), sqliteNoSuchTable)
}

// sqlState extracts the SQLSTATE code from a PostgreSQL error.
// pgx/pgconn errors expose SQLState(); lib/pq errors are matched by type in
// isMissingTable.
//
// Returns empty string if the error doesn't contain a SQLSTATE.
func sqlState(err error) string {
	type sqlStateErr interface{ SQLState() string }
	var se sqlStateErr
	if errors.As(err, &se) {
		return se.SQLState()
	}

	errStr := err.Error()
	if strings.Contains(errStr, "SQLSTATE") {
		// Format: "... (SQLSTATE 42P01)" or "SQLSTATE: 42P01"
		for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
			if idx := strings.Index(errStr, prefix); idx >= 0 {
				start := idx + len(prefix)
				if start+5 <= len(errStr) {
					return errStr[start : start+5]
				}
			}
		}
	}

	return ""
}
